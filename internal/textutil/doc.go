// Package textutil turns user-supplied names into safe workspace file names
// and derives the names of delivered transcript documents.
package textutil
