package textutil

import (
	"path/filepath"
	"strings"
	"unicode"
)

// maxFileNameBytes keeps names inside common filesystem limits.
const maxFileNameBytes = 200

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName makes a Telegram-provided file name or file id safe to use
// as a single path element. It returns fallback when nothing usable remains.
func SanitizeFileName(name, fallback string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	name = strings.Trim(name, ".")
	if name == "" {
		return fallback
	}
	return truncateName(name)
}

// TranscriptFileName names the document a transcript is delivered as,
// e.g. "Голосовое 12.ogg" becomes "Голосовое 12.txt".
func TranscriptFileName(source string) string {
	name := SanitizeFileName(source, "")
	if name == "" {
		return "transcript.txt"
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		return "transcript.txt"
	}
	return truncateName(stem) + ".txt"
}

func truncateName(name string) string {
	if len(name) <= maxFileNameBytes {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) > 16 {
		ext = ""
	}
	limit := maxFileNameBytes - len(ext)
	cut := 0
	for i := range name {
		if i > limit {
			break
		}
		cut = i
	}
	return strings.TrimSpace(name[:cut]) + ext
}
