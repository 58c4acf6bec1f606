package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// oggMagic starts every fake media file so content sniffers see audio.
var oggMagic = []byte("OggS")

// WriteFile creates a fake voice note of size bytes at path, creating
// parent directories. Sizes below the header length are padded up to it.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	body := int(size) - len(oggMagic)
	if body < 0 {
		body = 0
	}
	data := append(append([]byte(nil), oggMagic...), bytes.Repeat([]byte{0x42}, body)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
