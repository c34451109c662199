package storage

import (
	"fmt"
	"math/rand/v2"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// KeyPrefix is the server-relative directory recorded in every document filepath.
// The static file route is mounted under the same name.
const KeyPrefix = "uploads"

// GenerateName builds a collision-resistant object name: <field>-<unix millis>-<random><ext>.
// The extension is taken from originalName and lower-cased; names without one get none.
func GenerateName(field, originalName string, now time.Time) string {
	return nameWithExt(field, strings.ToLower(filepath.Ext(filepath.Base(originalName))), now)
}

// GenerateKey returns the full storage key (KeyPrefix/<name>) for a new upload.
func GenerateKey(field, originalName string, now time.Time) string {
	return path.Join(KeyPrefix, GenerateName(field, originalName, now))
}

// GenerateKeyWithExt is GenerateKey with the extension chosen by the caller (".pdf", or "" for none).
func GenerateKeyWithExt(field, ext string, now time.Time) string {
	return path.Join(KeyPrefix, nameWithExt(field, strings.ToLower(ext), now))
}

func nameWithExt(field, ext string, now time.Time) string {
	if strings.ContainsAny(ext, `/\ `) || ext == "." || (ext != "" && ext[0] != '.') {
		ext = ""
	}
	return fmt.Sprintf("%s-%d-%09d%s", field, now.UnixMilli(), rand.Int64N(1_000_000_000), ext)
}

// BaseName extracts the object name from a key. Keys whose base name would escape the
// storage root ("", ".", "..", "/") are rejected with ErrInvalidKey.
func BaseName(key string) (string, error) {
	name := path.Base(filepath.ToSlash(key))
	switch name {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return name, nil
}
