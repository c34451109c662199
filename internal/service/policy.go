package service

import (
	"fmt"
	"mime"
	"path"
	"slices"
	"strings"
)

// DefaultAllowedTypes is the MIME allow-list used when none is configured:
// PDF, PNG, JPEG, legacy Word and OOXML Word.
var DefaultAllowedTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// knownExtensions lists the stored extensions accepted for the default types, preferred first.
// Other configured types fall back to the system MIME table.
var knownExtensions = map[string][]string{
	"application/pdf":    {".pdf"},
	"image/png":          {".png"},
	"image/jpeg":         {".jpg", ".jpeg"},
	"application/msword": {".doc"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {".docx"},
}

// DefaultMaxBytes is the upload ceiling used when none is configured (50 MiB).
const DefaultMaxBytes int64 = 50 << 20

// AdmissionPolicy decides whether an upload may be stored at all. It only looks at
// declared metadata; the pipeline separately enforces MaxBytes on the bytes actually read.
type AdmissionPolicy struct {
	MaxBytes int64
	allowed  map[string]struct{}
}

// NewAdmissionPolicy builds a policy. Zero or negative maxBytes and an empty list fall back
// to the defaults.
func NewAdmissionPolicy(maxBytes int64, allowedTypes []string) AdmissionPolicy {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultAllowedTypes
	}
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return AdmissionPolicy{MaxBytes: maxBytes, allowed: allowed}
}

// Allows reports whether contentType (parameters ignored) is on the allow-list.
func (p AdmissionPolicy) Allows(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	_, ok := p.allowed[mediaType]
	return ok
}

// Validate rejects disallowed types and declared sizes above the ceiling.
func (p AdmissionPolicy) Validate(contentType string, declaredSize int64) error {
	if !p.Allows(contentType) {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if declaredSize > p.MaxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, declaredSize, p.MaxBytes)
	}
	return nil
}

// Extension picks the extension a stored object gets. The client's extension is kept only when
// it belongs to the admitted type; otherwise the type's preferred extension is used, so a file
// named "page.html" admitted as application/pdf is stored as ".pdf".
func (p AdmissionPolicy) Extension(contentType, filename string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	exts, ok := knownExtensions[mediaType]
	if !ok {
		exts, _ = mime.ExtensionsByType(mediaType)
	}
	if len(exts) == 0 {
		return ""
	}
	ext := strings.ToLower(path.Ext(filename))
	if slices.Contains(exts, ext) {
		return ext
	}
	return exts[0]
}
