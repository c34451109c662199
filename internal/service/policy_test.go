package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdmissionPolicy(t *testing.T) {
	p := NewAdmissionPolicy(0, nil)
	assert.Equal(t, DefaultMaxBytes, p.MaxBytes)

	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     error
	}{
		{name: "pdf", contentType: "application/pdf", size: 10},
		{name: "png", contentType: "image/png", size: 10},
		{name: "jpeg", contentType: "image/jpeg", size: 10},
		{name: "legacy word", contentType: "application/msword", size: 10},
		{name: "ooxml word", contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", size: 10},
		{name: "parameters ignored", contentType: "application/pdf; name=a.pdf", size: 10},
		{name: "case insensitive", contentType: "Image/PNG", size: 10},
		{name: "exactly at the limit", contentType: "application/pdf", size: DefaultMaxBytes},
		{name: "plain text", contentType: "text/plain", size: 10, wantErr: ErrUnsupportedType},
		{name: "empty type", contentType: "", size: 10, wantErr: ErrUnsupportedType},
		{name: "gif", contentType: "image/gif", size: 10, wantErr: ErrUnsupportedType},
		{name: "one byte over", contentType: "application/pdf", size: DefaultMaxBytes + 1, wantErr: ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.contentType, tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAdmissionPolicy_Custom(t *testing.T) {
	p := NewAdmissionPolicy(1024, []string{" Text/Plain "})
	assert.NoError(t, p.Validate("text/plain", 1024))
	assert.ErrorIs(t, p.Validate("application/pdf", 1), ErrUnsupportedType)
	assert.ErrorIs(t, p.Validate("text/plain", 1025), ErrFileTooLarge)
}

func TestAdmissionPolicy_Extension(t *testing.T) {
	p := NewAdmissionPolicy(0, nil)

	tests := []struct {
		name        string
		contentType string
		filename    string
		want        string
	}{
		{name: "matching extension kept", contentType: "application/pdf", filename: "report.pdf", want: ".pdf"},
		{name: "upper case normalised", contentType: "application/pdf", filename: "REPORT.PDF", want: ".pdf"},
		{name: "jpeg alias kept", contentType: "image/jpeg", filename: "scan.jpeg", want: ".jpeg"},
		{name: "html declared as pdf", contentType: "application/pdf", filename: "page.html", want: ".pdf"},
		{name: "svg declared as png", contentType: "image/png", filename: "icon.svg", want: ".png"},
		{name: "no extension", contentType: "application/msword", filename: "letter", want: ".doc"},
		{name: "parameters ignored", contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document; charset=binary", filename: "cv.docx", want: ".docx"},
		{name: "unparseable type", contentType: "", filename: "a.pdf", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Extension(tt.contentType, tt.filename))
		})
	}
}
