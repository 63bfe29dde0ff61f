package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docvault/internal/config"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		fileName string
		want     string
	}{
		{name: "keeps extension", id: "abc", fileName: "tax.pdf", want: "documents/abc.pdf"},
		{name: "lower-cases extension", id: "abc", fileName: "Scan.JPG", want: "documents/abc.jpg"},
		{name: "strips directories", id: "abc", fileName: "../../etc/passwd.txt", want: "documents/abc.txt"},
		{name: "no extension", id: "abc", fileName: "README", want: "documents/abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectKey(tt.id, tt.fileName))
		})
	}
}

func TestAttachmentDisposition(t *testing.T) {
	assert.Equal(t, "attachment", AttachmentDisposition(""))
	assert.Equal(t, "attachment; filename=tax.pdf", AttachmentDisposition("tax.pdf"))
	assert.Equal(t, `attachment; filename="my scan.pdf"`, AttachmentDisposition("my scan.pdf"))
}

func TestNewMinIO_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.MinIOConfig
		wantErr string
	}{
		{"missing endpoint", config.MinIOConfig{AccessKey: "a", SecretKey: "s", Bucket: "b"}, "minio endpoint is required"},
		{"missing credentials", config.MinIOConfig{Endpoint: "localhost:9000", Bucket: "b"}, "minio credentials are required"},
		{"missing bucket", config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, "minio bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewMinIO(t.Context(), tt.cfg)
			assert.EqualError(t, err, tt.wantErr)
			assert.Nil(t, s)
		})
	}
}
