// Package storage holds the binary content of documents in an S3-compatible object store.
// Implementations must avoid using local disk and rely on streaming I/O only.
package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by Get when no object exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
// FileName, when set, is stored as the object's attachment disposition.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	FileName    string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is a reusable, S3-compatible object storage client interface.
// Methods use context and streaming readers/writers; no local disk is used.
type Storage interface {
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	// A missing key yields ErrObjectNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited URL that can be used to download the object without
	// credentials. A non-empty fileName is what the browser saves the download as.
	PresignGet(ctx context.Context, key, fileName string, expiry time.Duration) (string, error)
}

// AttachmentDisposition is the Content-Disposition value that saves a download as fileName.
func AttachmentDisposition(fileName string) string {
	if fileName == "" {
		return "attachment"
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": fileName})
}

// ObjectKey is the key under which a document's bytes are stored: documents/<id><ext>, where ext
// is the lower-cased extension of the uploaded file name.
func ObjectKey(id, fileName string) string {
	return "documents/" + id + strings.ToLower(path.Ext(path.Base(fileName)))
}
