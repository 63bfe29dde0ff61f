// Package download turns downloaded document bytes into a local file the caller can open or save.
package download

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultGrace is how long a Handle's file lives before it is released.
const DefaultGrace = 60 * time.Second

const (
	DispositionInline     = "inline"
	DispositionAttachment = "attachment"
)

// preferred wins over the platform mime table, which lists several extensions for some types.
var preferred = map[string]string{
	"application/pdf":    ".pdf",
	"image/jpeg":         ".jpg",
	"image/png":          ".png",
	"image/gif":          ".gif",
	"image/webp":         ".webp",
	"image/heic":         ".heic",
	"text/plain":         ".txt",
	"text/csv":           ".csv",
	"application/zip":    ".zip",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       ".xlsx",
}

var mobile = map[string]bool{"android": true, "ios": true, "ipados": true, "mobile": true}

// baseType strips parameters such as "; charset=utf-8".
func baseType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}

// ExtensionFor returns the extension fileName should carry. An existing extension is kept.
// Otherwise the content type decides, and when it is missing or generic the first bytes of head
// are sniffed. The result is empty when nothing matches.
func ExtensionFor(contentType, fileName string, head []byte) string {
	if ext := filepath.Ext(fileName); ext != "" && ext != "." {
		return ext
	}
	ct := baseType(contentType)
	if ct == "" || ct == "application/octet-stream" {
		if len(head) == 0 {
			return ""
		}
		ct = baseType(http.DetectContentType(head))
	}
	if ext, ok := preferred[ct]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(ct); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// FileName returns name with the extension picked by ExtensionFor appended when it lacked one.
// An empty name becomes "document".
func FileName(name, contentType string, head []byte) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "document"
	}
	if ext := filepath.Ext(name); ext != "" && ext != "." {
		return name
	}
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		name = "document"
	}
	return name + ExtensionFor(contentType, name, head)
}

// Disposition decides between opening the file in place and saving it. Mobile platforms always
// save; elsewhere PDFs, images and plain text open inline.
func Disposition(platform, contentType string) string {
	if mobile[strings.ToLower(strings.TrimSpace(platform))] {
		return DispositionAttachment
	}
	ct := baseType(contentType)
	switch {
	case ct == "application/pdf", strings.HasPrefix(ct, "image/"), strings.HasPrefix(ct, "text/"):
		return DispositionInline
	default:
		return DispositionAttachment
	}
}

// Options configure NewHandle.
type Options struct {
	FileName    string
	ContentType string
	Platform    string
	Grace       time.Duration
	// Dir is where the temporary file is created; empty means os.TempDir.
	Dir string
}

// Handle is a temporary local copy of downloaded bytes. It is released after the grace period
// whether or not the caller used it; Release may also be called earlier and is idempotent.
type Handle struct {
	Path        string
	FileName    string
	ContentType string
	Disposition string
	Size        int64

	once   sync.Once
	timer  *time.Timer
	relErr error
}

// NewHandle writes data to a temporary file. On any failure whatever was created is removed.
func NewHandle(data []byte, opts Options) (h *Handle, err error) {
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	contentType := opts.ContentType
	if baseType(contentType) == "" || baseType(contentType) == "application/octet-stream" {
		if len(data) > 0 {
			contentType = http.DetectContentType(data)
		}
	}
	name := FileName(opts.FileName, contentType, data)

	f, err := os.CreateTemp(opts.Dir, "docvault-*"+filepath.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(data); err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	h = &Handle{
		Path:        f.Name(),
		FileName:    name,
		ContentType: contentType,
		Disposition: Disposition(opts.Platform, contentType),
		Size:        int64(len(data)),
	}
	h.timer = time.AfterFunc(opts.Grace, func() { _ = h.Release() })
	return h, nil
}

// Release removes the temporary file. Only the first call does any work.
func (h *Handle) Release() error {
	h.once.Do(func() {
		if h.timer != nil {
			h.timer.Stop()
		}
		if err := os.Remove(h.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.relErr = err
		}
	})
	return h.relErr
}
