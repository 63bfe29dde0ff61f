// Package primary is the client of the authoritative REST backend. Each method maps to exactly one
// request; retries and fallbacks belong to the coordinator.
package primary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docvault/internal/gateway"
	"docvault/internal/model"
	"docvault/internal/schema"
)

const maxErrorBody = 64 << 10

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("primary: http %d", e.Status)
	}
	return fmt.Sprintf("primary: http %d: %s", e.Status, e.Body)
}

// NetworkError is a transport failure: the request never produced a response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("primary %s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusNotFound
}

// File is the binary part of a new document.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Content is a downloaded document body.
type Content struct {
	Data        []byte
	ContentType string
	Size        int64
}

// Client is the typed surface of the primary backend.
type Client interface {
	List(ctx context.Context, h gateway.Headers) ([]model.Document, error)
	Create(ctx context.Context, h gateway.Headers, file File, meta model.Metadata) (model.Document, error)
	Update(ctx context.Context, h gateway.Headers, id string, patch model.Patch) (model.Document, error)
	SetTrashed(ctx context.Context, h gateway.Headers, id string, trashed bool) error
	DeleteForever(ctx context.Context, h gateway.Headers, id string) error
	Download(ctx context.Context, h gateway.Headers, id string) (Content, error)
}

// HTTPClient implements Client over net/http.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for baseURL. A nil httpClient gets a traced default transport;
// per-call deadlines come from the caller's context.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   2 * time.Minute,
		}
	}
	return &HTTPClient{baseURL: baseURL, httpClient: httpClient}
}

// DownloadURL is the derived location of a document's bytes.
func (c *HTTPClient) DownloadURL(id string) string {
	return c.baseURL + docPath(id) + "/download"
}

func (c *HTTPClient) List(ctx context.Context, h gateway.Headers) ([]model.Document, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, "list", http.MethodGet, "/api/docs", h, nil, &raw); err != nil {
		return nil, err
	}
	records, err := decodeList(raw)
	if err != nil {
		return nil, fmt.Errorf("primary list: decode: %w", err)
	}
	out := make([]model.Document, 0, len(records))
	for _, r := range records {
		out = append(out, c.normalize(r))
	}
	return out, nil
}

func (c *HTTPClient) Create(ctx context.Context, h gateway.Headers, file File, meta model.Metadata) (model.Document, error) {
	body, contentType, err := encodeCreateForm(file, meta)
	if err != nil {
		return model.Document{}, fmt.Errorf("primary create: encode form: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/docs", body)
	if err != nil {
		return model.Document{}, err
	}
	req.Header.Set("Content-Type", contentType)
	var rec schema.Record
	if err := c.do(req, "create", h, &rec); err != nil {
		return model.Document{}, err
	}
	return c.normalize(rec), nil
}

func (c *HTTPClient) Update(ctx context.Context, h gateway.Headers, id string, patch model.Patch) (model.Document, error) {
	var rec schema.Record
	if err := c.doJSON(ctx, "update", http.MethodPut, docPath(id), h, schema.PatchRecord(patch), &rec); err != nil {
		return model.Document{}, err
	}
	return c.normalize(rec), nil
}

func (c *HTTPClient) SetTrashed(ctx context.Context, h gateway.Headers, id string, trashed bool) error {
	return c.doJSON(ctx, "trash", http.MethodPut, docPath(id)+"/trash", h, map[string]bool{"trashed": trashed}, nil)
}

func (c *HTTPClient) DeleteForever(ctx context.Context, h gateway.Headers, id string) error {
	return c.doJSON(ctx, "delete", http.MethodDelete, docPath(id), h, nil, nil)
}

func (c *HTTPClient) Download(ctx context.Context, h gateway.Headers, id string) (Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(id), nil)
	if err != nil {
		return Content{}, err
	}
	h.Apply(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Content{}, &NetworkError{Op: "download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Content{}, httpError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Content{}, &NetworkError{Op: "download", Err: err}
	}
	size := int64(len(data))
	if cl, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil && cl >= 0 {
		size = cl
	}
	return Content{Data: data, ContentType: resp.Header.Get("Content-Type"), Size: size}, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, op, method, requestPath string, h gateway.Headers, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, op, h, out)
}

func (c *HTTPClient) do(req *http.Request, op string, h gateway.Headers, out any) error {
	h.Apply(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpError(resp)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("primary %s: decode: %w", op, err)
	}
	return nil
}

func (c *HTTPClient) normalize(r schema.Record) model.Document {
	doc := schema.FromRecord(r)
	if doc.Recipients == nil {
		doc.Recipients = []string{}
	}
	if doc.SharedWith == nil {
		doc.SharedWith = []string{}
	}
	if doc.ID != "" {
		doc.DownloadURL = c.DownloadURL(doc.ID)
	}
	return doc
}

func httpError(resp *http.Response) *HTTPError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

func docPath(id string) string {
	return "/api/docs/" + url.PathEscape(id)
}

// decodeList accepts a bare array or the {"data": [...]} envelope.
func decodeList(raw json.RawMessage) ([]schema.Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var records []schema.Record
	if trimmed[0] == '[' {
		err := json.Unmarshal(trimmed, &records)
		return records, err
	}
	var envelope struct {
		Data []schema.Record `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

func encodeCreateForm(file File, meta model.Metadata) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	ct := file.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	hdr.Set("Content-Type", ct)
	part, err := w.CreatePart(hdr)
	if err != nil {
		return nil, "", err
	}
	if file.Content != nil {
		if _, err := io.Copy(part, file.Content); err != nil {
			return nil, "", err
		}
	}

	recipients := meta.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	recipientJSON, err := json.Marshal(recipients)
	if err != nil {
		return nil, "", err
	}

	fields := []struct {
		name, value string
		optional    bool
	}{
		{"title", meta.Title, false},
		{"category", meta.Category, false},
		{"year", meta.Year, false},
		{"org", meta.Org, false},
		{"recipient", string(recipientJSON), false},
		{"subCategory", meta.SubCategory, true},
		{"warrantyStart", meta.WarrantyStart, true},
		{"warrantyExpiresAt", meta.WarrantyExpiresAt, true},
		{"autoDeleteAfter", meta.AutoDeleteAfter, true},
	}
	for _, f := range fields {
		if f.optional && strings.TrimSpace(f.value) == "" {
			continue
		}
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
