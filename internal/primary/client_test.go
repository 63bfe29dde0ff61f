package primary

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/gateway"
	"docvault/internal/model"
)

var headers = gateway.Headers{Identity: "a@example.com", Token: "tok"}

func newServer(t *testing.T, h http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", srv.Client()), srv
}

func TestHTTPClient_List(t *testing.T) {
	client, srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/docs", r.URL.Path)
		assert.Equal(t, "a@example.com", r.Header.Get(gateway.IdentityHeader))
		assert.Equal(t, "Bearer tok", r.Header.Get(gateway.AuthorizationHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"d1","file_name":"a.pdf","mime_type":"application/pdf","file_size":10,"trashed":false,"owner":"a@example.com"},
			{"id":"d2","fileName":"b.txt","trashed":true,"shared_with":["a@example.com"]}
		]`))
	})

	docs, err := client.List(context.Background(), headers)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "d1", docs[0].ID)
	assert.Equal(t, "a.pdf", docs[0].FileName)
	assert.Equal(t, int64(10), docs[0].FileSize)
	assert.Equal(t, srv.URL+"/api/docs/d1/download", docs[0].DownloadURL)
	assert.Equal(t, []string{}, docs[0].SharedWith)

	assert.Equal(t, "b.txt", docs[1].FileName)
	assert.True(t, docs[1].Trashed)
	assert.Equal(t, []string{"a@example.com"}, docs[1].SharedWith)
}

func TestHTTPClient_ListEnvelope(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"d1"}],"total":1}`))
	})

	docs, err := client.List(context.Background(), headers)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "d1", docs[0].ID)
}

func TestHTTPClient_ListHTTPError(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR"}}`))
	})

	_, err := client.List(context.Background(), headers)
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusInternalServerError, he.Status)
	assert.Contains(t, he.Body, "INTERNAL_ERROR")
}

func TestHTTPClient_Create(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/docs", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "Report", r.FormValue("title"))
		assert.Equal(t, "home", r.FormValue("category"))
		assert.Equal(t, "2024", r.FormValue("year"))
		assert.Equal(t, `["x@example.com","y@example.com"]`, r.FormValue("recipient"))
		assert.Equal(t, "2024-01-01", r.FormValue("warrantyStart"))
		for _, absent := range []string{"subCategory", "warrantyExpiresAt", "autoDeleteAfter"} {
			_, present := r.MultipartForm.Value[absent]
			assert.False(t, present, "%s must be omitted", absent)
		}

		f, fh, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "report.pdf", fh.Filename)
		assert.Equal(t, "application/pdf", fh.Header.Get("Content-Type"))
		assert.Equal(t, "%PDF-1.4", string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"doc1","file_name":"report.pdf","mime_type":"application/pdf","file_size":1024,"uploaded_at":"2024-01-01T00:00:00Z"}`))
	})

	doc, err := client.Create(context.Background(), headers,
		File{Name: "report.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF-1.4")},
		model.Metadata{
			Title:         "Report",
			Category:      "home",
			Year:          "2024",
			Recipients:    []string{"x@example.com", "y@example.com"},
			WarrantyStart: "2024-01-01",
		})
	require.NoError(t, err)
	assert.Equal(t, "doc1", doc.ID)
	assert.Equal(t, "report.pdf", doc.FileName)
	assert.Equal(t, int64(1024), doc.FileSize)
	assert.Equal(t, 2024, doc.UploadedAt.Year())
}

func TestHTTPClient_Update(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/docs/doc1", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"title": "X", "sub_category": "car"}, body)
		_, _ = w.Write([]byte(`{"id":"doc1","title":"X","sub_category":"car"}`))
	})

	doc, err := client.Update(context.Background(), headers, "doc1", model.Patch{
		Title:       model.String("X"),
		SubCategory: model.String("car"),
	})
	require.NoError(t, err)
	assert.Equal(t, "X", doc.Title)
	assert.Equal(t, "car", doc.SubCategory)
}

func TestHTTPClient_SetTrashed(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/docs/doc1/trash", r.URL.Path)
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body["trashed"])
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.SetTrashed(context.Background(), headers, "doc1", true))
}

func TestHTTPClient_DeleteForeverNotFound(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		http.NotFound(w, r)
	})

	err := client.DeleteForever(context.Background(), headers, "gone")
	assert.True(t, IsNotFound(err))
}

func TestHTTPClient_Download(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/docs/doc1/download", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n"))
	})

	c, err := client.Download(context.Background(), headers, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "image/png", c.ContentType)
	assert.Equal(t, int64(8), c.Size)
	assert.Len(t, c.Data, 8)
}

func TestHTTPClient_DownloadNotFound(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.Download(context.Background(), headers, "missing")
	assert.True(t, IsNotFound(err))
}

func TestHTTPClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewHTTPClient(url, nil)
	_, err := client.List(context.Background(), headers)

	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "list", ne.Op)
}
