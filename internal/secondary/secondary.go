// Package secondary talks to the realtime "documents" store used for mirrored writes and as the
// fallback read path when the primary backend cannot answer.
package secondary

import (
	"context"
	"errors"

	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/schema"
)

// ErrNotConfigured is returned by Disabled for every call.
var ErrNotConfigured = errors.New("secondary store not configured")

// RecordStore is the keyed record collection. Records are written in snake_case.
type RecordStore interface {
	// Merge upserts id, overwriting only the given fields.
	Merge(ctx context.Context, id string, fields schema.Record) error
	Delete(ctx context.Context, id string) error
	// Find returns every record whose field equals value, or contains value when the field is a list.
	Find(ctx context.Context, field, value string) ([]schema.Record, error)
}

// Disabled stands in when no secondary store is configured.
type Disabled struct{}

func (Disabled) Merge(context.Context, string, schema.Record) error { return ErrNotConfigured }
func (Disabled) Delete(context.Context, string) error               { return ErrNotConfigured }
func (Disabled) Find(context.Context, string, string) ([]schema.Record, error) {
	return nil, ErrNotConfigured
}

// Client performs mirrored writes and fallback reads. Mirror errors are returned so the mirror
// queue can retry them; they never reach the sync coordinator.
type Client struct {
	store RecordStore
	log   logging.Logger
}

func New(store RecordStore, log logging.Logger) *Client {
	if log == nil {
		log = logging.Nop{}
	}
	if store == nil {
		store = Disabled{}
	}
	return &Client{store: store, log: log}
}

func (c *Client) MirrorCreate(ctx context.Context, id string, fields schema.Record) error {
	return c.merge(ctx, id, fields)
}

func (c *Client) MirrorUpdate(ctx context.Context, id string, fields schema.Record) error {
	return c.merge(ctx, id, fields)
}

func (c *Client) MirrorTrash(ctx context.Context, id string, fields schema.Record) error {
	return c.merge(ctx, id, fields)
}

func (c *Client) MirrorDelete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, id)
}

func (c *Client) merge(ctx context.Context, id string, fields schema.Record) error {
	rec := schema.Canonical(fields)
	rec["id"] = id
	return c.store.Merge(ctx, id, rec)
}

// ListFallback returns the documents owned by or shared with identity. Both queries run; each
// failure is logged and whatever could be read is returned, in first-seen order with duplicates
// removed. The result is never nil.
func (c *Client) ListFallback(ctx context.Context, identity string) []model.Document {
	out := []model.Document{}
	if identity == "" {
		return out
	}
	seen := map[string]bool{}
	for _, field := range []string{schema.SnakeKey("owner"), schema.SnakeKey("sharedWith")} {
		recs, err := c.store.Find(ctx, field, identity)
		if err != nil {
			c.log.Warn(ctx, "secondary fallback query failed", "field", field, "error", err)
			continue
		}
		for _, r := range recs {
			doc := schema.FromRecord(r)
			if doc.ID == "" || seen[doc.ID] {
				continue
			}
			seen[doc.ID] = true
			if doc.Recipients == nil {
				doc.Recipients = []string{}
			}
			if doc.SharedWith == nil {
				doc.SharedWith = []string{}
			}
			out = append(out, doc)
		}
	}
	return out
}
