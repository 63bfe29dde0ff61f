package handler

import (
	"docvault/internal/model"
	"docvault/internal/schema"
)

// listResponse is the envelope of GET /api/docs.
type listResponse struct {
	Data  []schema.Record `json:"data"`
	Total int             `json:"total"`
}

// toRecord renders a stored document in the backend's snake_case spelling. The storage key stays
// on the server; retention fields are only present when set.
func toRecord(d *model.StoredDocument) schema.Record {
	r := schema.ToRecord(d.Document)
	for key, v := range map[string]string{
		"warranty_start":      d.WarrantyStart,
		"warranty_expires_at": d.WarrantyExpiresAt,
		"auto_delete_after":   d.AutoDeleteAfter,
	} {
		if v != "" {
			r[key] = v
		}
	}
	return r
}

func toRecords(docs []model.StoredDocument) []schema.Record {
	out := make([]schema.Record, 0, len(docs))
	for i := range docs {
		out = append(out, toRecord(&docs[i]))
	}
	return out
}
