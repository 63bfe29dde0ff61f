// Package schema holds the single bidirectional mapping between the two backend spellings of a
// document record: camelCase (UI and primary request bodies) and snake_case (primary responses and
// the secondary "documents" collection). Every translation in the repository goes through Fields.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"docvault/internal/model"
)

// Record is a loosely typed document record as it travels over a backend boundary.
type Record map[string]any

// Field maps one model.Document attribute to both backend spellings.
type Field struct {
	Camel string
	Snake string
	get   func(d model.Document) any
	set   func(d *model.Document, v any)
}

// Fields is the mapping table. DownloadURL is deliberately absent: it is derived, never stored.
var Fields = []Field{
	{"id", "id", func(d model.Document) any { return d.ID }, func(d *model.Document, v any) { d.ID = asString(v) }},
	{"title", "title", func(d model.Document) any { return d.Title }, func(d *model.Document, v any) { d.Title = asString(v) }},
	{"fileName", "file_name", func(d model.Document) any { return d.FileName }, func(d *model.Document, v any) { d.FileName = asString(v) }},
	{"mimeType", "mime_type", func(d model.Document) any { return d.MimeType }, func(d *model.Document, v any) { d.MimeType = asString(v) }},
	{"fileSize", "file_size", func(d model.Document) any { return d.FileSize }, func(d *model.Document, v any) { d.FileSize = asInt64(v) }},
	{"category", "category", func(d model.Document) any { return d.Category }, func(d *model.Document, v any) { d.Category = asString(v) }},
	{"subCategory", "sub_category", func(d model.Document) any { return d.SubCategory }, func(d *model.Document, v any) { d.SubCategory = asString(v) }},
	{"year", "year", func(d model.Document) any { return d.Year }, func(d *model.Document, v any) { d.Year = asString(v) }},
	{"org", "org", func(d model.Document) any { return d.Org }, func(d *model.Document, v any) { d.Org = asString(v) }},
	{"recipients", "recipients", func(d model.Document) any { return nonNil(d.Recipients) }, func(d *model.Document, v any) { d.Recipients = asStrings(v) }},
	{"sharedWith", "shared_with", func(d model.Document) any { return nonNil(d.SharedWith) }, func(d *model.Document, v any) { d.SharedWith = asStrings(v) }},
	{"owner", "owner", func(d model.Document) any { return d.Owner }, func(d *model.Document, v any) { d.Owner = asString(v) }},
	{"uploadedAt", "uploaded_at", func(d model.Document) any { return d.UploadedAt }, func(d *model.Document, v any) { d.UploadedAt = asTime(v) }},
	{"lastModified", "last_modified", func(d model.Document) any { return d.LastModified }, func(d *model.Document, v any) { d.LastModified = asTime(v) }},
	{"lastModifiedBy", "last_modified_by", func(d model.Document) any { return d.LastModifiedBy }, func(d *model.Document, v any) { d.LastModifiedBy = asString(v) }},
	{"trashed", "trashed", func(d model.Document) any { return d.Trashed }, func(d *model.Document, v any) { d.Trashed = asBool(v) }},
	{"deletedAt", "deleted_at", func(d model.Document) any { return timePtr(d.DeletedAt) }, func(d *model.Document, v any) { d.DeletedAt = asTimePtr(v) }},
	{"deletedBy", "deleted_by", func(d model.Document) any { return d.DeletedBy }, func(d *model.Document, v any) { d.DeletedBy = asString(v) }},
}

var (
	byCamel = map[string]Field{}
	bySnake = map[string]Field{}
)

func init() {
	for _, f := range Fields {
		byCamel[f.Camel] = f
		bySnake[f.Snake] = f
	}
}

// SnakeKey returns the snake_case spelling of a camelCase key; unknown keys are returned as is.
func SnakeKey(camel string) string {
	if f, ok := byCamel[camel]; ok {
		return f.Snake
	}
	return camel
}

// CamelKey returns the camelCase spelling of a snake_case key; unknown keys are returned as is.
func CamelKey(snake string) string {
	if f, ok := bySnake[snake]; ok {
		return f.Camel
	}
	return snake
}

// ToSnake translates every known key of r to snake_case.
func ToSnake(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[SnakeKey(k)] = v
	}
	return out
}

// ToRecord renders d as a snake_case record.
func ToRecord(d model.Document) Record {
	out := make(Record, len(Fields))
	for _, f := range Fields {
		out[f.Snake] = f.get(d)
	}
	return out
}

// FromRecord decodes a record written in either spelling. When both spellings are present the
// camelCase value wins.
func FromRecord(r Record) model.Document {
	var d model.Document
	for _, f := range Fields {
		v, ok := r[f.Camel]
		if !ok {
			v, ok = r[f.Snake]
		}
		if ok && v != nil {
			f.set(&d, v)
		}
	}
	return d
}

// PatchRecord renders the set fields of p as a snake_case record.
func PatchRecord(p model.Patch) Record {
	out := Record{}
	if p.Title != nil {
		out[SnakeKey("title")] = *p.Title
	}
	if p.Category != nil {
		out[SnakeKey("category")] = *p.Category
	}
	if p.SubCategory != nil {
		out[SnakeKey("subCategory")] = *p.SubCategory
	}
	if p.Year != nil {
		out[SnakeKey("year")] = *p.Year
	}
	if p.Org != nil {
		out[SnakeKey("org")] = *p.Org
	}
	if p.Recipients != nil {
		out[SnakeKey("recipients")] = nonNil(*p.Recipients)
	}
	if p.SharedWith != nil {
		out[SnakeKey("sharedWith")] = nonNil(*p.SharedWith)
	}
	return out
}

// DecodePatch reads a patch written in either spelling. Keys outside the patchable set are rejected.
func DecodePatch(r Record) (model.Patch, error) {
	var p model.Patch
	for k, v := range r {
		switch CamelKey(k) {
		case "title":
			p.Title = model.String(asString(v))
		case "category":
			p.Category = model.String(asString(v))
		case "subCategory":
			p.SubCategory = model.String(asString(v))
		case "year":
			p.Year = model.String(asString(v))
		case "org":
			p.Org = model.String(asString(v))
		case "recipients":
			p.Recipients = model.Strings(asStrings(v)...)
		case "sharedWith":
			p.SharedWith = model.Strings(asStrings(v)...)
		default:
			return model.Patch{}, fmt.Errorf("field %q is not patchable", k)
		}
	}
	return p, nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int, int32, int64:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case json.Number:
		n, _ := t.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	default:
		return false
	}
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC()
			}
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	case int64:
		return time.UnixMilli(t).UTC()
	}
	return time.Time{}
}

func asTimePtr(v any) *time.Time {
	t := asTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

// asStrings accepts a list, a JSON-encoded list, or a comma separated string.
func asStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string{}, t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return []string{}
		}
		var list []string
		if strings.HasPrefix(t, "[") && json.Unmarshal([]byte(t), &list) == nil {
			return list
		}
		out := []string{}
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return []string{}
	}
}

// Canonical returns r in snake_case with every known value coerced to its field's Go type, so
// records that went through JSON (timestamps as strings, numbers as float64) are stored the same
// way as records built directly from a model.Document. Unknown keys pass through untouched.
func Canonical(r Record) Record {
	d := FromRecord(r)
	out := ToSnake(r)
	for _, f := range Fields {
		if _, ok := out[f.Snake]; ok {
			out[f.Snake] = f.get(d)
		}
	}
	return out
}
