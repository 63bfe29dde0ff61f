package model

import "time"

// Document is an archived file together with its categorization and sharing metadata.
// This is a pure domain model with no database-specific dependencies or tags.
// JSON tags use the camelCase spelling consumed by UI collaborators; backend spellings are
// handled by the schema package.
type Document struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	FileName       string     `json:"fileName"`
	MimeType       string     `json:"mimeType"`
	FileSize       int64      `json:"fileSize"`
	Category       string     `json:"category"`
	SubCategory    string     `json:"subCategory,omitempty"`
	Year           string     `json:"year"`
	Org            string     `json:"org"`
	Recipients     []string   `json:"recipients"`
	SharedWith     []string   `json:"sharedWith"`
	Owner          string     `json:"owner"`
	UploadedAt     time.Time  `json:"uploadedAt"`
	LastModified   time.Time  `json:"lastModified"`
	LastModifiedBy string     `json:"lastModifiedBy,omitempty"`
	Trashed        bool       `json:"trashed"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
	DeletedBy      string     `json:"deletedBy,omitempty"`

	// DownloadURL is derived by the client that produced the value and is never persisted.
	DownloadURL string `json:"downloadURL,omitempty"`
}

// Clone returns a deep copy so callers can hand documents out without sharing slices.
func (d Document) Clone() Document {
	out := d
	if d.Recipients != nil {
		out.Recipients = append([]string{}, d.Recipients...)
	}
	if d.SharedWith != nil {
		out.SharedWith = append([]string{}, d.SharedWith...)
	}
	if d.DeletedAt != nil {
		t := *d.DeletedAt
		out.DeletedAt = &t
	}
	return out
}

// Metadata carries the user-supplied fields for a new document.
// Optional fields left empty are omitted from the upload form.
type Metadata struct {
	Title             string
	Category          string
	SubCategory       string
	Year              string
	Org               string
	Recipients        []string
	WarrantyStart     string
	WarrantyExpiresAt string
	AutoDeleteAfter   string
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Category    *string   `json:"category,omitempty"`
	SubCategory *string   `json:"subCategory,omitempty"`
	Year        *string   `json:"year,omitempty"`
	Org         *string   `json:"org,omitempty"`
	Recipients  *[]string `json:"recipients,omitempty"`
	SharedWith  *[]string `json:"sharedWith,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Category == nil && p.SubCategory == nil && p.Year == nil &&
		p.Org == nil && p.Recipients == nil && p.SharedWith == nil
}

// Apply copies the set fields of p onto d.
func (p Patch) Apply(d *Document) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.SubCategory != nil {
		d.SubCategory = *p.SubCategory
	}
	if p.Year != nil {
		d.Year = *p.Year
	}
	if p.Org != nil {
		d.Org = *p.Org
	}
	if p.Recipients != nil {
		d.Recipients = append([]string(nil), (*p.Recipients)...)
	}
	if p.SharedWith != nil {
		d.SharedWith = append([]string(nil), (*p.SharedWith)...)
	}
}

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// Strings returns a pointer to a copy of ss, for building patches.
func Strings(ss ...string) *[]string {
	out := append([]string{}, ss...)
	return &out
}
