package model

// StoredDocument is a document as the backend persists it: the shared Document fields plus the
// object storage key and the optional retention metadata accepted on upload. None of the extra
// fields leave the server except through the record rendering of the REST handlers.
type StoredDocument struct {
	Document

	StoragePath       string
	WarrantyStart     string
	WarrantyExpiresAt string
	AutoDeleteAfter   string
}

// VisibleTo reports whether identity owns d or has it shared with them.
func (d Document) VisibleTo(identity string) bool {
	if identity == "" {
		return false
	}
	if d.Owner == identity {
		return true
	}
	for _, s := range d.SharedWith {
		if s == identity {
			return true
		}
	}
	return false
}
