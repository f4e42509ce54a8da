// Package contacts resolves phone numbers to directory entries and serves
// fuzzy name/number search over the contact table.
package contacts

import (
	"strings"

	"github.com/guepardlover77/sms-app/internal/store"
)

// Book is the read-side contact directory. Lookups return immutable
// snapshots; a miss is a nil contact, never an error the caller must act on.
type Book struct {
	db *store.DB
}

// NewBook creates a contact book over the store.
func NewBook(db *store.DB) *Book {
	return &Book{db: db}
}

// LookupByPhone resolves a number to a contact, or nil when the directory
// has no entry for it.
func (b *Book) LookupByPhone(number string) (*store.Contact, error) {
	normalized := Normalize(number)
	if normalized == "" {
		return nil, nil
	}
	return b.db.ContactByNormalizedPhone(normalized)
}

// Search matches contacts whose name contains the query
// (case-insensitive) or whose number contains the query's digits.
// Results are deduplicated by phone number.
func (b *Book) Search(query string) ([]store.Contact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return b.db.SearchContacts(query, 50)
}

// Import loads a batch of directory entries, keyed by normalized number.
func (b *Book) Import(entries []store.Contact) error {
	normalized := make([]string, len(entries))
	for i, c := range entries {
		normalized[i] = Normalize(c.Phone)
	}
	return b.db.BulkUpsertContacts(entries, normalized)
}

// Add inserts or updates a single directory entry.
func (b *Book) Add(c *store.Contact) error {
	return b.db.UpsertContact(c, Normalize(c.Phone))
}
