package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertContact inserts or updates a contact keyed by normalized number.
func (db *DB) UpsertContact(c *Contact, normalized string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO contacts (name, phone, phone_normalized, photo_ref, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(phone_normalized) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
			phone = excluded.phone,
			photo_ref = CASE WHEN excluded.photo_ref != '' THEN excluded.photo_ref ELSE contacts.photo_ref END,
			updated_at = excluded.updated_at`,
		c.Name, c.Phone, normalized, c.PhotoRef, now)
	if err != nil {
		return storeErr("upsert contact", err)
	}
	return nil
}

// BulkUpsertContacts imports multiple contacts in a single transaction.
// The normalized slice pairs with contacts index-for-index.
func (db *DB) BulkUpsertContacts(contacts []Contact, normalized []string) error {
	if len(contacts) != len(normalized) {
		return fmt.Errorf("bulk upsert contacts: %d contacts, %d normalized numbers", len(contacts), len(normalized))
	}
	tx, err := db.Begin()
	if err != nil {
		return storeErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for i, c := range contacts {
		if _, err := tx.Exec(`
			INSERT INTO contacts (name, phone, phone_normalized, photo_ref, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(phone_normalized) DO UPDATE SET
				name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
				phone = excluded.phone,
				photo_ref = CASE WHEN excluded.photo_ref != '' THEN excluded.photo_ref ELSE contacts.photo_ref END,
				updated_at = excluded.updated_at`,
			c.Name, c.Phone, normalized[i], c.PhotoRef, now); err != nil {
			return storeErr(fmt.Sprintf("upsert contact %q", c.Phone), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit contacts", err)
	}
	return nil
}

// ContactByNormalizedPhone returns the contact for a normalized number,
// or nil when unknown.
func (db *DB) ContactByNormalizedPhone(normalized string) (*Contact, error) {
	var c Contact
	err := db.QueryRow(`SELECT id, name, phone, photo_ref FROM contacts WHERE phone_normalized = ?`, normalized).
		Scan(&c.ID, &c.Name, &c.Phone, &c.PhotoRef)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("contact by phone", err)
	}
	return &c, nil
}

// SearchContacts matches name-contains (case-insensitive) or number-contains.
// The unique index on phone_normalized keeps results deduplicated by number.
func (db *DB) SearchContacts(query string, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	like := "%" + query + "%"
	rows, err := db.Query(`
		SELECT id, name, phone, photo_ref
		FROM contacts
		WHERE name LIKE ? COLLATE NOCASE OR phone LIKE ? OR phone_normalized LIKE ?
		ORDER BY name COLLATE NOCASE
		LIMIT ?`, like, like, like, limit)
	if err != nil {
		return nil, storeErr("search contacts", err)
	}
	defer func() { _ = rows.Close() }()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.PhotoRef); err != nil {
			return nil, storeErr("search contacts", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("search contacts", err)
	}
	return contacts, nil
}
