package store

import (
	"database/sql"
	"time"
)

// ThreadForAddress returns the thread id owning the given address,
// allocating one on first use. Addresses are stored as handed in; callers
// normalize before lookup so one correspondent maps to one thread.
func (db *DB) ThreadForAddress(address string) (int64, error) {
	var id int64
	err := db.QueryRow(`SELECT id FROM threads WHERE address = ?`, address).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, storeErr("thread for address", err)
	}

	res, err := db.Exec(`INSERT INTO threads (address, created_at) VALUES (?, ?)`,
		address, time.Now().UnixMilli())
	if err != nil {
		return 0, storeErr("create thread", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, storeErr("create thread", err)
	}
	return id, nil
}

// MessageCount returns the total number of stored messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	if err != nil {
		return 0, storeErr("message count", err)
	}
	return count, nil
}
