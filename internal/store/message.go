package store

import (
	"database/sql"
	"time"
)

// InsertMessage appends a message and returns its row id.
func (db *DB) InsertMessage(m *Message) (int64, error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		INSERT INTO messages (thread_id, address, body, timestamp, direction, read_flag, delivery_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ThreadID, m.Address, m.Body, m.Timestamp, m.Direction, m.Read, m.DeliveryStatus, now)
	if err != nil {
		return 0, storeErr("insert message", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr("insert message", err)
	}
	m.ID = id
	return id, nil
}

// MessagesByThread returns all messages of a thread ordered by timestamp
// ascending, with row id as the tie-break.
func (db *DB) MessagesByThread(threadID int64) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, thread_id, address, body, timestamp, direction, read_flag, delivery_status
		FROM messages
		WHERE thread_id = ?
		ORDER BY timestamp ASC, id ASC`, threadID)
	if err != nil {
		return nil, storeErr("messages by thread", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Address, &m.Body, &m.Timestamp, &m.Direction, &m.Read, &m.DeliveryStatus); err != nil {
			return nil, storeErr("messages by thread", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("messages by thread", err)
	}
	return msgs, nil
}

// LatestInThread returns the most recent message of a thread, or nil when
// the thread has none. Equal timestamps resolve to the highest row id.
func (db *DB) LatestInThread(threadID int64) (*Message, error) {
	var m Message
	err := db.QueryRow(`
		SELECT id, thread_id, address, body, timestamp, direction, read_flag, delivery_status
		FROM messages
		WHERE thread_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`, threadID).
		Scan(&m.ID, &m.ThreadID, &m.Address, &m.Body, &m.Timestamp, &m.Direction, &m.Read, &m.DeliveryStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("latest in thread", err)
	}
	return &m, nil
}

// ConversationSummaries returns one rollup per distinct thread: the latest
// message body as snippet plus the total message count.
func (db *DB) ConversationSummaries() ([]ConversationSummary, error) {
	rows, err := db.Query(`
		SELECT m.thread_id,
			(SELECT b.body FROM messages b
			 WHERE b.thread_id = m.thread_id
			 ORDER BY b.timestamp DESC, b.id DESC LIMIT 1) AS snippet,
			COUNT(*) AS message_count
		FROM messages m
		GROUP BY m.thread_id`)
	if err != nil {
		return nil, storeErr("conversation summaries", err)
	}
	defer func() { _ = rows.Close() }()

	var sums []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		if err := rows.Scan(&s.ThreadID, &s.Snippet, &s.MessageCount); err != nil {
			return nil, storeErr("conversation summaries", err)
		}
		sums = append(sums, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("conversation summaries", err)
	}
	return sums, nil
}

// UnreadCount counts a thread's messages with read_flag unset.
func (db *DB) UnreadCount(threadID int64) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE thread_id = ? AND read_flag = 0`, threadID).Scan(&n)
	if err != nil {
		return 0, storeErr("unread count", err)
	}
	return n, nil
}

// MarkThreadRead sets read_flag on all currently-unread messages of a
// thread. Only rows with read_flag = 0 are touched, so repeated calls are
// no-ops.
func (db *DB) MarkThreadRead(threadID int64) error {
	_, err := db.Exec(`UPDATE messages SET read_flag = 1 WHERE thread_id = ? AND read_flag = 0`, threadID)
	if err != nil {
		return storeErr("mark thread read", err)
	}
	return nil
}

// UpdateSendState moves an outgoing message to a new direction and delivery
// status once the carrier ack for its parts has resolved.
func (db *DB) UpdateSendState(id int64, dir Direction, status DeliveryStatus) error {
	_, err := db.Exec(`UPDATE messages SET direction = ?, delivery_status = ? WHERE id = ?`, dir, status, id)
	if err != nil {
		return storeErr("update send state", err)
	}
	return nil
}

// UpdateDeliveryStatus records a carrier delivery report in place.
func (db *DB) UpdateDeliveryStatus(id int64, status DeliveryStatus) error {
	_, err := db.Exec(`UPDATE messages SET delivery_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return storeErr("update delivery status", err)
	}
	return nil
}

// HasInbound reports whether an identical inbound row already exists.
// Inbound SMS carries no provider message id, so ingestion dedupes on the
// (thread, timestamp, body) triple.
func (db *DB) HasInbound(threadID int64, timestamp int64, body string) (bool, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM messages
		WHERE thread_id = ? AND timestamp = ? AND body = ? AND direction = ?`,
		threadID, timestamp, body, Inbound).Scan(&n)
	if err != nil {
		return false, storeErr("has inbound", err)
	}
	return n > 0, nil
}
