// Package conv builds the conversation list and per-thread message views
// from the flat message store. Everything here is derived per load; no
// conversation state is cached between calls.
package conv

import "github.com/guepardlover77/sms-app/internal/store"

// Conversation is the derived per-thread aggregate shown in the
// conversation list. It is recomputed from messages and contacts on every
// load and never persisted.
type Conversation struct {
	ThreadID      int64
	Address       string
	DisplayName   string
	Snippet       string
	LastTimestamp int64
	MessageCount  int
	UnreadCount   int
	PhotoRef      string
}

// MessageStore is the read/write surface conv needs from the store.
type MessageStore interface {
	ConversationSummaries() ([]store.ConversationSummary, error)
	MessagesByThread(threadID int64) ([]store.Message, error)
	LatestInThread(threadID int64) (*store.Message, error)
	UnreadCount(threadID int64) (int, error)
	MarkThreadRead(threadID int64) error
}

// AddressBook resolves addresses to contacts. A miss is (nil, nil).
type AddressBook interface {
	LookupByPhone(number string) (*store.Contact, error)
}
