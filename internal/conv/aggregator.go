package conv

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Aggregator turns the store's flat message records into the deduplicated,
// sorted conversation list. It holds no state between calls: each
// ListConversations is a fresh read over a store snapshot.
type Aggregator struct {
	store  MessageStore
	book   AddressBook
	logger *zap.Logger
}

// NewAggregator creates a conversation aggregator.
func NewAggregator(s MessageStore, b AddressBook, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: s, book: b, logger: logger}
}

// ListConversations returns one conversation per distinct thread, most
// recent first. Store failures abort the whole operation; contact lookup
// failures degrade to showing the raw address.
func (a *Aggregator) ListConversations() ([]Conversation, error) {
	sums, err := a.store.ConversationSummaries()
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	conversations := make([]Conversation, 0, len(sums))
	for _, sum := range sums {
		latest, err := a.store.LatestInThread(sum.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("list conversations: %w", err)
		}
		if latest == nil {
			// Summary raced with an empty thread; nothing to show.
			continue
		}
		if latest.Address == "" {
			a.logger.Warn("dropping thread with empty address", zap.Int64("thread_id", sum.ThreadID))
			continue
		}

		unread, err := a.store.UnreadCount(sum.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("list conversations: %w", err)
		}

		c := Conversation{
			ThreadID:      sum.ThreadID,
			Address:       latest.Address,
			DisplayName:   latest.Address,
			Snippet:       sum.Snippet,
			LastTimestamp: latest.Timestamp,
			MessageCount:  sum.MessageCount,
			UnreadCount:   unread,
		}

		contact, err := a.book.LookupByPhone(latest.Address)
		if err != nil {
			// Directory trouble never fails the list; fall back to the address.
			a.logger.Debug("contact lookup failed", zap.String("address", latest.Address), zap.Error(err))
		} else if contact != nil {
			c.DisplayName = contact.Name
			c.PhotoRef = contact.PhotoRef
		}

		conversations = append(conversations, c)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastTimestamp > conversations[j].LastTimestamp
	})
	return conversations, nil
}
