package conv

import (
	"fmt"

	"github.com/guepardlover77/sms-app/internal/store"
)

// ThreadView loads one conversation's message sequence and flips its
// read state.
type ThreadView struct {
	store MessageStore
}

// NewThreadView creates a thread view over the store.
func NewThreadView(s MessageStore) *ThreadView {
	return &ThreadView{store: s}
}

// LoadThread returns the thread's messages ascending by time.
func (v *ThreadView) LoadThread(threadID int64) ([]store.Message, error) {
	msgs, err := v.store.MessagesByThread(threadID)
	if err != nil {
		return nil, fmt.Errorf("load thread %d: %w", threadID, err)
	}
	return msgs, nil
}

// MarkThreadRead marks every currently-unread message in the thread read.
// Idempotent: a second call finds nothing left to update.
func (v *ThreadView) MarkThreadRead(threadID int64) error {
	if err := v.store.MarkThreadRead(threadID); err != nil {
		return fmt.Errorf("mark thread %d read: %w", threadID, err)
	}
	return nil
}
