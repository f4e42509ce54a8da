// Package ingest writes inbound messages from the transport into the
// store. It subscribes to the bus rather than hooking the transport
// directly, so the read path stays reconstructable from the store alone.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/guepardlover77/sms-app/internal/bus"
	"github.com/guepardlover77/sms-app/internal/contacts"
	"github.com/guepardlover77/sms-app/internal/store"
	"github.com/guepardlover77/sms-app/internal/transport"
	"go.uber.org/zap"
)

// Store is the write surface ingestion needs.
type Store interface {
	ThreadForAddress(address string) (int64, error)
	HasInbound(threadID int64, timestamp int64, body string) (bool, error)
	InsertMessage(m *store.Message) (int64, error)
}

// Ingestor consumes transport.inbound events and appends unread inbound
// rows, idempotently.
type Ingestor struct {
	store  Store
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewIngestor creates an ingestor.
func NewIngestor(s Store, b *bus.Bus, logger *zap.Logger) *Ingestor {
	return &Ingestor{store: s, bus: b, logger: logger}
}

// Start subscribes to inbound transport events on the bus.
func (in *Ingestor) Start(ctx context.Context) {
	ctx, in.cancel = context.WithCancel(ctx)
	ch, unsub := in.bus.Subscribe(bus.KindInbound, 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				msg, ok := evt.Payload.(*transport.Inbound)
				if !ok {
					continue
				}
				if err := in.Ingest(msg); err != nil {
					in.logger.Error("failed to ingest inbound message",
						zap.Error(err), zap.String("address", msg.Address))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the ingestor.
func (in *Ingestor) Stop() {
	if in.cancel != nil {
		in.cancel()
	}
}

// Ingest appends one inbound message. Inbound SMS has no provider id, so
// duplicates are detected on the (thread, timestamp, body) triple.
func (in *Ingestor) Ingest(msg *transport.Inbound) error {
	threadID, err := in.store.ThreadForAddress(threadKey(msg.Address))
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	exists, err := in.store.HasInbound(threadID, msg.Timestamp, msg.Body)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if exists {
		return nil
	}

	stored := &store.Message{
		ThreadID:       threadID,
		Address:        msg.Address,
		Body:           msg.Body,
		Timestamp:      msg.Timestamp,
		Direction:      store.Inbound,
		Read:           false,
		DeliveryStatus: store.DeliveryNone,
	}
	if _, err := in.store.InsertMessage(stored); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	in.bus.Publish(bus.Event{
		Kind:      bus.KindReceived,
		Timestamp: time.Now(),
		Payload: map[string]int64{
			"thread_id":  threadID,
			"message_id": stored.ID,
		},
	})
	return nil
}

func threadKey(address string) string {
	if normalized := contacts.Normalize(address); normalized != "" {
		return normalized
	}
	return address
}
