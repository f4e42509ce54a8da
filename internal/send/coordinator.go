// Package send dispatches outbound messages part by part and correlates
// the carrier's asynchronous acknowledgements into one logical result.
package send

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guepardlover77/sms-app/internal/bus"
	"github.com/guepardlover77/sms-app/internal/contacts"
	"github.com/guepardlover77/sms-app/internal/sms"
	"github.com/guepardlover77/sms-app/internal/store"
	"github.com/guepardlover77/sms-app/internal/transport"
	"go.uber.org/zap"
)

var (
	// ErrNoRecipient rejects a send with a blank destination address.
	ErrNoRecipient = errors.New("no recipient address")
	// ErrTransportRejected is the logical-send failure: the transport
	// refused the send, or no part made it out.
	ErrTransportRejected = errors.New("transport rejected send")
	// ErrPartialDelivery means some parts were sent and some failed; the
	// message is not usable with a segment missing, so the whole send
	// counts as failed.
	ErrPartialDelivery = errors.New("partial delivery failure")
)

// State is the resolved outcome of one logical send.
type State string

const (
	Completed       State = "completed"
	PartiallyFailed State = "partially_failed"
	Failed          State = "failed"
)

// PartState is the per-part acknowledgement state.
type PartState string

const (
	PartPending     PartState = "pending"
	PartAckedSent   PartState = "acked_sent"
	PartAckedFailed PartState = "acked_failed"
)

// Result describes one resolved logical send. Parts is empty when the
// transport rejected the send before any part was dispatched.
type Result struct {
	State     State
	MessageID int64
	ThreadID  int64
	Parts     []PartState
}

// Store is the write surface the coordinator needs.
type Store interface {
	ThreadForAddress(address string) (int64, error)
	InsertMessage(m *store.Message) (int64, error)
	UpdateSendState(id int64, dir store.Direction, status store.DeliveryStatus) error
	UpdateDeliveryStatus(id int64, status store.DeliveryStatus) error
}

// Coordinator owns the outbound send pipeline: split, dispatch, correlate,
// write back. Send state lives only for the duration of one call; delivery
// tracking survives until every part's report has arrived.
type Coordinator struct {
	store     Store
	transport transport.Transport
	bus       *bus.Bus
	logger    *zap.Logger
	cancel    context.CancelFunc

	mu      sync.Mutex
	pending map[string]*deliveryTracker
}

// deliveryTracker correlates delivery reports back to a stored message.
type deliveryTracker struct {
	messageID int64
	remaining int
	failed    bool
}

// NewCoordinator creates a send coordinator.
func NewCoordinator(s Store, t transport.Transport, b *bus.Bus, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:     s,
		transport: t,
		bus:       b,
		logger:    logger,
		pending:   make(map[string]*deliveryTracker),
	}
}

// Send splits the body, dispatches all parts concurrently and resolves the
// per-part acknowledgements into one result. A blank trimmed body or empty
// address is rejected before any state is created. Failure never consumes
// the caller's input: the compose buffer is theirs to retry with.
func (c *Coordinator) Send(ctx context.Context, address, body string) (*Result, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, sms.ErrEmptyMessage
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrNoRecipient
	}

	parts, err := sms.Split(body)
	if err != nil {
		return nil, err
	}

	threadID, err := c.store.ThreadForAddress(threadKey(address))
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	// Optimistic insert so a reload shows the message immediately.
	msg := &store.Message{
		ThreadID:       threadID,
		Address:        address,
		Body:           body,
		Timestamp:      time.Now().UnixMilli(),
		Direction:      store.Outbox,
		Read:           true,
		DeliveryStatus: store.DeliveryPending,
	}
	msgID, err := c.store.InsertMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	token := uuid.New().String()
	c.track(token, msgID, len(parts))

	// A part handed to the transport cannot be recalled, so dispatch is
	// detached from the caller's cancellation: the caller disconnecting
	// must not turn an in-flight multi-part send into a failed one.
	outcomes := c.dispatch(context.WithoutCancel(ctx), token, address, parts)
	result := c.resolve(token, msgID, threadID, outcomes)

	switch result.State {
	case Completed:
		if err := c.store.UpdateSendState(msgID, store.Sent, store.DeliveryPending); err != nil {
			c.logger.Error("failed to mark message sent", zap.Error(err), zap.Int64("message_id", msgID))
		}
		c.publish(bus.KindSendAck, threadID, msgID)
		return result, nil
	case PartiallyFailed:
		c.failSend(msgID, threadID)
		return result, ErrPartialDelivery
	default:
		c.failSend(msgID, threadID)
		return result, ErrTransportRejected
	}
}

// threadKey canonicalizes an address so formatting variants of one number
// land in one thread. Digit-free short codes key on the raw address.
func threadKey(address string) string {
	if normalized := contacts.Normalize(address); normalized != "" {
		return normalized
	}
	return address
}

type partOutcome struct {
	ack      transport.Ack
	rejected bool
}

// dispatch fans all parts out to the transport concurrently and waits for
// one acknowledgement per part. Once dispatched, parts are never
// cancelled: a half-sent multi-part message cannot be revoked.
func (c *Coordinator) dispatch(ctx context.Context, token, address string, parts []string) []partOutcome {
	outcomes := make([]partOutcome, len(parts))
	var wg sync.WaitGroup
	for i, body := range parts {
		wg.Add(1)
		go func(i int, body string) {
			defer wg.Done()
			ack, err := c.transport.Send(ctx, transport.Part{
				Token:   token,
				Address: address,
				Body:    body,
				Index:   i,
				Total:   len(parts),
			})
			if err != nil {
				c.logger.Warn("part rejected by transport",
					zap.String("token", token), zap.Int("index", i), zap.Error(err))
				outcomes[i] = partOutcome{rejected: true}
				return
			}
			outcomes[i] = partOutcome{ack: ack}
		}(i, body)
	}
	wg.Wait()
	return outcomes
}

// resolve reduces the per-part outcomes into the logical state. The
// reduction is a commutative worst-status-wins fold, so acknowledgement
// order never matters.
func (c *Coordinator) resolve(token string, msgID, threadID int64, outcomes []partOutcome) *Result {
	sent, failed, rejected := 0, 0, 0
	states := make([]PartState, len(outcomes))
	for i, o := range outcomes {
		switch {
		case o.rejected:
			rejected++
			states[i] = PartAckedFailed
		case o.ack == transport.AckSent:
			sent++
			states[i] = PartAckedSent
		default:
			failed++
			states[i] = PartAckedFailed
		}
	}

	result := &Result{MessageID: msgID, ThreadID: threadID, Parts: states}
	switch {
	case rejected == len(outcomes):
		// The transport never accepted the send; no per-part state exists.
		result.State = Failed
		result.Parts = nil
		c.untrack(token)
	case sent == len(outcomes):
		result.State = Completed
	case sent == 0:
		result.State = Failed
		c.untrack(token)
	default:
		result.State = PartiallyFailed
		c.untrack(token)
	}
	return result
}

func (c *Coordinator) failSend(msgID, threadID int64) {
	if err := c.store.UpdateSendState(msgID, store.SendFailed, store.DeliveryFailed); err != nil {
		c.logger.Error("failed to mark message failed", zap.Error(err), zap.Int64("message_id", msgID))
	}
	c.publish(bus.KindSendFailed, threadID, msgID)
}

func (c *Coordinator) publish(kind string, threadID, msgID int64) {
	c.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload: map[string]int64{
			"thread_id":  threadID,
			"message_id": msgID,
		},
	})
}

func (c *Coordinator) track(token string, msgID int64, parts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[token] = &deliveryTracker{messageID: msgID, remaining: parts}
}

func (c *Coordinator) untrack(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, token)
}

// Start begins consuming the transport's delivery-report stream.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.deliveryLoop(ctx)
}

// Stop stops the delivery loop.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Coordinator) deliveryLoop(ctx context.Context) {
	reports := c.transport.DeliveryReports()
	for {
		select {
		case r, ok := <-reports:
			if !ok {
				return
			}
			c.handleReport(r)
		case <-ctx.Done():
			return
		}
	}
}

// handleReport applies one delivery report. Reports arrive on their own
// channel and may land after the send already resolved Completed; they
// update the stored message in place and never block a send.
func (c *Coordinator) handleReport(r transport.DeliveryReport) {
	c.mu.Lock()
	tracker, ok := c.pending[r.Token]
	if !ok {
		c.mu.Unlock()
		// Send failed, finished tracking, or the daemon restarted.
		c.logger.Debug("delivery report for unknown token", zap.String("token", r.Token))
		return
	}
	if !r.Delivered {
		tracker.failed = true
	}
	tracker.remaining--
	done := tracker.remaining <= 0
	failed := tracker.failed
	msgID := tracker.messageID
	if done {
		delete(c.pending, r.Token)
	}
	c.mu.Unlock()

	var status store.DeliveryStatus
	switch {
	case failed:
		status = store.DeliveryFailed
	case done:
		status = store.DeliveryDelivered
	default:
		// Parts still outstanding; the message stays sent-but-pending.
		return
	}

	if err := c.store.UpdateDeliveryStatus(msgID, status); err != nil {
		c.logger.Error("failed to record delivery status", zap.Error(err), zap.Int64("message_id", msgID))
		return
	}
	c.bus.Publish(bus.Event{
		Kind:      bus.KindDelivery,
		Timestamp: time.Now(),
		Payload: map[string]any{
			"message_id": msgID,
			"status":     string(status),
		},
	})
}
