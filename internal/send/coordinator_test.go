package send

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/guepardlover77/sms-app/internal/bus"
	"github.com/guepardlover77/sms-app/internal/sms"
	"github.com/guepardlover77/sms-app/internal/store"
	"github.com/guepardlover77/sms-app/internal/transport"
	"go.uber.org/zap"
)

// fakeTransport scripts per-part outcomes and exposes a controllable
// delivery-report channel.
type fakeTransport struct {
	mu        sync.Mutex
	calls     []transport.Part
	failIndex map[int]bool // parts that ack AckFailed
	rejectAll bool         // every Send returns an error
	reports   chan transport.DeliveryReport
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		failIndex: make(map[int]bool),
		reports:   make(chan transport.DeliveryReport, 16),
	}
}

func (f *fakeTransport) Send(_ context.Context, p transport.Part) (transport.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	if f.rejectAll {
		return transport.AckFailed, errors.New("no transport available")
	}
	if f.failIndex[p.Index] {
		return transport.AckFailed, nil
	}
	return transport.AckSent, nil
}

func (f *fakeTransport) DeliveryReports() <-chan transport.DeliveryReport {
	return f.reports
}

func (f *fakeTransport) sentCalls() []transport.Part {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Part(nil), f.calls...)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testCoordinator(t *testing.T, ft *fakeTransport) (*Coordinator, *store.DB, *bus.Bus) {
	t.Helper()
	db := testDB(t)
	b := bus.New()
	c := NewCoordinator(db, ft, b, zap.NewNop())
	return c, db, b
}

// longBody is GSM-7 encodable and splits into exactly 3 parts
// (2*153 + 1 = 307 septets).
var longBody = strings.Repeat("a", 307)

func TestSendSinglePartCompleted(t *testing.T) {
	ft := newFakeTransport()
	c, db, b := testCoordinator(t, ft)

	ch, unsub := b.Subscribe(bus.KindSendAck, 10)
	defer unsub()

	result, err := c.Send(context.Background(), "+15551234567", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if result.State != Completed {
		t.Errorf("state = %q, want completed", result.State)
	}
	if len(result.Parts) != 1 || result.Parts[0] != PartAckedSent {
		t.Errorf("parts = %v, want one acked_sent", result.Parts)
	}

	msgs, err := db.MessagesByThread(result.ThreadID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d stored messages, want 1", len(msgs))
	}
	if msgs[0].Direction != store.Sent {
		t.Errorf("stored direction = %q, want sent", msgs[0].Direction)
	}
	if msgs[0].DeliveryStatus != store.DeliveryPending {
		t.Errorf("delivery = %q, want pending until the report lands", msgs[0].DeliveryStatus)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for send_ack event")
	}
}

func TestSendThreePartsAllSent(t *testing.T) {
	ft := newFakeTransport()
	c, _, _ := testCoordinator(t, ft)

	result, err := c.Send(context.Background(), "+15551234567", longBody)
	if err != nil {
		t.Fatal(err)
	}
	if result.State != Completed {
		t.Errorf("state = %q, want completed", result.State)
	}
	if len(result.Parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(result.Parts))
	}

	calls := ft.sentCalls()
	if len(calls) != 3 {
		t.Fatalf("transport saw %d parts, want 3", len(calls))
	}
	for _, p := range calls {
		if p.Total != 3 {
			t.Errorf("part %d reports total %d, want 3", p.Index, p.Total)
		}
		if p.Token != calls[0].Token {
			t.Error("parts of one send must share a correlation token")
		}
	}
}

func TestSendPartialFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.failIndex[1] = true
	c, db, b := testCoordinator(t, ft)

	ch, unsub := b.Subscribe(bus.KindSendFailed, 10)
	defer unsub()

	result, err := c.Send(context.Background(), "+15551234567", longBody)
	if !errors.Is(err, ErrPartialDelivery) {
		t.Fatalf("err = %v, want ErrPartialDelivery", err)
	}
	if result.State != PartiallyFailed {
		t.Errorf("state = %q, want partially_failed", result.State)
	}
	sent, failed := 0, 0
	for _, p := range result.Parts {
		switch p {
		case PartAckedSent:
			sent++
		case PartAckedFailed:
			failed++
		}
	}
	if sent != 2 || failed != 1 {
		t.Errorf("parts = %v, want 2 sent / 1 failed", result.Parts)
	}

	// A reload must show the send as failed so the user can retry.
	msgs, err := db.MessagesByThread(result.ThreadID)
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].Direction != store.SendFailed {
		t.Errorf("stored direction = %q, want failed", msgs[0].Direction)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for send_failed event")
	}
}

func TestSendTransportRejection(t *testing.T) {
	ft := newFakeTransport()
	ft.rejectAll = true
	c, db, _ := testCoordinator(t, ft)

	result, err := c.Send(context.Background(), "+15551234567", "hello")
	if !errors.Is(err, ErrTransportRejected) {
		t.Fatalf("err = %v, want ErrTransportRejected", err)
	}
	if result.State != Failed {
		t.Errorf("state = %q, want failed", result.State)
	}
	if len(result.Parts) != 0 {
		t.Errorf("parts = %v, want none for a whole-send rejection", result.Parts)
	}

	msgs, err := db.MessagesByThread(result.ThreadID)
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].Direction != store.SendFailed {
		t.Errorf("stored direction = %q, want failed", msgs[0].Direction)
	}
}

func TestSendBlankBodyRejectedBeforeDispatch(t *testing.T) {
	ft := newFakeTransport()
	c, db, _ := testCoordinator(t, ft)

	if _, err := c.Send(context.Background(), "+15551234567", "   \n "); !errors.Is(err, sms.ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
	if _, err := c.Send(context.Background(), "", "hello"); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("err = %v, want ErrNoRecipient", err)
	}

	if len(ft.sentCalls()) != 0 {
		t.Error("transport must not be called for rejected input")
	}
	n, err := db.MessageCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d messages stored, want 0 (no state created)", n)
	}
}

// gatedTransport honors the context it is handed and acks parts only
// when released, standing in for a carrier mid-transmission.
type gatedTransport struct {
	release chan struct{}
	reports chan transport.DeliveryReport
}

func (g *gatedTransport) Send(ctx context.Context, _ transport.Part) (transport.Ack, error) {
	select {
	case <-ctx.Done():
		return transport.AckFailed, ctx.Err()
	case <-g.release:
		return transport.AckSent, nil
	}
}

func (g *gatedTransport) DeliveryReports() <-chan transport.DeliveryReport {
	return g.reports
}

func TestSendSurvivesCallerCancel(t *testing.T) {
	gt := &gatedTransport{
		release: make(chan struct{}),
		reports: make(chan transport.DeliveryReport),
	}
	db := testDB(t)
	c := NewCoordinator(db, gt, bus.New(), zap.NewNop())

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		r, err := c.Send(ctx, "+15551234567", longBody)
		done <- outcome{r, err}
	}()

	// Cancel the caller while the parts sit with the carrier, then let
	// the carrier finish. Dispatched parts cannot be recalled, so the
	// send must still resolve completed.
	cancel()
	close(gt.release)

	o := <-done
	if o.err != nil {
		t.Fatalf("err = %v, want nil despite caller cancel", o.err)
	}
	if o.result.State != Completed {
		t.Errorf("state = %q, want completed", o.result.State)
	}

	msgs, err := db.MessagesByThread(o.result.ThreadID)
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].Direction != store.Sent {
		t.Errorf("stored direction = %q, want sent", msgs[0].Direction)
	}
}

func TestSendSameAddressVariantsShareThread(t *testing.T) {
	ft := newFakeTransport()
	c, _, _ := testCoordinator(t, ft)

	r1, err := c.Send(context.Background(), "+1 (555) 123-4567", "first")
	if err != nil {
		t.Fatal(err)
	}
	r2, err := c.Send(context.Background(), "15551234567", "second")
	if err != nil {
		t.Fatal(err)
	}
	if r1.ThreadID != r2.ThreadID {
		t.Errorf("formatting variants got threads %d and %d, want one", r1.ThreadID, r2.ThreadID)
	}
}

func TestDeliveryReportsResolveAfterCompletion(t *testing.T) {
	ft := newFakeTransport()
	c, db, b := testCoordinator(t, ft)

	c.Start(context.Background())
	defer c.Stop()

	ch, unsub := b.Subscribe(bus.KindDelivery, 10)
	defer unsub()

	result, err := c.Send(context.Background(), "+15551234567", longBody)
	if err != nil {
		t.Fatal(err)
	}

	token := ft.sentCalls()[0].Token
	for i := 0; i < 3; i++ {
		ft.reports <- transport.DeliveryReport{Token: token, Index: i, Delivered: true}
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delivery event")
	}

	msgs, err := db.MessagesByThread(result.ThreadID)
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].DeliveryStatus != store.DeliveryDelivered {
		t.Errorf("delivery = %q, want delivered after all reports", msgs[0].DeliveryStatus)
	}
}

func TestDeliveryReportFailureWins(t *testing.T) {
	ft := newFakeTransport()
	c, db, b := testCoordinator(t, ft)

	c.Start(context.Background())
	defer c.Stop()

	ch, unsub := b.Subscribe(bus.KindDelivery, 10)
	defer unsub()

	result, err := c.Send(context.Background(), "+15551234567", longBody)
	if err != nil {
		t.Fatal(err)
	}

	token := ft.sentCalls()[0].Token
	ft.reports <- transport.DeliveryReport{Token: token, Index: 0, Delivered: true}
	ft.reports <- transport.DeliveryReport{Token: token, Index: 1, Delivered: false}
	ft.reports <- transport.DeliveryReport{Token: token, Index: 2, Delivered: true}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-ch:
			msgs, err := db.MessagesByThread(result.ThreadID)
			if err != nil {
				t.Fatal(err)
			}
			if msgs[0].DeliveryStatus == store.DeliveryFailed {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for failed delivery status")
		}
	}
}

func TestDeliveryReportUnknownTokenIgnored(t *testing.T) {
	ft := newFakeTransport()
	c, _, _ := testCoordinator(t, ft)

	c.Start(context.Background())
	defer c.Stop()

	// Must not panic or write anything.
	ft.reports <- transport.DeliveryReport{Token: "stale", Index: 0, Delivered: true}
	time.Sleep(50 * time.Millisecond)
}
