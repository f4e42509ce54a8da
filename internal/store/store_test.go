package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustInsert(t *testing.T, db *DB, m Message) int64 {
	t.Helper()
	id, err := db.InsertMessage(&m)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestThreadForAddressStable(t *testing.T) {
	db := testDB(t)

	id1, err := db.ThreadForAddress("+15551234567")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := db.ThreadForAddress("+15551234567")
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("same address allocated two threads: %d and %d", id1, id2)
	}

	other, err := db.ThreadForAddress("+15559876543")
	if err != nil {
		t.Fatal(err)
	}
	if other == id1 {
		t.Error("distinct addresses share a thread")
	}
}

func TestMessagesByThreadAscending(t *testing.T) {
	db := testDB(t)

	mustInsert(t, db, Message{ThreadID: 1, Address: "+1555", Body: "second", Timestamp: 200, Direction: Inbound})
	mustInsert(t, db, Message{ThreadID: 1, Address: "+1555", Body: "first", Timestamp: 100, Direction: Inbound})
	mustInsert(t, db, Message{ThreadID: 2, Address: "+1666", Body: "other thread", Timestamp: 150, Direction: Inbound})

	msgs, err := db.MessagesByThread(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Body != "first" || msgs[1].Body != "second" {
		t.Errorf("order = [%q, %q], want [first, second]", msgs[0].Body, msgs[1].Body)
	}
}

func TestLatestInThreadTieBreak(t *testing.T) {
	db := testDB(t)

	mustInsert(t, db, Message{ThreadID: 1, Address: "+1555", Body: "a", Timestamp: 100, Direction: Inbound})
	lastID := mustInsert(t, db, Message{ThreadID: 1, Address: "+1555", Body: "b", Timestamp: 100, Direction: Inbound})

	latest, err := db.LatestInThread(1)
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil {
		t.Fatal("latest = nil, want message")
	}
	if latest.ID != lastID {
		t.Errorf("tie-break picked id %d, want highest id %d", latest.ID, lastID)
	}

	// Empty thread yields nil, not an error.
	latest, err = db.LatestInThread(99)
	if err != nil {
		t.Fatal(err)
	}
	if latest != nil {
		t.Errorf("latest for empty thread = %v, want nil", latest)
	}
}

func TestConversationSummaries(t *testing.T) {
	db := testDB(t)

	mustInsert(t, db, Message{ThreadID: 1, Address: "+1555", Body: "old", Timestamp: 100, Direction: Inbound})
	mustInsert(t, db, Message{ThreadID: 1, Address: "+1555", Body: "newest", Timestamp: 300, Direction: Sent})
	mustInsert(t, db, Message{ThreadID: 2, Address: "+1666", Body: "only", Timestamp: 200, Direction: Inbound})

	sums, err := db.ConversationSummaries()
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 2 {
		t.Fatalf("got %d summaries, want 2", len(sums))
	}
	byThread := map[int64]ConversationSummary{}
	for _, s := range sums {
		byThread[s.ThreadID] = s
	}
	if s := byThread[1]; s.Snippet != "newest" || s.MessageCount != 2 {
		t.Errorf("thread 1 summary = %+v, want snippet=newest count=2", s)
	}
	if s := byThread[2]; s.Snippet != "only" || s.MessageCount != 1 {
		t.Errorf("thread 2 summary = %+v, want snippet=only count=1", s)
	}
}

func TestMarkThreadReadIdempotent(t *testing.T) {
	db := testDB(t)

	mustInsert(t, db, Message{ThreadID: 1, Address: "+1555", Body: "a", Timestamp: 100, Direction: Inbound, Read: false})
	mustInsert(t, db, Message{ThreadID: 1, Address: "+1555", Body: "b", Timestamp: 200, Direction: Sent, Read: true})

	n, err := db.UnreadCount(1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("unread = %d, want 1", n)
	}

	if err := db.MarkThreadRead(1); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkThreadRead(1); err != nil {
		t.Fatal(err)
	}

	n, err = db.UnreadCount(1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("unread after mark = %d, want 0", n)
	}
}

func TestUpdateSendAndDeliveryState(t *testing.T) {
	db := testDB(t)

	id := mustInsert(t, db, Message{ThreadID: 1, Address: "+1555", Body: "out", Timestamp: 100, Direction: Outbox, DeliveryStatus: DeliveryPending})

	if err := db.UpdateSendState(id, Sent, DeliveryPending); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateDeliveryStatus(id, DeliveryDelivered); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.MessagesByThread(1)
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].Direction != Sent {
		t.Errorf("direction = %q, want %q", msgs[0].Direction, Sent)
	}
	if msgs[0].DeliveryStatus != DeliveryDelivered {
		t.Errorf("delivery = %q, want %q", msgs[0].DeliveryStatus, DeliveryDelivered)
	}
}

func TestHasInbound(t *testing.T) {
	db := testDB(t)

	mustInsert(t, db, Message{ThreadID: 1, Address: "+1555", Body: "dup", Timestamp: 100, Direction: Inbound})

	ok, err := db.HasInbound(1, 100, "dup")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected existing inbound row to be found")
	}

	ok, err = db.HasInbound(1, 101, "dup")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("different timestamp should not match")
	}
}

func TestContactUpsertLookupSearch(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertContact(&Contact{Name: "Alice Smith", Phone: "+1 (555) 123-4567"}, "15551234567"); err != nil {
		t.Fatal(err)
	}
	// Second upsert on the same normalized number updates in place.
	if err := db.UpsertContact(&Contact{Name: "Alice S.", Phone: "+15551234567"}, "15551234567"); err != nil {
		t.Fatal(err)
	}

	c, err := db.ContactByNormalizedPhone("15551234567")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Name != "Alice S." {
		t.Errorf("got %v, want Alice S.", c)
	}

	c, err = db.ContactByNormalizedPhone("10000000000")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("expected nil for unknown number, got %v", c)
	}

	// Case-insensitive name match.
	results, err := db.SearchContacts("alice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	// Number fragment match.
	results, err = db.SearchContacts("1234", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results for number fragment, want 1", len(results))
	}
}

func TestStoreErrorsTagged(t *testing.T) {
	db := testDB(t)
	_ = db.Close()

	_, err := db.ConversationSummaries()
	if err == nil {
		t.Fatal("expected error after close")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error %v should wrap ErrUnavailable", err)
	}
}
