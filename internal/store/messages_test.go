package store

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "mirror.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.db.Exec(`INSERT INTO mailboxes (id, name, url, kind) VALUES (1, 'INBOX', 'imap://x/inbox', 'inbox')`); err != nil {
		t.Fatalf("seed mailbox: %v", err)
	}
	return s
}

func sampleMessage(id string, rowID int64) *Message {
	return &Message{
		ID:           id,
		AppleRowID:   sql.NullInt64{Int64: rowID, Valid: true},
		MessageID:    sql.NullString{String: "<" + id + "@example.com>", Valid: true},
		MailboxID:    1,
		Subject:      sql.NullString{String: "hello", Valid: true},
		SenderEmail:  sql.NullString{String: "a@example.com", Valid: true},
		MailboxStatus: "inbox",
	}
}

func TestUpsertMessage_InsertThenUpdate(t *testing.T) {
	s := newTestStore(t)
	m := sampleMessage("msg-1", 100)
	if err := s.UpsertMessage(m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	m.Subject = sql.NullString{String: "updated", Valid: true}
	m.IsRead = true
	if err := s.UpsertMessage(m); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetMessage("msg-1", false)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got == nil {
		t.Fatal("expected message")
	}
	if got.Subject.String != "updated" || !got.IsRead {
		t.Errorf("got = %+v", got)
	}
}

func TestGetMessage_ExcludesDeletedByDefault(t *testing.T) {
	s := newTestStore(t)
	m := sampleMessage("msg-del", 101)
	m.IsDeleted = true
	if err := s.UpsertMessage(m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if got, _ := s.GetMessage("msg-del", false); got != nil {
		t.Error("expected nil when excluding deleted")
	}
	if got, _ := s.GetMessage("msg-del", true); got == nil {
		t.Error("expected row when including deleted")
	}
}

func TestBatchUpsertMessages_InsertedAndUpdatedCounts(t *testing.T) {
	s := newTestStore(t)
	first := []*Message{sampleMessage("b1", 1), sampleMessage("b2", 2)}
	res, err := s.BatchUpsertMessages(first, 10)
	if err != nil {
		t.Fatalf("batch upsert: %v", err)
	}
	if res.Inserted != 2 || res.Updated != 0 {
		t.Errorf("first pass = %+v", res)
	}

	second := []*Message{sampleMessage("b1", 1), sampleMessage("b3", 3)}
	res2, err := s.BatchUpsertMessages(second, 10)
	if err != nil {
		t.Fatalf("batch upsert 2: %v", err)
	}
	if res2.Inserted != 1 || res2.Updated != 1 {
		t.Errorf("second pass = %+v", res2)
	}
}

func TestMessageExistsBatch_ScopedToMailbox(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertMessage(sampleMessage("e1", 50)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.MessageExistsBatch(1, []int64{50, 51})
	if err != nil {
		t.Fatalf("exists batch: %v", err)
	}
	if got[50] != "e1" {
		t.Errorf("got[50] = %q", got[50])
	}
	if _, ok := got[51]; ok {
		t.Error("expected 51 absent")
	}
}

func TestGetMessagesWithPendingActions_OnlyNonNone(t *testing.T) {
	s := newTestStore(t)
	a := sampleMessage("p1", 1)
	a.PendingSyncAction = "archive"
	b := sampleMessage("p2", 2)
	b.PendingSyncAction = "none"
	if err := s.UpsertMessage(a); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertMessage(b); err != nil {
		t.Fatal(err)
	}

	pending, err := s.GetMessagesWithPendingActions()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "p1" {
		t.Errorf("pending = %+v", pending)
	}
}
