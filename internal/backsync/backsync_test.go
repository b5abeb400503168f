package backsync

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mailmirror-dev/mailmirror/internal/bridge/fakebridge"
	"github.com/mailmirror-dev/mailmirror/internal/store"
)

type stubScripts struct{}

func (stubScripts) ArchiveScript(messageID string) string { return "archive:" + messageID }
func (stubScripts) DeleteScript(messageID string) string  { return "delete:" + messageID }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirror.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedMessage(t *testing.T, s *store.Store, id, messageID string) {
	t.Helper()
	if err := s.UpsertMailbox(context.Background(), 1, "INBOX", "imap://user@host/INBOX", sql.NullInt64{}); err != nil {
		t.Fatalf("seed mailbox: %v", err)
	}
	if err := s.UpsertMessage(&store.Message{
		ID:            id,
		MessageID:     sql.NullString{String: messageID, Valid: messageID != ""},
		MailboxID:     1,
		MailboxStatus: "inbox",
	}); err != nil {
		t.Fatalf("seed message: %v", err)
	}
}

func TestArchiveMessage_Success(t *testing.T) {
	s := newTestStore(t)
	seedMessage(t, s, "m1", "<abc@example.com>")

	br := fakebridge.New()
	br.Queue("ok")
	sy := New(s, br, stubScripts{})

	if err := sy.ArchiveMessage(context.Background(), "m1"); err != nil {
		t.Fatalf("archive: %v", err)
	}

	m, err := s.GetMessage("m1", false)
	if err != nil {
		t.Fatal(err)
	}
	if m.MailboxStatus != "archived" {
		t.Errorf("mailbox_status = %q", m.MailboxStatus)
	}
	if m.PendingSyncAction != "none" {
		t.Errorf("pending_sync_action = %q", m.PendingSyncAction)
	}
	if br.CallCount() != 1 {
		t.Errorf("expected 1 bridge call, got %d", br.CallCount())
	}
}

func TestArchiveMessage_RollsBackOnFailure(t *testing.T) {
	s := newTestStore(t)
	seedMessage(t, s, "m1", "<abc@example.com>")

	br := fakebridge.New()
	br.QueueError(errors.New("automation denied"))
	sy := New(s, br, stubScripts{})

	err := sy.ArchiveMessage(context.Background(), "m1")
	if err == nil {
		t.Fatal("expected error")
	}
	var scriptErr *AppleScriptFailed
	if !errors.As(err, &scriptErr) {
		t.Fatalf("expected AppleScriptFailed, got %T: %v", err, err)
	}

	m, err := s.GetMessage("m1", false)
	if err != nil {
		t.Fatal(err)
	}
	if m.MailboxStatus != "inbox" {
		t.Errorf("mailbox_status = %q, want rollback to inbox", m.MailboxStatus)
	}
	if m.PendingSyncAction != "archive" {
		t.Errorf("pending_sync_action = %q, want retained", m.PendingSyncAction)
	}
}

func TestArchiveMessage_NoMessageID(t *testing.T) {
	s := newTestStore(t)
	seedMessage(t, s, "m1", "")

	sy := New(s, fakebridge.New(), stubScripts{})
	err := sy.ArchiveMessage(context.Background(), "m1")

	var noID *NoMessageID
	if !errors.As(err, &noID) {
		t.Fatalf("expected NoMessageID, got %v", err)
	}
}

func TestArchiveMessage_NotFound(t *testing.T) {
	s := newTestStore(t)
	sy := New(s, fakebridge.New(), stubScripts{})

	err := sy.ArchiveMessage(context.Background(), "missing")
	var notFound *MessageNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected MessageNotFound, got %v", err)
	}
}

func TestProcessPendingActions_RetriesAndSucceeds(t *testing.T) {
	s := newTestStore(t)
	seedMessage(t, s, "m1", "<abc@example.com>")

	br := fakebridge.New()
	br.QueueError(errors.New("transient failure"))
	sy := New(s, br, stubScripts{})

	if err := sy.ArchiveMessage(context.Background(), "m1"); err == nil {
		t.Fatal("expected first attempt to fail")
	}

	br.Queue("ok")
	result, err := sy.ProcessPendingActions(context.Background())
	if err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if result.Archived != 1 || result.Failed != 0 {
		t.Errorf("result = %+v", result)
	}

	m, err := s.GetMessage("m1", false)
	if err != nil {
		t.Fatal(err)
	}
	if m.MailboxStatus != "archived" || m.PendingSyncAction != "none" {
		t.Errorf("final state = %+v", m)
	}
}

func TestProcessPendingActions_RetriesFailedArchives(t *testing.T) {
	s := newTestStore(t)
	seedMessage(t, s, "m1", "<one@example.com>")
	seedMessage(t, s, "m2", "<two@example.com>")

	br := fakebridge.New()
	br.QueueError(errors.New("boom"))
	sy := New(s, br, stubScripts{})
	_ = sy.ArchiveMessage(context.Background(), "m1")

	br2 := fakebridge.New()
	br2.QueueError(errors.New("boom2"))
	sy2 := New(s, br2, stubScripts{})
	_ = sy2.ArchiveMessage(context.Background(), "m2")

	br3 := fakebridge.New()
	br3.Queue("ok")
	br3.Queue("ok")
	sy3 := New(s, br3, stubScripts{})

	result, err := sy3.ProcessPendingActions(context.Background())
	if err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if result.Archived != 2 {
		t.Errorf("archived = %d, want 2", result.Archived)
	}
}
