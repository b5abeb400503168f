package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/mailmirror-dev/mailmirror/internal/mailboxkind"
)

func TestUpsertMailbox_ClassifiesKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertMailbox(ctx, 2, "Archive", "imap://x/Archive", sql.NullInt64{}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	mb, err := s.GetMailbox(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if mb == nil || mb.Kind != mailboxkind.Archive {
		t.Errorf("mailbox = %+v", mb)
	}
}

func TestMailboxByKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mb, err := s.MailboxByKind(ctx, mailboxkind.Inbox)
	if err != nil {
		t.Fatalf("mailbox by kind: %v", err)
	}
	if mb == nil || mb.ID != 1 {
		t.Errorf("expected seeded inbox, got %+v", mb)
	}
}

func TestRefreshMessageCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.UpsertMessage(sampleMessage("rc-1", 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertMessage(sampleMessage("rc-2", 2)); err != nil {
		t.Fatal(err)
	}

	if err := s.RefreshMessageCount(ctx, 1); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	mb, err := s.GetMailbox(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if mb.MessageCount != 2 {
		t.Errorf("MessageCount = %d", mb.MessageCount)
	}
}
