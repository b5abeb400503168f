package hostdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func newTestHostDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Envelope Index")

	setup, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	schema := `
		CREATE TABLE mailboxes (url TEXT);
		CREATE TABLE subjects (subject TEXT);
		CREATE TABLE addresses (address TEXT, comment TEXT);
		CREATE TABLE messages (
			subject INTEGER, sender INTEGER, date_received REAL, date_sent REAL,
			message_id TEXT, mailbox INTEGER, read INTEGER, flagged INTEGER
		);
		INSERT INTO mailboxes (url) VALUES ('imap://user@host/INBOX');
		INSERT INTO subjects (subject) VALUES ('Hello World');
		INSERT INTO addresses (address, comment) VALUES ('sender@example.com', 'Sender Name');
		INSERT INTO messages (subject, sender, date_received, date_sent, message_id, mailbox, read, flagged)
			VALUES (1, 1, 800000000.0, 800000000.0, '<abc@example.com>', 1, 0, 1);
	`
	if _, err := setup.Exec(schema); err != nil {
		t.Fatal(err)
	}
	if err := setup.Close(); err != nil {
		t.Fatal(err)
	}

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInboxMessages_JoinsSubjectAndSender(t *testing.T) {
	db := newTestHostDB(t)
	rows, err := db.InboxMessages(context.Background(), 0)
	if err != nil {
		t.Fatalf("InboxMessages: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.Subject.String != "Hello World" {
		t.Errorf("Subject = %q", r.Subject.String)
	}
	if r.SenderEmail.String != "sender@example.com" {
		t.Errorf("SenderEmail = %q", r.SenderEmail.String)
	}
	if r.SenderName.String != "Sender Name" {
		t.Errorf("SenderName = %q", r.SenderName.String)
	}
	if r.Read {
		t.Error("Read = true, want false")
	}
	if !r.Flagged {
		t.Error("Flagged = false, want true")
	}
}

func TestInboxMessages_SinceFilter(t *testing.T) {
	db := newTestHostDB(t)
	rows, err := db.InboxMessages(context.Background(), 900000000.0)
	if err != nil {
		t.Fatalf("InboxMessages: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("len(rows) = %d, want 0 (filtered out by since cutoff)", len(rows))
	}
}

func TestMailboxes(t *testing.T) {
	db := newTestHostDB(t)
	mbs, err := db.Mailboxes(context.Background())
	if err != nil {
		t.Fatalf("Mailboxes: %v", err)
	}
	if len(mbs) != 1 || mbs[0].URL.String != "imap://user@host/INBOX" {
		t.Fatalf("unexpected mailboxes: %+v", mbs)
	}
}

func TestStatuses_MissingRowAbsent(t *testing.T) {
	db := newTestHostDB(t)
	statuses, err := db.Statuses(context.Background(), []int64{1, 999})
	if err != nil {
		t.Fatalf("Statuses: %v", err)
	}
	if _, ok := statuses[999]; ok {
		t.Error("row 999 should not exist")
	}
	s, ok := statuses[1]
	if !ok {
		t.Fatal("row 1 should exist")
	}
	if !s.Flagged || s.Read {
		t.Errorf("unexpected status: %+v", s)
	}
}

func TestExists(t *testing.T) {
	db := newTestHostDB(t)
	exists, err := db.Exists(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists[1] || exists[2] {
		t.Errorf("unexpected exists map: %+v", exists)
	}
}
