package forwardsync

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mailmirror-dev/mailmirror/internal/envelope"
	"github.com/mailmirror-dev/mailmirror/internal/hostdb"
	"github.com/mailmirror-dev/mailmirror/internal/mailparse"
	"github.com/mailmirror-dev/mailmirror/internal/store"
)

func TestMailboxFSPath_DerivesMboxChain(t *testing.T) {
	got := mailboxFSPath("/Users/me/Library/Mail", "V10", "imap://user@host.example/INBOX")
	want := filepath.Join("/Users/me/Library/Mail", "V10", "user@host.example", "INBOX.mbox")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMailboxFSPath_NestedFolder(t *testing.T) {
	got := mailboxFSPath("/Mail", "V10", "imap://user@host/Archive/2024")
	want := filepath.Join("/Mail", "V10", "user@host", "Archive.mbox", "2024.mbox")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMailboxFSPath_PercentDecodesSegments(t *testing.T) {
	got := mailboxFSPath("/Mail", "V10", "imap://user@host/My%20Folder")
	want := filepath.Join("/Mail", "V10", "user@host", "My Folder.mbox")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMailboxNameFromURL(t *testing.T) {
	cases := map[string]string{
		"imap://user@host/INBOX":          "INBOX",
		"imap://user@host/Archive/2024":   "2024",
		"imap://user@host/My%20Folder":    "My Folder",
		"imap://user@host/INBOX/":         "INBOX",
	}
	for url, want := range cases {
		if got := mailboxNameFromURL(url); got != want {
			t.Errorf("mailboxNameFromURL(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestResolveSender_PrefersParsedFrom(t *testing.T) {
	row := hostdb.MessageRow{SenderEmail: sql.NullString{String: "host@example.com", Valid: true}}
	msg := &mailparse.Message{From: []mailparse.Address{{Name: "Alice", Email: "alice@example.com"}}}
	email, name := resolveSender(row, msg)
	if email != "alice@example.com" || name != "Alice" {
		t.Errorf("got (%q, %q)", email, name)
	}
}

func TestResolveSender_FallsBackToHostColumns(t *testing.T) {
	row := hostdb.MessageRow{
		SenderEmail: sql.NullString{String: "host@example.com", Valid: true},
		SenderName:  sql.NullString{String: "Host Name", Valid: true},
	}
	msg := &mailparse.Message{}
	email, name := resolveSender(row, msg)
	if email != "host@example.com" || name != "Host Name" {
		t.Errorf("got (%q, %q)", email, name)
	}
}

func TestPrimaryFromAddress(t *testing.T) {
	msg := &mailparse.Message{From: []mailparse.Address{{Name: "Alice", Email: "alice@example.com"}}}
	got := primaryFromAddress(msg)
	want := `"Alice" <alice@example.com>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrimaryFromAddress_NoName(t *testing.T) {
	msg := &mailparse.Message{From: []mailparse.Address{{Email: "alice@example.com"}}}
	if got := primaryFromAddress(msg); got != "alice@example.com" {
		t.Errorf("got %q", got)
	}
}

func newTestHostDB(t *testing.T) *hostdb.DB {
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
		INSERT INTO mailboxes (url) VALUES ('imap://user@host.example/INBOX');
	`
	if _, err := setup.Exec(schema); err != nil {
		t.Fatal(err)
	}
	if err := setup.Close(); err != nil {
		t.Fatal(err)
	}
	db, err := hostdb.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

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

func TestSyncMailboxes_UpsertsAndClassifies(t *testing.T) {
	host := newTestHostDB(t)
	s := newTestStore(t)
	mailRoot := t.TempDir()
	sy := New(s, Options{MailRoot: mailRoot})
	disc := &envelope.Result{MailRoot: mailRoot, VersionDir: "V10"}

	entries, err := sy.syncMailboxes(context.Background(), host, disc)
	if err != nil {
		t.Fatalf("syncMailboxes: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 mailbox, got %d", len(entries))
	}
	for _, e := range entries {
		if e.name != "INBOX" {
			t.Errorf("name = %q", e.name)
		}
	}

	mailboxes, err := s.Mailboxes(context.Background())
	if err != nil {
		t.Fatalf("store mailboxes: %v", err)
	}
	if len(mailboxes) != 1 {
		t.Fatalf("expected 1 mirrored mailbox, got %d", len(mailboxes))
	}
}
