package envelope

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover_PicksHighestVersionDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "V9", "MailData", "Envelope Index"), []byte("x"))
	writeFile(t, filepath.Join(root, "V10", "MailData", "Envelope Index"), []byte("x"))
	writeFile(t, filepath.Join(root, "V2", "MailData", "Envelope Index"), []byte("x"))

	res, err := Discover(root, "")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if res.VersionDir != "V10" {
		t.Errorf("VersionDir = %q, want V10 (lexically-numeric max, not lexical max)", res.VersionDir)
	}
}

func TestDiscover_MailDirectoryNotFound(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), "")
	if _, ok := err.(*MailDirectoryNotFoundError); !ok {
		t.Fatalf("expected MailDirectoryNotFoundError, got %T: %v", err, err)
	}
}

func TestDiscover_NoVersionDirectory(t *testing.T) {
	root := t.TempDir()
	_, err := Discover(root, "")
	if _, ok := err.(*NoVersionDirectoryError); !ok {
		t.Fatalf("expected NoVersionDirectoryError, got %T: %v", err, err)
	}
}

func TestDiscover_EnvelopeIndexNotFound(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "V1", "MailData"), 0755); err != nil {
		t.Fatal(err)
	}
	_, err := Discover(root, "")
	if _, ok := err.(*EnvelopeIndexNotFoundError); !ok {
		t.Fatalf("expected EnvelopeIndexNotFoundError, got %T: %v", err, err)
	}
}

func TestDiscover_CustomPath(t *testing.T) {
	root := t.TempDir()
	custom := filepath.Join(root, "MailData", "Envelope Index")
	writeFile(t, custom, []byte("x"))

	res, err := Discover("", custom)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if res.EnvelopePath != custom {
		t.Errorf("EnvelopePath = %q, want %q", res.EnvelopePath, custom)
	}
}

func TestMessageFilePath_UUIDPartitionScheme(t *testing.T) {
	mailbox := t.TempDir()
	uuidDir := filepath.Join(mailbox, "11111111-2222-3333-4444-555555555555")

	var rowID int64 = 12345
	p1 := (rowID / 1000) % 10
	p2 := rowID / 10000
	msgDir := filepath.Join(uuidDir, "Data", strconv.FormatInt(p1, 10), strconv.FormatInt(p2, 10), "Messages")
	writeFile(t, filepath.Join(msgDir, "12345.emlx"), []byte("x"))

	path, ok := MessageFilePath(rowID, mailbox)
	if !ok {
		t.Fatal("expected message file to be found")
	}
	if path != filepath.Join(msgDir, "12345.emlx") {
		t.Errorf("path = %q, want %q", path, filepath.Join(msgDir, "12345.emlx"))
	}
}

func TestMessageFilePath_PartialFallback(t *testing.T) {
	mailbox := t.TempDir()
	uuidDir := filepath.Join(mailbox, "11111111-2222-3333-4444-555555555555")
	msgDir := filepath.Join(uuidDir, "Data", "Messages")
	writeFile(t, filepath.Join(msgDir, "42.partial.emlx"), []byte("x"))

	path, ok := MessageFilePath(42, mailbox)
	if !ok {
		t.Fatal("expected partial file to be found via fallback bucket")
	}
	if filepath.Base(path) != "42.partial.emlx" {
		t.Errorf("path = %q, want basename 42.partial.emlx", path)
	}
}

func TestMessageFilePath_LegacyLayout(t *testing.T) {
	mailbox := t.TempDir()
	writeFile(t, filepath.Join(mailbox, "Messages", "7.emlx"), []byte("x"))

	path, ok := MessageFilePath(7, mailbox)
	if !ok {
		t.Fatal("expected legacy layout file to be found")
	}
	if filepath.Base(path) != "7.emlx" {
		t.Errorf("path = %q, want basename 7.emlx", path)
	}
}

func TestMessageFilePath_NotFound(t *testing.T) {
	mailbox := t.TempDir()
	if _, ok := MessageFilePath(1, mailbox); ok {
		t.Fatal("expected not found")
	}
}
