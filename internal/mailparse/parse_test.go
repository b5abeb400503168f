package mailparse

import (
	"strings"
	"testing"
)

const simpleMessage = "From: Alice <alice@example.com>\r\n" +
	"To: Bob <bob@example.com>\r\n" +
	"Subject: Hello World\r\n" +
	"Message-ID: <abc@example.com>\r\n" +
	"References: <root@example.com> <mid@example.com>\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"hello there\r\n"

func TestParse_BasicFields(t *testing.T) {
	msg, err := Parse([]byte(simpleMessage))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Subject != "Hello World" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.MessageID != "<abc@example.com>" {
		t.Errorf("MessageID = %q", msg.MessageID)
	}
	if len(msg.From) != 1 || msg.From[0].Email != "alice@example.com" {
		t.Errorf("From = %+v", msg.From)
	}
	if len(msg.To) != 1 || msg.To[0].Email != "bob@example.com" {
		t.Errorf("To = %+v", msg.To)
	}
	if len(msg.References) != 2 || msg.References[0] != "root@example.com" {
		t.Errorf("References = %+v", msg.References)
	}
	if msg.Date.IsZero() {
		t.Error("Date not parsed")
	}
	if !strings.Contains(msg.BodyText, "hello there") {
		t.Errorf("BodyText = %q", msg.BodyText)
	}
}

func TestStripHTML_BlockTagsBecomeNewlines(t *testing.T) {
	out := StripHTML("<p>one</p><p>two</p>")
	if out != "one\ntwo" {
		t.Errorf("StripHTML = %q, want %q", out, "one\ntwo")
	}
}

func TestStripHTML_DropsScriptAndStyle(t *testing.T) {
	out := StripHTML("<style>.x{color:red}</style><script>alert(1)</script><p>body</p>")
	if out != "body" {
		t.Errorf("StripHTML = %q, want %q", out, "body")
	}
}

func TestBodyTextOrStripped_FallsBackToHTML(t *testing.T) {
	msg := &Message{BodyHTML: "<p>only html</p>"}
	if got := msg.BodyTextOrStripped(); got != "only html" {
		t.Errorf("BodyTextOrStripped = %q", got)
	}
}

func TestParse_MalformedDateIsIgnored(t *testing.T) {
	raw := strings.Replace(simpleMessage, "Date: Mon, 02 Jan 2006 15:04:05 -0700", "Date: not-a-date", 1)
	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !msg.Date.IsZero() {
		t.Errorf("Date = %v, want zero value for unparsable date", msg.Date)
	}
}
