package store

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func TestParseQuery_RoundTrip(t *testing.T) {
	f := ParseQuery(`from:alice subject:"hi there" is:unread foo bar`)
	if f.From != "alice" {
		t.Errorf("From = %q", f.From)
	}
	if f.Subject != "hi there" {
		t.Errorf("Subject = %q", f.Subject)
	}
	if f.IsRead == nil || *f.IsRead != false {
		t.Errorf("IsRead = %v", f.IsRead)
	}
	if f.FreeText != "foo bar" {
		t.Errorf("FreeText = %q", f.FreeText)
	}
}

func TestParseQuery_DateExpandsToNextDay(t *testing.T) {
	f := ParseQuery("date:2024-01-15")
	if f.After == nil || f.Before == nil {
		t.Fatal("expected after/before set")
	}
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if !f.After.Equal(want) {
		t.Errorf("After = %v", f.After)
	}
	if !f.Before.Equal(want.AddDate(0, 0, 1)) {
		t.Errorf("Before = %v", f.Before)
	}
}

func TestSearchMessagesWithFilters_FromAndUnread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := sampleMessage("sm-1", 1)
	a.Subject = sql.NullString{String: "Quarterly Report", Valid: true}
	a.SenderEmail = sql.NullString{String: "alice@x.com", Valid: true}
	a.IsRead = false
	a.DateReceived = sql.NullTime{Time: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Valid: true}

	b := sampleMessage("sm-2", 2)
	b.Subject = sql.NullString{String: "RE: Quarterly", Valid: true}
	b.SenderEmail = sql.NullString{String: "bob@y.com", Valid: true}
	b.IsRead = true
	b.DateReceived = sql.NullTime{Time: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), Valid: true}

	if err := s.UpsertMessage(a); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertMessage(b); err != nil {
		t.Fatal(err)
	}

	f := ParseQuery("from:alice is:unread")
	results, err := s.SearchMessagesWithFilters(ctx, f, 10, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Message.ID != "sm-1" {
		t.Errorf("results = %+v", results)
	}
}

func TestSearchMessages_ExcludesDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := sampleMessage("sm-del", 3)
	m.BodyText = sql.NullString{String: "unique-marker-text", Valid: true}
	m.IsDeleted = true
	if err := s.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	results, err := s.SearchMessages(ctx, "unique-marker-text", 10, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for deleted message, got %+v", results)
	}
}
