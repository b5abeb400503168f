package idgen

import "testing"

func TestGenerate_StableFromMessageID(t *testing.T) {
	// Scenario 1: SHA-256 of "msgid:abc@example.com" truncated to 32 hex chars.
	id1 := Generate("<ABC@example.com>", HeaderFields{})
	id2 := Generate("<ABC@example.com>", HeaderFields{})
	if id1 != id2 {
		t.Fatalf("generator is not deterministic: %s != %s", id1, id2)
	}
	if !IsValidID(id1) {
		t.Fatalf("generated id %q is not a valid 32-hex id", id1)
	}

	expected := hash("msgid:abc@example.com")
	if id1 != expected {
		t.Errorf("id = %s, want %s", id1, expected)
	}
}

func TestGenerate_HeaderTupleRequiresTwoPairs(t *testing.T) {
	// Only one usable pair (the rowid): falls through to row-id tier.
	id := Generate("", HeaderFields{HasRow: true, RowID: 42})
	if id != hash("row:42") {
		t.Errorf("expected row-id fallback when only one header pair present, got %s", id)
	}
}

func TestGenerate_HeaderTupleUsed(t *testing.T) {
	hdr := HeaderFields{Subject: "hello", From: "Alice@Example.com", HasDate: true, Date: 100}
	id := Generate("", hdr)
	want := hash("hdr:subj:hello|from:alice@example.com|date:100")
	if id != want {
		t.Errorf("id = %s, want %s", id, want)
	}
}

func TestGenerate_RandomFallbackStillValid(t *testing.T) {
	id := Generate("", HeaderFields{})
	if !IsValidID(id) {
		t.Fatalf("random-fallback id %q is not valid", id)
	}
}

func TestNormalizeMessageID(t *testing.T) {
	cases := map[string]string{
		"<ABC@example.com>": "abc@example.com",
		"  <X@Y>  ":         "x@y",
		"":                  "",
	}
	for in, want := range cases {
		if got := NormalizeMessageID(in); got != want {
			t.Errorf("NormalizeMessageID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsValidID(t *testing.T) {
	if !IsValidID("0123456789abcdef0123456789abcdef") {
		t.Error("expected valid id to pass")
	}
	if IsValidID("0123456789ABCDEF0123456789abcdef") {
		t.Error("uppercase hex should not be considered valid")
	}
	if IsValidID("too-short") {
		t.Error("short string should not be valid")
	}
}
