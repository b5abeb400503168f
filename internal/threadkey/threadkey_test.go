package threadkey

import "testing"

func TestNormalizeSubject(t *testing.T) {
	cases := map[string]string{
		"Re: Re: Fwd: Hello World  ": "hello world",
		"Antw: Vs: Meeting":          "meeting",
		"No prefix here":             "no prefix here",
	}
	for in, want := range cases {
		if got := NormalizeSubject(in); got != want {
			t.Errorf("NormalizeSubject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseReferences(t *testing.T) {
	refs := ParseReferences("<r1> <r2>  <r3>")
	want := []string{"<r1>", "<r2>", "<r3>"}
	if len(refs) != len(want) {
		t.Fatalf("got %v, want %v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("refs[%d] = %q, want %q", i, refs[i], want[i])
		}
	}
}

func TestNormalizeMessageID_SynthesizesBrackets(t *testing.T) {
	if got := NormalizeMessageID("plain@example.com"); got != "<plain@example.com>" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeMessageID("no-at-sign"); got != "" {
		t.Errorf("expected empty result for value without @ or brackets, got %q", got)
	}
}

func TestNormalizeInReplyTo_KeepsFirstOnly(t *testing.T) {
	got := NormalizeInReplyTo("<first@x> <second@y>")
	if got != "<first@x>" {
		t.Errorf("got %q, want <first@x>", got)
	}
}

func TestIsReply(t *testing.T) {
	if !IsReply("<a@b>", nil) {
		t.Error("in-reply-to present should be a reply")
	}
	if !IsReply("", []string{"<a@b>"}) {
		t.Error("non-empty references should be a reply")
	}
	if IsReply("", nil) {
		t.Error("no headers should not be a reply")
	}
}

func TestIsForward(t *testing.T) {
	if !IsForward("Fwd: hello") {
		t.Error("Fwd: should be detected as forward")
	}
	if !IsForward("Forwarded: hello") {
		t.Error("Forwarded: should be detected as forward")
	}
	if IsForward("Re: hello") {
		t.Error("Re: should not be detected as forward")
	}
}
