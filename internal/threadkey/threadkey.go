// Package threadkey normalizes the threading headers (Message-ID,
// In-Reply-To, References) into canonical forms, and normalizes subjects
// for the subject-fallback threading path.
package threadkey

import (
	"regexp"
	"strings"
)

var angleTokenRe = regexp.MustCompile(`<[^<>\s]+>`)

// ExtractAngleTokens returns every "<...>" token in s, in order, with no
// internal whitespace. Used for both References parsing and defensive
// re-extraction of In-Reply-To/Message-ID.
func ExtractAngleTokens(s string) []string {
	return angleTokenRe.FindAllString(s, -1)
}

// NormalizeMessageID returns the canonical external form of a message-id:
// angle-bracketed. If raw has no angle brackets but contains "@", one is
// synthesized. Returns "" if raw is empty after trimming.
func NormalizeMessageID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if tokens := ExtractAngleTokens(s); len(tokens) > 0 {
		return tokens[0]
	}
	if strings.Contains(s, "@") {
		return "<" + s + ">"
	}
	return ""
}

// NormalizeInReplyTo keeps only the first id when multiple are present.
func NormalizeInReplyTo(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if tokens := ExtractAngleTokens(s); len(tokens) > 0 {
		return tokens[0]
	}
	if strings.Contains(s, "@") {
		return "<" + s + ">"
	}
	return ""
}

// ParseReferences extracts every "<...>" token from raw, in order.
func ParseReferences(raw string) []string {
	return ExtractAngleTokens(raw)
}

// StripBrackets removes a single pair of surrounding angle brackets, trims,
// and lowercases — the canonical "internal" form used for hashing.
func StripBrackets(id string) string {
	s := strings.TrimSpace(id)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return strings.ToLower(strings.TrimSpace(s))
}

var (
	// Reply/forward prefixes recognized across several locales. Matched
	// case-insensitively, possibly repeated/nested, at the start of the
	// subject.
	prefixRe = regexp.MustCompile(`(?i)^(re|fwd?|aw|antw|vs|sv|odp|r)\s*:\s*`)
	wsRe     = regexp.MustCompile(`\s+`)
)

// NormalizeSubject strips repeated leading reply/forward prefixes,
// collapses internal whitespace, trims, and lowercases.
func NormalizeSubject(subject string) string {
	s := subject
	for {
		stripped := prefixRe.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	s = wsRe.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// forwardPrefixRe matches a normalized-but-for-case subject's forward marker
// for IsForward's purposes; it operates on the raw (non-normalized) subject
// since normalization already strips the prefix it would look for.
var forwardPrefixRe = regexp.MustCompile(`(?i)^\s*(fwd?|forwarded)\s*:`)

// IsForward reports whether subject begins with a forward marker
// (fwd|fw|forwarded), case-insensitive, before any normalization.
func IsForward(subject string) bool {
	return forwardPrefixRe.MatchString(subject)
}

// IsReply reports whether a message is a reply: either inReplyTo is present
// or references is non-empty.
func IsReply(inReplyTo string, references []string) bool {
	return strings.TrimSpace(inReplyTo) != "" || len(references) > 0
}
