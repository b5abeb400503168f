// Package mailboxkind classifies a mailbox name/URL into one of the
// well-known kinds the sync engine treats specially, using a
// case-insensitive, multilingual keyword set.
package mailboxkind

import "strings"

// Kind is one of the well-known mailbox roles.
type Kind string

const (
	Inbox   Kind = "inbox"
	Archive Kind = "archive"
	Trash   Kind = "trash"
	Sent    Kind = "sent"
	Drafts  Kind = "drafts"
	Junk    Kind = "junk"
	Other   Kind = "other"
)

// keyword groups, checked in this order; first match wins.
var groups = []struct {
	kind     Kind
	keywords []string
}{
	{Inbox, []string{"inbox"}},
	{Archive, []string{"archive", "all mail", "archives", "archivo", "archiv"}},
	{Trash, []string{"trash", "deleted", "deleted messages", "papelera", "corbeille", "papierkorb"}},
	{Sent, []string{"sent", "sent messages", "sent mail"}},
	{Drafts, []string{"drafts", "draft"}},
	{Junk, []string{"junk", "spam", "junk e-mail"}},
}

// Classify maps a mailbox name and/or URL to a Kind. Matching is
// case-insensitive and checks both containment and exact equality against
// the keyword set; name and url are both consulted (url as a fallback or
// supplement, since the host's mailbox URL path component is frequently the
// more reliable signal for non-English installs).
func Classify(name, url string) Kind {
	n := strings.ToLower(strings.TrimSpace(name))
	u := strings.ToLower(strings.TrimSpace(url))
	for _, g := range groups {
		for _, kw := range g.keywords {
			if n == kw || u == kw || strings.Contains(n, kw) || strings.Contains(u, kw) {
				return g.kind
			}
		}
	}
	return Other
}

// ForwardSyncTarget maps a Kind to the mailbox_status value written during
// the incremental mailbox-move phase (§4.8 phase 4). The ok return is false
// for kinds that phase should skip (sent, drafts, junk, other).
func ForwardSyncTarget(k Kind) (status string, ok bool) {
	switch k {
	case Inbox:
		return "inbox", true
	case Archive:
		return "archived", true
	case Trash:
		return "deleted", true
	default:
		return "", false
	}
}
