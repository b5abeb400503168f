// Package idgen produces deterministic, content-addressed identifiers for
// messages and threads: the first 128 bits (32 hex characters) of a SHA-256
// digest over a preference-ordered hash input.
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// HeaderFields carries the header values considered, in order, when no
// Message-ID is available. At least two of Subject, From, Date and RowID
// must be present for the header-tuple tier to apply.
type HeaderFields struct {
	Subject string
	From    string
	Date    int64 // Unix seconds; used only when HasDate is set
	HasDate bool
	RowID   int64
	HasRow  bool
}

// Generate produces a 32-character lowercase hex ID using the preference
// order from the stable ID scheme:
//
//  1. msgid:<normalized message-id>
//  2. hdr:<k1>:<v1>|<k2>:<v2>|...  (>= 2 pairs required)
//  3. row:<host_row_id>
//  4. a random ID (last resort, not stable across invocations)
func Generate(messageID string, hdr HeaderFields) string {
	if input, ok := fromMessageID(messageID); ok {
		return hash(input)
	}
	if input, ok := fromHeaders(hdr); ok {
		return hash(input)
	}
	if hdr.HasRow {
		return hash(fmt.Sprintf("row:%d", hdr.RowID))
	}
	return hash("random:" + uuid.NewString())
}

// GenerateWithTag hashes an arbitrary tagged input (used for thread IDs,
// e.g. "thread:<root>" or "subj:<normalized>" or "noid:<uuid>").
func GenerateWithTag(tag, value string) string {
	return hash(tag + ":" + value)
}

// RandomTag returns a fresh random value suitable for a "noid:" tagged ID
// when a message cannot be grouped with any other.
func RandomTag() string {
	return uuid.NewString()
}

// IsValidID reports whether s is a well-formed 32-character lowercase hex ID.
func IsValidID(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

func fromMessageID(messageID string) (string, bool) {
	norm := NormalizeMessageID(messageID)
	if norm == "" {
		return "", false
	}
	return "msgid:" + norm, true
}

// NormalizeMessageID strips angle brackets, trims whitespace, and lowercases
// a Message-ID for hashing purposes.
func NormalizeMessageID(messageID string) string {
	s := strings.TrimSpace(messageID)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	s = strings.TrimSpace(s)
	return strings.ToLower(s)
}

func fromHeaders(hdr HeaderFields) (string, bool) {
	var pairs []string
	if hdr.Subject != "" {
		pairs = append(pairs, "subj:"+hdr.Subject)
	}
	if hdr.From != "" {
		pairs = append(pairs, "from:"+strings.ToLower(hdr.From))
	}
	if hdr.HasDate {
		pairs = append(pairs, "date:"+strconv.FormatInt(hdr.Date, 10))
	}
	if hdr.HasRow {
		pairs = append(pairs, "rowid:"+strconv.FormatInt(hdr.RowID, 10))
	}
	if len(pairs) < 2 {
		return "", false
	}
	return "hdr:" + strings.Join(pairs, "|"), true
}

func hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}
