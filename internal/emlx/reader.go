// Package emlx parses the length-prefixed message-file container described
// in the host mail application's on-disk format: one message per file,
// framed as a decimal byte count, the raw RFC822 message, and an optional
// trailing serialized property dictionary.
package emlx

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mailmirror-dev/mailmirror/internal/fileutil"
	"github.com/rotisserie/eris"
	"howett.net/plist"
)

// appleEpoch is the reference instant for the plist "date-sent" field:
// 2001-01-01 00:00:00 UTC.
var appleEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// Container holds the raw RFC822 bytes plus any metadata recovered from the
// trailing property dictionary.
type Container struct {
	// Raw is the RFC822 message exactly as stored, before any charset
	// transcoding.
	Raw []byte

	// HostMetadata is non-nil only when a trailing property dictionary was
	// present and parsed successfully.
	HostMetadata *HostMetadata
}

// HostMetadata is the subset of the trailing property dictionary the core
// relies on.
type HostMetadata struct {
	DateSent    time.Time
	Flags       int
	OrigMailbox string
}

// ErrEmptyFile is returned by Parse when given a zero-length container.
var ErrEmptyFile = fmt.Errorf("emlx: empty file")

// Parse decodes a message-file container from raw bytes. Container framing
// failures (missing byte-count line, truncated body) are returned as errors;
// trailing-plist failures are swallowed (best-effort, per the container
// format's metadata-is-optional contract).
func Parse(data []byte) (*Container, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	newline := bytes.IndexByte(data, '\n')
	if newline < 0 {
		return nil, eris.New("emlx: no newline after byte count")
	}
	countStr := strings.TrimSpace(string(data[:newline]))
	byteCount, err := strconv.ParseInt(countStr, 10, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "emlx: invalid byte count %q", countStr)
	}
	if byteCount < 0 {
		return nil, eris.Errorf("emlx: negative byte count %d", byteCount)
	}

	mimeStart := newline + 1
	mimeEnd := int64(mimeStart) + byteCount
	if mimeEnd > int64(len(data)) {
		return nil, eris.Errorf(
			"emlx: byte count %d exceeds available bytes (%d)",
			byteCount, int64(len(data))-int64(mimeStart),
		)
	}

	c := &Container{Raw: data[mimeStart:mimeEnd]}
	if int(mimeEnd) < len(data) {
		c.HostMetadata = parsePlist(data[mimeEnd:])
	}
	return c, nil
}

// ParseFile reads and parses a message-file container from disk. The file
// is opened with no-follow semantics where the platform supports it, since
// message files live under a directory tree owned by another application.
func ParseFile(path string) (*Container, error) {
	f, err := fileutil.SecureOpenNoFollow(path)
	if err != nil {
		return nil, eris.Wrapf(err, "emlx: open %q", path)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, eris.Wrapf(err, "emlx: read %q", path)
	}
	return Parse(data)
}

// parsePlist decodes the trailing property dictionary into HostMetadata.
// Any failure (malformed XML, unexpected shape) is swallowed and nil is
// returned — the container framing itself already succeeded and the format
// treats metadata loss as non-fatal.
func parsePlist(data []byte) *HostMetadata {
	start := bytes.Index(data, []byte("<?xml"))
	if start < 0 {
		start = bytes.Index(data, []byte("<plist"))
	}
	if start < 0 {
		return nil
	}
	data = data[start:]

	var raw map[string]interface{}
	if _, err := plist.Unmarshal(data, &raw); err != nil {
		return nil
	}

	meta := &HostMetadata{}
	if v, ok := raw["date-sent"]; ok {
		if d, ok := toAppleDate(v); ok {
			meta.DateSent = d
		}
	}
	if v, ok := raw["flags"]; ok {
		if n, ok := toInt(v); ok {
			meta.Flags = n
		}
	}
	if v, ok := raw["original-mailbox"]; ok {
		if s, ok := v.(string); ok {
			meta.OrigMailbox = s
		}
	}
	return meta
}

// toAppleDate converts a plist numeric value (real or integer seconds since
// the Apple epoch) into a time.Time.
func toAppleDate(v interface{}) (time.Time, bool) {
	switch n := v.(type) {
	case float64:
		return appleEpoch.Add(time.Duration(n * float64(time.Second))), true
	case int64:
		return appleEpoch.Add(time.Duration(n) * time.Second), true
	case uint64:
		return appleEpoch.Add(time.Duration(n) * time.Second), true
	default:
		return time.Time{}, false
	}
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}
