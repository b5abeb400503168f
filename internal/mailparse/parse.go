// Package mailparse turns a raw RFC822 message (as recovered from an emlx
// container) into the structured shape the rest of the core consumes:
// folded headers decoded, address lists parsed, references extracted,
// dates normalized to UTC, MIME multipart walked into text/html bodies
// plus attachment metadata.
package mailparse

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/rotisserie/eris"

	"github.com/mailmirror-dev/mailmirror/internal/emlx"
	"github.com/mailmirror-dev/mailmirror/internal/textutil"
)

// Address is a single parsed address-list entry.
type Address struct {
	Name   string
	Email  string
	Domain string
}

// Attachment is a non-body MIME part.
type Attachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Size        int
	ContentHash string
	Content     []byte
	IsInline    bool
}

// Message is the structured form of a parsed message, combining the
// RFC822/MIME content with any host metadata recovered from the emlx
// container's trailing property dictionary.
type Message struct {
	Subject     string
	From        []Address
	To          []Address
	Cc          []Address
	Bcc         []Address
	MessageID   string
	InReplyTo   string
	References  []string
	Date        time.Time
	BodyText    string
	BodyHTML    string
	Attachments []Attachment
	ParseErrors []string

	// HostMetadata is populated only when the emlx container carried a
	// trailing property dictionary.
	HostMetadata *emlx.HostMetadata
}

// ParseContainer parses an emlx.Container's raw RFC822 bytes into a Message,
// carrying over any host metadata already recovered from the container.
func ParseContainer(c *emlx.Container) (*Message, error) {
	msg, err := Parse(c.Raw)
	if err != nil {
		return nil, err
	}
	msg.HostMetadata = c.HostMetadata
	return msg, nil
}

// Parse parses raw RFC822/MIME bytes into a Message. Malformed charsets are
// recovered via the textutil encoding-fallback chain rather than failing
// the whole parse; genuine enmime failures are returned as errors.
func Parse(raw []byte) (*Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "mailparse: read envelope")
	}

	msg := &Message{
		Subject:   textutil.EnsureUTF8(env.GetHeader("Subject")),
		MessageID: normalizeToken(env.GetHeader("Message-ID")),
		InReplyTo: normalizeToken(env.GetHeader("In-Reply-To")),
		BodyText:  textutil.EnsureUTF8(env.Text),
		BodyHTML:  textutil.EnsureUTF8(env.HTML),
	}

	if dateStr := env.GetHeader("Date"); dateStr != "" {
		if t, err := parseDate(dateStr); err == nil && !t.IsZero() {
			msg.Date = t
		}
	}

	msg.From = parseAddressList(env, "From")
	msg.To = parseAddressList(env, "To")
	msg.Cc = parseAddressList(env, "Cc")
	msg.Bcc = parseAddressList(env, "Bcc")

	if refs := env.GetHeader("References"); refs != "" {
		msg.References = parseReferences(refs)
	}

	msg.Attachments = append(msg.Attachments, processParts(env.Attachments, false)...)
	msg.Attachments = append(msg.Attachments, processParts(env.Inlines, true)...)

	for _, e := range env.Errors {
		msg.ParseErrors = append(msg.ParseErrors, e.Error())
	}

	return msg, nil
}

func normalizeToken(s string) string {
	return strings.TrimSpace(s)
}

func parseAddressList(env *enmime.Envelope, header string) []Address {
	list, err := env.AddressList(header)
	if err != nil || list == nil {
		return nil
	}
	out := make([]Address, 0, len(list))
	for _, a := range list {
		if a.Address == "" {
			continue
		}
		out = append(out, Address{
			Name:   textutil.EnsureUTF8(a.Name),
			Email:  strings.ToLower(a.Address),
			Domain: extractDomain(a.Address),
		})
	}
	return out
}

func extractDomain(email string) string {
	if idx := strings.LastIndex(email, "@"); idx >= 0 {
		return strings.ToLower(email[idx+1:])
	}
	return ""
}

func isBodyPart(part *enmime.Part) bool {
	contentType := strings.ToLower(part.ContentType)
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if contentType != "text/plain" && contentType != "text/html" {
		return false
	}
	if part.FileName != "" {
		return false
	}
	disposition := strings.ToLower(part.Disposition)
	if idx := strings.Index(disposition, ";"); idx >= 0 {
		disposition = strings.TrimSpace(disposition[:idx])
	}
	return disposition != "attachment"
}

func processParts(parts []*enmime.Part, isInline bool) []Attachment {
	var out []Attachment
	for _, part := range parts {
		if !isBodyPart(part) {
			out = append(out, makeAttachment(part, isInline))
		}
	}
	return out
}

func makeAttachment(part *enmime.Part, isInline bool) Attachment {
	content := part.Content
	hash := sha256.Sum256(content)
	return Attachment{
		Filename:    part.FileName,
		ContentType: part.ContentType,
		ContentID:   part.ContentID,
		Size:        len(content),
		ContentHash: hex.EncodeToString(hash[:]),
		Content:     content,
		IsInline:    isInline,
	}
}

func parseReferences(refs string) []string {
	var out []string
	for _, ref := range strings.Fields(refs) {
		ref = strings.Trim(ref, "<>")
		if ref != "" {
			out = append(out, ref)
		}
	}
	return out
}

var dateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	"02 Jan 2006 15:04:05 -0700",
	"02 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	"Mon, 02 Jan 2006 15:04:05 -0700 (MST)",
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

func parseDate(s string) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")

	baseStr := s
	if idx := strings.LastIndex(s, "("); idx > 0 {
		baseStr = strings.TrimSpace(s[:idx])
	}

	for _, format := range dateFormats {
		if t, err := time.Parse(format, baseStr); err == nil {
			return t.UTC(), nil
		}
	}
	if baseStr != s {
		for _, format := range dateFormats {
			if t, err := time.Parse(format, s); err == nil {
				return t.UTC(), nil
			}
		}
	}
	return time.Time{}, eris.Errorf("mailparse: unrecognized date format %q", s)
}

var blockTagRe = regexp.MustCompile(`(?i)<(/?)(p|div|br|hr|h[1-6]|li|tr|td|th|blockquote|pre|table|ul|ol|dl|dt|dd)[^>]*>`)
var scriptTagRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
var styleTagRe = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
var headTagRe = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// StripHTML renders HTML as plain text for search-index fallback when a
// message carries no text/plain part.
func StripHTML(rawHTML string) string {
	text := scriptTagRe.ReplaceAllString(rawHTML, "")
	text = styleTagRe.ReplaceAllString(text, "")
	text = headTagRe.ReplaceAllString(text, "")
	text = blockTagRe.ReplaceAllString(text, "\n")
	text = htmlTagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, " ", " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}

// BodyTextOrStripped returns the best available plain-text body, falling back to a
// stripped rendering of the HTML body.
func (m *Message) BodyTextOrStripped() string {
	if m.BodyText != "" {
		return m.BodyText
	}
	if m.BodyHTML != "" {
		return StripHTML(m.BodyHTML)
	}
	return ""
}
