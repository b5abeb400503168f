package testutil

import (
	"database/sql"
	"time"

	"github.com/mailmirror-dev/mailmirror/internal/store"
)

// MessageBuilder provides a fluent API for constructing store.Message values in tests.
type MessageBuilder struct {
	m store.Message
}

// NewMessage creates a builder with sensible defaults for the given id.
func NewMessage(id string) *MessageBuilder {
	return &MessageBuilder{
		m: store.Message{
			ID:            id,
			MailboxID:     1,
			Subject:       sql.NullString{String: "Test Subject", Valid: true},
			SenderName:    sql.NullString{String: "Sender", Valid: true},
			SenderEmail:   sql.NullString{String: "sender@example.com", Valid: true},
			DateSent:      sql.NullTime{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true},
			DateReceived:  sql.NullTime{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true},
			MailboxStatus: "inbox",
			PendingSyncAction: "none",
		},
	}
}

func (b *MessageBuilder) WithSubject(s string) *MessageBuilder {
	b.m.Subject = sql.NullString{String: s, Valid: true}
	return b
}

func (b *MessageBuilder) WithSenderEmail(e string) *MessageBuilder {
	b.m.SenderEmail = sql.NullString{String: e, Valid: true}
	return b
}

func (b *MessageBuilder) WithSenderName(n string) *MessageBuilder {
	b.m.SenderName = sql.NullString{String: n, Valid: true}
	return b
}

func (b *MessageBuilder) WithDateSent(t time.Time) *MessageBuilder {
	b.m.DateSent = sql.NullTime{Time: t, Valid: true}
	return b
}

func (b *MessageBuilder) WithMailboxID(id int64) *MessageBuilder {
	b.m.MailboxID = id
	return b
}

func (b *MessageBuilder) WithMessageID(id string) *MessageBuilder {
	b.m.MessageID = sql.NullString{String: id, Valid: true}
	return b
}

func (b *MessageBuilder) WithInReplyTo(id string) *MessageBuilder {
	b.m.InReplyTo = sql.NullString{String: id, Valid: true}
	return b
}

func (b *MessageBuilder) WithReferences(refs ...string) *MessageBuilder {
	b.m.ThreadingReferences = refs
	return b
}

func (b *MessageBuilder) WithHasAttachments(has bool) *MessageBuilder {
	b.m.HasAttachments = has
	return b
}

func (b *MessageBuilder) WithBodyText(s string) *MessageBuilder {
	b.m.BodyText = sql.NullString{String: s, Valid: true}
	return b
}

func (b *MessageBuilder) WithBodyHTML(s string) *MessageBuilder {
	b.m.BodyHTML = sql.NullString{String: s, Valid: true}
	return b
}

func (b *MessageBuilder) WithFlagged(flagged bool) *MessageBuilder {
	b.m.IsFlagged = flagged
	return b
}

func (b *MessageBuilder) WithRead(read bool) *MessageBuilder {
	b.m.IsRead = read
	return b
}

func (b *MessageBuilder) WithDeleted(deleted bool) *MessageBuilder {
	b.m.IsDeleted = deleted
	return b
}

func (b *MessageBuilder) WithThreadID(id string) *MessageBuilder {
	b.m.ThreadID = sql.NullString{String: id, Valid: true}
	return b
}

func (b *MessageBuilder) Build() store.Message {
	return b.m
}

// BuildPtr returns a pointer to the constructed Message.
func (b *MessageBuilder) BuildPtr() *store.Message {
	m := b.m
	return &m
}
