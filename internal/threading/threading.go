// Package threading computes thread roots and maintains thread records and
// the thread/message junction, per the deterministic thread-root algorithm.
package threading

import (
	"context"
	"strings"
	"time"

	"github.com/mailmirror-dev/mailmirror/internal/idgen"
	"github.com/mailmirror-dev/mailmirror/internal/threadkey"
)

// Thread is the aggregate conversation record.
type Thread struct {
	ID              string
	Subject         string
	ParticipantCount int
	MessageCount    int
	FirstDate       time.Time
	LastDate        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Message is the minimal shape threading needs from a parsed/stored message.
type Message struct {
	ID         string
	MessageID  string
	InReplyTo  string
	References []string
	Subject    string
	SenderEmail string
	Date       time.Time
}

// Store is the persistence surface threading depends on. The Mirror Store
// implements this.
type Store interface {
	GetThread(ctx context.Context, threadID string) (*Thread, bool, error)
	UpsertThread(ctx context.Context, t *Thread) error
	SetMessageThread(ctx context.Context, messageID, threadID string) error
	AddMessageToThread(ctx context.Context, threadID, messageID string) error
	SenderEmailsInThread(ctx context.Context, threadID string) ([]string, error)
	RecomputeThreadPositions(ctx context.Context, threadID string) error
}

// Detector computes thread assignment and maintains thread aggregates.
type Detector struct {
	store Store
}

func NewDetector(store Store) *Detector {
	return &Detector{store: store}
}

// Root computes the thread-root string and its tag, per §4.5: references[0],
// else in_reply_to, else own message_id, else a subject fallback, else a
// unique non-grouping id.
func Root(m Message) (root, tag string) {
	if len(m.References) > 0 {
		return threadkey.StripBrackets(m.References[0]), "thread"
	}
	if m.InReplyTo != "" {
		return threadkey.StripBrackets(m.InReplyTo), "thread"
	}
	if m.MessageID != "" {
		return threadkey.StripBrackets(m.MessageID), "thread"
	}
	if norm := threadkey.NormalizeSubject(m.Subject); norm != "" {
		return norm, "subj"
	}
	return idgen.RandomTag(), "noid"
}

// ThreadID computes the final 32-hex thread ID for a message.
func ThreadID(m Message) string {
	root, tag := Root(m)
	return idgen.GenerateWithTag(tag, root)
}

// Assign admits message m into its computed thread: creates the thread
// record if new, updates aggregates if it exists, sets the message's
// thread_id, and inserts the junction row. Threading failures are non-fatal
// at the sync level — callers collect the returned error into a sync
// result rather than aborting.
func (d *Detector) Assign(ctx context.Context, m Message) (threadID string, err error) {
	threadID = ThreadID(m)

	existing, found, err := d.store.GetThread(ctx, threadID)
	if err != nil {
		return threadID, err
	}

	now := m.Date
	if now.IsZero() {
		now = existing.timeOrNow()
	}

	if !found {
		t := &Thread{
			ID:               threadID,
			Subject:          m.Subject,
			ParticipantCount: 1,
			MessageCount:     1,
			FirstDate:        now,
			LastDate:         now,
		}
		if err := d.store.UpsertThread(ctx, t); err != nil {
			return threadID, err
		}
	} else {
		t := *existing
		t.FirstDate = minTime(t.FirstDate, now)
		t.LastDate = maxTime(t.LastDate, now)
		t.MessageCount++
		if err := d.store.UpsertThread(ctx, &t); err != nil {
			return threadID, err
		}
	}

	if err := d.store.SetMessageThread(ctx, m.ID, threadID); err != nil {
		return threadID, err
	}
	if err := d.store.AddMessageToThread(ctx, threadID, m.ID); err != nil {
		return threadID, err
	}

	senders, err := d.store.SenderEmailsInThread(ctx, threadID)
	if err != nil {
		return threadID, err
	}
	if err := d.recomputeParticipantCount(ctx, threadID, senders); err != nil {
		return threadID, err
	}

	return threadID, d.store.RecomputeThreadPositions(ctx, threadID)
}

func (d *Detector) recomputeParticipantCount(ctx context.Context, threadID string, senders []string) error {
	t, found, err := d.store.GetThread(ctx, threadID)
	if err != nil || !found {
		return err
	}
	unique := make(map[string]bool, len(senders))
	for _, s := range senders {
		unique[strings.ToLower(s)] = true
	}
	count := len(unique)
	if count < 1 {
		count = 1
	}
	t.ParticipantCount = count
	return d.store.UpsertThread(ctx, t)
}

func (t *Thread) timeOrNow() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.LastDate
}

func minTime(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.After(b) {
		return a
	}
	return b
}

// IsReply reports whether a message carries reply markers.
func IsReply(inReplyTo string, references []string) bool {
	return threadkey.IsReply(inReplyTo, references)
}

// IsForward reports whether a subject line marks a forwarded message.
func IsForward(subject string) bool {
	return threadkey.IsForward(subject)
}
