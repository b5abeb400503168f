package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mailmirror-dev/mailmirror/internal/threading"
)

// GetThread satisfies threading.Store: fetches a thread record by id.
func (s *Store) GetThread(ctx context.Context, threadID string) (*threading.Thread, bool, error) {
	var t threading.Thread
	var firstDate, lastDate, createdAt, updatedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subject, participant_count, message_count, first_date, last_date, created_at, updated_at
		FROM threads WHERE id = ?`, threadID,
	).Scan(&t.ID, &t.Subject, &t.ParticipantCount, &t.MessageCount, &firstDate, &lastDate, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "store: get thread")
	}
	t.FirstDate = firstDate.Time
	t.LastDate = lastDate.Time
	t.CreatedAt = createdAt.Time
	t.UpdatedAt = updatedAt.Time
	return &t, true, nil
}

// UpsertThread satisfies threading.Store: creates or fully overwrites a
// thread's mutable aggregate columns.
func (s *Store) UpsertThread(ctx context.Context, t *threading.Thread) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, subject, participant_count, message_count, first_date, last_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			subject = excluded.subject,
			participant_count = excluded.participant_count,
			message_count = excluded.message_count,
			first_date = excluded.first_date,
			last_date = excluded.last_date,
			updated_at = datetime('now')
	`, t.ID, t.Subject, t.ParticipantCount, t.MessageCount, nullableTime(t.FirstDate), nullableTime(t.LastDate))
	if err != nil {
		return eris.Wrap(err, "store: upsert thread")
	}
	return nil
}

// SetMessageThread satisfies threading.Store: points a message at its thread.
func (s *Store) SetMessageThread(ctx context.Context, messageID, threadID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET thread_id = ? WHERE id = ?`, threadID, messageID)
	if err != nil {
		return eris.Wrap(err, "store: set message thread")
	}
	return nil
}

// AddMessageToThread satisfies threading.Store: inserts the junction row.
func (s *Store) AddMessageToThread(ctx context.Context, threadID, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thread_messages (thread_id, message_id) VALUES (?, ?)
		ON CONFLICT(thread_id, message_id) DO NOTHING
	`, threadID, messageID)
	if err != nil {
		return eris.Wrap(err, "store: add message to thread")
	}
	return nil
}

// RemoveMessageFromThread deletes the junction row for a message.
func (s *Store) RemoveMessageFromThread(ctx context.Context, threadID, messageID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM thread_messages WHERE thread_id = ? AND message_id = ?`, threadID, messageID)
	return err
}

// SenderEmailsInThread satisfies threading.Store: returns sender_email for
// every message currently in the thread (including duplicates; the caller
// dedupes case-insensitively).
func (s *Store) SenderEmailsInThread(ctx context.Context, threadID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.sender_email FROM messages m
		JOIN thread_messages tm ON tm.message_id = m.id
		WHERE tm.thread_id = ? AND m.sender_email IS NOT NULL AND m.sender_email != ''
	`, threadID)
	if err != nil {
		return nil, eris.Wrap(err, "store: sender emails in thread")
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

// RecomputeThreadPositions satisfies threading.Store: assigns each message
// in the thread its 1-based position ordered by date, and records the
// thread's total message count alongside it.
func (s *Store) RecomputeThreadPositions(ctx context.Context, threadID string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id FROM messages m
		JOIN thread_messages tm ON tm.message_id = m.id
		WHERE tm.thread_id = ?
		ORDER BY COALESCE(m.date_sent, m.date_received) ASC, m.id ASC
	`, threadID)
	if err != nil {
		return eris.Wrap(err, "store: recompute thread positions query")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	total := len(ids)
	return s.withTx(func(tx *sql.Tx) error {
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx, `UPDATE messages SET thread_position = ?, thread_total = ? WHERE id = ?`, i+1, total, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetMessageIDsInThread returns every message id in the thread, in stored
// thread_position order.
func (s *Store) GetMessageIDsInThread(ctx context.Context, threadID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id FROM messages m
		JOIN thread_messages tm ON tm.message_id = m.id
		WHERE tm.thread_id = ? AND m.is_deleted = 0
		ORDER BY m.thread_position ASC
	`, threadID)
	if err != nil {
		return nil, eris.Wrap(err, "store: message ids in thread")
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// GetThreadIDsForMessage returns the (normally single) thread ids a message
// belongs to.
func (s *Store) GetThreadIDsForMessage(ctx context.Context, messageID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT thread_id FROM thread_messages WHERE message_id = ?`, messageID)
	if err != nil {
		return nil, eris.Wrap(err, "store: thread ids for message")
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// IsMessageInThread reports junction membership.
func (s *Store) IsMessageInThread(ctx context.Context, threadID, messageID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM thread_messages WHERE thread_id = ? AND message_id = ?`, threadID, messageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetMessageCountInThread returns the thread's stored message_count.
func (s *Store) GetMessageCountInThread(ctx context.Context, threadID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT message_count FROM threads WHERE id = ?`, threadID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}

// ThreadListSort selects the ordering for GetThreads.
type ThreadListSort string

const (
	ThreadSortRecent ThreadListSort = "recent"
	ThreadSortOldest ThreadListSort = "oldest"
	ThreadSortSize   ThreadListSort = "size"
)

// ThreadListOptions parameterizes GetThreads.
type ThreadListOptions struct {
	Limit       int
	Offset      int
	Sort        ThreadListSort
	Participant string // optional sender email filter
}

// GetThreads lists threads with pagination and optional participant filter.
func (s *Store) GetThreads(ctx context.Context, opts ThreadListOptions) ([]*threading.Thread, error) {
	order := "last_date DESC"
	switch opts.Sort {
	case ThreadSortOldest:
		order = "first_date ASC"
	case ThreadSortSize:
		order = "message_count DESC"
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT id, subject, participant_count, message_count, first_date, last_date, created_at, updated_at
		FROM threads`)
	args := []interface{}{}
	if opts.Participant != "" {
		query += ` WHERE id IN (
			SELECT DISTINCT tm.thread_id FROM thread_messages tm
			JOIN messages m ON m.id = tm.message_id
			WHERE LOWER(m.sender_email) = LOWER(?)
		)`
		args = append(args, opts.Participant)
	}
	query += fmt.Sprintf(` ORDER BY %s LIMIT ? OFFSET ?`, order)
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: get threads")
	}
	defer func() { _ = rows.Close() }()

	var out []*threading.Thread
	for rows.Next() {
		var t threading.Thread
		var firstDate, lastDate, createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.Subject, &t.ParticipantCount, &t.MessageCount, &firstDate, &lastDate, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		t.FirstDate, t.LastDate, t.CreatedAt, t.UpdatedAt = firstDate.Time, lastDate.Time, createdAt.Time, updatedAt.Time
		out = append(out, &t)
	}
	return out, rows.Err()
}

// GetThreadCount returns the total thread count, optionally filtered by
// participant.
func (s *Store) GetThreadCount(ctx context.Context, participant string) (int, error) {
	query := `SELECT COUNT(*) FROM threads`
	args := []interface{}{}
	if participant != "" {
		query += ` WHERE id IN (
			SELECT DISTINCT tm.thread_id FROM thread_messages tm
			JOIN messages m ON m.id = tm.message_id
			WHERE LOWER(m.sender_email) = LOWER(?)
		)`
		args = append(args, participant)
	}
	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
