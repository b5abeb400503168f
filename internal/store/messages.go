package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Message is one mirror row, corresponding to §3's Message attributes.
type Message struct {
	ID                 string
	AppleRowID         sql.NullInt64
	MessageID          sql.NullString
	MailboxID          int64
	AccountID          sql.NullString
	Subject            sql.NullString
	SenderName         sql.NullString
	SenderEmail        sql.NullString
	DateSent           sql.NullTime
	DateReceived       sql.NullTime
	IsRead             bool
	IsFlagged          bool
	IsDeleted          bool
	HasAttachments     bool
	FilePath           sql.NullString
	BodyText           sql.NullString
	BodyHTML           sql.NullString
	ExportPath         sql.NullString
	MailboxStatus      string // inbox | archived | deleted
	PendingSyncAction  string // archive | delete | none
	LastKnownMailboxID sql.NullInt64
	InReplyTo          sql.NullString
	ThreadingReferences []string // stored as JSON
	ThreadID           sql.NullString
	ThreadPosition     sql.NullInt64
	ThreadTotal        sql.NullInt64
}

// UpsertMessage inserts or updates a message by id, setting every mutable
// column unconditionally on conflict — the "later form" of the two
// upsert variants observed in the source, per the spec's explicit
// preference.
func (s *Store) UpsertMessage(m *Message) error {
	refs := encodeReferences(m.ThreadingReferences)
	_, err := s.db.Exec(`
		INSERT INTO messages (
			id, apple_rowid, message_id, mailbox_id, account_id, subject,
			sender_name, sender_email, date_sent, date_received,
			is_read, is_flagged, is_deleted, has_attachments, file_path,
			body_text, body_html, export_path, mailbox_status,
			pending_sync_action, last_known_mailbox_id, in_reply_to,
			threading_references, thread_id, thread_position, thread_total,
			synced_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			apple_rowid = excluded.apple_rowid,
			message_id = excluded.message_id,
			mailbox_id = excluded.mailbox_id,
			account_id = excluded.account_id,
			subject = excluded.subject,
			sender_name = excluded.sender_name,
			sender_email = excluded.sender_email,
			date_sent = excluded.date_sent,
			date_received = excluded.date_received,
			is_read = excluded.is_read,
			is_flagged = excluded.is_flagged,
			is_deleted = excluded.is_deleted,
			has_attachments = excluded.has_attachments,
			file_path = excluded.file_path,
			body_text = excluded.body_text,
			body_html = excluded.body_html,
			export_path = excluded.export_path,
			mailbox_status = excluded.mailbox_status,
			pending_sync_action = excluded.pending_sync_action,
			last_known_mailbox_id = excluded.last_known_mailbox_id,
			in_reply_to = excluded.in_reply_to,
			threading_references = excluded.threading_references,
			thread_id = excluded.thread_id,
			thread_position = excluded.thread_position,
			thread_total = excluded.thread_total,
			updated_at = datetime('now')
	`,
		m.ID, m.AppleRowID, m.MessageID, m.MailboxID, m.AccountID, m.Subject,
		m.SenderName, m.SenderEmail, m.DateSent, m.DateReceived,
		m.IsRead, m.IsFlagged, m.IsDeleted, m.HasAttachments, m.FilePath,
		m.BodyText, m.BodyHTML, m.ExportPath, nonEmptyOr(m.MailboxStatus, "inbox"),
		nonEmptyOr(m.PendingSyncAction, "none"), m.LastKnownMailboxID, m.InReplyTo,
		refs, m.ThreadID, m.ThreadPosition, m.ThreadTotal,
	)
	if err != nil {
		return eris.Wrap(err, "store: upsert message")
	}
	return nil
}

func nonEmptyOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func encodeReferences(refs []string) string {
	if len(refs) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, r := range refs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(r, `"`, `\"`))
		b.WriteByte('"')
	}
	b.WriteByte(']')
	return b.String()
}

// BatchUpsertResult reports the outcome of a bulk upsert.
type BatchUpsertResult struct {
	Inserted int
	Updated  int
	Failed   int
	Errors   []string
	Duration time.Duration
}

// BatchUpsertMessages upserts ms in batches, disabling the FTS triggers for
// the duration (avoiding O(n^2) FTS maintenance cost) and rebuilding the
// index once at the end, per §4.7.
func (s *Store) BatchUpsertMessages(ms []*Message, batchSize int) (*BatchUpsertResult, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	start := time.Now()
	result := &BatchUpsertResult{}

	err := s.withTx(func(tx *sql.Tx) error {
		if err := s.disableFTSTriggers(tx); err != nil {
			return eris.Wrap(err, "store: disable fts triggers")
		}
		for i := 0; i < len(ms); i += batchSize {
			end := i + batchSize
			if end > len(ms) {
				end = len(ms)
			}
			if err := s.upsertBatchTx(tx, ms[i:end], result); err != nil {
				return err
			}
		}
		if err := s.recreateFTSTriggers(tx); err != nil {
			return eris.Wrap(err, "store: recreate fts triggers")
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	if err := s.withTx(func(tx *sql.Tx) error { return s.rebuildFTS(tx) }); err != nil {
		return result, eris.Wrap(err, "store: rebuild fts index")
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (s *Store) upsertBatchTx(tx *sql.Tx, batch []*Message, result *BatchUpsertResult) error {
	for _, m := range batch {
		err := tx.QueryRow(`SELECT 1 FROM messages WHERE id = ?`, m.ID).Scan(new(int))
		existedBefore := err == nil

		refs := encodeReferences(m.ThreadingReferences)
		_, execErr := tx.Exec(`
			INSERT INTO messages (
				id, apple_rowid, message_id, mailbox_id, account_id, subject,
				sender_name, sender_email, date_sent, date_received,
				is_read, is_flagged, is_deleted, has_attachments, file_path,
				body_text, body_html, export_path, mailbox_status,
				pending_sync_action, last_known_mailbox_id, in_reply_to,
				threading_references, thread_id, thread_position, thread_total,
				synced_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
			ON CONFLICT(id) DO UPDATE SET
				apple_rowid = excluded.apple_rowid,
				message_id = excluded.message_id,
				mailbox_id = excluded.mailbox_id,
				account_id = excluded.account_id,
				subject = excluded.subject,
				sender_name = excluded.sender_name,
				sender_email = excluded.sender_email,
				date_sent = excluded.date_sent,
				date_received = excluded.date_received,
				is_read = excluded.is_read,
				is_flagged = excluded.is_flagged,
				is_deleted = excluded.is_deleted,
				has_attachments = excluded.has_attachments,
				file_path = excluded.file_path,
				body_text = excluded.body_text,
				body_html = excluded.body_html,
				export_path = excluded.export_path,
				mailbox_status = excluded.mailbox_status,
				pending_sync_action = excluded.pending_sync_action,
				last_known_mailbox_id = excluded.last_known_mailbox_id,
				in_reply_to = excluded.in_reply_to,
				threading_references = excluded.threading_references,
				thread_id = excluded.thread_id,
				thread_position = excluded.thread_position,
				thread_total = excluded.thread_total,
				updated_at = datetime('now')
		`,
			m.ID, m.AppleRowID, m.MessageID, m.MailboxID, m.AccountID, m.Subject,
			m.SenderName, m.SenderEmail, m.DateSent, m.DateReceived,
			m.IsRead, m.IsFlagged, m.IsDeleted, m.HasAttachments, m.FilePath,
			m.BodyText, m.BodyHTML, m.ExportPath, nonEmptyOr(m.MailboxStatus, "inbox"),
			nonEmptyOr(m.PendingSyncAction, "none"), m.LastKnownMailboxID, m.InReplyTo,
			refs, m.ThreadID, m.ThreadPosition, m.ThreadTotal,
		)
		if execErr != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", m.ID, execErr))
			continue
		}
		if existedBefore {
			result.Updated++
		} else {
			result.Inserted++
		}
	}
	return nil
}

// MessageExistsBatch reports which apple_rowids already exist in the given
// mailbox, mapping apple_rowid -> mirror id.
func (s *Store) MessageExistsBatch(mailboxID int64, rowIDs []int64) (map[int64]string, error) {
	result := make(map[int64]string)
	if len(rowIDs) == 0 {
		return result, nil
	}
	err := queryInChunks(s.db, rowIDs, []interface{}{mailboxID},
		`SELECT apple_rowid, id FROM messages WHERE mailbox_id = ? AND apple_rowid IN (%s)`,
		func(rows *sql.Rows) error {
			var rowID int64
			var id string
			if err := rows.Scan(&rowID, &id); err != nil {
				return err
			}
			result[rowID] = id
			return nil
		})
	if err != nil {
		return nil, eris.Wrap(err, "store: message exists batch")
	}
	return result, nil
}

// UpdateMessageStatus updates the read/flagged bits for a message.
func (s *Store) UpdateMessageStatus(id string, isRead, isFlagged bool) error {
	_, err := s.db.Exec(`UPDATE messages SET is_read = ?, is_flagged = ?, updated_at = datetime('now') WHERE id = ?`,
		isRead, isFlagged, id)
	return err
}

// UpdateMailboxStatus sets mailbox_status on a message.
func (s *Store) UpdateMailboxStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE messages SET mailbox_status = ?, updated_at = datetime('now') WHERE id = ?`, status, id)
	return err
}

// BeginPendingSync sets mailbox_status and pending_sync_action together in
// one statement, per §4.9 step 2's atomicity requirement.
func (s *Store) BeginPendingSync(id, targetStatus, action string) error {
	_, err := s.db.Exec(`
		UPDATE messages SET mailbox_status = ?, pending_sync_action = ?, updated_at = datetime('now')
		WHERE id = ?`, targetStatus, action, id)
	return err
}

// SetPendingSyncAction records a pending backward-sync intent.
func (s *Store) SetPendingSyncAction(id, action string) error {
	_, err := s.db.Exec(`UPDATE messages SET pending_sync_action = ?, updated_at = datetime('now') WHERE id = ?`, action, id)
	return err
}

// ClearPendingSyncAction clears the pending action after a successful push.
func (s *Store) ClearPendingSyncAction(id string) error {
	return s.SetPendingSyncAction(id, "none")
}

// SoftDeleteByAppleRowIDs marks messages absent from the host as deleted,
// in chunks of 500 to stay within SQLite's parameter limit.
func (s *Store) SoftDeleteByAppleRowIDs(mailboxID int64, rowIDs []int64) (int, error) {
	const chunkSize = 500
	var total int64
	for i := 0; i < len(rowIDs); i += chunkSize {
		end := i + chunkSize
		if end > len(rowIDs) {
			end = len(rowIDs)
		}
		chunk := rowIDs[i:end]

		placeholders := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)+1)
		args = append(args, mailboxID)
		for j, id := range chunk {
			placeholders[j] = "?"
			args = append(args, id)
		}

		query := fmt.Sprintf(`UPDATE messages SET is_deleted = 1, updated_at = datetime('now')
			WHERE mailbox_id = ? AND apple_rowid IN (%s)`, strings.Join(placeholders, ","))
		res, err := s.db.Exec(query, args...)
		if err != nil {
			return int(total), eris.Wrap(err, "store: soft delete by apple rowids")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return int(total), err
		}
		total += n
	}
	return int(total), nil
}

// GetMessage fetches a single message by id, excluding soft-deleted rows
// unless includeDeleted is set (the explicit admin-query exception).
func (s *Store) GetMessage(id string, includeDeleted bool) (*Message, error) {
	query := `SELECT id, apple_rowid, message_id, mailbox_id, account_id, subject,
		sender_name, sender_email, date_sent, date_received, is_read, is_flagged,
		is_deleted, has_attachments, file_path, body_text, body_html, export_path,
		mailbox_status, pending_sync_action, last_known_mailbox_id, in_reply_to,
		thread_id, thread_position, thread_total
		FROM messages WHERE id = ?`
	if !includeDeleted {
		query += ` AND is_deleted = 0`
	}
	m := &Message{}
	err := s.db.QueryRow(query, id).Scan(
		&m.ID, &m.AppleRowID, &m.MessageID, &m.MailboxID, &m.AccountID, &m.Subject,
		&m.SenderName, &m.SenderEmail, &m.DateSent, &m.DateReceived, &m.IsRead, &m.IsFlagged,
		&m.IsDeleted, &m.HasAttachments, &m.FilePath, &m.BodyText, &m.BodyHTML, &m.ExportPath,
		&m.MailboxStatus, &m.PendingSyncAction, &m.LastKnownMailboxID, &m.InReplyTo,
		&m.ThreadID, &m.ThreadPosition, &m.ThreadTotal,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get message")
	}
	return m, nil
}

// GetMessagesWithPendingActions returns rows with a non-"none" pending
// action, ordered by updated_at ascending (fairness for retry).
func (s *Store) GetMessagesWithPendingActions() ([]*Message, error) {
	rows, err := s.db.Query(`
		SELECT id, message_id, mailbox_status, pending_sync_action, export_path
		FROM messages
		WHERE pending_sync_action != 'none' AND is_deleted = 0
		ORDER BY updated_at ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "store: get messages with pending actions")
	}
	defer func() { _ = rows.Close() }()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.MessageID, &m.MailboxStatus, &m.PendingSyncAction, &m.ExportPath); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
