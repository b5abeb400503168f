package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/mailmirror-dev/mailmirror/internal/mailboxkind"
)

// Mailbox is a mirrored mailbox row.
type Mailbox struct {
	ID           int64
	Name         string
	URL          sql.NullString
	Kind         mailboxkind.Kind
	ParentID     sql.NullInt64
	MessageCount int64
}

// UpsertMailbox inserts or updates a mailbox by its host ROWID, classifying
// its kind from name/url.
func (s *Store) UpsertMailbox(ctx context.Context, id int64, name, url string, parentID sql.NullInt64) error {
	kind := mailboxkind.Classify(name, url)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mailboxes (id, name, url, kind, parent_id, synced_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			kind = excluded.kind,
			parent_id = excluded.parent_id,
			synced_at = datetime('now')
	`, id, name, url, string(kind), parentID)
	if err != nil {
		return eris.Wrap(err, "store: upsert mailbox")
	}
	return nil
}

// GetMailbox fetches a mailbox by id.
func (s *Store) GetMailbox(ctx context.Context, id int64) (*Mailbox, error) {
	var mb Mailbox
	var kind string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, url, kind, parent_id, message_count FROM mailboxes WHERE id = ?`, id).
		Scan(&mb.ID, &mb.Name, &mb.URL, &kind, &mb.ParentID, &mb.MessageCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get mailbox")
	}
	mb.Kind = mailboxkind.Kind(kind)
	return &mb, nil
}

// Mailboxes lists every mirrored mailbox.
func (s *Store) Mailboxes(ctx context.Context) ([]*Mailbox, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, url, kind, parent_id, message_count FROM mailboxes ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list mailboxes")
	}
	defer func() { _ = rows.Close() }()

	var out []*Mailbox
	for rows.Next() {
		var mb Mailbox
		var kind string
		if err := rows.Scan(&mb.ID, &mb.Name, &mb.URL, &kind, &mb.ParentID, &mb.MessageCount); err != nil {
			return nil, err
		}
		mb.Kind = mailboxkind.Kind(kind)
		out = append(out, &mb)
	}
	return out, rows.Err()
}

// RefreshMessageCount recomputes a mailbox's cached message_count from the
// messages table.
func (s *Store) RefreshMessageCount(ctx context.Context, mailboxID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mailboxes SET message_count = (
			SELECT COUNT(*) FROM messages WHERE mailbox_id = ? AND is_deleted = 0
		) WHERE id = ?
	`, mailboxID, mailboxID)
	if err != nil {
		return eris.Wrap(err, "store: refresh message count")
	}
	return nil
}

// MailboxByKind returns the first mirrored mailbox classified as k, if any.
func (s *Store) MailboxByKind(ctx context.Context, k mailboxkind.Kind) (*Mailbox, error) {
	var mb Mailbox
	var kind string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, url, kind, parent_id, message_count FROM mailboxes WHERE kind = ? LIMIT 1`, string(k)).
		Scan(&mb.ID, &mb.Name, &mb.URL, &kind, &mb.ParentID, &mb.MessageCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: mailbox by kind")
	}
	mb.Kind = mailboxkind.Kind(kind)
	return &mb, nil
}
