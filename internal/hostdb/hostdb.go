// Package hostdb provides read-only access to the host mail application's
// envelope index: a SQLite database the core never writes to.
package hostdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
)

// SourceDatabaseLockedError is returned when the host database is busy at
// open time, after the busy-timeout window.
type SourceDatabaseLockedError struct{ Path string }

func (e *SourceDatabaseLockedError) Error() string {
	return fmt.Sprintf("source database locked: %s", e.Path)
}

// DB wraps a read-only connection to the host envelope index.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens the host envelope index read-only, with no shared-cache mutex
// and a 5-second busy timeout, per §4.8.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_mutex=no&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "hostdb: open %q", path)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		if isBusyErr(err) {
			return nil, &SourceDatabaseLockedError{Path: path}
		}
		return nil, eris.Wrapf(err, "hostdb: ping %q", path)
	}
	return &DB{conn: conn, path: path}, nil
}

func isBusyErr(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "locked") ||
		strings.Contains(strings.ToLower(err.Error()), "busy")
}

// Close closes the underlying connection.
func (d *DB) Close() error { return d.conn.Close() }

// Mailbox is one row from the host's mailboxes table.
type Mailbox struct {
	RowID int64
	URL   sql.NullString
}

// Mailboxes returns (ROWID, url) for every host mailbox.
func (d *DB) Mailboxes(ctx context.Context) ([]Mailbox, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT ROWID, url FROM mailboxes`)
	if err != nil {
		return nil, eris.Wrap(err, "hostdb: query mailboxes")
	}
	defer func() { _ = rows.Close() }()

	var out []Mailbox
	for rows.Next() {
		var m Mailbox
		if err := rows.Scan(&m.RowID, &m.URL); err != nil {
			return nil, eris.Wrap(err, "hostdb: scan mailbox")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MessageRow is one row of the joined messages/subjects/addresses query.
type MessageRow struct {
	RowID         int64
	Subject       sql.NullString
	SenderEmail   sql.NullString
	SenderName    sql.NullString
	DateReceived  sql.NullFloat64
	DateSent      sql.NullFloat64
	MessageID     sql.NullString
	Mailbox       int64
	Read          bool
	Flagged       bool
}

const joinedMessageQuery = `
SELECT m.ROWID, s.subject, a.address AS sender_email, a.comment AS sender_name,
       m.date_received, m.date_sent, m.message_id, m.mailbox, m.read, m.flagged
FROM messages m
LEFT JOIN subjects s ON m.subject = s.ROWID
LEFT JOIN addresses a ON m.sender = a.ROWID
INNER JOIN mailboxes mb ON m.mailbox = mb.ROWID
WHERE LOWER(mb.url) LIKE '%/inbox'`

// InboxMessages runs the required joined query (§6), ordered by
// date_received DESC. When sinceUnix > 0, restricts to
// date_received > sinceUnix (the incremental-sync filter).
func (d *DB) InboxMessages(ctx context.Context, sinceUnix float64) ([]MessageRow, error) {
	query := joinedMessageQuery
	args := []interface{}{}
	if sinceUnix > 0 {
		query += " AND m.date_received > ?"
		args = append(args, sinceUnix)
	}
	query += " ORDER BY m.date_received DESC"

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "hostdb: query inbox messages")
	}
	defer func() { _ = rows.Close() }()

	var out []MessageRow
	for rows.Next() {
		var m MessageRow
		var readInt, flaggedInt int
		if err := rows.Scan(&m.RowID, &m.Subject, &m.SenderEmail, &m.SenderName,
			&m.DateReceived, &m.DateSent, &m.MessageID, &m.Mailbox, &readInt, &flaggedInt); err != nil {
			return nil, eris.Wrap(err, "hostdb: scan message row")
		}
		m.Read = readInt != 0
		m.Flagged = flaggedInt != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// InboxRowIDs returns the set of ROWIDs currently in the host's inbox —
// used for missed-message reconciliation (§4.8 phase 2).
func (d *DB) InboxRowIDs(ctx context.Context) (map[int64]bool, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT m.ROWID FROM messages m
		INNER JOIN mailboxes mb ON m.mailbox = mb.ROWID
		WHERE LOWER(mb.url) LIKE '%/inbox'`)
	if err != nil {
		return nil, eris.Wrap(err, "hostdb: query inbox rowids")
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "hostdb: scan rowid")
		}
		out[id] = true
	}
	return out, rows.Err()
}

// StatusRow is the (read, flagged) status of a single host row, used for the
// status-change detection phase.
type StatusRow struct {
	RowID   int64
	Read    bool
	Flagged bool
	Exists  bool
	Mailbox int64
}

// Statuses returns the current (read, flagged, mailbox) for the given row
// IDs. Missing IDs are simply absent from the result map.
func (d *DB) Statuses(ctx context.Context, rowIDs []int64) (map[int64]StatusRow, error) {
	out := make(map[int64]StatusRow, len(rowIDs))
	const chunkSize = 500
	for start := 0; start < len(rowIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(rowIDs) {
			end = len(rowIDs)
		}
		chunk := rowIDs[start:end]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := fmt.Sprintf(`SELECT ROWID, read, flagged, mailbox FROM messages WHERE ROWID IN (%s)`, placeholders)
		rows, err := d.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, eris.Wrap(err, "hostdb: query statuses")
		}
		for rows.Next() {
			var s StatusRow
			var readInt, flaggedInt int
			if err := rows.Scan(&s.RowID, &readInt, &flaggedInt, &s.Mailbox); err != nil {
				_ = rows.Close()
				return nil, eris.Wrap(err, "hostdb: scan status row")
			}
			s.Read = readInt != 0
			s.Flagged = flaggedInt != 0
			s.Exists = true
			out[s.RowID] = s
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}
	return out, nil
}

// Exists reports which of the given row IDs still exist in the host
// database at all (used for soft-deletion detection, phase 5).
func (d *DB) Exists(ctx context.Context, rowIDs []int64) (map[int64]bool, error) {
	statuses, err := d.Statuses(ctx, rowIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(rowIDs))
	for _, id := range rowIDs {
		_, ok := statuses[id]
		out[id] = ok
	}
	return out, nil
}
