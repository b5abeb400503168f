package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Filter is a parsed structured query, per §4.7's named-prefix grammar.
type Filter struct {
	From      string
	To        string
	Subject   string
	Mailbox   string
	IsRead    *bool
	IsFlagged *bool
	HasAttachment *bool
	After     *time.Time
	Before    *time.Time
	FreeText  string
}

var tokenRe = regexp.MustCompile(`(?i)\b(from|to|subject|mailbox|is|has|after|before|date):("([^"]*)"|\S+)`)

// ParseQuery tokenizes a line of search input into a Filter. Matched
// prefix:value tokens are stripped; whatever remains becomes FreeText.
func ParseQuery(input string) Filter {
	var f Filter
	residue := tokenRe.ReplaceAllStringFunc(input, func(match string) string {
		m := tokenRe.FindStringSubmatch(match)
		key := strings.ToLower(m[1])
		value := m[2]
		if m[3] != "" {
			value = m[3]
		}
		applyToken(&f, key, value)
		return ""
	})
	f.FreeText = strings.Join(strings.Fields(residue), " ")
	return f
}

func applyToken(f *Filter, key, value string) {
	switch key {
	case "from":
		f.From = value
	case "to":
		f.To = value
	case "subject":
		f.Subject = value
	case "mailbox":
		f.Mailbox = value
	case "is":
		b := true
		nb := false
		switch strings.ToLower(value) {
		case "read":
			f.IsRead = &b
		case "unread":
			f.IsRead = &nb
		case "flagged":
			f.IsFlagged = &b
		case "unflagged":
			f.IsFlagged = &nb
		}
	case "has":
		if strings.HasPrefix(strings.ToLower(value), "attachment") {
			b := true
			f.HasAttachment = &b
		}
	case "after":
		if t, err := time.Parse("2006-01-02", value); err == nil {
			f.After = &t
		}
	case "before":
		if t, err := time.Parse("2006-01-02", value); err == nil {
			f.Before = &t
		}
	case "date":
		if t, err := time.Parse("2006-01-02", value); err == nil {
			f.After = &t
			next := t.AddDate(0, 0, 1)
			f.Before = &next
		}
	}
}

// SearchResult is one ranked message returned by a search.
type SearchResult struct {
	Message *Message
	Rank    float64
}

// SearchMessages runs an FTS5 MATCH query ranked by BM25. When FTS5 is
// unavailable it falls back to a LIKE scan ordered by date_received DESC.
func (s *Store) SearchMessages(ctx context.Context, query string, limit, offset int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	if !s.fts5Available {
		return s.likeFallback(ctx, query, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.subject, m.sender_name, m.sender_email, m.date_sent, m.date_received,
			m.is_read, m.is_flagged, m.mailbox_id, bm25(messages_fts) AS rank
		FROM messages_fts
		JOIN messages m ON m.rowid = messages_fts.rowid
		WHERE messages_fts MATCH ? AND m.is_deleted = 0
		ORDER BY rank
		LIMIT ? OFFSET ?
	`, query, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "store: search messages")
	}
	defer func() { _ = rows.Close() }()

	var out []SearchResult
	for rows.Next() {
		m := &Message{}
		var rank float64
		if err := rows.Scan(&m.ID, &m.Subject, &m.SenderName, &m.SenderEmail, &m.DateSent, &m.DateReceived,
			&m.IsRead, &m.IsFlagged, &m.MailboxID, &rank); err != nil {
			return nil, err
		}
		out = append(out, SearchResult{Message: m, Rank: rank})
	}
	return out, rows.Err()
}

func (s *Store) likeFallback(ctx context.Context, query string, limit, offset int) ([]SearchResult, error) {
	like := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject, sender_name, sender_email, date_sent, date_received, is_read, is_flagged, mailbox_id
		FROM messages
		WHERE is_deleted = 0 AND (subject LIKE ? OR body_text LIKE ? OR sender_email LIKE ?)
		ORDER BY date_received DESC
		LIMIT ? OFFSET ?
	`, like, like, like, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "store: search messages (like fallback)")
	}
	defer func() { _ = rows.Close() }()

	var out []SearchResult
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.Subject, &m.SenderName, &m.SenderEmail, &m.DateSent, &m.DateReceived,
			&m.IsRead, &m.IsFlagged, &m.MailboxID); err != nil {
			return nil, err
		}
		out = append(out, SearchResult{Message: m})
	}
	return out, rows.Err()
}

// SearchMessagesWithFilters combines an optional free-text FTS search with
// SQL predicates built from f. Always excludes is_deleted=1. Orders by BM25
// when free text is present and FTS5 is available, else date_received DESC
// (free text then matches subject or body with LIKE).
func (s *Store) SearchMessagesWithFilters(ctx context.Context, f Filter, limit, offset int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	var joins, conditions []string
	args := []interface{}{}

	useFTS := f.FreeText != "" && s.fts5Available
	selectCols := `m.id, m.subject, m.sender_name, m.sender_email, m.date_sent, m.date_received, m.is_read, m.is_flagged, m.mailbox_id`
	order := "m.date_received DESC"

	if useFTS {
		selectCols += `, bm25(messages_fts) AS rank`
		joins = append(joins, "JOIN messages_fts ON messages_fts.rowid = m.rowid")
		conditions = append(conditions, "messages_fts MATCH ?")
		args = append(args, f.FreeText)
		order = "rank"
	} else {
		selectCols += `, 0 AS rank`
		if f.FreeText != "" {
			conditions = append(conditions, "(m.subject LIKE ? OR m.body_text LIKE ?)")
			like := "%" + f.FreeText + "%"
			args = append(args, like, like)
		}
	}

	conditions = append(conditions, "m.is_deleted = 0")
	if f.From != "" {
		conditions = append(conditions, "LOWER(m.sender_email) LIKE LOWER(?)")
		args = append(args, "%"+f.From+"%")
	}
	if f.To != "" {
		joins = append(joins, "JOIN recipients r ON r.message_id = m.id")
		conditions = append(conditions, "LOWER(r.email) LIKE LOWER(?)")
		args = append(args, "%"+f.To+"%")
	}
	if f.Subject != "" {
		conditions = append(conditions, "LOWER(m.subject) LIKE LOWER(?)")
		args = append(args, "%"+f.Subject+"%")
	}
	if f.Mailbox != "" {
		joins = append(joins, "JOIN mailboxes mb ON mb.id = m.mailbox_id")
		conditions = append(conditions, "LOWER(mb.name) LIKE LOWER(?)")
		args = append(args, "%"+f.Mailbox+"%")
	}
	if f.IsRead != nil {
		conditions = append(conditions, "m.is_read = ?")
		args = append(args, *f.IsRead)
	}
	if f.IsFlagged != nil {
		conditions = append(conditions, "m.is_flagged = ?")
		args = append(args, *f.IsFlagged)
	}
	if f.HasAttachment != nil && *f.HasAttachment {
		conditions = append(conditions, "m.has_attachments = 1")
	}
	if f.After != nil {
		conditions = append(conditions, "m.date_received >= ?")
		args = append(args, *f.After)
	}
	if f.Before != nil {
		conditions = append(conditions, "m.date_received < ?")
		args = append(args, *f.Before)
	}

	query := fmt.Sprintf(`SELECT %s FROM messages m %s WHERE %s ORDER BY %s LIMIT ? OFFSET ?`,
		selectCols, strings.Join(joins, " "), strings.Join(conditions, " AND "), order)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: search messages with filters")
	}
	defer func() { _ = rows.Close() }()

	var out []SearchResult
	for rows.Next() {
		m := &Message{}
		var rank float64
		if err := rows.Scan(&m.ID, &m.Subject, &m.SenderName, &m.SenderEmail, &m.DateSent, &m.DateReceived,
			&m.IsRead, &m.IsFlagged, &m.MailboxID, &rank); err != nil {
			return nil, err
		}
		out = append(out, SearchResult{Message: m, Rank: rank})
	}
	return out, rows.Err()
}
