// Package store owns the mirror SQLite database: schema versioning and
// migrations, WAL journaling, the triggered FTS index, batched upsert, and
// structured query parsing.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"github.com/mailmirror-dev/mailmirror/internal/fileutil"
)

const defaultSQLiteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

// Store owns the mirror database connection.
type Store struct {
	db            *sql.DB
	dbPath        string
	fts5Available bool
}

// Open opens or creates the mirror database at dbPath, applies pending
// migrations, and returns a ready Store.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := fileutil.SecureMkdirAll(dir, 0755); err != nil {
		return nil, eris.Wrapf(err, "store: create directory %q", dir)
	}

	dsn := dbPath + defaultSQLiteParams
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %q", dbPath)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, eris.Wrapf(err, "store: ping %q", dbPath)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying connection for callers that need advanced
// queries the Store does not wrap.
func (s *Store) DB() *sql.DB { return s.db }

// migrate applies every migration with Version greater than the currently
// recorded schema_version, strictly in ascending order, each inside its
// own transaction. A migration failure aborts initialization, leaving the
// mirror at the previous schema version.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL, applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return eris.Wrap(err, "store: create schema_version table")
	}

	current := 0
	row := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&current); err != nil {
		return eris.Wrap(err, "store: read schema_version")
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return eris.Wrapf(err, "store: migration %d failed", m.Version)
		}
	}

	if current < 1 {
		s.fts5Available = s.ensureFTS()
	} else {
		s.fts5Available = s.probeFTS5()
	}
	return nil
}

func (s *Store) applyMigration(m Migration) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(m.SQL); err != nil {
			return err
		}
		_, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.Version)
		return err
	})
}

// ensureFTS creates the FTS5 virtual table and its sync triggers. Its
// absence (no such module: fts5) is tolerated — search falls back to
// date-ordering without ranking in that case.
func (s *Store) ensureFTS() bool {
	_, err := s.db.Exec(ftsSchema)
	return err == nil
}

func (s *Store) probeFTS5() bool {
	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE name = 'messages_fts'`).Scan(&name)
	return err == nil
}

// isSQLiteError reports whether err's message contains substr. Driver
// errors are wrapped by eris at component boundaries, so this matches
// against the error chain's text rather than asserting a concrete type.
func isSQLiteError(err error, substr string) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), strings.ToLower(substr))
}

// withTx executes fn within a transaction, rolling back on error.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return eris.Wrap(err, "store: begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// queryInChunks runs a parameterized IN-query in chunks of 500 to stay
// within SQLite's parameter limit. queryTemplate must contain one %s
// placeholder for the comma-separated "?" list; prefixArgs are prepended
// to each chunk's args.
func queryInChunks[T any](db *sql.DB, ids []T, prefixArgs []interface{}, queryTemplate string, fn func(*sql.Rows) error) error {
	const chunkSize = 500
	for i := 0; i < len(ids); i += chunkSize {
		end := i + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[i:end]

		placeholders := make([]string, len(chunk))
		args := make([]interface{}, 0, len(prefixArgs)+len(chunk))
		args = append(args, prefixArgs...)
		for j, id := range chunk {
			placeholders[j] = "?"
			args = append(args, id)
		}

		query := fmt.Sprintf(queryTemplate, strings.Join(placeholders, ","))
		rows, err := db.Query(query, args...)
		if err != nil {
			return err
		}
		for rows.Next() {
			if err := fn(rows); err != nil {
				_ = rows.Close()
				return err
			}
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Stats reports row counts and database file size.
type Stats struct {
	MessageCount    int64
	ThreadCount     int64
	AttachmentCount int64
	MailboxCount    int64
	DatabaseSize    int64
}

// GetStats returns statistics about the mirror database.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM messages WHERE is_deleted = 0", &stats.MessageCount},
		{"SELECT COUNT(*) FROM threads", &stats.ThreadCount},
		{"SELECT COUNT(*) FROM attachments", &stats.AttachmentCount},
		{"SELECT COUNT(*) FROM mailboxes", &stats.MailboxCount},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, eris.Wrapf(err, "store: stats query %q", q.query)
		}
	}
	if info, err := os.Stat(s.dbPath); err == nil {
		stats.DatabaseSize = info.Size()
	}
	return stats, nil
}

// disableFTSTriggers drops the FTS maintenance triggers, used around bulk
// upserts to avoid O(n^2) FTS cost; callers must call rebuildFTS afterward.
func (s *Store) disableFTSTriggers(tx *sql.Tx) error {
	if !s.fts5Available {
		return nil
	}
	for _, name := range []string{"messages_fts_ai", "messages_fts_ad", "messages_fts_au"} {
		if _, err := tx.Exec("DROP TRIGGER IF EXISTS " + name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) recreateFTSTriggers(tx *sql.Tx) error {
	if !s.fts5Available {
		return nil
	}
	_, err := tx.Exec(ftsSchema)
	return err
}

func (s *Store) rebuildFTS(tx *sql.Tx) error {
	if !s.fts5Available {
		return nil
	}
	_, err := tx.Exec(`INSERT INTO messages_fts(messages_fts) VALUES('rebuild')`)
	return err
}
