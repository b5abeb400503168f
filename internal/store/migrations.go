package store

// Migration is one forward-only schema step, applied inside its own
// transaction in ascending Version order.
type Migration struct {
	Version int
	SQL     string
}

// migrations holds the mirror's schema history, version 1 through
// CurrentSchemaVersion. Each step runs at most once, since migrate skips
// every version already recorded in schema_version. Table and index
// statements use IF NOT EXISTS; the ADD COLUMN statements are unguarded and
// fail if the column already exists.
var migrations = []Migration{
	{
		Version: 1,
		SQL: `
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER NOT NULL,
				applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE IF NOT EXISTS mailboxes (
				id INTEGER PRIMARY KEY,
				name TEXT NOT NULL,
				url TEXT,
				kind TEXT NOT NULL DEFAULT 'other',
				parent_id INTEGER,
				message_count INTEGER NOT NULL DEFAULT 0,
				synced_at DATETIME
			);

			CREATE TABLE IF NOT EXISTS messages (
				id TEXT PRIMARY KEY,
				apple_rowid INTEGER,
				message_id TEXT,
				mailbox_id INTEGER NOT NULL REFERENCES mailboxes(id),
				account_id TEXT,
				subject TEXT,
				sender_name TEXT,
				sender_email TEXT,
				date_sent DATETIME,
				date_received DATETIME,
				is_read INTEGER NOT NULL DEFAULT 0,
				is_flagged INTEGER NOT NULL DEFAULT 0,
				is_deleted INTEGER NOT NULL DEFAULT 0,
				has_attachments INTEGER NOT NULL DEFAULT 0,
				file_path TEXT,
				body_text TEXT,
				body_html TEXT,
				export_path TEXT,
				synced_at DATETIME,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE INDEX IF NOT EXISTS idx_messages_apple_rowid ON messages(apple_rowid);
			CREATE INDEX IF NOT EXISTS idx_messages_mailbox ON messages(mailbox_id);
			CREATE INDEX IF NOT EXISTS idx_messages_date_received ON messages(date_received);
			CREATE INDEX IF NOT EXISTS idx_messages_message_id ON messages(message_id);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_apple_rowid_mailbox ON messages(apple_rowid, mailbox_id);

			CREATE TABLE IF NOT EXISTS recipients (
				message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
				kind TEXT NOT NULL,
				name TEXT,
				email TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_recipients_message ON recipients(message_id);

			CREATE TABLE IF NOT EXISTS attachments (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
				filename TEXT,
				content_type TEXT,
				size_bytes INTEGER,
				content_id TEXT,
				is_inline INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_attachments_message ON attachments(message_id);

			CREATE TABLE IF NOT EXISTS sync_status (
				key TEXT PRIMARY KEY,
				value TEXT
			);
		`,
	},
	{
		Version: 2,
		SQL: `
			ALTER TABLE messages ADD COLUMN mailbox_status TEXT NOT NULL DEFAULT 'inbox';
			ALTER TABLE messages ADD COLUMN pending_sync_action TEXT NOT NULL DEFAULT 'none';
			ALTER TABLE messages ADD COLUMN last_known_mailbox_id INTEGER;

			CREATE INDEX IF NOT EXISTS idx_messages_mailbox_status ON messages(mailbox_status);
			CREATE INDEX IF NOT EXISTS idx_messages_pending_action ON messages(pending_sync_action);
		`,
	},
	{
		Version: 3,
		SQL: `
			ALTER TABLE messages ADD COLUMN in_reply_to TEXT;
			ALTER TABLE messages ADD COLUMN threading_references TEXT;

			CREATE INDEX IF NOT EXISTS idx_messages_in_reply_to ON messages(in_reply_to);
		`,
	},
	{
		Version: 4,
		SQL: `
			CREATE TABLE IF NOT EXISTS threads (
				id TEXT PRIMARY KEY,
				subject TEXT,
				participant_count INTEGER NOT NULL DEFAULT 1,
				message_count INTEGER NOT NULL DEFAULT 0,
				first_date DATETIME,
				last_date DATETIME,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			ALTER TABLE messages ADD COLUMN thread_id TEXT;
			CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id);
		`,
	},
	{
		Version: 5,
		SQL: `
			CREATE TABLE IF NOT EXISTS thread_messages (
				thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
				message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
				added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (thread_id, message_id)
			);
			CREATE INDEX IF NOT EXISTS idx_thread_messages_message ON thread_messages(message_id);
		`,
	},
	{
		Version: 6,
		SQL: `
			ALTER TABLE messages ADD COLUMN thread_position INTEGER;
			ALTER TABLE messages ADD COLUMN thread_total INTEGER;
		`,
	},
	{
		Version: 7,
		SQL: `
			CREATE INDEX IF NOT EXISTS idx_threads_subject ON threads(subject);
			CREATE INDEX IF NOT EXISTS idx_threads_message_count ON threads(message_count);
			CREATE INDEX IF NOT EXISTS idx_messages_sender_email ON messages(sender_email);
			CREATE INDEX IF NOT EXISTS idx_recipients_email ON recipients(email);
			CREATE INDEX IF NOT EXISTS idx_messages_thread_position ON messages(thread_id, thread_position);
		`,
	},
}

// CurrentSchemaVersion is the highest version migrations applies.
const CurrentSchemaVersion = 7

// ftsSchema is the FTS5 virtual table and its sync triggers, part of the
// version-1 step conceptually but applied in its own statement (and its
// own error-tolerant path) since FTS5 may be absent from the SQLite build —
// unlike the base tables, its absence must not abort the whole migration.
const ftsSchema = `
	CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
		subject, sender_name, sender_email, body_text,
		content='messages', content_rowid='rowid',
		tokenize='porter unicode61'
	);

	CREATE TRIGGER IF NOT EXISTS messages_fts_ai AFTER INSERT ON messages BEGIN
		INSERT INTO messages_fts(rowid, subject, sender_name, sender_email, body_text)
		VALUES (new.rowid, new.subject, new.sender_name, new.sender_email, new.body_text);
	END;
	CREATE TRIGGER IF NOT EXISTS messages_fts_ad AFTER DELETE ON messages BEGIN
		INSERT INTO messages_fts(messages_fts, rowid, subject, sender_name, sender_email, body_text)
		VALUES ('delete', old.rowid, old.subject, old.sender_name, old.sender_email, old.body_text);
	END;
	CREATE TRIGGER IF NOT EXISTS messages_fts_au AFTER UPDATE ON messages BEGIN
		INSERT INTO messages_fts(messages_fts, rowid, subject, sender_name, sender_email, body_text)
		VALUES ('delete', old.rowid, old.subject, old.sender_name, old.sender_email, old.body_text);
		INSERT INTO messages_fts(rowid, subject, sender_name, sender_email, body_text)
		VALUES (new.rowid, new.subject, new.sender_name, new.sender_email, new.body_text);
	END;
`
