// Package forwardsync drives the host-to-mirror synchronization pipeline:
// mailbox prelude, full and incremental message ingestion, and threading.
package forwardsync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mailmirror-dev/mailmirror/internal/emlx"
	"github.com/mailmirror-dev/mailmirror/internal/envelope"
	"github.com/mailmirror-dev/mailmirror/internal/hostdb"
	"github.com/mailmirror-dev/mailmirror/internal/idgen"
	"github.com/mailmirror-dev/mailmirror/internal/mailboxkind"
	"github.com/mailmirror-dev/mailmirror/internal/mailparse"
	"github.com/mailmirror-dev/mailmirror/internal/store"
	"github.com/mailmirror-dev/mailmirror/internal/threading"
)

// Phase names reported to Progress, in the order they occur during a run.
const (
	PhaseDiscovering      = "discovering"
	PhaseSyncingMailboxes = "syncing_mailboxes"
	PhaseSyncingMessages  = "syncing_messages"
	PhaseIndexing         = "indexing"
	PhaseThreading        = "threading"
	PhaseComplete         = "complete"
)

// Progress receives phase transitions and per-phase counters. A nil
// Progress is fine; callers that don't care about live status pass one.
type Progress interface {
	OnPhase(phase string)
	OnProgress(processed, total int)
}

// NullProgress discards all progress events.
type NullProgress struct{}

func (NullProgress) OnPhase(string)          {}
func (NullProgress) OnProgress(int, int) {}

// Result summarizes one sync run, per §4.8's SyncResult shape.
type Result struct {
	Processed      int
	Added          int
	Updated        int
	Deleted        int
	Unchanged      int
	Mailboxes      int
	ThreadsCreated int
	ThreadsUpdated int
	Errors         []string
	Duration       time.Duration
	IsIncremental  bool
}

// Options configures a Syncer.
type Options struct {
	MailRoot     string // host mail data root, e.g. ~/Library/Mail
	CustomIndex  string // explicit path to the envelope index, overrides MailRoot discovery
	Workers      int    // bounded parser pool size; 0 = runtime.NumCPU()
	BatchSize    int    // mirror batch-upsert size; 0 = 1000
	ForceFull    bool
}

// Syncer owns one sync run against a single host mail installation.
type Syncer struct {
	store    *store.Store
	detector *threading.Detector
	opts     Options
	logger   *slog.Logger
	progress Progress
}

// New creates a Syncer. The store must already be open.
func New(s *store.Store, opts Options) *Syncer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	return &Syncer{
		store:    s,
		detector: threading.NewDetector(s),
		opts:     opts,
		logger:   slog.Default(),
		progress: NullProgress{},
	}
}

func (sy *Syncer) WithLogger(l *slog.Logger) *Syncer { sy.logger = l; return sy }
func (sy *Syncer) WithProgress(p Progress) *Syncer {
	if p == nil {
		p = NullProgress{}
	}
	sy.progress = p
	return sy
}

// mailboxEntry is the in-memory cache entry built during the mailbox
// prelude: name, url, and the derived on-disk path for message lookups.
type mailboxEntry struct {
	id     int64
	name   string
	url    string
	fsPath string
	kind   mailboxkind.Kind
}

// Sync runs one full or incremental sync, per §4.8's mode-selection rule:
// force_full or no prior last_sync_time selects full sync.
func (sy *Syncer) Sync(ctx context.Context) (*Result, error) {
	start := time.Now()

	last, err := sy.store.GetLastSyncTime()
	if err != nil {
		return nil, fmt.Errorf("forwardsync: read last sync time: %w", err)
	}
	incremental := !sy.opts.ForceFull && last != nil

	if err := sy.store.RecordSyncStart(incremental); err != nil {
		sy.logger.Warn("failed to record sync start", "error", err)
	}

	result, syncErr := sy.runSync(ctx, incremental, last)
	result.Duration = time.Since(start)
	result.IsIncremental = incremental

	if syncErr != nil {
		if err := sy.store.RecordSyncFailure(syncErr); err != nil {
			sy.logger.Warn("failed to record sync failure", "error", err)
		}
		return result, syncErr
	}

	if err := sy.store.RecordSyncSuccess(store.SyncResult{
		MessagesAdded:   result.Added,
		MessagesUpdated: result.Updated,
		MessagesDeleted: result.Deleted,
		Duration:        result.Duration,
		IsIncremental:   incremental,
	}); err != nil {
		sy.logger.Warn("failed to record sync success", "error", err)
	}
	if err := sy.store.SetLastSyncTime(time.Now()); err != nil {
		sy.logger.Warn("failed to set last sync time", "error", err)
	}

	sy.progress.OnPhase(PhaseComplete)
	return result, nil
}

func (sy *Syncer) runSync(ctx context.Context, incremental bool, last *time.Time) (result *Result, err error) {
	result = &Result{}

	sy.progress.OnPhase(PhaseDiscovering)
	disc, err := envelope.Discover(sy.opts.MailRoot, sy.opts.CustomIndex)
	if err != nil {
		return result, fmt.Errorf("forwardsync: discover envelope index: %w", err)
	}

	host, err := hostdb.Open(disc.EnvelopePath)
	if err != nil {
		return result, fmt.Errorf("forwardsync: open host database: %w", err)
	}
	defer func() { _ = host.Close() }()

	sy.progress.OnPhase(PhaseSyncingMailboxes)
	mailboxes, err := sy.syncMailboxes(ctx, host, disc)
	if err != nil {
		return result, fmt.Errorf("forwardsync: mailbox prelude: %w", err)
	}
	result.Mailboxes = len(mailboxes)

	sy.progress.OnPhase(PhaseSyncingMessages)
	if incremental {
		if err := sy.incrementalSync(ctx, host, mailboxes, *last, result); err != nil {
			return result, err
		}
	} else {
		if err := sy.fullSync(ctx, host, mailboxes, result); err != nil {
			return result, err
		}
	}

	return result, nil
}

// syncMailboxes performs the mailbox prelude (§4.8): queries (ROWID, url)
// from the host, upserts into the mirror, and builds the in-memory
// rowid -> {name, url, fs_path} cache used for the rest of the sync.
func (sy *Syncer) syncMailboxes(ctx context.Context, host *hostdb.DB, disc *envelope.Result) (map[int64]*mailboxEntry, error) {
	rows, err := host.Mailboxes(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]*mailboxEntry, len(rows))
	for _, row := range rows {
		rawURL := row.URL.String
		name := mailboxNameFromURL(rawURL)
		kind := mailboxkind.Classify(name, rawURL)
		fsPath := mailboxFSPath(disc.MailRoot, disc.VersionDir, rawURL)

		if err := sy.store.UpsertMailbox(ctx, row.RowID, name, rawURL, sql.NullInt64{}); err != nil {
			return nil, err
		}
		out[row.RowID] = &mailboxEntry{id: row.RowID, name: name, url: rawURL, fsPath: fsPath, kind: kind}
	}
	return out, nil
}

// mailboxNameFromURL takes the last non-empty path component of a mailbox
// URL as its display name.
func mailboxNameFromURL(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	name, err := url.PathUnescape(trimmed[idx+1:])
	if err != nil {
		return trimmed[idx+1:]
	}
	return name
}

// mailboxFSPath derives a mailbox's on-disk path from its host URL, per
// §4.8: scheme-strip, percent-decode, then rewrite each path segment after
// the account identifier into a "<segment>.mbox" component.
func mailboxFSPath(mailRoot, versionDir, rawURL string) string {
	rest := rawURL
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	rest = strings.TrimPrefix(rest, "/")
	segments := strings.Split(rest, "/")

	decoded := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if d, err := url.PathUnescape(seg); err == nil {
			decoded = append(decoded, d)
		} else {
			decoded = append(decoded, seg)
		}
	}
	if len(decoded) == 0 {
		return filepath.Join(mailRoot, versionDir)
	}

	accountUUID := decoded[0]
	parts := []string{mailRoot, versionDir, accountUUID}
	for _, seg := range decoded[1:] {
		parts = append(parts, seg+".mbox")
	}
	return filepath.Join(parts...)
}

// fullSync implements §4.8's full-sync path: parse every inbox row,
// buffer, batch upsert once, then thread.
func (sy *Syncer) fullSync(ctx context.Context, host *hostdb.DB, mailboxes map[int64]*mailboxEntry, result *Result) error {
	rows, err := host.InboxMessages(ctx, 0)
	if err != nil {
		return fmt.Errorf("forwardsync: query inbox messages: %w", err)
	}
	return sy.ingestRows(ctx, rows, mailboxes, result)
}

// incrementalSync implements §4.8's five incremental phases.
func (sy *Syncer) incrementalSync(ctx context.Context, host *hostdb.DB, mailboxes map[int64]*mailboxEntry, last time.Time, result *Result) error {
	// Phase 1: new messages since last_sync.
	newRows, err := host.InboxMessages(ctx, float64(last.Unix()))
	if err != nil {
		return fmt.Errorf("forwardsync: phase 1 query: %w", err)
	}
	if err := sy.ingestRows(ctx, newRows, mailboxes, result); err != nil {
		return err
	}

	// Phase 2: missed-message reconciliation.
	if err := sy.reconcileMissed(ctx, host, mailboxes, result); err != nil {
		return err
	}

	// Phase 3: status changes.
	if err := sy.syncStatusChanges(ctx, host, result); err != nil {
		return err
	}

	// Phase 4: mailbox moves.
	if err := sy.syncMailboxMoves(ctx, host, mailboxes, result); err != nil {
		return err
	}

	// Phase 5: deletions.
	if err := sy.syncDeletions(ctx, host, result); err != nil {
		return err
	}

	return nil
}

func (sy *Syncer) reconcileMissed(ctx context.Context, host *hostdb.DB, mailboxes map[int64]*mailboxEntry, result *Result) error {
	sourceIDs, err := host.InboxRowIDs(ctx)
	if err != nil {
		return fmt.Errorf("forwardsync: phase 2 host rowids: %w", err)
	}

	mirrorIDs, err := sy.mirrorInboxAppleRowIDs(ctx)
	if err != nil {
		return fmt.Errorf("forwardsync: phase 2 mirror rowids: %w", err)
	}

	var missed []int64
	for id := range sourceIDs {
		if !mirrorIDs[id] {
			missed = append(missed, id)
		}
	}
	if len(missed) == 0 {
		return nil
	}

	rows, err := sy.fetchRowsByID(ctx, host, missed)
	if err != nil {
		return fmt.Errorf("forwardsync: phase 2 fetch missed: %w", err)
	}
	return sy.ingestRows(ctx, rows, mailboxes, result)
}

func (sy *Syncer) mirrorInboxAppleRowIDs(ctx context.Context) (map[int64]bool, error) {
	rows, err := sy.store.DB().QueryContext(ctx, `SELECT apple_rowid FROM messages WHERE is_deleted = 0 AND apple_rowid IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// fetchRowsByID re-queries full joined rows for a specific set of host
// ROWIDs, reusing the same inbox query and filtering client-side since the
// joined query has no parameterized ROWID IN clause.
func (sy *Syncer) fetchRowsByID(ctx context.Context, host *hostdb.DB, ids []int64) ([]hostdb.MessageRow, error) {
	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	all, err := host.InboxMessages(ctx, 0)
	if err != nil {
		return nil, err
	}
	var out []hostdb.MessageRow
	for _, r := range all {
		if wanted[r.RowID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (sy *Syncer) syncStatusChanges(ctx context.Context, host *hostdb.DB, result *Result) error {
	ids, err := sy.mirrorAppleRowIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	statuses, err := host.Statuses(ctx, ids)
	if err != nil {
		return fmt.Errorf("forwardsync: phase 3 statuses: %w", err)
	}
	for _, id := range ids {
		st, ok := statuses[id]
		if !ok {
			continue
		}
		changed, err := sy.applyStatusIfChanged(id, st)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if changed {
			result.Updated++
		}
	}
	return nil
}

func (sy *Syncer) applyStatusIfChanged(appleRowID int64, st hostdb.StatusRow) (bool, error) {
	var id string
	var isRead, isFlagged bool
	err := sy.store.DB().QueryRow(`SELECT id, is_read, is_flagged FROM messages WHERE apple_rowid = ?`, appleRowID).
		Scan(&id, &isRead, &isFlagged)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if isRead == st.Read && isFlagged == st.Flagged {
		return false, nil
	}
	return true, sy.store.UpdateMessageStatus(id, st.Read, st.Flagged)
}

func (sy *Syncer) mirrorAppleRowIDs(ctx context.Context) ([]int64, error) {
	rows, err := sy.store.DB().QueryContext(ctx, `SELECT apple_rowid FROM messages WHERE is_deleted = 0 AND apple_rowid IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (sy *Syncer) syncMailboxMoves(ctx context.Context, host *hostdb.DB, mailboxes map[int64]*mailboxEntry, result *Result) error {
	ids, err := sy.mirrorAppleRowIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	statuses, err := host.Statuses(ctx, ids)
	if err != nil {
		return fmt.Errorf("forwardsync: phase 4 statuses: %w", err)
	}
	for _, id := range ids {
		st, ok := statuses[id]
		if !ok {
			continue
		}
		mb, ok := mailboxes[st.Mailbox]
		if !ok {
			continue
		}
		target, ok := mailboxkind.ForwardSyncTarget(mb.kind)
		if !ok {
			continue
		}
		if err := sy.applyMailboxStatusIfChanged(id, target); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}
	return nil
}

func (sy *Syncer) applyMailboxStatusIfChanged(appleRowID int64, status string) error {
	var mirrorID, current string
	err := sy.store.DB().QueryRow(`SELECT id, mailbox_status FROM messages WHERE apple_rowid = ?`, appleRowID).Scan(&mirrorID, &current)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if current == status {
		return nil
	}
	return sy.store.UpdateMailboxStatus(mirrorID, status)
}

func (sy *Syncer) syncDeletions(ctx context.Context, host *hostdb.DB, result *Result) error {
	byMailbox := make(map[int64][]int64)
	rows, err := sy.store.DB().QueryContext(ctx, `SELECT apple_rowid, mailbox_id FROM messages WHERE is_deleted = 0 AND apple_rowid IS NOT NULL`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id, mailboxID int64
		if err := rows.Scan(&id, &mailboxID); err != nil {
			_ = rows.Close()
			return err
		}
		byMailbox[mailboxID] = append(byMailbox[mailboxID], id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var allIDs []int64
	for _, ids := range byMailbox {
		allIDs = append(allIDs, ids...)
	}
	if len(allIDs) == 0 {
		return nil
	}
	exists, err := host.Exists(ctx, allIDs)
	if err != nil {
		return fmt.Errorf("forwardsync: phase 5 existence check: %w", err)
	}

	for mailboxID, ids := range byMailbox {
		var gone []int64
		for _, id := range ids {
			if !exists[id] {
				gone = append(gone, id)
			}
		}
		if len(gone) == 0 {
			continue
		}
		n, err := sy.store.SoftDeleteByAppleRowIDs(mailboxID, gone)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Deleted += n
	}
	return nil
}

// parsedMessage pairs a parsed mail message with its originating host row
// and resolved file path, ready for conversion into a store.Message.
type parsedMessage struct {
	row     hostdb.MessageRow
	msg     *mailparse.Message
	mailbox *mailboxEntry
}

// ingestRows is the shared full/incremental ingestion core: parse files in
// a bounded worker pool, batch upsert with a single writer, then thread
// every successfully-ingested message.
func (sy *Syncer) ingestRows(ctx context.Context, rows []hostdb.MessageRow, mailboxes map[int64]*mailboxEntry, result *Result) error {
	if len(rows) == 0 {
		return nil
	}

	parsed := make([]*parsedMessage, len(rows))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sy.opts.Workers)

	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			mb, ok := mailboxes[row.Mailbox]
			if !ok {
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: unknown mailbox %d", row.RowID, row.Mailbox))
				mu.Unlock()
				return nil
			}
			path, found := envelope.MessageFilePath(row.RowID, mb.fsPath)
			if !found {
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: message file not found", row.RowID))
				mu.Unlock()
				return nil
			}
			container, err := emlx.ParseFile(path)
			if err != nil {
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: parse container: %v", row.RowID, err))
				mu.Unlock()
				return nil
			}
			msg, err := mailparse.ParseContainer(container)
			if err != nil {
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: parse message: %v", row.RowID, err))
				mu.Unlock()
				return nil
			}
			parsed[i] = &parsedMessage{row: row, msg: msg, mailbox: mb}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("forwardsync: parse pool: %w", err)
	}

	var toUpsert []*store.Message
	for _, p := range parsed {
		if p == nil {
			continue
		}
		toUpsert = append(toUpsert, buildStoreMessage(p))
	}
	if len(toUpsert) == 0 {
		return nil
	}

	sy.progress.OnProgress(len(toUpsert), len(rows))

	sy.progress.OnPhase(PhaseIndexing)
	batchResult, err := sy.store.BatchUpsertMessages(toUpsert, sy.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("forwardsync: batch upsert: %w", err)
	}
	result.Processed += len(toUpsert)
	result.Added += batchResult.Inserted
	result.Updated += batchResult.Updated
	for _, e := range batchResult.Errors {
		result.Errors = append(result.Errors, e)
	}

	sy.progress.OnPhase(PhaseThreading)
	for _, m := range toUpsert {
		tm := threading.Message{
			ID:          m.ID,
			MessageID:   m.MessageID.String,
			InReplyTo:   m.InReplyTo.String,
			References:  m.ThreadingReferences,
			Subject:     m.Subject.String,
			SenderEmail: m.SenderEmail.String,
		}
		if m.DateSent.Valid {
			tm.Date = m.DateSent.Time
		} else if m.DateReceived.Valid {
			tm.Date = m.DateReceived.Time
		}
		if _, err := sy.detector.Assign(ctx, tm); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("thread %s: %v", m.ID, err))
		}
	}

	return nil
}

// buildStoreMessage converts a parsed host row + MIME message into the
// mirror's row shape, computing the stable content-addressed ID.
func buildStoreMessage(p *parsedMessage) *store.Message {
	row, msg := p.row, p.msg

	id := idgen.Generate(msg.MessageID, idgen.HeaderFields{
		Subject: msg.Subject,
		From:    primaryFromAddress(msg),
		Date:    msg.Date.Unix(),
		HasDate: !msg.Date.IsZero(),
		RowID:   row.RowID,
		HasRow:  true,
	})

	senderEmail, senderName := resolveSender(row, msg)

	m := &store.Message{
		ID:                  id,
		AppleRowID:          sql.NullInt64{Int64: row.RowID, Valid: true},
		MessageID:           sql.NullString{String: msg.MessageID, Valid: msg.MessageID != ""},
		MailboxID:           row.Mailbox,
		Subject:             sql.NullString{String: msg.Subject, Valid: msg.Subject != ""},
		SenderName:          sql.NullString{String: senderName, Valid: senderName != ""},
		SenderEmail:         sql.NullString{String: senderEmail, Valid: senderEmail != ""},
		IsRead:              row.Read,
		IsFlagged:           row.Flagged,
		HasAttachments:      len(msg.Attachments) > 0,
		BodyText:            sql.NullString{String: msg.BodyTextOrStripped(), Valid: msg.BodyTextOrStripped() != ""},
		BodyHTML:            sql.NullString{String: msg.BodyHTML, Valid: msg.BodyHTML != ""},
		MailboxStatus:       "inbox",
		PendingSyncAction:   "none",
		InReplyTo:           sql.NullString{String: msg.InReplyTo, Valid: msg.InReplyTo != ""},
		ThreadingReferences: msg.References,
	}
	if !msg.Date.IsZero() {
		m.DateSent = sql.NullTime{Time: msg.Date, Valid: true}
	}
	if row.DateReceived.Valid {
		m.DateReceived = sql.NullTime{Time: time.Unix(int64(row.DateReceived.Float64), 0).UTC(), Valid: true}
	}
	return m
}

// resolveSender prefers the parsed MIME From header; falls back to the
// host's joined sender_email/sender_name columns.
func resolveSender(row hostdb.MessageRow, msg *mailparse.Message) (email, name string) {
	if len(msg.From) > 0 {
		return msg.From[0].Email, msg.From[0].Name
	}
	return row.SenderEmail.String, row.SenderName.String
}

// primaryFromAddress renders "Name <email>" or "email" for use as the
// header-tuple hash input, per the host's pseudo-sender convention.
func primaryFromAddress(msg *mailparse.Message) string {
	if len(msg.From) == 0 {
		return ""
	}
	f := msg.From[0]
	if f.Name != "" {
		return fmt.Sprintf("%q <%s>", f.Name, f.Email)
	}
	return f.Email
}
