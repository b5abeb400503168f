// Package backsync pushes archive/delete intents optimistically from the
// mirror to the host mail app via a scripting bridge, with rollback on
// failure and a retry queue for pending actions.
package backsync

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mailmirror-dev/mailmirror/internal/bridge"
	"github.com/mailmirror-dev/mailmirror/internal/store"
)

// Action is a pending backward-sync intent.
type Action string

const (
	ActionArchive Action = "archive"
	ActionDelete  Action = "delete"
	ActionNone    Action = "none"
)

const (
	mailboxStatusInbox    = "inbox"
	mailboxStatusArchived = "archived"
	mailboxStatusDeleted  = "deleted"
)

// NoMessageID means the message has no RFC822 Message-ID, which
// AppleScript-style bridges require as their lookup key.
type NoMessageID struct{ ID string }

func (e *NoMessageID) Error() string { return "no message id for " + e.ID }

// MessageNotFound means the mirror has no row with the given id.
type MessageNotFound struct{ ID string }

func (e *MessageNotFound) Error() string { return "message not found: " + e.ID }

// AppleScriptFailed wraps the bridge error observed during step 3.
type AppleScriptFailed struct {
	ID         string
	Underlying error
}

func (e *AppleScriptFailed) Error() string {
	return fmt.Sprintf("script execution failed for %s: %v", e.ID, e.Underlying)
}
func (e *AppleScriptFailed) Unwrap() error { return e.Underlying }

// RollbackFailed means both the script execution and the subsequent
// mirror-state rollback failed.
type RollbackFailed struct {
	ID             string
	ScriptErr      error
	RollbackErr    error
}

func (e *RollbackFailed) Error() string {
	return fmt.Sprintf("rollback failed for %s: script error %v, rollback error %v", e.ID, e.ScriptErr, e.RollbackErr)
}

// ScriptBuilder constructs the AppleScript source for each operation. The
// darwin osascript package supplies the concrete implementation; fakes are
// used in tests.
type ScriptBuilder interface {
	ArchiveScript(messageID string) string
	DeleteScript(messageID string) string
}

// Result summarizes a process_pending_actions batch run.
type Result struct {
	Archived int
	Deleted  int
	Failed   int
	Errors   []string
}

// Syncer executes the optimistic archive/delete protocol against the
// mirror store via a scripting bridge.
type Syncer struct {
	store   *store.Store
	bridge  bridge.Bridge
	scripts ScriptBuilder
	logger  *slog.Logger
}

// New creates a Syncer.
func New(s *store.Store, br bridge.Bridge, scripts ScriptBuilder) *Syncer {
	return &Syncer{store: s, bridge: br, scripts: scripts, logger: slog.Default()}
}

func (sy *Syncer) WithLogger(l *slog.Logger) *Syncer { sy.logger = l; return sy }

// ArchiveMessage pushes an archive intent for the message with mirror id.
func (sy *Syncer) ArchiveMessage(ctx context.Context, id string) error {
	return sy.run(ctx, id, ActionArchive, mailboxStatusArchived, sy.scripts.ArchiveScript)
}

// DeleteMessage pushes a delete intent for the message with mirror id.
func (sy *Syncer) DeleteMessage(ctx context.Context, id string) error {
	return sy.run(ctx, id, ActionDelete, mailboxStatusDeleted, sy.scripts.DeleteScript)
}

// run implements §4.9's five-step optimistic protocol for one message.
func (sy *Syncer) run(ctx context.Context, id string, action Action, target string, buildScript func(messageID string) string) error {
	m, err := sy.store.GetMessage(id, false)
	if err != nil {
		return err
	}
	if m == nil {
		return &MessageNotFound{ID: id}
	}
	if !m.MessageID.Valid || m.MessageID.String == "" {
		return &NoMessageID{ID: id}
	}

	originalStatus := m.MailboxStatus

	if err := sy.store.BeginPendingSync(id, target, string(action)); err != nil {
		return err
	}

	source := buildScript(m.MessageID.String)
	_, execErr := sy.bridge.Execute(ctx, source)
	if execErr == nil {
		if err := sy.store.ClearPendingSyncAction(id); err != nil {
			return err
		}
		sy.cleanupExportFile(m)
		return nil
	}

	if rbErr := sy.store.UpdateMailboxStatus(id, originalStatus); rbErr != nil {
		return &RollbackFailed{ID: id, ScriptErr: execErr, RollbackErr: rbErr}
	}
	return &AppleScriptFailed{ID: id, Underlying: execErr}
}

// cleanupExportFile deletes any export_path file after a successful push;
// failure is a warning only, per §4.9 step 4.
func (sy *Syncer) cleanupExportFile(m *store.Message) {
	if !m.ExportPath.Valid || m.ExportPath.String == "" {
		return
	}
	if err := os.Remove(m.ExportPath.String); err != nil && !os.IsNotExist(err) {
		sy.logger.Warn("failed to remove export file", "path", m.ExportPath.String, "error", err)
	}
}

// ProcessPendingActions retries every row with a pending action, ordered
// by updated_at ascending for fairness, per §4.9's batch retry contract.
func (sy *Syncer) ProcessPendingActions(ctx context.Context) (*Result, error) {
	rows, err := sy.store.GetMessagesWithPendingActions()
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, m := range rows {
		var opErr error
		switch Action(m.PendingSyncAction) {
		case ActionArchive:
			opErr = sy.ArchiveMessage(ctx, m.ID)
		case ActionDelete:
			opErr = sy.DeleteMessage(ctx, m.ID)
		default:
			continue
		}

		if opErr != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", m.ID, opErr))
			continue
		}
		switch Action(m.PendingSyncAction) {
		case ActionArchive:
			result.Archived++
		case ActionDelete:
			result.Deleted++
		}
	}
	return result, nil
}
