// Package bridge defines the scripting-bridge contract used to push
// archive/delete intents to the host mail app, and the typed errors the
// core relies on to react to specific host automation failures.
package bridge

import "context"

// Bridge executes scripts against the host mail application.
type Bridge interface {
	// Execute runs source against the host app and returns its textual
	// output, or one of the typed errors below.
	Execute(ctx context.Context, source string) (output string, err error)
}

// AutomationPermissionDenied means the host denies scripting access —
// mapped from error 1743 or a "not authorized" substring.
type AutomationPermissionDenied struct {
	Guidance string
}

func (e *AutomationPermissionDenied) Error() string {
	return "automation permission denied: " + e.Guidance
}

// MailAppNotResponding is mapped from 600/609/903-class errors.
type MailAppNotResponding struct {
	Underlying error
}

func (e *MailAppNotResponding) Error() string {
	if e.Underlying == nil {
		return "mail app not responding"
	}
	return "mail app not responding: " + e.Underlying.Error()
}

func (e *MailAppNotResponding) Unwrap() error { return e.Underlying }

// MessageNotFound is mapped from 1728/1719 object-not-found errors whose
// message mentions "message".
type MessageNotFound struct {
	ID string
}

func (e *MessageNotFound) Error() string {
	if e.ID == "" {
		return "message not found"
	}
	return "message not found: " + e.ID
}

// MailboxNotFound is the same error class as MessageNotFound, but whose
// message mentions "mailbox"; Name is the quoted mailbox name extracted
// from the underlying error text.
type MailboxNotFound struct {
	Name string
}

func (e *MailboxNotFound) Error() string {
	return "mailbox not found: " + e.Name
}

// MessageResolutionAmbiguous means more than one host message matched the
// lookup key (Message-ID collisions across mailboxes).
type MessageResolutionAmbiguous struct {
	MessageID string
	Count     int
}

func (e *MessageResolutionAmbiguous) Error() string {
	return "ambiguous message resolution for " + e.MessageID
}

// ScriptCompilationFailed is mapped from 2740/2741.
type ScriptCompilationFailed struct {
	Details string
}

func (e *ScriptCompilationFailed) Error() string {
	return "script compilation failed: " + e.Details
}

// ExecutionFailed is the default error kind when no more specific mapping
// applies.
type ExecutionFailed struct {
	Code    int
	Message string
}

func (e *ExecutionFailed) Error() string {
	return e.Message
}

// MailLaunchTimeout is raised when the host app fails to start responding
// within the configured launch timeout.
type MailLaunchTimeout struct {
	Seconds float64
}

func (e *MailLaunchTimeout) Error() string {
	return "mail app launch timed out"
}
