//go:build darwin

// Package osascript is the concrete darwin Scripting Bridge: it shells out
// to /usr/bin/osascript to drive Mail.app via AppleScript, mapping the
// host's numeric error codes onto the bridge package's typed errors.
package osascript

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mailmirror-dev/mailmirror/internal/bridge"
)

// Bridge drives Mail.app through osascript.
type Bridge struct {
	LaunchTimeout time.Duration // default 10s
	PollInterval  time.Duration // default 100ms
	binary        string
}

// New creates a Bridge with the spec's default launch timeout and poll
// interval.
func New() *Bridge {
	return &Bridge{
		LaunchTimeout: 10 * time.Second,
		PollInterval:  100 * time.Millisecond,
		binary:        "osascript",
	}
}

// Execute runs source as an AppleScript program via osascript, ensuring
// Mail.app is running first.
func (b *Bridge) Execute(ctx context.Context, source string) (string, error) {
	if err := b.ensureRunning(ctx); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, b.binary, "-e", source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", mapError(stderr.String(), err)
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

// ensureRunning checks whether Mail.app is already running; if not, it
// launches it and polls every PollInterval until it responds or
// LaunchTimeout elapses.
func (b *Bridge) ensureRunning(ctx context.Context) error {
	const isRunningScript = `tell application "System Events" to (name of processes) contains "Mail"`
	running, err := b.runBool(ctx, isRunningScript)
	if err == nil && running {
		return nil
	}

	launch := exec.CommandContext(ctx, "open", "-a", "Mail")
	if err := launch.Run(); err != nil {
		return &bridge.MailAppNotResponding{Underlying: err}
	}

	deadline := time.Now().Add(b.LaunchTimeout)
	for time.Now().Before(deadline) {
		if ok, err := b.runBool(ctx, isRunningScript); err == nil && ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.PollInterval):
		}
	}
	return &bridge.MailLaunchTimeout{Seconds: b.LaunchTimeout.Seconds()}
}

func (b *Bridge) runBool(ctx context.Context, source string) (bool, error) {
	cmd := exec.CommandContext(ctx, b.binary, "-e", source)
	out, err := cmd.Output()
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) == "true", nil
}

var quotedNameRe = regexp.MustCompile(`"([^"]+)"`)

// mapError translates osascript's stderr text into a typed bridge error,
// per §4.10's error-code table.
func mapError(stderrText string, underlying error) error {
	code := extractErrorCode(stderrText)
	lower := strings.ToLower(stderrText)

	switch {
	case code == 1743 || strings.Contains(lower, "not authorized"):
		return &bridge.AutomationPermissionDenied{
			Guidance: "grant Automation access to this app in System Settings > Privacy & Security > Automation",
		}
	case code == 600 || code == 609 || code == 903:
		return &bridge.MailAppNotResponding{Underlying: underlying}
	case code == 1728 || code == 1719:
		if strings.Contains(lower, "message") {
			return &bridge.MessageNotFound{}
		}
		if strings.Contains(lower, "mailbox") {
			name := ""
			if m := quotedNameRe.FindStringSubmatch(stderrText); len(m) == 2 {
				name = m[1]
			}
			return &bridge.MailboxNotFound{Name: name}
		}
	case code == 2740 || code == 2741:
		return &bridge.ScriptCompilationFailed{Details: stderrText}
	}

	return &bridge.ExecutionFailed{Code: code, Message: fmt.Sprintf("%s: %v", strings.TrimSpace(stderrText), underlying)}
}

var errorCodeRe = regexp.MustCompile(`error number (-?\d+)`)

func extractErrorCode(stderrText string) int {
	m := errorCodeRe.FindStringSubmatch(stderrText)
	if len(m) != 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	if n < 0 {
		n = -n
	}
	return n
}

// ArchiveScript implements backsync.ScriptBuilder, letting callers pass a
// *Bridge directly as both the transport and the script source.
func (b *Bridge) ArchiveScript(messageID string) string { return ArchiveScript(messageID) }

// DeleteScript implements backsync.ScriptBuilder.
func (b *Bridge) DeleteScript(messageID string) string { return DeleteScript(messageID) }

// ArchiveScript builds the AppleScript source to archive the message
// identified by messageID, trying each candidate archive mailbox name in
// order and stopping at the first that exists.
func ArchiveScript(messageID string) string {
	var b strings.Builder
	b.WriteString(`tell application "Mail"` + "\n")
	fmt.Fprintf(&b, "\tset theMessage to first message whose message id is %q\n", messageID)
	b.WriteString("\tset theAccount to account of mailbox of theMessage\n")
	b.WriteString("\tset archived to false\n")
	for _, name := range ArchiveMailboxNames {
		fmt.Fprintf(&b, "\ttry\n")
		fmt.Fprintf(&b, "\t\tset targetBox to mailbox %q of theAccount\n", name)
		b.WriteString("\t\tmove theMessage to targetBox\n")
		b.WriteString("\t\tset archived to true\n")
		b.WriteString("\tend try\n")
		b.WriteString("\tif archived then return \"ok\"\n")
	}
	b.WriteString("\terror \"no archive mailbox found\"\n")
	b.WriteString("end tell\n")
	return b.String()
}

// ArchiveMailboxNames is the locale-aware candidate list tried in order,
// per §9's adopted Open Question resolution.
var ArchiveMailboxNames = []string{"Archive", "All Mail", "Archives", "Archivo", "Archiv"}

// DeleteScript builds the AppleScript source to delete the message
// identified by messageID via the host's native delete verb (moves to
// trash rather than permanently erasing).
func DeleteScript(messageID string) string {
	var b strings.Builder
	b.WriteString(`tell application "Mail"` + "\n")
	fmt.Fprintf(&b, "\tset theMessage to first message whose message id is %q\n", messageID)
	b.WriteString("\tdelete theMessage\n")
	b.WriteString("\treturn \"ok\"\n")
	b.WriteString("end tell\n")
	return b.String()
}
