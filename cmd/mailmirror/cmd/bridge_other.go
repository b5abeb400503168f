//go:build !darwin

package cmd

import (
	"fmt"
	"runtime"

	"github.com/mailmirror-dev/mailmirror/internal/backsync"
	"github.com/mailmirror-dev/mailmirror/internal/bridge"
)

// newBridge reports that the scripting bridge has no implementation on this
// platform; Mail.app and osascript only exist on macOS.
func newBridge() (bridge.Bridge, backsync.ScriptBuilder, error) {
	return nil, nil, fmt.Errorf("mail scripting bridge is not available on %s (requires macOS)", runtime.GOOS)
}
