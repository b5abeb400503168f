//go:build darwin

package cmd

import (
	"time"

	"github.com/mailmirror-dev/mailmirror/internal/backsync"
	"github.com/mailmirror-dev/mailmirror/internal/bridge"
	"github.com/mailmirror-dev/mailmirror/internal/bridge/osascript"
)

// newBridge constructs the live Mail.app scripting bridge. Only available
// on darwin, where Mail.app and osascript actually exist. The returned
// *osascript.Bridge satisfies both bridge.Bridge (transport) and
// backsync.ScriptBuilder (script source).
func newBridge() (bridge.Bridge, backsync.ScriptBuilder, error) {
	br := osascript.New()
	br.LaunchTimeout = time.Duration(cfg.Bridge.LaunchTimeoutSeconds) * time.Second
	return br, br, nil
}
