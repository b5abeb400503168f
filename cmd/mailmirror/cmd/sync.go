package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailmirror-dev/mailmirror/internal/forwardsync"
	"github.com/mailmirror-dev/mailmirror/internal/store"
)

var syncForceFull bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror new, changed, and deleted messages from Apple Mail",
	Long: `Sync scans the host Apple Mail Envelope Index and message files for
changes since the last run (or performs a full scan on first run, or when
--full is passed) and mirrors them into the local database, threading each
message as it arrives.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(cfg.DatabaseDSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		opts := forwardsync.Options{
			MailRoot:    cfg.Mail.Root,
			CustomIndex: cfg.Mail.CustomIndex,
			Workers:     cfg.Sync.Workers,
			BatchSize:   cfg.Sync.BatchSize,
			ForceFull:   syncForceFull,
		}

		syncer := forwardsync.New(s, opts).
			WithLogger(logger).
			WithProgress(&syncCLIProgress{})

		start := time.Now()
		result, err := syncer.Sync(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		mode := "incremental"
		if !result.IsIncremental {
			mode = "full"
		}

		fmt.Println()
		fmt.Printf("Sync complete (%s)\n", mode)
		fmt.Printf("  Duration:   %s\n", time.Since(start).Round(time.Second))
		fmt.Printf("  Mailboxes:  %d\n", result.Mailboxes)
		fmt.Printf("  Processed:  %d\n", result.Processed)
		fmt.Printf("  Added:      %d\n", result.Added)
		fmt.Printf("  Updated:    %d\n", result.Updated)
		fmt.Printf("  Deleted:    %d\n", result.Deleted)
		fmt.Printf("  Unchanged:  %d\n", result.Unchanged)
		fmt.Printf("  Threads:    %d created, %d updated\n", result.ThreadsCreated, result.ThreadsUpdated)
		if len(result.Errors) > 0 {
			fmt.Printf("  Errors:     %d\n", len(result.Errors))
			for _, e := range result.Errors {
				fmt.Printf("    - %s\n", e)
			}
		}

		return nil
	},
}

// syncCLIProgress implements forwardsync.Progress for terminal output.
type syncCLIProgress struct {
	lastPrint time.Time
}

func (p *syncCLIProgress) OnPhase(phase string) {
	fmt.Printf("\n[%s]\n", phase)
}

func (p *syncCLIProgress) OnProgress(processed, total int) {
	if time.Since(p.lastPrint) < 500*time.Millisecond {
		return
	}
	p.lastPrint = time.Now()
	if total > 0 {
		fmt.Printf("\r  %d/%d", processed, total)
	} else {
		fmt.Printf("\r  %d", processed)
	}
}

func init() {
	syncCmd.Flags().BoolVar(&syncForceFull, "full", false, "force a full rescan instead of incremental sync")
	rootCmd.AddCommand(syncCmd)
}
