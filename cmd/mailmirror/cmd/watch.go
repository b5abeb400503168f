package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mailmirror-dev/mailmirror/internal/backsync"
	"github.com/mailmirror-dev/mailmirror/internal/forwardsync"
	"github.com/mailmirror-dev/mailmirror/internal/scheduler"
	"github.com/mailmirror-dev/mailmirror/internal/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run sync and pending-action retry on a schedule until interrupted",
	Long: `watch keeps the mirror current in the background: it runs a forward
sync (see "sync") and then retries any pending archive/delete actions (see
"process-pending") on the interval or cron expression configured under
[sync], until interrupted with Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(cfg.DatabaseDSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		sched := scheduler.New().WithLogger(logger)

		job := func(ctx context.Context) error {
			opts := forwardsync.Options{
				MailRoot:    cfg.Mail.Root,
				CustomIndex: cfg.Mail.CustomIndex,
				Workers:     cfg.Sync.Workers,
				BatchSize:   cfg.Sync.BatchSize,
			}
			if _, err := forwardsync.New(s, opts).WithLogger(logger).Sync(ctx); err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			br, scripts, err := newBridge()
			if err != nil {
				logger.Warn("skipping pending-action retry", "error", err)
				return nil
			}
			if _, err := backsync.New(s, br, scripts).WithLogger(logger).ProcessPendingActions(ctx); err != nil {
				return fmt.Errorf("process pending actions: %w", err)
			}
			return nil
		}

		if err := sched.AddSyncJob(cfg, job); err != nil {
			return fmt.Errorf("schedule sync: %w", err)
		}
		if !sched.IsScheduled("sync") {
			return fmt.Errorf("sync is not scheduled: set sync.interval_minutes or sync.cron_expr in config")
		}

		sched.Start()
		fmt.Println("watching for changes, press Ctrl+C to stop")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		<-sched.Stop().Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
