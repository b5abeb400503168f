package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailmirror-dev/mailmirror/internal/backsync"
	"github.com/mailmirror-dev/mailmirror/internal/store"
)

var processPendingCmd = &cobra.Command{
	Use:   "process-pending",
	Short: "Retry every message with a pending archive/delete action",
	Long: `process-pending retries every mirrored message whose previous
archive or delete push failed, ordered by when it was last attempted, and
reports how many succeeded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(cfg.DatabaseDSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		br, scripts, err := newBridge()
		if err != nil {
			return err
		}

		sy := backsync.New(s, br, scripts).WithLogger(logger)
		result, err := sy.ProcessPendingActions(cmd.Context())
		if err != nil {
			return fmt.Errorf("process pending actions: %w", err)
		}

		fmt.Printf("Archived: %d  Deleted: %d  Failed: %d\n", result.Archived, result.Deleted, result.Failed)
		for _, e := range result.Errors {
			fmt.Printf("  error: %s\n", e)
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d action(s) failed", result.Failed)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(processPendingCmd)
}
