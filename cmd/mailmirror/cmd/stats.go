package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mailmirror-dev/mailmirror/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show mirror database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(cfg.DatabaseDSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		return printStats(s, cfg.DatabaseDSN())
	},
}

func printStats(s *store.Store, dbPath string) error {
	stats, err := s.GetStats()
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	summary, err := s.GetSyncStatusSummary()
	if err != nil {
		return fmt.Errorf("get sync status: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Database", dbPath})
	table.Append([]string{"Messages", humanize.Comma(stats.MessageCount)})
	table.Append([]string{"Threads", humanize.Comma(stats.ThreadCount)})
	table.Append([]string{"Attachments", humanize.Comma(stats.AttachmentCount)})
	table.Append([]string{"Mailboxes", humanize.Comma(stats.MailboxCount)})
	table.Append([]string{"Size", humanize.Bytes(uint64(stats.DatabaseSize))})
	lastSync := "never"
	if summary.LastSyncTime != nil {
		lastSync = humanize.Time(*summary.LastSyncTime)
	}
	table.Append([]string{"Sync state", summary.State})
	table.Append([]string{"Last sync", lastSync})
	if summary.LastError != "" {
		table.Append([]string{"Last sync error", summary.LastError})
	}
	table.Render()

	return nil
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
