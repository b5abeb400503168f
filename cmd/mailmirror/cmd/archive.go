package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailmirror-dev/mailmirror/internal/backsync"
	"github.com/mailmirror-dev/mailmirror/internal/store"
)

var archiveCmd = &cobra.Command{
	Use:   "archive <message-id>",
	Short: "Archive a mirrored message in Mail.app",
	Long: `Archive pushes an archive intent for the message with the given mirror
id optimistically: the mirror's mailbox_status is updated before the
AppleScript runs, and rolled back automatically if the script fails.`,
	Args: cobra.ExactArgs(1),
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
		if err := sy.ArchiveMessage(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("archive: %w", err)
		}

		fmt.Println("archived")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}
