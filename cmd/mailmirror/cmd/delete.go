package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailmirror-dev/mailmirror/internal/backsync"
	"github.com/mailmirror-dev/mailmirror/internal/store"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <message-id>",
	Short: "Delete a mirrored message in Mail.app",
	Args:  cobra.ExactArgs(1),
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
		if err := sy.DeleteMessage(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("delete: %w", err)
		}

		fmt.Println("deleted")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
