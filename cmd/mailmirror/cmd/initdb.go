package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailmirror-dev/mailmirror/internal/store"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the mirror database schema",
	Long: `Initialize the mailmirror database with the required schema.

Safe to run multiple times - migrations only apply versions newer than the
database's current schema_version.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := cfg.DatabaseDSN()
		logger.Info("initializing mirror database", "path", dbPath)

		s, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		logger.Info("database initialized successfully")
		return printStats(s, dbPath)
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}
