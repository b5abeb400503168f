package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mailmirror-dev/mailmirror/internal/store"
)

var (
	searchLimit  int
	searchOffset int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search mirrored messages",
	Long: `Search uses a named-prefix query grammar alongside free-text terms:

  from:        Sender email address
  to:          Recipient email address
  subject:     Subject text search
  mailbox:     Mailbox name
  is:          is:read, is:unread, is:flagged, is:unflagged
  has:         has:attachment
  after:       Messages on/after date (YYYY-MM-DD)
  before:      Messages before date (YYYY-MM-DD)
  date:        Messages on a single date (YYYY-MM-DD)

Bare words perform full-text search ranked by BM25 (falling back to a
plain LIKE scan if the database was built without FTS5).

Examples:
  mailmirror search from:alice@example.com has:attachment
  mailmirror search subject:"quarterly report" after:2026-01-01`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queryStr := strings.Join(args, " ")

		s, err := store.Open(cfg.DatabaseDSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		f := store.ParseQuery(queryStr)
		results, err := s.SearchMessagesWithFilters(cmd.Context(), f, searchLimit, searchOffset)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if len(results) == 0 {
			fmt.Println("No messages found.")
			return nil
		}

		for _, r := range results {
			printMessageSummary(r.Message)
		}
		fmt.Printf("\n%d message(s)\n", len(results))

		return nil
	},
}

func printMessageSummary(m *store.Message) {
	subject := "(no subject)"
	if m.Subject.Valid && m.Subject.String != "" {
		subject = m.Subject.String
	}
	sender := "(unknown sender)"
	if m.SenderEmail.Valid && m.SenderEmail.String != "" {
		sender = m.SenderEmail.String
	}
	date := ""
	if m.DateReceived.Valid {
		date = m.DateReceived.Time.Format("2006-01-02 15:04")
	}
	flags := ""
	if !m.IsRead {
		flags += "U"
	}
	if m.IsFlagged {
		flags += "F"
	}
	fmt.Printf("%-16s [%-2s] %-30s %s\n", date, flags, sender, subject)
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 25, "maximum results to return")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "result offset for pagination")
	rootCmd.AddCommand(searchCmd)
}
