package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailmirror-dev/mailmirror/internal/store"
)

var (
	threadsLimit       int
	threadsOffset      int
	threadsSort        string
	threadsParticipant string
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List mirrored message threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(cfg.DatabaseDSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		opts := store.ThreadListOptions{
			Limit:       threadsLimit,
			Offset:      threadsOffset,
			Sort:        store.ThreadListSort(threadsSort),
			Participant: threadsParticipant,
		}

		threads, err := s.GetThreads(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("list threads: %w", err)
		}

		if len(threads) == 0 {
			fmt.Println("No threads found.")
			return nil
		}

		for _, t := range threads {
			subject := t.Subject
			if subject == "" {
				subject = "(no subject)"
			}
			fmt.Printf("%-40s %3d msgs, %3d participants  last: %s\n",
				subject, t.MessageCount, t.ParticipantCount, t.LastDate.Format("2006-01-02"))
		}

		return nil
	},
}

func init() {
	threadsCmd.Flags().IntVar(&threadsLimit, "limit", 50, "maximum threads to return")
	threadsCmd.Flags().IntVar(&threadsOffset, "offset", 0, "result offset for pagination")
	threadsCmd.Flags().StringVar(&threadsSort, "sort", "recent", "sort order: recent, oldest, size")
	threadsCmd.Flags().StringVar(&threadsParticipant, "participant", "", "filter to threads containing this sender email")
	rootCmd.AddCommand(threadsCmd)
}
