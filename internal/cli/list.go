package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alekzandar/vibereader/internal/ui"
)

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List reading sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(rootOpts.Config)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions yet")
				return nil
			}
			now := time.Now()
			for _, s := range sessions {
				fmt.Fprintln(out, ui.SessionLine(s, now))
			}
			return nil
		},
	}
}

// NewReviewCommand creates the review command.
func NewReviewCommand(rootOpts *RootOptions) *cobra.Command {
	var sessionID int64

	cmd := &cobra.Command{
		Use:   "review",
		Short: "List captured words and quotes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(rootOpts.Config)
			if err != nil {
				return err
			}
			defer store.Close()

			if sessionID != 0 {
				sess, err := store.Session(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				if sess == nil {
					return fmt.Errorf("no session #%d", sessionID)
				}
			}

			items, err := store.Items(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Nothing captured yet")
				return nil
			}
			now := time.Now()
			for _, item := range items {
				fmt.Fprintln(out, ui.ItemLine(item, now))
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&sessionID, "session", "s", 0, "only items from this session")
	return cmd
}
