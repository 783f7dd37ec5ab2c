package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alekzandar/vibereader/internal/daemon"
	"github.com/Alekzandar/vibereader/internal/db"
	"github.com/Alekzandar/vibereader/internal/domain"
	"github.com/Alekzandar/vibereader/internal/ui"
)

// DefaultTitle is used by "session start" without a title.
const DefaultTitle = "Reading"

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start, stop or inspect the reading session",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "start [title]",
		Short: "Start a reading session",
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			if title == "" {
				title = DefaultTitle
			}
			resp, err := control(rootOpts.Config)(daemon.Command{Cmd: string(domain.ActionStart), Title: title})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started session #%d: %s\n", resp.SessionID, resp.Title)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the active reading session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := control(rootOpts.Config)(daemon.Command{Cmd: string(domain.ActionStop)}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session stopped")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the active reading session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := control(rootOpts.Config)(daemon.Command{Cmd: daemon.CmdStatus})
			if err != nil {
				return err
			}
			if resp.Active == nil || !*resp.Active {
				fmt.Fprintln(cmd.OutOrStdout(), "No active session")
				return nil
			}
			sess := db.Session{ID: resp.SessionID, Title: resp.Title, StartTime: resp.Started(), Status: db.StatusActive}
			fmt.Fprintln(cmd.OutOrStdout(), ui.SessionLine(sess, time.Now()))
			return nil
		},
	})

	return cmd
}
