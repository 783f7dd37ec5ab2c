package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Alekzandar/vibereader/internal/daemon"
	"github.com/Alekzandar/vibereader/internal/session"
)

// NewServeCommand creates the serve command, which hosts the session
// controller on the daemon socket.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session daemon",
		Long: `Run the session controller behind a Unix socket.

Surfaces (tui, session, define, quote, mcp) connect to it. A session left
active by a previous run is shown again on startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, logger := opts.Config, opts.Logger

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := daemon.NewHub(logger)
	ctrl := session.NewController(store, hub, hub, hub, session.WithLogger(logger))
	if _, err := ctrl.Resume(ctx); err != nil {
		logger.Warn("resume active session", "error", err)
	}

	ln, err := daemon.Listen(cfg.Daemon.Socket)
	if err != nil {
		return err
	}
	defer os.Remove(cfg.Daemon.Socket)

	logger.Info("daemon listening", "socket", cfg.Daemon.Socket, "db", cfg.Database.Path)
	err = daemon.NewServer(ctrl, hub, logger).Serve(ctx, ln)
	logger.Info("daemon stopped")
	return err
}
