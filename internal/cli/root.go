// Package cli builds the vibereader command tree.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Alekzandar/vibereader/internal/config"
)

// Version is stamped at build time.
var Version = "dev"

// RootOptions holds global flags and the state PersistentPreRunE prepares
// for subcommands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	Config *config.Config
	Logger *slog.Logger

	closeLog func() error
}

// NewRootCommand creates the root command for the vibereader CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "vibereader",
		Short: "Vibe Reader - reading sessions with spoken words and quotes",
		Long: `Track reading sessions, define words and save quotes by voice.

Run "vibereader serve" to host the session controller, then drive it from
"vibereader tui", the session/define/quote commands or an MCP client.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.prepare(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closeLog != nil {
				return opts.closeLog()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath(), "config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTUICommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewDefineCommand(opts))
	cmd.AddCommand(NewQuoteCommand(opts))
	cmd.AddCommand(NewSessionsCommand(opts))
	cmd.AddCommand(NewReviewCommand(opts))
	cmd.AddCommand(NewMCPCommand(opts))

	return cmd
}

func (o *RootOptions) prepare(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	o.Config = cfg

	// The TUI owns the terminal and the MCP server owns stdout.
	quiet := cmd.Name() == "tui" || cmd.Name() == "mcp"
	logger, closeLog, err := newLogger(cfg.Log, o.Verbose, cmd.ErrOrStderr(), quiet)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	o.Logger = logger
	o.closeLog = closeLog
	slog.SetDefault(logger)
	return nil
}
