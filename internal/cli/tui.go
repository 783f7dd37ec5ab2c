package cli

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Alekzandar/vibereader/internal/app"
	"github.com/Alekzandar/vibereader/internal/capture"
	"github.com/Alekzandar/vibereader/internal/speech"
)

// NewTUICommand creates the tui command.
func NewTUICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(rootOpts)
		},
	}
}

func runTUI(opts *RootOptions) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("tui needs an interactive terminal")
	}
	cfg, logger := opts.Config, opts.Logger

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var typed *app.TypedInput
	var prompt func(context.Context) (string, error)
	if cfg.Speech.Recognizer == speech.RecognizerText {
		typed = app.NewTypedInput()
		prompt = typed.Prompt
	}

	m := app.New(app.Options{
		SocketPath: cfg.Daemon.Socket,
		Store:      store,
		Capture: capture.Deps{
			Store:      store,
			Speech:     newSpeech(cfg, prompt, logger),
			Dictionary: newDictionary(cfg),
			Logger:     logger,
		},
		Typed:  typed,
		Logger: logger,
	})

	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
