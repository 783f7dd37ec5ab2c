package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Alekzandar/vibereader/internal/capture"
	"github.com/Alekzandar/vibereader/internal/daemon"
	"github.com/Alekzandar/vibereader/internal/domain"
	"github.com/Alekzandar/vibereader/internal/ports"
	"github.com/Alekzandar/vibereader/internal/speech"
)

// NewDefineCommand creates the define command.
func NewDefineCommand(rootOpts *RootOptions) *cobra.Command {
	var word string

	cmd := &cobra.Command{
		Use:   "define",
		Short: "Define a word and save it to the active session",
		Long: `Define a word and save it to the active session.

With --word the word is looked up directly. Without it vibereader listens
through the configured recognizer and asks before looking it up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd, rootOpts, domain.ActionDefineWord, word)
		},
	}

	cmd.Flags().StringVarP(&word, "word", "w", "", "word to define instead of listening")
	return cmd
}

// NewQuoteCommand creates the quote command.
func NewQuoteCommand(rootOpts *RootOptions) *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Save a quote to the active session",
		Long: `Save a quote to the active session.

With --text the quote is saved directly. Without it vibereader listens
through the configured recognizer and asks before saving.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd, rootOpts, domain.ActionSaveQuote, text)
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "quote text instead of listening")
	return cmd
}

func runCapture(cmd *cobra.Command, opts *RootOptions, action domain.Action, text string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	cfg, logger := opts.Config, opts.Logger
	out := cmd.OutOrStdout()

	resp, err := control(cfg)(daemon.Command{Cmd: string(action), Inline: true})
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var (
		services  ports.SpeechServices
		decisions chan capture.Decision
		term      *terminal
	)
	if strings.TrimSpace(text) != "" {
		services = speech.Typed{Text: text}
		decisions = make(chan capture.Decision, 1)
		decisions <- capture.Confirm
		close(decisions)
	} else {
		term = newTerminal(ctx, cmd.InOrStdin(), out)
		var prompt func(context.Context) (string, error)
		if cfg.Speech.Recognizer == speech.RecognizerText {
			prompt = term.prompt
		}
		services = newSpeech(cfg, prompt, logger)
		decisions = make(chan capture.Decision, 1)
	}

	p, err := capture.Launch(ctx, capture.Deps{
		Store:      store,
		Speech:     services,
		Dictionary: newDictionary(cfg),
		Observer: capture.ObserverFunc(func(s capture.Snapshot) {
			printSnapshot(out, s)
			if term != nil {
				if question := decisionPrompt(s); question != "" {
					fmt.Fprint(out, question)
					go term.decide(ctx, decisions)
				}
			}
		}),
		Logger: logger,
	}, resp.SessionID, domain.Mode(resp.Mode))
	if err != nil {
		return err
	}

	outcome, err := p.Run(ctx, decisions)
	if err != nil {
		return err
	}
	if outcome.ErrKind != "" {
		return &domain.Error{Kind: outcome.ErrKind}
	}
	return nil
}

func printSnapshot(w io.Writer, s capture.Snapshot) {
	switch s.State {
	case capture.StateListening:
		fmt.Fprintln(w, "Listening...")
	case capture.StateVerifying:
		fmt.Fprintf(w, "Heard: %q\n", s.Transcript)
	case capture.StateDefining:
		if s.Pending {
			fmt.Fprintf(w, "Looking up %s...\n", s.Transcript)
		} else {
			fmt.Fprintf(w, "%s: %s\n", s.Transcript, s.Definition)
		}
	case capture.StateSaving:
		fmt.Fprintln(w, "Saving...")
	case capture.StateDone:
		if s.Notice != "" {
			fmt.Fprintln(w, s.Notice)
		}
	}
}

// decisionPrompt returns the question for states that wait on the user.
func decisionPrompt(s capture.Snapshot) string {
	switch s.State {
	case capture.StateVerifying:
		return "[c]onfirm, [r]etry or [d]ismiss? "
	case capture.StateDefining:
		if !s.Pending {
			return "Press enter when done. "
		}
	case capture.StateError:
		// Only recognition failures wait; the run ends on any other error.
		if s.ErrKind != domain.KindRecognitionFailed {
			return ""
		}
		if s.Mode == domain.ModeSaveQuote {
			return s.ErrKind.Message() + " [r]etry or [d]ismiss? "
		}
		return s.ErrKind.Message() + " Press enter to dismiss. "
	}
	return ""
}

// terminal reads stdin lines for both typed transcripts and decisions. The
// pipeline waits on one of them at a time, so a single line feed serves both.
type terminal struct {
	lines <-chan string
	out   io.Writer
}

func newTerminal(ctx context.Context, in io.Reader, out io.Writer) *terminal {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return &terminal{lines: lines, out: out}
}

func (t *terminal) prompt(ctx context.Context) (string, error) {
	fmt.Fprint(t.out, "> ")
	select {
	case line, ok := <-t.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// decide reads one answer and delivers it. End of input dismisses.
func (t *terminal) decide(ctx context.Context, decisions chan<- capture.Decision) {
	for {
		select {
		case line, ok := <-t.lines:
			if !ok {
				decisions <- capture.Dismiss
				return
			}
			if d, ok := parseAnswer(line); ok {
				decisions <- d
				return
			}
			fmt.Fprint(t.out, "? ")
		case <-ctx.Done():
			return
		}
	}
}

func parseAnswer(line string) (capture.Decision, bool) {
	switch answer := strings.ToLower(strings.TrimSpace(line)); answer {
	case "", "d":
		return capture.Dismiss, true
	case "c", "y", "yes":
		return capture.Confirm, true
	case "r":
		return capture.Retry, true
	default:
		return capture.ParseDecision(answer)
	}
}
