package domain

import "fmt"

// Action identifies a control action delivered by a control surface.
type Action string

const (
	ActionStart      Action = "start"
	ActionStop       Action = "stop"
	ActionDefineWord Action = "define_word"
	ActionSaveQuote  Action = "save_quote"
)

// ParseAction validates a wire action identifier.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionStart, ActionStop, ActionDefineWord, ActionSaveQuote:
		return a, nil
	default:
		return "", Wrap(KindUnknownAction, fmt.Errorf("%q", s))
	}
}

// Mode returns the capture mode launched by a capture action.
func (a Action) Mode() (Mode, bool) {
	switch a {
	case ActionDefineWord:
		return ModeDefineWord, true
	case ActionSaveQuote:
		return ModeSaveQuote, true
	default:
		return "", false
	}
}

// Mode selects what the capture pipeline does with a transcript.
type Mode string

const (
	ModeDefineWord Mode = "define_word"
	ModeSaveQuote  Mode = "save_quote"
)

// Valid reports whether m is a known capture mode.
func (m Mode) Valid() bool {
	return m == ModeDefineWord || m == ModeSaveQuote
}
