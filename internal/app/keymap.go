package app

// Key binding constants used in handleKey.
const (
	KeyQuit       = "x"
	KeyCtrlC      = "ctrl+c"
	KeyNewSession = "n"
	KeyStop       = "s"
	KeyDefine     = "d"
	KeyQuote      = "q"
	KeyTab        = "tab"
	KeyUp         = "up"
	KeyDown       = "down"
	KeyJ          = "j"
	KeyK          = "k"
	KeyEnter      = "enter"
	KeyEsc        = "esc"
	KeyRetry      = "r"
	KeyConfirm    = "c"
)
