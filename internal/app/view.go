package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/Alekzandar/vibereader/internal/capture"
	"github.com/Alekzandar/vibereader/internal/daemon"
	"github.com/Alekzandar/vibereader/internal/db"
	"github.com/Alekzandar/vibereader/internal/domain"
	"github.com/Alekzandar/vibereader/internal/ui"
)

func (m Model) contentHeight() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(1) + surface(1) + dividers(2) + input(1) + notice(1) + footer(1) + padding
	reserved := 8
	return max(5, m.height-reserved)
}

func (m Model) sessionPanelWidth() int {
	if m.width == 0 {
		return 30
	}
	return max(24, m.width*35/100)
}

func (m Model) itemPanelWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(30, m.width-m.sessionPanelWidth()-3)
}

func (m Model) maxItemScroll() int {
	visible := m.contentHeight() - 1
	n := len(m.visibleItems())
	if n <= visible {
		return 0
	}
	return n - visible
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderSurfaceBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.capture != nil {
		sections = append(sections, m.renderCapture())
	} else {
		sections = append(sections, m.renderMainContent())
	}

	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.inputMode != inputNone {
		sections = append(sections, m.renderInput())
	}
	if m.notice != "" {
		sections = append(sections, m.renderNotice())
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("VIBE READER")
	var conn string
	switch {
	case m.connected:
		conn = ui.DimStyle.Render("  daemon connected")
	case m.reconnecting:
		conn = ui.ErrorTextStyle.Render("  " + m.statusText)
	default:
		conn = ui.DimStyle.Render("  " + m.statusText)
	}
	return title + conn
}

// renderSurfaceBar draws the control surface: the active session and its
// actions.
func (m Model) renderSurfaceBar() string {
	if m.surface == nil {
		return ui.IdleDotStyle.Render("○ ") + ui.DimStyle.Render("No active session")
	}
	text := m.surface.Text
	if text == "" {
		text = daemon.SurfaceText
	}
	return ui.ActiveDotStyle.Render("● ") +
		ui.SurfaceTitleStyle.Render(daemon.SurfaceHeading(m.surface.Title)) + "  " +
		ui.StatusStyle.Render(text)
}

func (m Model) renderMainContent() string {
	sessionW := m.sessionPanelWidth()
	itemW := m.itemPanelWidth()
	contentH := m.contentHeight()

	sessionLines := strings.Split(m.renderSessionPanel(sessionW, contentH), "\n")
	itemLines := strings.Split(m.renderItemPanel(itemW, contentH), "\n")

	divider := ui.DividerStyle.Render("│")
	rows := make([]string, 0, contentH)
	for i := 0; i < contentH; i++ {
		left := strings.Repeat(" ", sessionW)
		if i < len(sessionLines) {
			left = sessionLines[i]
		}
		right := ""
		if i < len(itemLines) {
			right = itemLines[i]
		}
		rows = append(rows, left+divider+right)
	}
	return strings.Join(rows, "\n")
}

func (m Model) panelTitle(text string, focus PanelFocus) string {
	if m.focusedPanel == focus {
		return ui.PanelTitleActiveStyle.Render(text)
	}
	return ui.PanelTitleStyle.Render(text)
}

func (m Model) renderSessionPanel(width, height int) string {
	lines := []string{m.panelTitle(fmt.Sprintf("SESSIONS (%d)", len(m.sessions)), FocusSessions)}

	if len(m.sessions) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No sessions yet"))
		lines = append(lines, ui.DimStyle.Render("  Press n to start one"))
	}

	now := time.Now()
	for i, s := range m.sessions {
		marker := "  "
		if s.Active() {
			marker = ui.ActiveDotStyle.Render("● ")
		}
		label := s.Title
		when := ui.TimestampStyle.Render(" " + humanize.RelTime(s.StartTime, now, "ago", "from now"))
		var line string
		if i == m.selectedSession && m.focusedPanel == FocusSessions {
			line = ui.SelectedStyle.Render("> ") + marker + ui.SelectedStyle.Render(label) + when
		} else {
			line = "  " + marker + label + when
		}
		lines = append(lines, truncateToWidth(line, width))
	}

	if len(lines) > height {
		lines = lines[:height]
	}
	for i, l := range lines {
		lines[i] = padRight(l, width)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderItemPanel(width, height int) string {
	items := m.visibleItems()

	header := m.panelTitle(fmt.Sprintf("CAPTURED (%d)", len(items)), FocusItems)
	if m.itemScroll > 0 {
		header += ui.ScrollBadgeStyle.Render(" SCROLL")
	}
	lines := []string{header}

	if !m.connected && m.connError != "" && len(m.sessions) == 0 {
		lines = append(lines, "")
		lines = append(lines, ui.ErrorStyle.Render("  Daemon not running."))
		lines = append(lines, ui.DimStyle.Render("  Start with: vibereader serve"))
		return strings.Join(lines, "\n")
	}
	if len(items) == 0 {
		lines = append(lines, "")
		lines = append(lines, ui.DimStyle.Render("  Nothing captured yet. Press d to define a word or q to save a quote."))
		return strings.Join(lines, "\n")
	}

	textWidth := max(10, width-10)
	var display []string
	for _, item := range items {
		display = append(display, renderItem(item, textWidth)...)
	}

	start := min(m.itemScroll, max(0, len(display)-1))
	end := min(len(display), start+height-1)
	for _, l := range display[start:end] {
		lines = append(lines, "  "+l)
	}
	return strings.Join(lines, "\n")
}

func renderItem(item db.Item, width int) []string {
	ts := ui.TimestampStyle.Render(item.CapturedAt().Format("[15:04]"))
	indent := strings.Repeat(" ", 8)

	var label, body string
	switch it := item.(type) {
	case db.WordItem:
		label = ui.WordLabelStyle.Render(it.Word.Term)
		body = it.Word.Definition
		wrapped := wrapText(body, width)
		out := []string{ts + " " + label}
		for _, wl := range wrapped {
			out = append(out, indent+wl)
		}
		return out
	case db.QuoteItem:
		label = ui.QuoteLabelStyle.Render("“")
		body = it.Quote.Content
	}
	wrapped := wrapText(body, width)
	out := []string{ts + " " + label + wrapped[0]}
	for _, wl := range wrapped[1:] {
		out = append(out, indent+wl)
	}
	return out
}

// renderCapture draws the capture view in place of the lists.
func (m Model) renderCapture() string {
	c := m.capture
	s := c.snap

	title := "Save quote"
	if c.mode == domain.ModeDefineWord {
		title = "Define word"
	}
	lines := []string{ui.PanelTitleActiveStyle.Render(title)}

	switch s.State {
	case capture.StateListening, "":
		if m.opts.Typed != nil {
			lines = append(lines, ui.DimStyle.Render("Type below and press enter"))
		} else {
			lines = append(lines, m.spinner.View()+" Listening...")
		}
	case capture.StateVerifying:
		lines = append(lines, ui.TranscriptStyle.Render(s.Transcript))
		lines = append(lines, ui.DimStyle.Render("Is this correct?"))
	case capture.StateDefining:
		lines = append(lines, ui.WordLabelStyle.Render(s.Transcript))
		if s.Pending {
			lines = append(lines, m.spinner.View()+" Looking up...")
		} else {
			lines = append(lines, wrapText(s.Definition, max(20, m.width-8))...)
		}
	case capture.StateSaving:
		lines = append(lines, m.spinner.View()+" Saving...")
	case capture.StateDone:
		lines = append(lines, ui.NoticeStyle.Render(s.Notice))
	case capture.StateError:
		lines = append(lines, ui.ErrorTextStyle.Render(s.ErrKind.Message()))
	}

	box := ui.CaptureBoxStyle.Width(max(20, m.width-4)).Render(strings.Join(lines, "\n"))
	boxLines := strings.Split(box, "\n")
	for len(boxLines) < m.contentHeight() {
		boxLines = append(boxLines, "")
	}
	return strings.Join(boxLines[:min(len(boxLines), m.contentHeight())], "\n")
}

func (m Model) renderInput() string {
	label := "Title: "
	if m.inputMode == inputTranscript {
		label = "Heard: "
	}
	return ui.FooterKeyStyle.Render(label) + m.input.View()
}

func (m Model) renderNotice() string {
	if m.noticeError {
		return ui.ErrorTextStyle.Render(m.notice)
	}
	return ui.NoticeStyle.Render(m.notice)
}

func footerKey(key, desc string) string {
	return ui.FooterKeyStyle.Render(key) + ui.FooterDescStyle.Render(" "+desc)
}

func (m Model) renderFooter() string {
	var parts []string

	switch {
	case m.inputMode != inputNone:
		parts = append(parts, footerKey("enter", "Submit"), footerKey("esc", "Cancel"))
	case m.capture != nil:
		switch m.capture.snap.State {
		case capture.StateVerifying:
			parts = append(parts, footerKey("c", "Confirm"), footerKey("r", "Retry"), footerKey("enter", "Dismiss"))
		case capture.StateError:
			if m.capture.mode == domain.ModeSaveQuote {
				parts = append(parts, footerKey("r", "Retry"))
			}
			parts = append(parts, footerKey("enter", "Dismiss"))
		case capture.StateDefining:
			if !m.capture.snap.Pending {
				parts = append(parts, footerKey("enter", "Done"))
			}
		}
		parts = append(parts, footerKey("esc", "Abort"))
	case m.connected:
		if m.surface != nil {
			parts = append(parts, footerKey("s", "Stop"), footerKey("d", "Define"), footerKey("q", "Quote"))
		} else {
			parts = append(parts, footerKey("n", "New session"))
		}
		parts = append(parts, footerKey("Tab", "Focus"), footerKey("j/k", "Sessions"), footerKey("↑↓", "Scroll"))
	}

	parts = append(parts, footerKey("x", "Quit"))
	return strings.Join(parts, "  ")
}

// Helpers

func padRight(s string, width int) string {
	// Get visible length (ignoring ANSI codes)
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	// Simple truncation for non-styled strings
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
