// Package app is the bubbletea terminal client: the control surface bar,
// session and capture lists, and the capture view.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Alekzandar/vibereader/internal/capture"
	"github.com/Alekzandar/vibereader/internal/daemon"
	"github.com/Alekzandar/vibereader/internal/db"
	"github.com/Alekzandar/vibereader/internal/domain"
	"github.com/Alekzandar/vibereader/internal/ui"
)

const noticeTimeout = 5 * time.Second

// PanelFocus tracks which panel has keyboard focus.
type PanelFocus int

const (
	FocusSessions PanelFocus = iota
	FocusItems
)

type inputMode int

const (
	inputNone inputMode = iota
	inputTitle
	inputTranscript
)

// Options wires the model to the daemon and the local store.
type Options struct {
	SocketPath string
	// Store feeds the session and item lists. Nil disables them.
	Store *db.Store
	// Capture is used for pipelines launched by the daemon. Observer is set
	// per run.
	Capture capture.Deps
	// Typed is set when the recognizer reads typed transcripts.
	Typed  *TypedInput
	Logger *slog.Logger
}

// surfaceState mirrors the daemon's control surface.
type surfaceState struct {
	SessionID int64
	Title     string
	Text      string
}

// captureView is the state of the running pipeline. It is set as soon as a
// launch is requested so a second capture event cannot start another run.
type captureView struct {
	// pending is true until the pipeline has been launched.
	pending   bool
	runID     string
	sessionID int64
	mode      domain.Mode
	snap      capture.Snapshot
	decisions chan<- capture.Decision
	snapshots <-chan capture.Snapshot
	result    <-chan CaptureFinishedMsg
	cancel    context.CancelFunc
}

// Model is the root bubbletea model for the vibereader TUI.
type Model struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	// Connection state
	client           *daemon.Client // command connection
	evClient         *daemon.Client // event subscription connection
	connected        bool
	connError        string
	reconnecting     bool
	reconnectAttempt int

	// Control surface
	surface *surfaceState

	// Lists, fed by store observers
	sessionsCh      <-chan []db.Session
	itemsCh         <-chan []db.Item
	sessions        []db.Session
	items           []db.Item
	selectedSession int
	itemScroll      int

	// Capture
	capture *captureView
	spinner spinner.Model

	// Input line
	input     textinput.Model
	inputMode inputMode

	// UI state
	focusedPanel PanelFocus
	width        int
	height       int

	// Notices
	notice      string
	noticeError bool
	noticeSeq   int

	statusText string
}

// New creates a new Model with default state.
func New(opts Options) Model {
	if opts.SocketPath == "" {
		opts.SocketPath = daemon.SocketPath()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(ui.SpinnerStyle))
	in := textinput.New()
	in.CharLimit = 200

	m := Model{
		opts:         opts,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
		spinner:      sp,
		input:        in,
		focusedPanel: FocusSessions,
		statusText:   "Connecting to vibereader daemon...",
	}
	if opts.Store != nil {
		m.sessionsCh = opts.Store.ObserveSessions(ctx)
		m.itemsCh = opts.Store.ObserveItems(ctx, 0)
	}
	return m
}

// Init connects to the daemon and starts reading the store's lists.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{connectCmd(m.opts.SocketPath), m.spinner.Tick}
	if m.sessionsCh != nil {
		cmds = append(cmds, waitSessionsCmd(m.sessionsCh), waitItemsCmd(m.itemsCh))
	}
	return tea.Batch(cmds...)
}

// connectCmd attempts to connect to the daemon with two connections:
// one for commands, one for event subscription.
func connectCmd(sockPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := daemon.Connect(sockPath)
		if err != nil {
			return DaemonConnectErrorMsg{Err: err}
		}
		evClient, err := daemon.Connect(sockPath)
		if err != nil {
			client.Close()
			return DaemonConnectErrorMsg{Err: err}
		}
		return DaemonConnectedMsg{Client: client, EvClient: evClient}
	}
}

// subscribeCmd subscribes the event client as a capture-capable surface and
// starts reading events.
func subscribeCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		if err := evClient.Subscribe(true); err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return readEventCmd(evClient)()
	}
}

// readEventCmd reads the next event from the event client.
func readEventCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		ev, err := evClient.ReadEvent()
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return DaemonEventMsg{Event: ev}
	}
}

// statusCmd fetches the active session.
func statusCmd(client *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdStatus})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return StatusResponseMsg{Response: resp}
	}
}

// actionCmd sends a control action. Rejections come back as Err.
func actionCmd(client *daemon.Client, action domain.Action, title string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: string(action), Title: title})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return ActionResponseMsg{Action: action, Response: resp, Err: resp.Err()}
	}
}

func waitSessionsCmd(ch <-chan []db.Session) tea.Cmd {
	return func() tea.Msg {
		sessions, ok := <-ch
		if !ok {
			return nil
		}
		return SessionsMsg{Sessions: sessions}
	}
}

func waitItemsCmd(ch <-chan []db.Item) tea.Cmd {
	return func() tea.Msg {
		items, ok := <-ch
		if !ok {
			return nil
		}
		return ItemsMsg{Items: items}
	}
}

// startCaptureCmd launches a pipeline for a capture event under runCtx. The
// run reports snapshots on a channel that waitCaptureCmd drains.
func startCaptureCmd(runCtx context.Context, cancel context.CancelFunc, deps capture.Deps, sessionID int64, mode domain.Mode) tea.Cmd {
	return func() tea.Msg {
		snapshots := make(chan capture.Snapshot, 16)
		deps.Observer = capture.ObserverFunc(func(s capture.Snapshot) {
			select {
			case snapshots <- s:
			case <-runCtx.Done():
			}
		})

		p, err := capture.Launch(runCtx, deps, sessionID, mode)
		if err != nil {
			cancel()
			return CaptureFinishedMsg{Err: err}
		}

		decisions := make(chan capture.Decision, 4)
		result := make(chan CaptureFinishedMsg, 1)
		go func() {
			out, err := p.Run(runCtx, decisions)
			close(snapshots)
			result <- CaptureFinishedMsg{RunID: p.RunID(), Outcome: out, Err: err}
		}()

		return CaptureStartedMsg{
			RunID:     p.RunID(),
			SessionID: sessionID,
			Mode:      mode,
			decisions: decisions,
			snapshots: snapshots,
			result:    result,
			cancel:    cancel,
		}
	}
}

// waitCaptureCmd returns the next snapshot, or the run's result once the
// snapshot channel is closed.
func waitCaptureCmd(snapshots <-chan capture.Snapshot, result <-chan CaptureFinishedMsg) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-snapshots
		if !ok {
			return <-result
		}
		return CaptureSnapshotMsg{Snapshot: s}
	}
}

// clearNoticeCmd fires after a delay to clear transient notices.
func clearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(noticeTimeout, func(time.Time) tea.Msg {
		return ClearNoticeMsg{seq: seq}
	})
}

// reconnectCmd schedules a reconnection attempt with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second // 1s, 2s, 4s, 8s, 16s cap
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-20)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case DaemonConnectedMsg:
		m.client = msg.Client
		m.evClient = msg.EvClient
		m.connected = true
		m.connError = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		m.statusText = "Connected"
		return m, tea.Batch(
			subscribeCmd(m.evClient),
			statusCmd(m.client),
		)

	case DaemonConnectErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		m.statusText = "Daemon not running. Reconnecting..."
		return m, reconnectCmd(m.reconnectAttempt)

	case StatusResponseMsg:
		r := msg.Response
		if r.Active != nil && *r.Active {
			m.surface = &surfaceState{SessionID: r.SessionID, Title: r.Title, Text: daemon.SurfaceText}
		} else if r.Active != nil {
			m.surface = nil
		}
		return m, nil

	case ActionResponseMsg:
		if msg.Err != nil {
			// The daemon also broadcasts rejections as notices.
			return m, m.setNotice(msg.Err.Error(), true)
		}
		return m, nil

	case DaemonEventMsg:
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, readEventCmd(m.evClient))

	case DaemonEventErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.statusText = "Disconnected. Reconnecting..."
		m.reconnecting = true
		m.closeClients()
		return m, reconnectCmd(m.reconnectAttempt)

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, connectCmd(m.opts.SocketPath)

	case SessionsMsg:
		m.sessions = msg.Sessions
		if m.selectedSession >= len(m.sessions) {
			m.selectedSession = max(0, len(m.sessions)-1)
		}
		return m, m.nextSessions()

	case ItemsMsg:
		m.items = msg.Items
		return m, m.nextItems()

	case CaptureStartedMsg:
		if m.capture == nil || !m.capture.pending {
			m.logger.Warn("unexpected capture run, cancelling", "run_id", msg.RunID)
			msg.cancel()
			return m, nil
		}
		m.capture.pending = false
		m.capture.runID = msg.RunID
		m.capture.decisions = msg.decisions
		m.capture.snapshots = msg.snapshots
		m.capture.result = msg.result
		return m, waitCaptureCmd(msg.snapshots, msg.result)

	case CaptureSnapshotMsg:
		if m.capture == nil || msg.Snapshot.RunID != m.capture.runID {
			return m, nil
		}
		m.capture.snap = msg.Snapshot
		cmd := m.syncTranscriptInput()
		return m, tea.Batch(cmd, waitCaptureCmd(m.capture.snapshots, m.capture.result))

	case CaptureFinishedMsg:
		return m, m.finishCapture(msg)

	case ClearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
			m.noticeError = false
		}
		return m, nil
	}

	if m.inputMode != inputNone {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleEvent processes a daemon event and returns any resulting command.
func (m *Model) handleEvent(ev daemon.Event) tea.Cmd {
	switch ev.Event {
	case daemon.EventSurface:
		if ev.Visible != nil && *ev.Visible {
			m.surface = &surfaceState{SessionID: ev.SessionID, Title: ev.Title, Text: ev.Text}
		} else {
			m.surface = nil
		}

	case daemon.EventSession:
		m.logger.Debug("session changed", "session_id", ev.SessionID, "status", ev.Status)

	case daemon.EventCapture:
		mode := domain.Mode(ev.Mode)
		if m.capture != nil {
			m.logger.Info("capture already running, ignoring launch", "run_id", m.capture.runID)
			return m.setNotice("Capture already in progress", true)
		}
		runCtx, cancel := context.WithCancel(m.ctx)
		m.capture = &captureView{pending: true, sessionID: ev.SessionID, mode: mode, cancel: cancel}
		return startCaptureCmd(runCtx, cancel, m.opts.Capture, ev.SessionID, mode)

	case daemon.EventNotice:
		return m.setNotice(ev.Message, ev.Kind != "")
	}

	return nil
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == KeyCtrlC {
		return m.quit()
	}

	if m.inputMode != inputNone {
		return m.handleInputKey(msg)
	}
	if m.capture != nil {
		return m.handleCaptureKey(key)
	}

	switch key {
	case KeyQuit:
		return m.quit()

	case KeyNewSession:
		if !m.connected {
			return m, nil
		}
		m.inputMode = inputTitle
		m.input.Placeholder = "Book title"
		m.input.Reset()
		return m, m.input.Focus()

	case KeyStop:
		if !m.connected {
			return m, nil
		}
		return m, actionCmd(m.client, domain.ActionStop, "")

	case KeyDefine:
		if !m.connected {
			return m, nil
		}
		return m, actionCmd(m.client, domain.ActionDefineWord, "")

	case KeyQuote:
		if !m.connected {
			return m, nil
		}
		return m, actionCmd(m.client, domain.ActionSaveQuote, "")

	case KeyTab:
		if m.focusedPanel == FocusSessions {
			m.focusedPanel = FocusItems
		} else {
			m.focusedPanel = FocusSessions
		}
		return m, nil

	case KeyJ:
		if m.focusedPanel == FocusSessions && m.selectedSession < len(m.sessions)-1 {
			m.selectedSession++
			m.itemScroll = 0
		}
		return m, nil

	case KeyK:
		if m.focusedPanel == FocusSessions && m.selectedSession > 0 {
			m.selectedSession--
			m.itemScroll = 0
		}
		return m, nil

	case KeyUp:
		if m.focusedPanel == FocusItems && m.itemScroll > 0 {
			m.itemScroll--
		}
		return m, nil

	case KeyDown:
		if m.focusedPanel == FocusItems && m.itemScroll < m.maxItemScroll() {
			m.itemScroll++
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc:
		if m.inputMode == inputTranscript && m.capture != nil {
			m.capture.cancel()
		}
		m.closeInput()
		return m, nil

	case KeyEnter:
		text := m.input.Value()
		mode := m.inputMode
		m.closeInput()
		switch mode {
		case inputTitle:
			return m, actionCmd(m.client, domain.ActionStart, text)
		case inputTranscript:
			if m.capture != nil && m.opts.Typed != nil {
				return m, m.opts.Typed.submitCmd(m.ctx, text)
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleCaptureKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case KeyRetry:
		m.decide(capture.Retry)
	case KeyConfirm:
		m.decide(capture.Confirm)
	case KeyEnter:
		m.decide(capture.Dismiss)
	case KeyEsc:
		m.capture.cancel()
	}
	return m, nil
}

// decide forwards d while the run is waiting on the user.
func (m Model) decide(d capture.Decision) {
	if !awaitingDecision(m.capture.snap) {
		return
	}
	select {
	case m.capture.decisions <- d:
	default:
		m.logger.Debug("decision dropped", "decision", d)
	}
}

func awaitingDecision(s capture.Snapshot) bool {
	switch s.State {
	case capture.StateVerifying, capture.StateError:
		return true
	case capture.StateDefining:
		return !s.Pending
	}
	return false
}

// syncTranscriptInput opens the transcript prompt while a typed run listens.
func (m *Model) syncTranscriptInput() tea.Cmd {
	if m.opts.Typed == nil || m.capture == nil {
		return nil
	}
	if m.capture.snap.State == capture.StateListening {
		m.inputMode = inputTranscript
		m.input.Placeholder = transcriptPlaceholder(m.capture.mode)
		m.input.Reset()
		return m.input.Focus()
	}
	if m.inputMode == inputTranscript {
		m.closeInput()
	}
	return nil
}

func transcriptPlaceholder(mode domain.Mode) string {
	if mode == domain.ModeDefineWord {
		return "Word to define"
	}
	return "Quote to save"
}

func (m *Model) finishCapture(msg CaptureFinishedMsg) tea.Cmd {
	// A failed launch has no run id and matches only a pending capture.
	if m.capture == nil || msg.RunID != m.capture.runID {
		return nil
	}
	m.capture.cancel()
	m.capture = nil
	if m.inputMode == inputTranscript {
		m.closeInput()
	}

	switch {
	case errors.Is(msg.Err, context.Canceled):
		return nil
	case msg.Err != nil:
		return m.setNotice(msg.Err.Error(), true)
	case msg.Outcome.QuoteID != 0:
		return m.setNotice(capture.QuoteSavedNotice, false)
	case msg.Outcome.WordID != 0:
		return m.setNotice(fmt.Sprintf("Saved %q", msg.Outcome.Transcript), false)
	}
	return nil
}

func (m *Model) setNotice(text string, isError bool) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	m.noticeError = isError
	return clearNoticeCmd(m.noticeSeq)
}

func (m *Model) closeInput() {
	m.inputMode = inputNone
	m.input.Blur()
	m.input.Reset()
}

func (m *Model) closeClients() {
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	if m.evClient != nil {
		m.evClient.Close()
		m.evClient = nil
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.capture != nil {
		m.capture.cancel()
	}
	m.closeClients()
	m.cancel()
	return m, tea.Quit
}

func (m Model) nextSessions() tea.Cmd {
	if m.sessionsCh == nil {
		return nil
	}
	return waitSessionsCmd(m.sessionsCh)
}

func (m Model) nextItems() tea.Cmd {
	if m.itemsCh == nil {
		return nil
	}
	return waitItemsCmd(m.itemsCh)
}

// selectedSessionID is the session whose items are listed, 0 for none.
func (m Model) selectedSessionID() int64 {
	if m.selectedSession < len(m.sessions) {
		return m.sessions[m.selectedSession].ID
	}
	return 0
}

// visibleItems filters the item list to the selected session.
func (m Model) visibleItems() []db.Item {
	id := m.selectedSessionID()
	var out []db.Item
	for _, item := range m.items {
		if itemSession(item) == id {
			out = append(out, item)
		}
	}
	return out
}

func itemSession(item db.Item) int64 {
	switch it := item.(type) {
	case db.WordItem:
		return it.Word.SessionID
	case db.QuoteItem:
		return it.Quote.SessionID
	}
	return 0
}
