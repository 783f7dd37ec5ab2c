// Package mcpserver exposes reading sessions and capture as MCP tools.
// Control tools forward to the daemon. Capture tools run the pipeline in
// this process with the tool argument as the transcript.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Alekzandar/vibereader/internal/capture"
	"github.com/Alekzandar/vibereader/internal/daemon"
	"github.com/Alekzandar/vibereader/internal/db"
	"github.com/Alekzandar/vibereader/internal/domain"
	"github.com/Alekzandar/vibereader/internal/speech"
	"github.com/Alekzandar/vibereader/internal/ui"
)

// ControlFunc sends one command to the daemon. daemon.Do bound to a socket
// path is the production implementation.
type ControlFunc func(cmd daemon.Command) (daemon.Response, error)

// Server holds the collaborators behind the tools.
type Server struct {
	control    ControlFunc
	store      *db.Store
	dictionary capture.Dictionary
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a tool server.
func New(control ControlFunc, store *db.Store, dictionary capture.Dictionary, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{control: control, store: store, dictionary: dictionary, logger: logger, now: time.Now}
}

// MCP builds the MCP server with every tool registered.
func (s *Server) MCP(version string) *server.MCPServer {
	m := server.NewMCPServer("vibereader", version, server.WithToolCapabilities(false))

	m.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a reading session for a book"),
		mcp.WithString("title", mcp.Required(), mcp.Description("Book title")),
	), s.startSession)

	m.AddTool(mcp.NewTool("stop_session",
		mcp.WithDescription("Stop the active reading session"),
	), s.stopSession)

	m.AddTool(mcp.NewTool("session_status",
		mcp.WithDescription("Show the active reading session, if any"),
	), s.sessionStatus)

	m.AddTool(mcp.NewTool("define_word",
		mcp.WithDescription("Look up a word and save it to the active session"),
		mcp.WithString("word", mcp.Required(), mcp.Description("Word to define")),
	), s.defineWord)

	m.AddTool(mcp.NewTool("save_quote",
		mcp.WithDescription("Save a quote to the active session"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Quote text")),
	), s.saveQuote)

	m.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List reading sessions, newest first"),
	), s.listSessions)

	m.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List captured words and quotes, newest first"),
		mcp.WithNumber("session_id", mcp.Description("Only items from this session")),
	), s.listItems)

	return m
}

// ServeStdio serves the tools over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCP(version))
}

func (s *Server) startSession(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.control(daemon.Command{Cmd: string(domain.ActionStart), Title: title})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Started session %d: %s", resp.SessionID, resp.Title)), nil
}

func (s *Server) stopSession(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := s.control(daemon.Command{Cmd: string(domain.ActionStop)}); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Session stopped"), nil
}

func (s *Server) sessionStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.control(daemon.Command{Cmd: daemon.CmdStatus})
	if err != nil {
		return toolError(err), nil
	}
	if resp.Active == nil || !*resp.Active {
		return mcp.NewToolResultText("No active session"), nil
	}
	sess := db.Session{ID: resp.SessionID, Title: resp.Title, StartTime: resp.Started(), Status: db.StatusActive}
	return mcp.NewToolResultText(ui.SessionLine(sess, s.now())), nil
}

func (s *Server) defineWord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	word, err := req.RequireString("word")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.capture(ctx, domain.ActionDefineWord, word)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", out.Transcript, out.Definition)), nil
}

func (s *Server) saveQuote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.capture(ctx, domain.ActionSaveQuote, text); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(capture.QuoteSavedNotice), nil
}

// capture asks the daemon for an inline launch, then runs the pipeline with
// text as the only transcript and confirms the result.
func (s *Server) capture(ctx context.Context, action domain.Action, text string) (capture.Outcome, error) {
	resp, err := s.control(daemon.Command{Cmd: string(action), Inline: true})
	if err != nil {
		return capture.Outcome{}, err
	}

	p, err := capture.Launch(ctx, capture.Deps{
		Store:      s.store,
		Speech:     speech.Typed{Text: text},
		Dictionary: s.dictionary,
		Now:        s.now,
		Logger:     s.logger,
	}, resp.SessionID, domain.Mode(resp.Mode))
	if err != nil {
		return capture.Outcome{}, err
	}

	decisions := make(chan capture.Decision, 1)
	decisions <- capture.Confirm
	close(decisions)

	out, err := p.Run(ctx, decisions)
	if err != nil {
		return out, err
	}
	if out.ErrKind != "" {
		return out, &domain.Error{Kind: out.ErrKind}
	}
	return out, nil
}

func (s *Server) listSessions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.store.Sessions(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if len(sessions) == 0 {
		return mcp.NewToolResultText("No sessions yet"), nil
	}
	now := s.now()
	lines := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		lines = append(lines, ui.SessionLine(sess, now))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := int64(req.GetInt("session_id", 0))
	items, err := s.store.Items(ctx, sessionID)
	if err != nil {
		return toolError(err), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("Nothing captured yet"), nil
	}
	now := s.now()
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, ui.ItemLine(item, now))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}
