package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Alekzandar/vibereader/internal/db"
	"github.com/Alekzandar/vibereader/internal/domain"
	"github.com/Alekzandar/vibereader/internal/session"
)

// Controller is the part of session.Controller the server drives.
type Controller interface {
	Status(ctx context.Context) (*db.Session, error)
	HandleAction(ctx context.Context, req session.Request) (session.Result, error)
}

// Server accepts client connections and routes their commands.
type Server struct {
	ctrl   Controller
	hub    *Hub
	logger *slog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// NewServer creates a server for ctrl whose events are published by hub.
func NewServer(ctrl Controller, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ctrl: ctrl, hub: hub, logger: logger, conns: make(map[net.Conn]struct{})}
}

// Listen opens the Unix socket at path. A stale socket file is removed; a
// live daemon on the same path is an error.
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if conn, err := net.DialTimeout("unix", path, 500*time.Millisecond); err == nil {
			conn.Close()
			return nil, fmt.Errorf("daemon already running on %s", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return ln, nil
}

// Serve accepts connections until ctx is cancelled, then closes the listener
// and every open connection.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		ln.Close()
		s.closeConns()
		return nil
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			if !s.track(conn) {
				conn.Close()
				return nil
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.untrack(conn)
				s.handle(gctx, conn)
			}()
		}
	})

	err := g.Wait()
	s.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// track registers conn for shutdown. It reports false once closeConns has
// run, so a connection accepted during shutdown is never left open.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		var cmd Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			s.logger.Debug("bad command line", "error", err)
			if err := enc.Encode(Response{OK: false, Error: "invalid command: " + err.Error()}); err != nil {
				return
			}
			continue
		}

		if cmd.Cmd == CmdSubscribe {
			if err := enc.Encode(Response{OK: true}); err != nil {
				return
			}
			s.subscribe(ctx, conn, scanner, cmd.Capture)
			return
		}

		if err := enc.Encode(s.execute(ctx, cmd)); err != nil {
			s.logger.Debug("write response", "error", err)
			return
		}
	}
}

// subscribe turns conn into an event stream. The subscription ends when the
// client hangs up.
func (s *Server) subscribe(ctx context.Context, conn net.Conn, scanner *bufio.Scanner, capture bool) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		for scanner.Scan() {
			// subscribers send nothing after subscribing
		}
	}()

	if err := s.hub.Subscribe(subCtx, conn, capture); err != nil {
		s.logger.Debug("subscriber write failed", "error", err)
	}
}

func (s *Server) execute(ctx context.Context, cmd Command) Response {
	if cmd.Cmd == CmdStatus {
		active, err := s.ctrl.Status(ctx)
		if err != nil {
			return errorResponse(err)
		}
		if active == nil {
			return Response{OK: true, Active: BoolPtr(false)}
		}
		return Response{
			OK:        true,
			SessionID: active.ID,
			Title:     active.Title,
			Active:    BoolPtr(true),
			StartTime: active.StartTime.UnixMilli(),
		}
	}

	action, err := domain.ParseAction(cmd.Cmd)
	if err != nil {
		s.logger.Info("unknown command", "cmd", cmd.Cmd)
		s.hub.Notice(domain.KindOf(err), err.Error())
		return errorResponse(err)
	}

	req := session.Request{Action: action, Title: cmd.Title, Inline: cmd.Inline}
	res, err := s.ctrl.HandleAction(ctx, req)
	if err != nil {
		return errorResponse(err)
	}
	return Response{
		OK:        true,
		SessionID: res.SessionID,
		Title:     res.Title,
		Mode:      string(res.Mode),
	}
}
