package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Alekzandar/vibereader/internal/config"
)

// SocketPath returns the default daemon socket path.
func SocketPath() string {
	if p := os.Getenv("VIBEREADER_SOCKET"); p != "" {
		return p
	}
	return config.Default().Daemon.Socket
}

const (
	dialTimeout = 2 * time.Second
	maxLineSize = 1 << 20
)

// ErrClosed is returned when the daemon hangs up mid-exchange.
var ErrClosed = errors.New("daemon connection closed")

// Client talks NDJSON to the vibereader daemon. A client either sends
// commands or, after Subscribe, reads events.
type Client struct {
	conn    net.Conn
	enc     *json.Encoder
	scanner *bufio.Scanner
	mu      sync.Mutex
}

// Connect dials the daemon Unix socket.
func Connect(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Client{conn: conn, enc: json.NewEncoder(conn), scanner: scanner}, nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// SendCommand writes cmd and waits for its response line.
func (c *Client) SendCommand(cmd Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enc.Encode(cmd); err != nil {
		return Response{}, fmt.Errorf("send %s: %w", cmd.Cmd, err)
	}
	return readLine[Response](c.scanner, "response")
}

// Subscribe switches the connection to event streaming. After it returns,
// use ReadEvent in a loop. capture offers this client for capture launches.
func (c *Client) Subscribe(capture bool) error {
	resp, err := c.SendCommand(Command{Cmd: CmdSubscribe, Capture: capture})
	if err != nil {
		return err
	}
	return resp.Err()
}

// ReadEvent blocks until the next event line arrives.
func (c *Client) ReadEvent() (Event, error) {
	return readLine[Event](c.scanner, "event")
}

func readLine[T any](scanner *bufio.Scanner, what string) (T, error) {
	var v T
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return v, fmt.Errorf("read %s: %w", what, err)
		}
		return v, ErrClosed
	}
	if err := json.Unmarshal(scanner.Bytes(), &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", what, err)
	}
	return v, nil
}

// Do connects, sends one command and returns the daemon's answer. A
// rejected command is returned as an error carrying its kind.
func Do(socketPath string, cmd Command) (Response, error) {
	c, err := Connect(socketPath)
	if err != nil {
		return Response{}, err
	}
	defer c.Close()

	resp, err := c.SendCommand(cmd)
	if err != nil {
		return Response{}, err
	}
	return resp, resp.Err()
}
