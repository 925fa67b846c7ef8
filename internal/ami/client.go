package ami

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"autodial_backend/platform/config"
	"autodial_backend/platform/logger"
)

// ErrNotConnected is returned by Send when no authenticated session is up.
var ErrNotConnected = errors.New("ami: not connected")

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler consumes asynchronous manager events. Handlers must not block;
// the session reader is a single goroutine.
type Handler func(Event)

// Client maintains an authenticated manager session over TCP. A dropped
// session is retried with a fixed delay; action responses are matched to
// their callers by ActionID.
type Client struct {
	cfg config.AMIConfig
	log *logger.Logger

	writeMu sync.Mutex
	conn    net.Conn

	pendingMu sync.Mutex
	pending   map[string]chan Event

	connected atomic.Bool
	seq       atomic.Uint64
}

// NewClient creates a Client. Call Run to connect and start processing.
func NewClient(cfg config.AMIConfig, log *logger.Logger) *Client {
	return &Client{
		cfg:     cfg,
		log:     log,
		pending: make(map[string]chan Event),
	}
}

// Run connects to the manager and processes events until ctx is cancelled,
// invoking handle for every asynchronous event. Session failures are logged
// and retried after the configured reconnect delay.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	for {
		err := c.session(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Error("ami session ended", "error", err,
			"retry_in", c.cfg.GetAMIReconnectDelay().String())
		select {
		case <-time.After(c.cfg.GetAMIReconnectDelay()):
		case <-ctx.Done():
			return nil
		}
	}
}

// Connected reports whether an authenticated session is currently up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Send writes an action and waits for its matching response. An ActionID is
// assigned when the action does not carry one. Returns ErrNotConnected when
// the session is down or drops before the response arrives.
func (c *Client) Send(ctx context.Context, action *Action) (Event, error) {
	if !c.connected.Load() {
		return Event{}, ErrNotConnected
	}

	id := action.ActionID()
	if id == "" {
		id = c.nextActionID()
		action.Set("ActionID", id)
	}

	ch := make(chan Event, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.write(action.Encode()); err != nil {
		return Event{}, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Event{}, ErrNotConnected
		}
		return resp, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (c *Client) session(ctx context.Context, handle Handler) error {
	addr := c.cfg.GetAMIAddr()
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	// Closing the connection is the only way to unblock the reader.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	reader := bufio.NewReader(conn)
	banner, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read banner: %w", err)
	}
	c.log.Info("ami connected", "addr", addr, "banner", strings.TrimSpace(banner))

	parser := NewParser(reader)
	if err := c.login(conn, parser); err != nil {
		return err
	}

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
	c.connected.Store(true)
	defer func() {
		c.connected.Store(false)
		c.writeMu.Lock()
		c.conn = nil
		c.writeMu.Unlock()
		c.failPending()
	}()

	c.log.Info("ami authenticated, processing events")

	for {
		evt, ok := parser.Next()
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			return errors.New("connection closed")
		}
		if evt.IsResponse() {
			if !c.deliver(evt) {
				c.log.Debug("unmatched ami response",
					"action_id", evt.ActionID(), "response", evt.Get("Response"))
			}
			continue
		}
		handle(evt)
	}
}

func (c *Client) login(conn net.Conn, parser *Parser) error {
	login := NewAction("Login").
		Set("ActionID", c.nextActionID()).
		Set("Username", c.cfg.GetAMIUsername()).
		Set("Secret", c.cfg.GetAMISecret())

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write(login.Encode()); err != nil {
		return fmt.Errorf("send login: %w", err)
	}
	conn.SetWriteDeadline(time.Time{})

	// The manager sends nothing but the login response before
	// authentication completes.
	resp, ok := parser.Next()
	if !ok {
		return errors.New("connection closed during login")
	}
	if !resp.IsResponse() || !resp.Success() {
		return fmt.Errorf("authentication failed: %s", resp.Get("Message"))
	}
	return nil
}

func (c *Client) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("write action: %w", err)
	}
	return nil
}

// deliver routes a response frame to the Send call waiting on its ActionID.
func (c *Client) deliver(evt Event) bool {
	id := evt.ActionID()
	if id == "" {
		return false
	}
	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
	if !ok {
		return false
	}
	ch <- evt
	return true
}

// failPending closes every waiting response channel when a session drops,
// so blocked Send calls fail instead of waiting for a response that will
// never arrive.
func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) nextActionID() string {
	return fmt.Sprintf("ami-%d-%d", time.Now().Unix(), c.seq.Add(1))
}
