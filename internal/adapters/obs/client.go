// Package obs is a minimal obs-websocket v5 client that updates text and
// image sources.
package obs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"

	"github.com/ceejiggy/shinycounter/pkg/logger"
)

const (
	defaultTimeout = 5 * time.Second
	defaultOrigin  = "http://localhost/"
)

// Status describes the connection for display.
type Status struct {
	URL       string `json:"url"`
	Connected bool   `json:"connected"`
}

// Client talks to one obs-websocket server.
type Client struct {
	url            string
	password       string
	origin         string
	timeout        time.Duration
	requestTimeout time.Duration
	onConnect      []func()
	logger         logger.Logger

	// connectMu serializes Connect; mu only guards conn so readers never wait
	// on a dial.
	connectMu sync.Mutex
	mu        sync.Mutex
	conn      *websocket.Conn
	writeMu   sync.Mutex

	nextID    atomic.Uint64
	pendingMu sync.Mutex
	pending   map[string]chan requestResponse
}

// NewClient creates a disconnected client for the ws:// or wss:// URL.
func NewClient(rawURL string, opts ...Option) *Client {
	c := &Client{
		url:            rawURL,
		origin:         defaultOrigin,
		timeout:        defaultTimeout,
		requestTimeout: defaultTimeout,
		logger:         logger.Nop(),
		pending:        make(map[string]chan requestResponse),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connected reports whether the handshake completed and the socket is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Status returns the URL and connection state.
func (c *Client) Status() Status {
	return Status{URL: c.url, Connected: c.Connected()}
}

// Connect dials and identifies. It is a no-op when already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()
	if c.Connected() {
		return nil
	}

	cfg, err := websocket.NewConfig(c.url, c.origin)
	if err != nil {
		return fmt.Errorf("obs config: %w", err)
	}
	cfg.Protocol = []string{subprotocol}

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, err := cfg.DialContext(dialCtx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	if err := c.identify(conn); err != nil {
		_ = conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	go c.readLoop(conn)
	c.logger.Info(ctx, "connected to obs", logger.String("url", c.url))

	for _, fn := range c.onConnect {
		go fn()
	}
	return nil
}

func (c *Client) identify(conn *websocket.Conn) error {
	_ = conn.SetDeadline(time.Now().Add(c.timeout))
	defer func() { _ = conn.SetDeadline(time.Time{}) }()

	var msg message
	if err := websocket.JSON.Receive(conn, &msg); err != nil {
		return fmt.Errorf("%w: read hello: %w", ErrHandshake, err)
	}
	if msg.Op != opHello {
		return fmt.Errorf("%w: expected hello, got op %d", ErrHandshake, msg.Op)
	}
	var h hello
	if err := json.Unmarshal(msg.D, &h); err != nil {
		return fmt.Errorf("%w: decode hello: %w", ErrHandshake, err)
	}

	id := identify{RPCVersion: rpcVersion}
	if h.Authentication != nil {
		if c.password == "" {
			return ErrPasswordRequired
		}
		id.Authentication = authResponse(c.password, h.Authentication.Salt, h.Authentication.Challenge)
	}
	out, err := encode(opIdentify, id)
	if err != nil {
		return err
	}
	if err := websocket.JSON.Send(conn, out); err != nil {
		return fmt.Errorf("%w: send identify: %w", ErrHandshake, err)
	}

	// A rejected identify closes the socket instead of answering.
	if err := websocket.JSON.Receive(conn, &msg); err != nil {
		return fmt.Errorf("%w: read identified: %w", ErrHandshake, err)
	}
	if msg.Op != opIdentified {
		return fmt.Errorf("%w: expected identified, got op %d", ErrHandshake, msg.Op)
	}
	var ack identified
	if err := json.Unmarshal(msg.D, &ack); err != nil {
		return fmt.Errorf("%w: decode identified: %w", ErrHandshake, err)
	}
	if ack.NegotiatedRPCVersion != rpcVersion {
		return fmt.Errorf("%w: unsupported rpc version %d", ErrHandshake, ack.NegotiatedRPCVersion)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var msg message
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			c.dropped(conn, err)
			return
		}
		switch msg.Op {
		case opRequestResponse:
			var resp requestResponse
			if err := json.Unmarshal(msg.D, &resp); err != nil {
				c.logger.Warn(context.Background(), "undecodable obs response", logger.Error(err))
				continue
			}
			c.pendingMu.Lock()
			ch, ok := c.pending[resp.RequestID]
			delete(c.pending, resp.RequestID)
			c.pendingMu.Unlock()
			if ok {
				ch <- resp
			}
		case opEvent:
			// Events are not subscribed to.
		default:
			c.logger.Debug(context.Background(), "ignored obs message", logger.Int("op", msg.Op))
		}
	}
}

func (c *Client) dropped(conn *websocket.Conn, err error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	if current {
		c.logger.Warn(context.Background(), "obs connection lost", logger.Error(err))
	}
}

// Disconnect closes the socket. It is safe to call when not connected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Request sends one request and waits for its response.
func (c *Client) Request(ctx context.Context, requestType string, data any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	id := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan requestResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	msg, err := encode(opRequest, request{RequestType: requestType, RequestID: id, RequestData: data})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	err = websocket.JSON.Send(conn, msg)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("send %s: %w", requestType, err)
	}

	timer := time.NewTimer(c.requestTimeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return ErrConnectionDropped
		}
		if !resp.RequestStatus.Result {
			return fmt.Errorf("%w: %s code %d: %s", ErrRequestFailed, requestType, resp.RequestStatus.Code, resp.RequestStatus.Comment)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s", ErrRequestTimeout, requestType)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetText updates a text source.
func (c *Client) SetText(ctx context.Context, input, value string) error {
	return c.setInputSettings(ctx, input, map[string]any{"text": value})
}

// SetImage points an image source at ref, a URL, path or data URL.
func (c *Client) SetImage(ctx context.Context, input, ref string) error {
	return c.setInputSettings(ctx, input, map[string]any{"file": ref})
}

func (c *Client) setInputSettings(ctx context.Context, input string, settings map[string]any) error {
	if input == "" {
		return errors.New("obs: input name is required")
	}
	return c.Request(ctx, "SetInputSettings", inputSettings{
		InputName:     input,
		InputSettings: settings,
		Overlay:       true,
	})
}
