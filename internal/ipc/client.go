// Package ipc subscribes to the event feed of a running card table server.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// AnyEvent registers a handler for every event type.
const AnyEvent = "*"

// DefaultReconnectDelay is the wait between reconnect attempts.
const DefaultReconnectDelay = 2 * time.Second

// Event is one message of the feed. Data holds the event's typed payload.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// EventHandler handles one event. Handlers run on the reading goroutine in
// feed order.
type EventHandler func(Event)

// Options configures a Client.
type Options struct {
	// ReconnectDelay is the wait between reconnect attempts. Negative disables reconnecting.
	ReconnectDelay time.Duration
	Logger         *slog.Logger
	Dialer         *websocket.Dialer
}

// Client reads the event feed and dispatches events to handlers.
type Client struct {
	url    string
	opts   Options
	logger *slog.Logger

	handlersMu sync.RWMutex
	handlers   map[string][]EventHandler

	connectedMu sync.RWMutex
	connected   bool
}

// NewClient creates a client for the feed at url, e.g. ws://127.0.0.1:8472/ws.
func NewClient(url string, opts Options) *Client {
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{
		url:      url,
		opts:     opts,
		logger:   opts.Logger.With("component", "ipc", "url", url),
		handlers: make(map[string][]EventHandler),
	}
}

// On registers a handler for an event type, or for all with AnyEvent.
func (c *Client) On(eventType string, handler EventHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], handler)
}

// IsConnected reports whether the client currently holds a connection.
func (c *Client) IsConnected() bool {
	c.connectedMu.RLock()
	defer c.connectedMu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(connected bool) {
	c.connectedMu.Lock()
	defer c.connectedMu.Unlock()
	c.connected = connected
}

// URL returns the feed URL.
func (c *Client) URL() string {
	return c.url
}

// Run reads the feed until ctx is done. A lost connection is re-established
// after ReconnectDelay; with reconnecting disabled Run returns the error
// that ended the connection. The first dial error is always returned.
func (c *Client) Run(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	for {
		err := c.read(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		if c.opts.ReconnectDelay < 0 {
			return err
		}
		c.logger.Warn("event feed lost, reconnecting", "error", err)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.opts.ReconnectDelay):
			}
			if conn, err = c.dial(ctx); err == nil {
				c.logger.Info("reconnected to event feed")
				break
			}
			c.logger.Debug("reconnect failed", "error", err)
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.url, err)
	}
	c.setConnected(true)
	return conn, nil
}

// read dispatches messages from conn until it fails or ctx is done.
func (c *Client) read(ctx context.Context, conn *websocket.Conn) error {
	defer c.setConnected(false)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer func() {
		if stop() {
			_ = conn.Close()
		}
	}()

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("server closed the connection")
			}
			return err
		}
		c.dispatch(event)
	}
}

func (c *Client) dispatch(event Event) {
	c.handlersMu.RLock()
	handlers := append(append([]EventHandler(nil), c.handlers[event.Type]...), c.handlers[AnyEvent]...)
	c.handlersMu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
