// Package transcription implements the Transcription Client component
// (spec §4.E): a streaming bidirectional client to an external ASR
// vendor, HMAC-SHA1 signed, delivering extracted-Chinese-text events to
// the Orchestrator. Grounded on
// the teacher's realtime-provider websocket managers: dialer with a
// dedicated write mutex, a bounded connect-with-retry loop, and a
// shouldRetry classifier — simplified here to the vendor's fixed
// "3 attempts, 2s pause" policy (spec §4.E) rather than the teacher's
// exponential-backoff-with-jitter, since the vendor contract names a
// fixed retry count.
package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/interviewrt/runtime/logger"
)

const (
	maxConnectAttempts = 3
	retryPause         = 2 * time.Second
	maxMessageSize     = 1 << 20 // 1MB, generous for a result frame
)

// Config configures a Client.
type Config struct {
	// URL is the ASR vendor's WebSocket endpoint (unsigned; Sign/SignedURL append auth).
	URL string
	// AppID and APIKey are the HMAC-SHA1 credential pair (spec §4.E).
	AppID, APIKey string
}

// Client is a streaming ASR connection. One per session; not safe for
// concurrent Send calls from multiple goroutines beyond the single
// writer the Orchestrator uses (mirrors WebSocketManager.writeMu, but
// since the Orchestrator already single-threads sends, only the
// conn/closed bookkeeping is guarded here).
type Client struct {
	cfg  Config
	conn *websocket.Conn

	mu      sync.Mutex
	closed  bool

	events chan Event
	done   chan struct{}
	err    error
}

// New constructs a disconnected Client.
func New(cfg Config) *Client {
	return &Client{
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
}

// Events returns the channel of parsed transcription events. Closed when
// the connection terminates (after the final failed retry, or an
// action=error/close from the vendor).
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed when the read loop exits for any reason.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal error, if any, once Done is closed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ConnectWithRetry attempts to connect up to maxConnectAttempts times
// with a fixed retryPause between attempts (spec §4.E / §5: "3 retries x
// 2s back-off"). On success it starts the background read loop. On final
// failure it returns the last error without starting the read loop — the
// Orchestrator is expected to switch to degraded mode.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryPause):
			}
		}

		err := c.connect(ctx)
		if err == nil {
			go c.readLoop()
			return nil
		}
		lastErr = err
		logger.Warn("transcription: connect attempt failed", "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("transcription: failed to connect after %d attempts: %w", maxConnectAttempts, lastErr)
}

func (c *Client) connect(ctx context.Context) error {
	url := SignedURL(c.cfg.URL, c.cfg.AppID, c.cfg.APIKey)
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("transcription: dial: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// SendAudio pushes a binary PCM frame. isLast delivers a terminator JSON
// frame per spec §4.E instead of binary audio.
func (c *Client) SendAudio(audio []byte, isLast bool) error {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()

	if closed || conn == nil {
		return fmt.Errorf("transcription: not connected")
	}

	if isLast {
		data, _ := json.Marshal(map[string]any{"end": true})
		return conn.WriteMessage(websocket.TextMessage, data)
	}
	return conn.WriteMessage(websocket.BinaryMessage, audio)
}

// Close tears down the connection. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		c.closed = true
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed || conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.err = fmt.Errorf("transcription: read: %w", err)
			c.mu.Unlock()
			return
		}

		event := Parse(data)
		select {
		case c.events <- event:
		default:
			logger.Warn("transcription: event buffer full, dropping fragment")
		}

		if event.Kind == KindError {
			c.mu.Lock()
			c.err = fmt.Errorf("transcription: vendor error: %s", event.Err)
			c.mu.Unlock()
			return
		}
	}
}
