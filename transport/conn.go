package transport

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/interviewrt/runtime/orchestrator"
)

// wsConn adapts a gorilla/websocket.Conn to orchestrator.ClientSender and
// decodes inbound frames into orchestrator.ClientMessage. Writes are
// mutex-guarded since Send is called both from the read loop's own
// goroutine indirectly (error replies) and from Session.Run's goroutine —
// gorilla/websocket conns are not safe for concurrent writers; this mirrors
// the single-writer-mutex convention the LLM vendor SDKs use around their
// own websocket connections.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool
}

// Send implements orchestrator.ClientSender.
func (c *wsConn) Send(msg orchestrator.ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ReadClientMessage blocks for the next inbound frame and decodes its
// envelope (spec §6: every frame carries a "type" discriminator).
func (c *wsConn) ReadClientMessage() (orchestrator.ClientMessage, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return orchestrator.ClientMessage{}, err
	}
	if err := ValidateClientFrame(data); err != nil {
		return orchestrator.ClientMessage{}, err
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return orchestrator.ClientMessage{}, err
	}
	return orchestrator.ClientMessage{Type: envelope.Type, Raw: data}, nil
}

// Close closes the underlying connection; idempotent.
func (c *wsConn) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
