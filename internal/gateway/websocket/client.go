package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/auth"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/common/tracing"
	"github.com/kandev/taskboard/internal/session"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Client represents a single WebSocket connection of a signed-in session
type Client struct {
	ID      string
	conn    *websocket.Conn
	hub     *Hub
	session *session.Session
	send    chan []byte
	logger  *logger.Logger
	tracer  trace.Tracer
}

// NewClient creates a new WebSocket client
func NewClient(id string, conn *websocket.Conn, hub *Hub, sess *session.Session, log *logger.Logger) *Client {
	return &Client{
		ID:      id,
		conn:    conn,
		hub:     hub,
		session: sess,
		send:    make(chan []byte, 256),
		logger:  log.WithFields(zap.String("client_id", id), zap.String("session_id", sess.ID)),
		tracer:  tracing.Tracer("taskboard.ws"),
	}
}

// ReadPump pumps messages from the WebSocket connection to the dispatcher.
// Messages of one socket are handled in order.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	ctx = auth.ContextWithSession(ctx, c.session)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", zap.Error(err))
			}
			break
		}

		var msg ws.Message
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("Failed to parse message", zap.Error(err))
			c.sendError("", "", ws.ErrorCodeBadRequest, "Invalid message format", nil)
			continue
		}

		c.handleMessage(ctx, &msg)
	}
}

// handleMessage processes an incoming message
func (c *Client) handleMessage(ctx context.Context, msg *ws.Message) {
	c.logger.Debug("Received message",
		zap.String("action", msg.Action),
		zap.String("id", msg.ID))

	if msg.Type != "" && msg.Type != ws.MessageTypeRequest {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Only request messages are accepted", nil)
		return
	}

	attrs := append(auth.SpanAttributes(ctx),
		attribute.String("ws.action", msg.Action),
		attribute.String("ws.client_id", c.ID))
	ctx, span := c.tracer.Start(ctx, "ws "+msg.Action, trace.WithAttributes(attrs...))
	defer span.End()

	response, err := c.hub.dispatcher.Dispatch(ctx, msg)
	if err != nil {
		c.logger.Error("Handler error",
			zap.String("action", msg.Action),
			zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler error")
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeInternalError, err.Error(), nil)
		return
	}

	if response != nil {
		if p, ok := response.DecodeError(); ok {
			span.SetAttributes(attribute.String("ws.error_code", p.Code))
			if p.Code == ws.ErrorCodeInternalError {
				span.SetStatus(codes.Error, p.Message)
			}
		}
		c.sendMessage(response)
	}
}

// sendMessage sends a message to the client
func (c *Client) sendMessage(msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	// The hub closes send on unregister; only send while still registered.
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("Client send buffer full")
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(id, action, code, message string, details map[string]interface{}) {
	msg, err := ws.NewError(id, action, code, message, details)
	if err != nil {
		c.logger.Error("Failed to create error message", zap.Error(err))
		return
	}
	c.sendMessage(msg)
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
