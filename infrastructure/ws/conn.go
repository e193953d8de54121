// Package ws carries the realtime protocol over gorilla/websocket.
package ws

import (
	"direct-chat/domain/event"
	"direct-chat/errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const defaultReadLimit = 64 * 1024

type Config struct {
	AllowedOrigins           []string
	RequireAuthenticatedJoin bool
	SendBufferSize           int
	WriteTimeout             time.Duration
	PingInterval             time.Duration
	PongTimeout              time.Duration
	ReadLimit                int64
}

func (c Config) withDefaults() Config {
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 64
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongTimeout {
		c.PingInterval = c.PongTimeout * 9 / 10
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = defaultReadLimit
	}
	return c
}

// Conn is the event sink of one websocket.
// Emit only queues the frame, a single write pump owns the socket writes.
type Conn struct {
	id        string
	ws        *websocket.Conn
	send      chan event.Envelope
	done      chan struct{}
	closeOnce sync.Once
	cfg       Config
	log       *slog.Logger
}

func newConn(ws *websocket.Conn, cfg Config, log *slog.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:   id,
		ws:   ws,
		send: make(chan event.Envelope, cfg.SendBufferSize),
		done: make(chan struct{}),
		cfg:  cfg,
		log:  log.With("handle", id),
	}
}

func (c *Conn) ID() string {
	return c.id
}

// Emit never blocks: a full queue drops the frame.
func (c *Conn) Emit(name event.Name, payload any) error {
	envelope, err := event.NewEnvelope(name, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.send <- envelope:
		return nil
	default:
		c.log.Warn("Send queue full, frame dropped", "event", name, "capacity", cap(c.send))
		return errors.ErrSendQueueFull
	}
}

// Close stops the write pump, which closes the socket. Safe to call twice.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case envelope := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteJSON(envelope); err != nil {
				c.log.Debug("Write failed", "event", envelope.Event, "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.log.Debug("Ping failed", "error", err)
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.ws.WriteControl(websocket.CloseMessage, closing, time.Now().Add(c.cfg.WriteTimeout))
			return
		}
	}
}

// flush writes what is still queued when the connection is closed by the server.
func (c *Conn) flush() {
	for {
		select {
		case envelope := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteJSON(envelope); err != nil {
				return
			}
		default:
			return
		}
	}
}
