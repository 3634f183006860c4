// Package transport provides the persistent duplex channel to the
// conversation service. Text frames carry JSON control messages; binary
// frames carry raw little-endian PCM16 audio with no extra framing, one
// payload per message.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ChannelConfig tunes the websocket channel.
type ChannelConfig struct {
	// URL is the websocket endpoint of the conversation service.
	URL string

	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration

	// ReadTimeout bounds the wait for each inbound message.
	ReadTimeout time.Duration
}

// DefaultChannelConfig returns sensible channel defaults.
func DefaultChannelConfig(url string) ChannelConfig {
	return ChannelConfig{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      120 * time.Second,
	}
}

// Channel is the websocket implementation of the duplex channel. Writes
// are serialized; exactly one read loop consumes inbound messages.
type Channel struct {
	cfg    ChannelConfig
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	cancelCtx context.CancelFunc

	onControl func(msg Message)
	onAudio   func(pcm []byte)
	onError   func(err error)

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	audioBytesSent   atomic.Int64
}

// NewChannel creates a channel for cfg.
func NewChannel(cfg ChannelConfig, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		cfg:    cfg,
		logger: logger.With("component", "transport"),
	}
}

// Connect dials the service and starts the read loop.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	c.logger.Info("connecting", "url", c.cfg.URL)

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return NewConnectionError("dial failed", err, true)
	}

	msgCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.cancelCtx = cancel
	c.mu.Unlock()

	go c.readLoop(msgCtx)

	c.logger.Info("connected")
	return nil
}

// Close shuts the channel down. It is safe to call multiple times.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	if c.cancelCtx != nil {
		c.cancelCtx()
	}

	if c.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		c.conn.Close()
		c.conn = nil
	}

	c.connected = false
	c.logger.Info("disconnected")
	return nil
}

// IsConnected returns true if the channel is open.
func (c *Channel) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SendControl sends one JSON control message.
func (c *Channel) SendControl(msg Message) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport: marshal failed: %w", err)
	}

	c.mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.mu.Unlock()
	if err != nil {
		return NewConnectionError("send control failed", err, true)
	}

	c.messagesSent.Add(1)
	return nil
}

// SendAudio sends one binary PCM16 payload.
func (c *Channel) SendAudio(pcm []byte) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.mu.Lock()
	err := conn.WriteMessage(websocket.BinaryMessage, pcm)
	c.mu.Unlock()
	if err != nil {
		return NewConnectionError("send audio failed", err, true)
	}

	c.messagesSent.Add(1)
	c.audioBytesSent.Add(int64(len(pcm)))
	return nil
}

// OnControl sets the inbound control message callback.
func (c *Channel) OnControl(fn func(msg Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onControl = fn
}

// OnAudio sets the inbound audio callback.
func (c *Channel) OnAudio(fn func(pcm []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAudio = fn
}

// OnError sets the error callback.
func (c *Channel) OnError(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// readLoop consumes inbound messages until the connection closes. There
// is exactly one reader per channel.
func (c *Channel) readLoop(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("connection closed normally")
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			c.logger.Error("read error", "error", err)
			c.emitError(NewConnectionError("read failed", err, true))
			return
		}

		c.messagesReceived.Add(1)

		switch msgType {
		case websocket.BinaryMessage:
			c.emitAudio(data)

		case websocket.TextMessage:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				// Malformed control text is dropped; the stream
				// must keep flowing.
				c.logger.Warn("failed to parse message", "error", err)
				continue
			}
			c.emitControl(msg)
		}
	}
}

func (c *Channel) emitControl(msg Message) {
	c.mu.RLock()
	fn := c.onControl
	c.mu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

func (c *Channel) emitAudio(pcm []byte) {
	c.mu.RLock()
	fn := c.onAudio
	c.mu.RUnlock()
	if fn != nil {
		fn(pcm)
	}
}

func (c *Channel) emitError(err error) {
	c.mu.RLock()
	fn := c.onError
	c.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}
