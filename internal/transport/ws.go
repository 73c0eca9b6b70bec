package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/types"
)

// WSConfig configures the websocket transport.
type WSConfig struct {
	URL string
	// ReconnectMin/Max bound the backoff between dial attempts.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
}

// WSClient is the websocket-backed Transport. It dials, decodes inbound
// frames, and redials with capped backoff when the connection drops; each
// transition is reported on States so the engine can trigger a directory
// refresh to fill the gap.
type WSClient struct {
	cfg    WSConfig
	logger *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	events chan types.Event
	states chan ConnState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ErrNotConnected is returned by intents sent while the socket is down.
var ErrNotConnected = errors.New("transport: not connected")

// DialWS starts the websocket transport. The returned client reconnects on
// its own until Close is called.
func DialWS(ctx context.Context, cfg WSConfig, logger *zap.Logger) *WSClient {
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = 500 * time.Millisecond
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 30 * time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cctx, cancel := context.WithCancel(ctx)
	c := &WSClient{
		cfg:    cfg,
		logger: logger,
		events: make(chan types.Event, cfg.EventBuffer),
		states: make(chan ConnState, 8),
		ctx:    cctx,
		cancel: cancel,
	}
	c.wg.Add(1)
	go c.connectLoop()
	return c
}

func (c *WSClient) Events() <-chan types.Event { return c.events }
func (c *WSClient) States() <-chan ConnState   { return c.states }

func (c *WSClient) connectLoop() {
	defer c.wg.Done()
	backoff := c.cfg.ReconnectMin

	for {
		if c.ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.cfg.URL, nil)
		if err != nil {
			c.logger.Warn("dial failed", zap.String("url", c.cfg.URL), zap.Error(err))
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.cfg.ReconnectMax {
				backoff = c.cfg.ReconnectMax
			}
			continue
		}

		backoff = c.cfg.ReconnectMin
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.pushState(StateConnected)

		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.pushState(StateDisconnected)
	}
}

// readLoop drains one connection until it errors. Malformed frames are
// dropped with a warning; they never stop the loop.
func (c *WSClient) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("read failed", zap.Error(err))
			}
			_ = conn.Close()
			return
		}
		evt, err := DecodeEvent(data, time.Now())
		if err != nil {
			c.logger.Warn("dropping event", zap.Error(err))
			continue
		}
		select {
		case c.events <- evt:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *WSClient) pushState(s ConnState) {
	select {
	case c.states <- s:
	default:
		// A slow consumer only cares about the latest transition.
	}
}

func (c *WSClient) writeIntent(i intent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(i)
}

func (c *WSClient) JoinConversation(id string) error {
	return c.writeIntent(intent{Kind: "join", ConversationID: id})
}

func (c *WSClient) LeaveConversation(id string) error {
	return c.writeIntent(intent{Kind: "leave", ConversationID: id})
}

func (c *WSClient) SendTyping(conversationID string, typing bool) error {
	return c.writeIntent(intent{Kind: "typing", ConversationID: conversationID, IsTyping: &typing})
}

func (c *WSClient) AcknowledgeReceipt(conversationID, messageID string) error {
	return c.writeIntent(intent{Kind: "ack", ConversationID: conversationID, MessageID: messageID})
}

// Close tears the transport down and stops reconnecting.
func (c *WSClient) Close() error {
	c.cancel()
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
	c.wg.Wait()
	close(c.events)
	return nil
}
