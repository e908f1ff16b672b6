package hub

import (
	"Chatline/internal/event"
	"Chatline/internal/model"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	forceCloseTimeout = 5 * time.Second // writer gets this long to send a close frame
)

// Client is one authenticated socket. Its identity is fixed at construction.
type Client struct {
	ID            string
	userID        string
	username      string
	conn          *websocket.Conn
	hub           *Hub
	egress        chan event.WsEvent
	establishedAt time.Time
	logger        *zap.Logger

	// cancel or stop goroutines; egress is never closed, ctx signals exit
	ctx            context.Context
	cancel         context.CancelFunc
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
}

// newClient binds an authenticated user to conn. conn may be nil when the
// client is driven directly, as the hub tests do.
func newClient(h *Hub, user *model.User, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	clientID := uuid.New().String()
	userID := user.UserID()

	return &Client{
		ID:            clientID,
		userID:        userID,
		username:      user.Username,
		conn:          conn,
		hub:           h,
		egress:        make(chan event.WsEvent, h.opts.SendBufferSize),
		establishedAt: h.now(),
		logger: h.logger.With(
			zap.String("client_id", clientID),
			zap.String("user_id", userID),
		),
		ctx:        ctx,
		cancel:     cancel,
		connClosed: make(chan struct{}),
	}
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} { return c.ctx.Done() }

// ReadMessages pumps inbound frames into the hub until the socket fails.
// Leaving it always unregisters the client.
func (c *Client) ReadMessages() {
	defer func() {
		c.hub.disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		var ev event.WsEvent

		if err := c.conn.ReadJSON(&ev); err != nil {
			if isDecodeError(err) {
				c.logger.Warn("dropping malformed frame", zap.Error(err))
				continue
			}

			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				c.logger.Info("client disconnected")
				return
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				c.logger.Info("client timed out, closing connection")
				return
			}

			select {
			case <-c.ctx.Done():
				// closed locally, the read error is expected
			default:
				c.logger.Info("read failed", zap.Error(err))
			}
			return
		}

		if ev.Event == "" {
			c.logger.Warn("dropping frame without event name")
			continue
		}

		if !c.hub.dispatch(c, ev) {
			return
		}
	}
}

// WriteMessages drains the egress queue to the socket and keeps the peer alive with pings.
func (c *Client) WriteMessages() {
	ticker := time.NewTicker(pingInterval(c.hub.opts.PongWait))

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})

		c.logger.Debug("writer exiting")
	}()

	writeWait := c.hub.opts.WriteWait

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case ev := <-c.egress:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Info("write failed", zap.String("event", ev.Event), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Info("ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
}

// trySend enqueues ev without blocking. A full queue means the peer cannot keep
// up; the client is closed rather than stalling the relay that called us.
func (c *Client) trySend(ev event.WsEvent) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}

	select {
	case c.egress <- ev:
		return true
	default:
		c.logger.Warn("egress full, disconnecting client", zap.String("event", ev.Event))
		c.Close()
		return false
	}
}

// Close stops both pumps. It is safe to call more than once and from any goroutine.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()

		if c.conn == nil {
			return
		}

		// Wait for WriteMessages to close conn, or force close after timeout
		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(forceCloseTimeout):
				_ = c.conn.Close()
				c.logger.Warn("safety timeout: force closed connection")
			}
		}()
	})
}

// queued reports how many events wait in the outbound queue.
func (c *Client) queued() int {
	return len(c.egress)
}

func pingInterval(pongWait time.Duration) time.Duration {
	return (pongWait * 9) / 10
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
