package hub

import (
	"Chatline/internal/auth"
	"Chatline/internal/event"
	"Chatline/internal/model"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	inboundSendTimeout = 500 * time.Millisecond // reader waits this long for its worker before giving up on the client
)

// IdentityService resolves profiles and mirrors presence. Both calls may be slow.
type IdentityService interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	SetPresence(ctx context.Context, id string, presence model.Presence) error
}

// MessageStore persists chat messages.
type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	MarkDelivered(ctx context.Context, messageID string) error
}

// Authenticator turns a bearer credential into a user before the socket is upgraded.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*model.User, error)
}

// Options tunes the hub. Zero fields fall back to DefaultOptions.
type Options struct {
	SendBufferSize    int           // per-connection outbound queue
	WorkerPoolSize    int           // inbound workers; a client always lands on the same one
	InboundBufferSize int           // per-worker inbound queue
	WriteWait         time.Duration // time allowed to write a frame to the peer
	PongWait          time.Duration // time allowed to read the next pong from the peer
	MaxMessageSize    int64         // max inbound frame size
	StoreTimeout      time.Duration // bound on each identity or store call
	CloseSuperseded   bool          // close the old socket when the same user connects again
	AllowedOrigins    []string      // empty or "*" allows any origin
}

func DefaultOptions() Options {
	return Options{
		SendBufferSize:    256,
		WorkerPoolSize:    16,
		InboundBufferSize: 256,
		WriteWait:         10 * time.Second,
		PongWait:          20 * time.Second,
		MaxMessageSize:    64 * 1024,
		StoreTimeout:      5 * time.Second,
		CloseSuperseded:   true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = d.SendBufferSize
	}
	if o.WorkerPoolSize <= 0 {
		o.WorkerPoolSize = d.WorkerPoolSize
	}
	if o.InboundBufferSize <= 0 {
		o.InboundBufferSize = d.InboundBufferSize
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = d.StoreTimeout
	}
	return o
}

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

type Hub struct {
	registry *Registry
	auth     Authenticator
	metrics  *Metrics
	logger   *zap.Logger
	opts     Options
	upgrader websocket.Upgrader
	now      func() time.Time

	presence *PresenceBroadcaster
	calls    *CallHandler
	messages *MessageRelay
	typing   *TypingRelay

	inbound []chan inboundMessage
	wg      sync.WaitGroup // workers
	ctx     context.Context
	cancel  context.CancelFunc
	stop    sync.Once

	// mu orders track against Stop so no socket starts after the final close sweep
	mu      sync.Mutex
	stopped bool
	live    map[string]*Client // client id -> every socket with a running reader
	conns   sync.WaitGroup     // socket pumps
}

func NewHub(opts Options, gate Authenticator, identity IdentityService, store MessageStore, metrics *Metrics, logger *zap.Logger) *Hub {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With(zap.String("component", "hub"))

	h := &Hub{
		registry: NewRegistry(),
		auth:     gate,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		inbound:  make([]chan inboundMessage, opts.WorkerPoolSize),
		live:     make(map[string]*Client),
		ctx:      ctx,
		cancel:   cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	out := sender{registry: h.registry, metrics: metrics, logger: logger}
	h.presence = &PresenceBroadcaster{sender: out, identity: identity, timeout: opts.StoreTimeout}
	h.calls = &CallHandler{sender: out, identity: identity}
	h.messages = &MessageRelay{sender: out, store: store, now: h.clock}
	h.typing = &TypingRelay{sender: out}

	// start worker loop; one queue per worker keeps each client's events in order
	for i := range h.inbound {
		ch := make(chan inboundMessage, opts.InboundBufferSize)
		h.inbound[i] = ch

		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in := <-ch:
					h.handleEvent(in.event, in.client)
				}
			}
		}()
	}

	return h
}

func (h *Hub) clock() time.Time { return h.now() }

// ServeWS authenticates the request, upgrades it and starts the client pumps.
// Authentication happens before the upgrade so a rejected peer gets a plain 401.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.isStopped() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	user, err := h.auth.Authenticate(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		h.metrics.authFailed()
		h.logger.Info("connection rejected", zap.String("remote", r.RemoteAddr), zap.Error(err))
		http.Error(w, "Authentication error", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", user.UserID()), zap.Error(err))
		return
	}

	c := newClient(h, user, conn)
	if !h.track(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(h.opts.WriteWait))
		c.cancel()
		_ = conn.Close()
		return
	}
	h.connect(c)

	go func() {
		defer h.conns.Done()
		c.WriteMessages()
	}()
	go func() {
		defer h.conns.Done()
		defer h.untrack(c)
		c.ReadMessages()
	}()
}

// track reserves c's pumps with Stop's wait group. It fails once Stop has begun.
func (h *Hub) track(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return false
	}
	h.live[c.ID] = c
	h.conns.Add(2)
	return true
}

func (h *Hub) untrack(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.live, c.ID)
}

func (h *Hub) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// connect registers c and announces it. A previous connection of the same user
// loses its registry entry and, with CloseSuperseded, its socket.
func (h *Hub) connect(c *Client) {
	prev := h.registry.Register(c.userID, c)
	h.metrics.connectionAccepted()
	h.metrics.setConnections(h.registry.Len())

	c.logger.Info("client registered", zap.String("username", c.username))

	if prev != nil {
		h.metrics.connectionSuperseded()
		prev.logger.Info("connection superseded", zap.String("by_client_id", c.ID))
		if h.opts.CloseSuperseded {
			prev.Close()
		}
	}

	h.presence.AnnounceOnline(c, h.now())
}

// disconnect is a no-op unless c is still the registered connection for its user,
// so a superseded socket going away never marks the user offline.
func (h *Hub) disconnect(c *Client) {
	if !h.registry.Unregister(c.userID, c) {
		c.logger.Debug("stale disconnect ignored")
		return
	}
	h.metrics.setConnections(h.registry.Len())

	c.logger.Info("client unregistered")
	h.presence.AnnounceOffline(c, h.now())
}

// dispatch hands ev to the worker owning c. It returns false when the client
// should stop reading.
func (h *Hub) dispatch(c *Client, ev event.WsEvent) bool {
	ch := h.inbound[getShard(c.ID, len(h.inbound))]

	timer := time.NewTimer(inboundSendTimeout)
	defer timer.Stop()

	select {
	case ch <- inboundMessage{client: c, event: ev}:
		return true
	case <-timer.C:
		c.logger.Warn("inbound send timeout, dropping client", zap.String("event", ev.Event))
		c.Close()
		return false
	case <-c.ctx.Done():
		return false
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	ctx, cancel := context.WithTimeout(h.ctx, h.opts.StoreTimeout)
	defer cancel()

	switch ev.Event {
	case event.EventMessage:
		h.messages.HandleMessage(ctx, ev, c)
	case event.EventTyping, event.EventStopTyping:
		h.typing.Handle(ev, c)
	case event.EventCallRequest,
		event.EventCallAccept,
		event.EventCallReject,
		event.EventCallEnd,
		event.EventOffer,
		event.EventAnswer,
		event.EventIceCandidate:
		h.calls.HandleCallEvent(ctx, ev, c)
	default:
		c.logger.Warn("unknown event type", zap.String("event", ev.Event))
	}
}

func getShard(key string, n int) uint32 {
	if key == "" || n <= 1 {
		return 0
	}

	sum := sha1.Sum([]byte(key))
	return binary.BigEndian.Uint32(sum[:4]) % uint32(n)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}

	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Stop closes every client and waits for the pumps and workers to exit.
func (h *Hub) Stop() {
	h.stop.Do(func() {
		h.mu.Lock()
		h.stopped = true
		h.cancel()
		live := make([]*Client, 0, len(h.live))
		for _, c := range h.live {
			live = append(live, c)
		}
		h.mu.Unlock()

		for _, c := range live {
			c.Close()
		}

		h.conns.Wait()
		h.wg.Wait()
		h.logger.Info("hub stopped")
	})
}
