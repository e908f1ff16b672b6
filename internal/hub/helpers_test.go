package hub

import (
	"Chatline/internal/auth"
	"Chatline/internal/event"
	"Chatline/internal/model"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

type fakeIdentity struct {
	mu          sync.Mutex
	users       map[string]*model.User
	presence    map[string][]model.Presence
	getErr      error
	presenceErr error
}

func newFakeIdentity(users ...*model.User) *fakeIdentity {
	f := &fakeIdentity{
		users:    make(map[string]*model.User),
		presence: make(map[string][]model.Presence),
	}
	for _, u := range users {
		f.users[u.UserID()] = u
	}
	return f
}

func (f *fakeIdentity) GetUser(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func (f *fakeIdentity) SetPresence(_ context.Context, id string, p model.Presence) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.presence[id] = append(f.presence[id], p)
	return f.presenceErr
}

func (f *fakeIdentity) add(u *model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.UserID()] = u
}

func (f *fakeIdentity) presenceOf(id string) []model.Presence {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Presence(nil), f.presence[id]...)
}

type fakeStore struct {
	mu        sync.Mutex
	messages  []model.Message
	delivered []string
	createErr error
}

func (f *fakeStore) Create(_ context.Context, msg *model.Message) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}
	stored := *msg
	stored.ID = primitive.NewObjectID()
	f.messages = append(f.messages, stored)
	return &stored, nil
}

func (f *fakeStore) MarkDelivered(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.delivered = append(f.delivered, id)
	for i := range f.messages {
		if f.messages[i].ID.Hex() == id {
			f.messages[i].IsDelivered = true
		}
	}
	return nil
}

func (f *fakeStore) stored() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.messages...)
}

type testEnv struct {
	hub      *Hub
	identity *fakeIdentity
	store    *fakeStore
	verifier *auth.TokenVerifier
}

func newTestEnv(t *testing.T, configure ...func(*Options)) *testEnv {
	t.Helper()

	opts := DefaultOptions()
	opts.WorkerPoolSize = 4
	opts.SendBufferSize = 64
	opts.StoreTimeout = time.Second
	for _, fn := range configure {
		fn(&opts)
	}

	logger := zaptest.NewLogger(t)
	identity := newFakeIdentity()
	store := &fakeStore{}
	verifier := auth.NewTokenVerifier(testSecret)
	gate := auth.NewGate(verifier, identity, logger)

	h := NewHub(opts, gate, identity, store, NewMetrics(prometheus.NewRegistry()), logger)
	t.Cleanup(h.Stop)

	return &testEnv{hub: h, identity: identity, store: store, verifier: verifier}
}

func newTestUser(name string) *model.User {
	return &model.User{ID: primitive.NewObjectID(), Username: name}
}

// join connects a socketless client for user, the way ServeWS does after the upgrade.
func (e *testEnv) join(user *model.User) *Client {
	e.identity.add(user)
	c := newClient(e.hub, user, nil)
	e.hub.connect(c)
	return c
}

func (e *testEnv) leave(c *Client) {
	e.hub.disconnect(c)
	c.Close()
}

// recv returns the next queued event for c or fails the test.
func recv(t *testing.T, c *Client) event.WsEvent {
	t.Helper()
	select {
	case ev := <-c.egress:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("no event queued for %s", c.username)
		return event.WsEvent{}
	}
}

// recvEvent waits for the next event and checks its name.
func recvEvent(t *testing.T, c *Client, name string, payload any) {
	t.Helper()
	ev := recv(t, c)
	require.Equal(t, name, ev.Event)
	if payload != nil {
		require.NoError(t, json.Unmarshal(ev.Payload, payload))
	}
}

func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.egress:
		t.Fatalf("unexpected %q event for %s: %s", ev.Event, c.username, ev.Payload)
	default:
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.egress:
		default:
			return
		}
	}
}

func mustEvent(t *testing.T, name string, payload any) event.WsEvent {
	t.Helper()
	ev, err := event.New(name, payload)
	require.NoError(t, err)
	return ev
}
