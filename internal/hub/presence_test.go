package hub

import (
	"Chatline/internal/event"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnlineAnnouncedToOthersOnly(t *testing.T) {
	env := newTestEnv(t)

	alice := env.join(newTestUser("alice"))
	requireNoEvent(t, alice)

	bob := env.join(newTestUser("bob"))

	var online event.PresenceEvent
	recvEvent(t, alice, event.EventUserOnline, &online)
	assert.Equal(t, bob.userID, online.UserID)
	assert.Equal(t, "bob", online.Username)
	assert.Zero(t, online.LastSeen)

	requireNoEvent(t, bob)
}

func TestOnlinePersistsPresence(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env.hub.now = func() time.Time { return now }

	alice := env.join(newTestUser("alice"))

	presence := env.identity.presenceOf(alice.userID)
	require.Len(t, presence, 1)
	assert.True(t, presence[0].IsOnline)
	assert.Equal(t, now, presence[0].LastSeen)
	assert.Equal(t, alice.ID, presence[0].SocketID)
}

func TestPresenceStoreFailureDoesNotBlockBroadcast(t *testing.T) {
	env := newTestEnv(t)
	env.identity.presenceErr = errors.New("mongo down")

	alice := env.join(newTestUser("alice"))
	bob := env.join(newTestUser("bob"))

	recvEvent(t, alice, event.EventUserOnline, nil)

	env.leave(bob)
	recvEvent(t, alice, event.EventUserOffline, nil)
}

func TestOfflineCarriesLastSeen(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	env.hub.now = func() time.Time { return now }

	alice := env.join(newTestUser("alice"))
	bob := env.join(newTestUser("bob"))
	drain(alice)

	env.leave(bob)

	var offline event.PresenceEvent
	recvEvent(t, alice, event.EventUserOffline, &offline)
	assert.Equal(t, bob.userID, offline.UserID)
	assert.Equal(t, "bob", offline.Username)
	assert.Equal(t, now.UnixMilli(), offline.LastSeen)

	presence := env.identity.presenceOf(bob.userID)
	require.Len(t, presence, 2)
	assert.False(t, presence[1].IsOnline)
	assert.Equal(t, now, presence[1].LastSeen)

	_, ok := env.hub.registry.Lookup(bob.userID)
	assert.False(t, ok)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	alice := env.join(newTestUser("alice"))
	bob := env.join(newTestUser("bob"))
	drain(alice)

	env.leave(bob)
	env.leave(bob)

	recvEvent(t, alice, event.EventUserOffline, nil)
	requireNoEvent(t, alice)
}

func TestSupersededConnectionIsClosedAndStaleDisconnectIgnored(t *testing.T) {
	env := newTestEnv(t)
	bobUser := newTestUser("bob")

	alice := env.join(newTestUser("alice"))
	first := env.join(bobUser)
	second := env.join(bobUser)

	select {
	case <-first.Done():
	default:
		t.Fatal("superseded connection should be closed")
	}

	// one announcement per connect
	recvEvent(t, alice, event.EventUserOnline, nil)
	recvEvent(t, alice, event.EventUserOnline, nil)

	env.leave(first)
	requireNoEvent(t, alice)

	got, ok := env.hub.registry.Lookup(bobUser.UserID())
	require.True(t, ok)
	assert.Same(t, second, got)

	stats := NewMonitorService(env.hub).GetStats()
	assert.Equal(t, int64(1), stats.Connections.TotalSuperseded)
	assert.Equal(t, 2, stats.Connections.TotalConnected)
}

func TestSupersededConnectionKeptOpenWhenConfigured(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.CloseSuperseded = false })
	bobUser := newTestUser("bob")

	first := env.join(bobUser)
	second := env.join(bobUser)

	select {
	case <-first.Done():
		t.Fatal("superseded connection should stay open")
	default:
	}

	// directed traffic follows the newest connection
	alice := env.join(newTestUser("alice"))
	drain(first)
	drain(second)

	env.hub.handleEvent(mustEvent(t, event.EventTyping, event.DirectedPayload{To: bobUser.UserID()}), alice)
	recvEvent(t, second, event.EventTyping, nil)
	requireNoEvent(t, first)
}
