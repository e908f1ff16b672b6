package hub

import (
	"Chatline/internal/event"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatPair(t *testing.T, env *testEnv) (alice, bob *Client) {
	t.Helper()
	alice = env.join(newTestUser("alice"))
	bob = env.join(newTestUser("bob"))
	drain(alice)
	return alice, bob
}

func TestMessageToOnlineRecipient(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := chatPair(t, env)
	sentAt := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC).UnixMilli()

	env.hub.handleEvent(mustEvent(t, event.EventMessage, event.MessagePayload{
		To:        bob.userID,
		Message:   "hi bob",
		Timestamp: json.RawMessage(strconv.FormatInt(sentAt, 10)),
	}), alice)

	var relayed event.MessageEvent
	recvEvent(t, bob, event.EventMessage, &relayed)
	assert.NotEmpty(t, relayed.ID)
	assert.Equal(t, alice.userID, relayed.From)
	assert.Equal(t, bob.userID, relayed.To)
	assert.Equal(t, "hi bob", relayed.Message)
	assert.Equal(t, "hi bob", relayed.Content)
	assert.Equal(t, "text", relayed.Type)
	assert.Equal(t, sentAt, relayed.Timestamp)
	assert.True(t, relayed.IsDelivered)

	var ack event.MessageSentEvent
	recvEvent(t, alice, event.EventMessageSent, &ack)
	assert.Equal(t, relayed.ID, ack.ID)
	assert.Equal(t, sentAt, ack.Timestamp)
	assert.True(t, ack.IsDelivered)

	stored := env.store.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, alice.userID, stored[0].SenderID)
	assert.Equal(t, bob.userID, stored[0].ReceiverID)
	assert.True(t, stored[0].IsDelivered)
	assert.Equal(t, sentAt, stored[0].CreatedAt.UnixMilli())
}

func TestMessageToOfflineRecipientIsStoredOnly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.join(newTestUser("alice"))
	offline := newTestUser("bob").UserID()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	env.hub.now = func() time.Time { return now }

	env.hub.handleEvent(mustEvent(t, event.EventMessage, event.MessagePayload{
		To:       offline,
		Message:  "see you later",
		Type:     "image",
		MediaURL: "https://cdn.example.com/a.png",
	}), alice)

	var ack event.MessageSentEvent
	recvEvent(t, alice, event.EventMessageSent, &ack)
	assert.False(t, ack.IsDelivered)
	assert.Equal(t, now.UnixMilli(), ack.Timestamp)
	requireNoEvent(t, alice)

	stored := env.store.stored()
	require.Len(t, stored, 1)
	assert.False(t, stored[0].IsDelivered)
	assert.Equal(t, "image", stored[0].Type)
	assert.Equal(t, "https://cdn.example.com/a.png", stored[0].MediaURL)
}

func TestMessagePersistenceFailure(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := chatPair(t, env)
	env.store.createErr = errors.New("insert failed")

	env.hub.handleEvent(mustEvent(t, event.EventMessage, event.MessagePayload{
		To:      bob.userID,
		Message: "lost",
	}), alice)

	var failed event.ErrorEvent
	recvEvent(t, alice, event.EventMessageError, &failed)
	assert.Equal(t, "Failed to send message", failed.Message)

	requireNoEvent(t, alice)
	requireNoEvent(t, bob)
	assert.Empty(t, env.store.stored())
}

func TestMalformedMessagePayload(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := chatPair(t, env)

	env.hub.handleEvent(event.WsEvent{Event: event.EventMessage, Payload: json.RawMessage(`[1,2]`)}, alice)
	env.hub.handleEvent(mustEvent(t, event.EventMessage, event.MessagePayload{Message: "no recipient"}), alice)

	recvEvent(t, alice, event.EventMessageError, nil)
	recvEvent(t, alice, event.EventMessageError, nil)
	requireNoEvent(t, bob)
	assert.Empty(t, env.store.stored())
}

func TestMessagesAfterDisconnectAreNotBackfilled(t *testing.T) {
	env := newTestEnv(t)
	bobUser := newTestUser("bob")
	alice := env.join(newTestUser("alice"))
	bob := env.join(bobUser)
	drain(alice)

	const total, beforeDisconnect = 6, 3
	send := func(i int) {
		env.hub.handleEvent(mustEvent(t, event.EventMessage, event.MessagePayload{
			To:      bob.userID,
			Message: fmt.Sprintf("m%d", i),
		}), alice)
	}

	for i := 0; i < beforeDisconnect; i++ {
		send(i)
	}
	env.leave(bob)
	for i := beforeDisconnect; i < total; i++ {
		send(i)
	}

	for i := 0; i < beforeDisconnect; i++ {
		var m event.MessageEvent
		recvEvent(t, bob, event.EventMessage, &m)
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Message)
	}
	requireNoEvent(t, bob)

	stored := env.store.stored()
	require.Len(t, stored, total)
	for i, m := range stored {
		assert.Equal(t, i < beforeDisconnect, m.IsDelivered, "message %d", i)
	}

	reconnected := env.join(bobUser)
	requireNoEvent(t, reconnected)

	// alice saw: acks for the first batch, bob going offline, then acks for the rest
	for i := 0; i < total; i++ {
		if i == beforeDisconnect {
			recvEvent(t, alice, event.EventUserOffline, nil)
		}
		var ack event.MessageSentEvent
		recvEvent(t, alice, event.EventMessageSent, &ack)
		assert.Equal(t, i < beforeDisconnect, ack.IsDelivered, "ack %d", i)
	}
}

func TestTypingIndicatorsForwarded(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := chatPair(t, env)

	for _, name := range []string{event.EventTyping, event.EventStopTyping} {
		env.hub.handleEvent(mustEvent(t, name, event.DirectedPayload{To: bob.userID}), alice)

		var got event.FromEvent
		recvEvent(t, bob, name, &got)
		assert.Equal(t, alice.userID, got.From)
	}

	env.hub.handleEvent(mustEvent(t, event.EventTyping, event.DirectedPayload{To: "nobody"}), alice)
	requireNoEvent(t, alice)
	requireNoEvent(t, bob)
	assert.Empty(t, env.store.stored())
}

func TestUnknownEventIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := chatPair(t, env)

	env.hub.handleEvent(mustEvent(t, "join-room", event.DirectedPayload{To: bob.userID}), alice)

	requireNoEvent(t, alice)
	requireNoEvent(t, bob)
}

func TestMessageToSaturatedRecipientIsNotDelivered(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.SendBufferSize = 1 })
	alice := env.join(newTestUser("alice"))
	bob := env.join(newTestUser("bob"))
	drain(alice)

	// bob's single slot is taken
	require.NoError(t, env.hub.registry.SendTo(bob.userID, mustEvent(t, event.EventTyping, event.FromEvent{From: "x"})))

	env.hub.handleEvent(mustEvent(t, event.EventMessage, event.MessagePayload{To: bob.userID, Message: "hi"}), alice)

	var ack event.MessageSentEvent
	recvEvent(t, alice, event.EventMessageSent, &ack)
	assert.False(t, ack.IsDelivered)

	stored := env.store.stored()
	require.Len(t, stored, 1)
	assert.False(t, stored[0].IsDelivered)
}

func TestMessageClientTimestampForms(t *testing.T) {
	clientTime := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	serverTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		timestamp string
		want      time.Time
	}{
		{"integer millis", `1714557600000`, clientTime},
		{"float millis", `1714557600000.0`, clientTime},
		{"iso string", `"2024-05-01T10:00:00.000Z"`, clientTime},
		{"garbage falls back to server clock", `"not a date"`, serverTime},
		{"absent", ``, serverTime},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.hub.now = func() time.Time { return serverTime }
			alice, bob := chatPair(t, env)

			payload := `{"to":"` + bob.userID + `","message":"hi"`
			if tc.timestamp != "" {
				payload += `,"timestamp":` + tc.timestamp
			}
			payload += `}`
			env.hub.handleEvent(event.WsEvent{Event: event.EventMessage, Payload: json.RawMessage(payload)}, alice)

			var ack event.MessageSentEvent
			recvEvent(t, alice, event.EventMessageSent, &ack)
			assert.Equal(t, tc.want.UnixMilli(), ack.Timestamp)

			var relayed event.MessageEvent
			recvEvent(t, bob, event.EventMessage, &relayed)
			assert.Equal(t, "hi", relayed.Message)

			stored := env.store.stored()
			require.Len(t, stored, 1)
			assert.True(t, tc.want.Equal(stored[0].CreatedAt))
		})
	}
}
