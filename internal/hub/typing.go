package hub

import (
	"Chatline/internal/event"
	"encoding/json"

	"go.uber.org/zap"
)

// TypingRelay forwards typing indicators. Nothing is stored and an absent
// recipient simply never sees the indicator.
type TypingRelay struct {
	sender
}

func (t *TypingRelay) Handle(ev event.WsEvent, c *Client) {
	var p event.DirectedPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil || p.To == "" {
		c.logger.Debug("invalid typing payload", zap.String("event", ev.Event), zap.Error(err))
		return
	}

	t.sendToUser(p.To, ev.Event, event.FromEvent{From: c.userID})
}
