package hub

import (
	"Chatline/internal/event"
	"Chatline/internal/model"
	"context"
	"time"

	"go.uber.org/zap"
)

// PresenceBroadcaster tells every other connected user when someone comes or goes,
// and mirrors the transition into the identity store.
type PresenceBroadcaster struct {
	sender
	identity IdentityService
	timeout  time.Duration
}

// AnnounceOnline records the user as online and broadcasts user-online to everyone but c's user.
// A failing identity store is logged; the broadcast still goes out.
func (p *PresenceBroadcaster) AnnounceOnline(c *Client, now time.Time) {
	p.persist(c, model.Presence{IsOnline: true, LastSeen: now, SocketID: c.ID})
	p.broadcast(c, event.EventUserOnline, event.PresenceEvent{
		UserID:   c.userID,
		Username: c.username,
	})
}

// AnnounceOffline records lastSeen and broadcasts user-offline to everyone still connected.
func (p *PresenceBroadcaster) AnnounceOffline(c *Client, lastSeen time.Time) {
	p.persist(c, model.Presence{IsOnline: false, LastSeen: lastSeen})
	p.broadcast(c, event.EventUserOffline, event.PresenceEvent{
		UserID:   c.userID,
		Username: c.username,
		LastSeen: lastSeen.UnixMilli(),
	})
}

func (p *PresenceBroadcaster) broadcast(c *Client, name string, payload event.PresenceEvent) {
	ev, err := event.New(name, payload)
	if err != nil {
		p.logger.Error("failed to encode presence event", zap.String("event", name), zap.Error(err))
		return
	}

	sent := p.registry.Broadcast(c.userID, ev)
	for i := 0; i < sent; i++ {
		p.metrics.eventRelayed(name)
	}

	c.logger.Debug("presence broadcast", zap.String("event", name), zap.Int("recipients", sent))
}

// persist outlives the hub context so a shutdown still marks users offline.
func (p *PresenceBroadcaster) persist(c *Client, presence model.Presence) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.identity.SetPresence(ctx, c.userID, presence); err != nil {
		c.logger.Warn("failed to update presence",
			zap.Bool("online", presence.IsOnline),
			zap.Error(err),
		)
	}
}
