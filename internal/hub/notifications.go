package hub

import (
	"Chatline/internal/event"
	"errors"

	"go.uber.org/zap"
)

// -----------------------------------------------------------------
// Notification Methods - Send Events to Clients
// -----------------------------------------------------------------

// sender is what every relay component needs to address a peer by user id.
type sender struct {
	registry *Registry
	metrics  *Metrics
	logger   *zap.Logger
}

// sendToUser enqueues name/payload on userID's connection. It returns false when
// the user has no live connection; the event is then dropped, never queued.
func (s sender) sendToUser(userID, name string, payload any) bool {
	ev, err := event.New(name, payload)
	if err != nil {
		s.logger.Error("failed to encode event", zap.String("event", name), zap.Error(err))
		s.metrics.eventDropped(name, dropEncode)
		return false
	}

	if err := s.registry.SendTo(userID, ev); err != nil {
		reason := dropOffline
		if errors.Is(err, ErrSendRefused) {
			reason = dropRefused
		}
		s.metrics.eventDropped(name, reason)
		s.logger.Debug("event dropped",
			zap.String("event", name),
			zap.String("to", userID),
			zap.String("reason", reason),
		)
		return false
	}

	s.metrics.eventRelayed(name)
	return true
}

// reply sends name/payload back to the client that produced the current event.
func (s sender) reply(c *Client, name string, payload any) bool {
	ev, err := event.New(name, payload)
	if err != nil {
		s.logger.Error("failed to encode event", zap.String("event", name), zap.Error(err))
		s.metrics.eventDropped(name, dropEncode)
		return false
	}

	if !c.trySend(ev) {
		s.metrics.eventDropped(name, dropRefused)
		return false
	}
	s.metrics.eventRelayed(name)
	return true
}
