package hub

import (
	"Chatline/internal/event"
	"Chatline/internal/model"
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	messageErrorFailedSend = "Failed to send message"
	messageErrorInvalid    = "Invalid message payload"
)

var ErrInvalidMessagePayload = errors.New("message payload requires a recipient")

// MessageRelay persists a chat message and then forwards it to the recipient if
// the recipient is connected. Offline recipients find the message in history.
type MessageRelay struct {
	sender
	store MessageStore
	now   func() time.Time
}

// HandleMessage relays one message event from c and always answers c with
// message-sent or message-error.
func (m *MessageRelay) HandleMessage(ctx context.Context, ev event.WsEvent, c *Client) {
	var payload event.MessagePayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.To == "" {
		c.logger.Warn("invalid message payload", zap.Error(err))
		m.reply(c, event.EventMessageError, event.ErrorEvent{Message: messageErrorInvalid})
		return
	}

	ack, err := m.Send(ctx, c.userID, payload)
	if err != nil {
		m.reply(c, event.EventMessageError, event.ErrorEvent{Message: messageErrorFailedSend})
		return
	}

	m.reply(c, event.EventMessageSent, ack)
}

// Send stores the message, forwards it when the recipient is connected and
// returns the acknowledgment for the sender. Nothing is forwarded when the
// insert fails, and the insert is not retried.
func (m *MessageRelay) Send(ctx context.Context, senderID string, payload event.MessagePayload) (event.MessageSentEvent, error) {
	if payload.To == "" {
		return event.MessageSentEvent{}, ErrInvalidMessagePayload
	}

	createdAt, ok := payload.ClientTime()
	if !ok {
		createdAt = m.now()
	}

	msgType := payload.Type
	if msgType == "" {
		msgType = model.MessageTypeText
	}

	stored, err := m.store.Create(ctx, &model.Message{
		SenderID:     senderID,
		ReceiverID:   payload.To,
		Content:      payload.Message,
		Type:         msgType,
		MediaURL:     payload.MediaURL,
		ThumbnailURL: payload.ThumbnailURL,
		IsDelivered:  false,
		CreatedAt:    createdAt,
	})
	m.metrics.messagePersisted(err)
	if err != nil {
		m.logger.Error("failed to persist message",
			zap.String("sender_id", senderID),
			zap.String("receiver_id", payload.To),
			zap.Error(err),
		)
		return event.MessageSentEvent{}, err
	}

	id := stored.ID.Hex()
	timestamp := stored.CreatedAt.UnixMilli()

	delivered := m.sendToUser(payload.To, event.EventMessage, event.MessageEvent{
		ID:           id,
		From:         senderID,
		To:           payload.To,
		Message:      stored.Content,
		Content:      stored.Content,
		Type:         stored.Type,
		MediaURL:     stored.MediaURL,
		ThumbnailURL: stored.ThumbnailURL,
		Timestamp:    timestamp,
		IsDelivered:  true,
	})

	if delivered {
		if err := m.store.MarkDelivered(ctx, id); err != nil {
			m.logger.Warn("failed to mark message delivered",
				zap.String("message_id", id),
				zap.Error(err),
			)
		}
	}

	return event.MessageSentEvent{
		ID:          id,
		Timestamp:   timestamp,
		IsDelivered: delivered,
	}, nil
}
