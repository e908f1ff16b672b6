package hub

import (
	"Chatline/internal/event"
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// CallHandler relays call signaling between two peers. It keeps no call state:
// accept, reject, end and the WebRTC negotiation are forwarded as they arrive.
type CallHandler struct {
	sender
	identity IdentityService
}

// HandleCallEvent processes call-related WebSocket events
func (ch *CallHandler) HandleCallEvent(ctx context.Context, ev event.WsEvent, c *Client) {
	switch ev.Event {
	case event.EventCallRequest:
		ch.handleCallRequest(ctx, ev, c)
	case event.EventCallAccept, event.EventCallEnd:
		ch.forwardDirected(ev, c)
	case event.EventCallReject:
		ch.handleCallReject(ev, c)
	case event.EventOffer:
		var p event.OfferPayload
		if ch.decode(ev, c, &p) {
			ch.sendToUser(p.To, ev.Event, event.OfferEvent{From: c.userID, Offer: p.Offer})
		}
	case event.EventAnswer:
		var p event.AnswerPayload
		if ch.decode(ev, c, &p) {
			ch.sendToUser(p.To, ev.Event, event.AnswerEvent{From: c.userID, Answer: p.Answer})
		}
	case event.EventIceCandidate:
		var p event.IceCandidatePayload
		if ch.decode(ev, c, &p) {
			ch.sendToUser(p.To, ev.Event, event.IceCandidateEvent{From: c.userID, Candidate: p.Candidate})
		}
	default:
		c.logger.Warn("unknown call event type", zap.String("event", ev.Event))
	}
}

// handleCallRequest rings the callee, or answers the caller with call-failed when
// the callee has no live connection.
func (ch *CallHandler) handleCallRequest(ctx context.Context, ev event.WsEvent, c *Client) {
	var payload event.CallRequestPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.To == "" {
		c.logger.Warn("invalid call request payload", zap.Error(err))
		return
	}

	if _, online := ch.registry.Lookup(payload.To); !online {
		ch.callFailed(c, payload)
		return
	}

	request := event.CallRequestEvent{
		From:       c.userID,
		CallType:   payload.CallType,
		CallerInfo: ch.callerInfo(ctx, c, payload.CallerInfo),
	}

	// the callee may have left while the profile was loading
	if !ch.sendToUser(payload.To, event.EventCallRequest, request) {
		ch.callFailed(c, payload)
		return
	}

	ch.metrics.callRequested(payload.CallType, "ringing")
	c.logger.Info("call request relayed",
		zap.String("to", payload.To),
		zap.String("call_type", payload.CallType),
	)
}

// callerInfo prefers the stored profile, then what the caller claimed, then the
// authenticated username. The identity is always the authenticated one.
func (ch *CallHandler) callerInfo(ctx context.Context, c *Client, claimed *event.CallerInfo) event.CallerInfo {
	var profileName, profileAvatar string
	if profile, err := ch.identity.GetUser(ctx, c.userID); err != nil {
		c.logger.Warn("failed to load caller profile", zap.Error(err))
	} else if profile != nil {
		profileName, profileAvatar = profile.DisplayName, profile.Avatar
	}

	var claimedName, claimedAvatar string
	if claimed != nil {
		claimedName, claimedAvatar = claimed.DisplayName, claimed.Avatar
	}

	return event.CallerInfo{
		UserID:      c.userID,
		Username:    c.username,
		DisplayName: firstNonEmpty(profileName, claimedName, c.username),
		Avatar:      firstNonEmpty(profileAvatar, claimedAvatar),
	}
}

func (ch *CallHandler) callFailed(c *Client, payload event.CallRequestPayload) {
	ch.metrics.callRequested(payload.CallType, "offline")
	ch.reply(c, event.EventCallFailed, event.ErrorEvent{Message: event.CallFailedOffline})

	c.logger.Info("call request failed, callee offline", zap.String("to", payload.To))
}

func (ch *CallHandler) handleCallReject(ev event.WsEvent, c *Client) {
	var p event.CallRejectPayload
	if !ch.decode(ev, c, &p) {
		return
	}
	ch.sendToUser(p.To, ev.Event, event.CallRejectEvent{From: c.userID, Reason: p.Reason})
}

// forwardDirected relays events that carry nothing but the target.
func (ch *CallHandler) forwardDirected(ev event.WsEvent, c *Client) {
	var p event.DirectedPayload
	if !ch.decode(ev, c, &p) {
		return
	}
	ch.sendToUser(p.To, ev.Event, event.FromEvent{From: c.userID})
}

// decode unmarshals the payload into a struct whose To field must be set.
func (ch *CallHandler) decode(ev event.WsEvent, c *Client, v interface{ Target() string }) bool {
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		c.logger.Warn("failed to unmarshal call payload", zap.String("event", ev.Event), zap.Error(err))
		return false
	}
	if v.Target() == "" {
		c.logger.Warn("call payload without target", zap.String("event", ev.Event))
		return false
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
