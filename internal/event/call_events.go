package event

import "encoding/json"

// Call Event Types - relayed peer to peer
const (
	// EventCallRequest - Caller asks callee to start a call
	EventCallRequest = "call-request"

	// EventCallAccept - Callee accepts the incoming call
	EventCallAccept = "call-accept"

	// EventCallReject - Callee rejects the incoming call
	EventCallReject = "call-reject"

	// EventCallEnd - Either party ends the call
	EventCallEnd = "call-end"

	// WebRTC negotiation, opaque to the server
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventIceCandidate = "ice-candidate"
)

// Call Event Types - Server to Client
const (
	// EventCallFailed - Notify caller that the callee has no live connection
	EventCallFailed = "call-failed"
)

// Call Types
const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)

// CallFailedOffline is the call-failed message when the callee is not connected.
const CallFailedOffline = "User is offline"

// CallerInfo describes the caller to the callee
type CallerInfo struct {
	UserID      string `json:"userId,omitempty"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

// -----------------------------------------------------------------
// WebSocket Event Payloads - Client to Server
// -----------------------------------------------------------------

// CallRequestPayload is sent by caller to ring the callee
type CallRequestPayload struct {
	To         string      `json:"to"`
	CallType   string      `json:"callType"`
	CallerInfo *CallerInfo `json:"callerInfo,omitempty"`
}

// CallRejectPayload is sent by callee to reject a call
type CallRejectPayload struct {
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// OfferPayload carries an SDP offer
type OfferPayload struct {
	To    string          `json:"to"`
	Offer json.RawMessage `json:"offer"`
}

// AnswerPayload carries an SDP answer
type AnswerPayload struct {
	To     string          `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

// IceCandidatePayload carries a trickled ICE candidate
type IceCandidatePayload struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

// -----------------------------------------------------------------
// WebSocket Event Payloads - Server to Client
// -----------------------------------------------------------------

// CallRequestEvent is sent to the callee
type CallRequestEvent struct {
	From       string     `json:"from"`
	CallType   string     `json:"callType"`
	CallerInfo CallerInfo `json:"callerInfo"`
}

// CallRejectEvent is sent to the caller when callee rejects
type CallRejectEvent struct {
	From   string `json:"from"`
	Reason string `json:"reason,omitempty"`
}

// OfferEvent forwards an SDP offer
type OfferEvent struct {
	From  string          `json:"from"`
	Offer json.RawMessage `json:"offer"`
}

// AnswerEvent forwards an SDP answer
type AnswerEvent struct {
	From   string          `json:"from"`
	Answer json.RawMessage `json:"answer"`
}

// IceCandidateEvent forwards an ICE candidate
type IceCandidateEvent struct {
	From      string          `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

// Target returns the user id a client payload is addressed to.
func (p CallRequestPayload) Target() string  { return p.To }
func (p CallRejectPayload) Target() string   { return p.To }
func (p OfferPayload) Target() string        { return p.To }
func (p AnswerPayload) Target() string       { return p.To }
func (p IceCandidatePayload) Target() string { return p.To }
