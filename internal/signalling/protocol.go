package signalling

import "encoding/json"

// MessageType tags the discriminated union carried over the signalling
// WebSocket connection: BindOffer/BindAnswer negotiate a session against a
// producer stream, SessionDescription and IceCandidate carry the SDP/ICE
// exchange once bound, EndSession tears a session down from either side,
// and PeerStatus is accepted from the client and acknowledged as a no-op.
type MessageType string

const (
	TypeBindOffer          MessageType = "BindOffer"
	TypeBindAnswer         MessageType = "BindAnswer"
	TypeSessionDescription MessageType = "SessionDescription"
	TypeIceCandidate       MessageType = "IceCandidate"
	TypeEndSession         MessageType = "EndSession"
	TypePeerStatus         MessageType = "PeerStatus"
	TypeError              MessageType = "Error"
)

// Message is the envelope for every signalling frame: a type tag plus a
// raw payload decoded according to that tag.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// BindOfferPayload requests a session against a producer stream. Consumer
// is an opaque client-chosen identifier echoed back in BindAnswer and is
// optional; the core never interprets it.
type BindOfferPayload struct {
	Producer string `json:"producer"`
	Consumer string `json:"consumer,omitempty"`
}

// BindAnswerPayload is the core's immediate reply to a BindOffer, handing
// back the session id the rest of the exchange is keyed on. It precedes
// the SDP offer, which the core sends separately once CreateOffer
// completes.
type BindAnswerPayload struct {
	Producer string `json:"producer"`
	Consumer string `json:"consumer,omitempty"`
	Session  string `json:"session"`
}

// SessionDescriptionPayload carries an SDP offer or answer in either
// direction, keyed by session.
type SessionDescriptionPayload struct {
	Session string `json:"session"`
	Type    string `json:"type"` // "offer" or "answer"
	SDP     string `json:"sdp"`
}

// IceCandidatePayload carries one trickled ICE candidate in either
// direction.
type IceCandidatePayload struct {
	Session       string `json:"session"`
	Candidate     string `json:"candidate"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}

// EndSessionPayload tears a session down from either side. Reason is
// advisory only.
type EndSessionPayload struct {
	Session string `json:"session"`
	Reason  string `json:"reason,omitempty"`
}

// PeerStatusPayload describes a session's state. The core does not send
// PeerStatus frames; session state changes are published on the event bus
// as events.SessionStateChangedEvent instead.
type PeerStatusPayload struct {
	Session string `json:"session"`
	State   string `json:"state"`
}

// ErrorPayload reports a protocol or state-machine violation back to the
// client, named by its core.Code so the browser can distinguish classes
// of failure without parsing prose.
type ErrorPayload struct {
	Session string `json:"session,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
