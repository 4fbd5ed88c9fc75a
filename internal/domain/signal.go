package domain

import "encoding/json"

// SignalKind discriminates WebRTC handshake messages. The relay never
// interprets the payload; kinds exist only for routing and logging.
type SignalKind string

const (
	SignalOffer        SignalKind = "webrtc-offer"
	SignalAnswer       SignalKind = "webrtc-answer"
	SignalIceCandidate SignalKind = "webrtc-ice-candidate"
)

// Envelope is a point-to-point signaling message between two participants
// of one room. Payload is carried verbatim, never persisted.
type Envelope struct {
	RoomID  RoomID          `json:"room"`
	From    UserID          `json:"from"`
	To      UserID          `json:"to"`
	Kind    SignalKind      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
