package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/emberchat/broadcast/internal/domain"
)

// handleWebRTC hands an offer/answer/candidate to the relay. The sender id
// is stamped server-side from the authenticated connection and the room
// from the roster, so a client cannot signal on someone else's behalf or
// across rooms. The payload stays opaque end to end.
func (ctl *Controller) handleWebRTC(userID domain.UserID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type    string          `json:"type"`
		To      domain.UserID   `json:"to"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad webrtc payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	roomID, ok := ctl.Presence.RoomOf(userID)
	if !ok {
		log.Debug().Str("module", "signal").Str("user", string(userID)).Msg("webrtc signal outside room, dropped")
		return
	}

	ctl.Relay.Route(domain.Envelope{
		RoomID:  roomID,
		From:    userID,
		To:      p.To,
		Kind:    domain.SignalKind(p.Type),
		Payload: p.Payload,
	})
}
