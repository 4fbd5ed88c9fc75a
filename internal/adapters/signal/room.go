package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/emberchat/broadcast/internal/domain"
)

// handleJoin puts the user into a room's roster and subscribes them to
// its event stream. The room id is owned by the chat product; joining a
// broadcast-enabled room lazily materializes its session.
func (ctl *Controller) handleJoin(userID domain.UserID, conn *WsSignalConn, data []byte) {
	type joinPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	roomID := domain.RoomID(p.Room)

	events, unsubscribe := ctl.Orch.Events.Subscribe(roomID, userID)
	prevRoom, hadPrev := ctl.Presence.Join(userID, roomID, unsubscribe)
	if hadPrev && prevRoom != roomID {
		ctl.Orch.Disconnect(prevRoom, userID)
	}
	go ctl.deliverEvents(events, conn)

	log.Info().Str("module", "signal").Str("user", string(userID)).Str("room", p.Room).Msg("join")

	snap := ctl.Orch.BroadcastInfo(roomID)
	ctl.sendJSON(conn, struct {
		Type         string               `json:"type"`
		Room         domain.RoomID        `json:"room"`
		HostID       domain.UserID        `json:"host_id,omitempty"`
		Speakers     []domain.UserID      `json:"speakers"`
		MicQueue     []domain.UserID      `json:"mic_queue"`
		Participants []domain.Participant `json:"participants"`
	}{
		Type:         "room_state",
		Room:         roomID,
		HostID:       snap.HostID,
		Speakers:     snap.Speakers,
		MicQueue:     snap.MicQueue,
		Participants: ctl.Orch.Participants(roomID),
	})
}

// handleLeave detaches the user from their room; the connection stays up.
func (ctl *Controller) handleLeave(userID domain.UserID, conn *WsSignalConn) {
	log.Info().Str("module", "signal").Str("user", string(userID)).Msg("leave")
	if roomID, ok := ctl.Presence.Leave(userID); ok {
		ctl.Orch.Disconnect(roomID, userID)
	}
	ctl.sendJSON(conn, map[string]any{"type": "left"})
}

// handleDisconnect runs when the transport dies: same cleanup as leave,
// driven by the roster signal rather than a client verb.
func (ctl *Controller) handleDisconnect(userID domain.UserID, conn *WsSignalConn) {
	if roomID, ok := ctl.Presence.Disconnect(userID, conn); ok {
		ctl.Orch.Disconnect(roomID, userID)
	}
}
