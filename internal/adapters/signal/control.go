package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/emberchat/broadcast/internal/domain"
)

func (ctl *Controller) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, map[string]any{"type": "pong"})
}

func (ctl *Controller) handleRename(userID domain.UserID, conn *WsSignalConn, data []byte) {
	type renamePayload struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	var p renamePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad rename payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := ctl.Presence.Rename(userID, p.Name); err != nil {
		ctl.sendError(conn, "invalid_name")
		return
	}
	log.Info().Str("module", "signal").Str("user", string(userID)).Str("name", p.Name).Msg("rename")
	ctl.handleWhoAmI(userID, conn)
}

func (ctl *Controller) handleWhoAmI(userID domain.UserID, conn *WsSignalConn) {
	user, _ := ctl.Presence.Lookup(userID)
	resp := struct {
		Type     string        `json:"type"`
		UserID   domain.UserID `json:"user_id"`
		Username string        `json:"username"`
		Role     string        `json:"role"`
		Room     domain.RoomID `json:"room,omitempty"`
	}{
		Type:     "whoami",
		UserID:   userID,
		Username: user.Username,
		Role:     user.Role.String(),
	}
	if roomID, ok := ctl.Presence.RoomOf(userID); ok {
		resp.Room = roomID
	}
	ctl.sendJSON(conn, resp)
}
