package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emberchat/broadcast/internal/app/orch"
	"github.com/emberchat/broadcast/internal/config"
	"github.com/emberchat/broadcast/internal/core"
	"github.com/emberchat/broadcast/internal/domain"
)

type Handlers struct {
	Orch *orch.Orchestrator
	Cfg  *config.Config
}

// statusFor maps the command error taxonomy onto HTTP codes. Every error
// reaches the caller; nothing is swallowed here.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, core.ErrAlreadySpeaking),
		errors.Is(err, core.ErrAlreadyQueued),
		errors.Is(err, core.ErrCannotRemoveHost):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotInQueue),
		errors.Is(err, core.ErrNotASpeaker):
		return http.StatusNotFound
	case errors.Is(err, orch.ErrTooManyRequests):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func roomID(c *gin.Context) domain.RoomID {
	return domain.RoomID(c.Param("roomID"))
}

// actor returns the acting user: the upstream-resolved body field when
// present, else the authenticated identity on the request.
func actor(c *gin.Context, bodyValue string) domain.UserID {
	if bodyValue != "" {
		return domain.UserID(bodyValue)
	}
	return domain.UserID(c.GetString("user_id"))
}

func (h *Handlers) BroadcastInfo(c *gin.Context) {
	snap := h.Orch.BroadcastInfo(roomID(c))
	c.JSON(http.StatusOK, gin.H{
		"host_id":      snap.HostID,
		"speakers":     snap.Speakers,
		"mic_queue":    snap.MicQueue,
		"participants": h.Orch.Participants(roomID(c)),
	})
}

func (h *Handlers) RequestMic(c *gin.Context) {
	var body struct {
		UserID string `json:"userId"`
	}
	_ = c.ShouldBindJSON(&body)

	if err := h.Orch.RequestMic(roomID(c), actor(c, body.UserID)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handlers) ApproveMic(c *gin.Context) {
	var body struct {
		ApprovedBy string `json:"approvedBy"`
	}
	_ = c.ShouldBindJSON(&body)

	target := domain.UserID(c.Param("userID"))
	if err := h.Orch.ApproveMic(roomID(c), actor(c, body.ApprovedBy), target); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handlers) RejectMic(c *gin.Context) {
	var body struct {
		RejectedBy string `json:"rejectedBy"`
	}
	_ = c.ShouldBindJSON(&body)

	target := domain.UserID(c.Param("userID"))
	if err := h.Orch.RejectMic(roomID(c), actor(c, body.RejectedBy), target); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handlers) RemoveSpeaker(c *gin.Context) {
	var body struct {
		RemovedBy string `json:"removedBy"`
	}
	_ = c.ShouldBindJSON(&body)

	target := domain.UserID(c.Param("userID"))
	if err := h.Orch.RemoveSpeaker(roomID(c), actor(c, body.RemovedBy), target); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// AssignHost and DisableBroadcast are administrative: admin or owner rank
// required, checked against the global role rather than the room table.
func (h *Handlers) AssignHost(c *gin.Context) {
	if !h.isAdmin(c) {
		fail(c, core.ErrPermissionDenied)
		return
	}
	h.Orch.AssignHost(roomID(c), domain.UserID(c.Param("userID")))
	c.Status(http.StatusOK)
}

func (h *Handlers) DisableBroadcast(c *gin.Context) {
	if !h.isAdmin(c) {
		fail(c, core.ErrPermissionDenied)
		return
	}
	h.Orch.DisableBroadcast(roomID(c))
	c.Status(http.StatusOK)
}

func (h *Handlers) isAdmin(c *gin.Context) bool {
	role := h.Orch.Roster.RoleOf(domain.UserID(c.GetString("user_id")))
	if parsed := domain.ParseRole(c.GetString("user_role")); parsed > role {
		role = parsed
	}
	return role >= domain.RoleAdmin
}

func (h *Handlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Orch.Sessions.List()})
}

// ICEServers exposes the statically configured STUN/TURN set; the core
// only forwards it.
func (h *Handlers) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ice_servers": h.Cfg.ICEServers})
}
