package orch

import (
	"github.com/samber/lo"

	"github.com/emberchat/broadcast/internal/core"
	"github.com/emberchat/broadcast/internal/domain"
)

// Participants derives the room roster view: online users classified
// against the session state, plus the host when it is offline — the host
// slot survives disconnects and clients need to see it.
func (o *Orchestrator) Participants(roomID domain.RoomID) []domain.Participant {
	snap := o.Sessions.Info(roomID)
	online := o.Roster.Participants(roomID)

	out := lo.Map(online, func(u domain.User, _ int) domain.Participant {
		return domain.Participant{
			UserID:   u.ID,
			Username: u.Username,
			Role:     classify(u.ID, snap),
			Online:   true,
		}
	})

	if snap.HostID != "" && !o.Roster.InRoom(roomID, snap.HostID) {
		host := domain.Participant{UserID: snap.HostID, Role: domain.ParticipantHost}
		if u, ok := o.Roster.Lookup(snap.HostID); ok {
			host.Username = u.Username
		}
		out = append(out, host)
	}
	return out
}

// Disconnect applies the external roster's departure signal: implicit
// speaker removal or queue rejection, no-op for listeners. The host slot
// is left alone so reconnection reattaches to it.
func (o *Orchestrator) Disconnect(roomID domain.RoomID, userID domain.UserID) {
	sess, ok := o.Sessions.Get(roomID)
	if !ok {
		return
	}
	if snap, changed := sess.Disconnect(userID); changed {
		o.publishSnapshot(snap)
	}
}

// managers is the micRequest audience: elevated global roles plus the
// current host.
func (o *Orchestrator) managers(roomID domain.RoomID, snap core.Snapshot) []domain.UserID {
	return lo.FilterMap(o.Roster.Participants(roomID), func(u domain.User, _ int) (domain.UserID, bool) {
		return u.ID, u.Role >= domain.RoleModerator || u.ID == snap.HostID
	})
}

func classify(uid domain.UserID, snap core.Snapshot) domain.ParticipantRole {
	if uid == snap.HostID {
		return domain.ParticipantHost
	}
	if lo.Contains(snap.Speakers, uid) {
		return domain.ParticipantSpeaker
	}
	if lo.Contains(snap.MicQueue, uid) {
		return domain.ParticipantQueued
	}
	return domain.ParticipantListener
}
