// Package orch wires commands through the authoritative session state and
// fans the results out. Command flow: authorize, mutate atomically, publish
// the fresh snapshot to the room, then the human-facing notification to its
// audience. Publishing never blocks, so one slow participant cannot stall
// another's moderation action.
package orch

import (
	"errors"

	"github.com/emberchat/broadcast/internal/app"
	"github.com/emberchat/broadcast/internal/core"
	"github.com/emberchat/broadcast/internal/domain"
)

var ErrTooManyRequests = errors.New("too many mic requests")

type Orchestrator struct {
	Sessions *app.SessionRegistry
	Roster   app.Roster
	Events   *app.Hub
	Limiter  *app.MicRateLimiter
}

// BroadcastInfo returns the room's current snapshot; concurrent callers
// are coalesced by the registry.
func (o *Orchestrator) BroadcastInfo(roomID domain.RoomID) core.Snapshot {
	return o.Sessions.Info(roomID)
}

func (o *Orchestrator) RequestMic(roomID domain.RoomID, userID domain.UserID) error {
	if o.Limiter != nil && !o.Limiter.Allow(userID) {
		return ErrTooManyRequests
	}
	sess := o.Sessions.GetOrCreate(roomID)
	snap, err := sess.RequestMic(userID)
	if err != nil {
		return err
	}
	o.publishSnapshot(snap)
	o.Events.Publish(roomID, app.Event{
		Kind:     app.EventMicRequest,
		RoomID:   roomID,
		ActorID:  userID,
		TargetID: userID,
	}, o.managers(roomID, snap))
	return nil
}

func (o *Orchestrator) ApproveMic(roomID domain.RoomID, actorID, targetID domain.UserID) error {
	sess := o.Sessions.GetOrCreate(roomID)
	snap, err := sess.ApproveMic(actorID, o.Roster.RoleOf(actorID), targetID)
	if err != nil {
		return err
	}
	o.publishSnapshot(snap)
	o.notify(app.EventMicApproved, roomID, actorID, targetID, snap)
	return nil
}

func (o *Orchestrator) RejectMic(roomID domain.RoomID, actorID, targetID domain.UserID) error {
	sess := o.Sessions.GetOrCreate(roomID)
	snap, err := sess.RejectMic(actorID, o.Roster.RoleOf(actorID), targetID)
	if err != nil {
		return err
	}
	o.publishSnapshot(snap)
	o.notify(app.EventMicRejected, roomID, actorID, targetID, snap)
	return nil
}

func (o *Orchestrator) RemoveSpeaker(roomID domain.RoomID, actorID, targetID domain.UserID) error {
	sess := o.Sessions.GetOrCreate(roomID)
	snap, err := sess.RemoveSpeaker(actorID, o.Roster.RoleOf(actorID), targetID)
	if err != nil {
		return err
	}
	o.publishSnapshot(snap)
	o.notify(app.EventSpeakerRemoved, roomID, actorID, targetID, snap)
	return nil
}

// AssignHost is administrative: gated at the transport on admin/owner rank,
// not by the moderation table.
func (o *Orchestrator) AssignHost(roomID domain.RoomID, userID domain.UserID) {
	snap := o.Sessions.GetOrCreate(roomID).AssignHost(userID)
	o.publishSnapshot(snap)
}

// DisableBroadcast destroys the room's session when broadcast mode is
// switched off or the room is deleted.
func (o *Orchestrator) DisableBroadcast(roomID domain.RoomID) {
	o.Sessions.Remove(roomID)
}

func (o *Orchestrator) publishSnapshot(snap core.Snapshot) {
	o.Events.Publish(snap.RoomID, app.Event{
		Kind:     app.EventBroadcastInfo,
		RoomID:   snap.RoomID,
		Snapshot: &snap,
	}, nil)
}

// notify routes a human-facing notification to the affected user plus the
// room's managers.
func (o *Orchestrator) notify(kind app.EventKind, roomID domain.RoomID, actorID, targetID domain.UserID, snap core.Snapshot) {
	audience := append(o.managers(roomID, snap), targetID)
	o.Events.Publish(roomID, app.Event{
		Kind:     kind,
		RoomID:   roomID,
		ActorID:  actorID,
		TargetID: targetID,
	}, audience)
}
