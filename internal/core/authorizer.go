package core

import "github.com/emberchat/broadcast/internal/domain"

// Action is a moderation verb checked against the permission table.
type Action int

const (
	ActionApproveMic Action = iota
	ActionRejectMic
	ActionRemoveSpeaker
)

func (a Action) String() string {
	switch a {
	case ActionApproveMic:
		return "approve_mic"
	case ActionRejectMic:
		return "reject_mic"
	case ActionRemoveSpeaker:
		return "remove_speaker"
	}
	return "unknown"
}

// Authorizer is the single permission predicate for broadcast moderation.
// All role checks route through here so the policy stays auditable.
//
// An actor manages the mic when they hold moderator rank or above
// globally, or are the current host of the room in question. Nobody may
// remove the host, the host included.
type Authorizer struct{}

// Allows reports whether the actor may perform action against the target.
// actorIsHost reflects the room's current host slot, not global role.
// targetIsHost guards the host from removal regardless of actor rank.
func (Authorizer) Allows(action Action, actorRole domain.Role, actorIsHost, targetIsHost bool) bool {
	switch action {
	case ActionApproveMic, ActionRejectMic:
		return actorIsHost || actorRole >= domain.RoleModerator
	case ActionRemoveSpeaker:
		if targetIsHost {
			return false
		}
		return actorIsHost || actorRole >= domain.RoleModerator
	}
	return false
}
