package app

import (
	"github.com/rs/zerolog/log"

	"github.com/emberchat/broadcast/internal/domain"
)

// Sink is the transport endpoint of one connected user. Owned by the
// adapter; TrySend must never block.
type Sink interface {
	TrySend(v any) error
}

// SinkRegistry resolves a user's live transport channel, if any.
type SinkRegistry interface {
	Sink(userID domain.UserID) (Sink, bool)
}

// Roster is the externally supplied presence view. The core never owns
// presence; the signaling adapter implements this from its connections.
type Roster interface {
	// Participants lists the online users currently in the room.
	Participants(roomID domain.RoomID) []domain.User
	// InRoom reports whether userID is an online participant of roomID.
	InRoom(roomID domain.RoomID, userID domain.UserID) bool
	// RoleOf returns the user's global permission level.
	RoleOf(userID domain.UserID) domain.Role
	// Lookup returns the last known user record.
	Lookup(userID domain.UserID) (domain.User, bool)
}

// Relay routes WebRTC handshake envelopes point-to-point between two
// current participants of a room. It holds no state of its own, performs
// no locking and never buffers: a stale envelope is worth less than a
// lost one, so anything unroutable is dropped and logged.
type Relay struct {
	roster Roster
	sinks  SinkRegistry
}

func NewRelay(roster Roster, sinks SinkRegistry) *Relay {
	return &Relay{roster: roster, sinks: sinks}
}

// Route validates both endpoints against the room's current participants
// and forwards the payload verbatim. No acknowledgement: reliability is
// the transport's problem.
func (r *Relay) Route(env domain.Envelope) {
	switch env.Kind {
	case domain.SignalOffer, domain.SignalAnswer, domain.SignalIceCandidate:
	default:
		log.Warn().Str("module", "app.relay").Str("kind", string(env.Kind)).Msg("unknown signal kind, dropped")
		return
	}

	if !r.roster.InRoom(env.RoomID, env.From) {
		log.Debug().Str("module", "app.relay").Str("room", string(env.RoomID)).
			Str("from", string(env.From)).Msg("sender left room, envelope dropped")
		return
	}
	if !r.roster.InRoom(env.RoomID, env.To) {
		log.Debug().Str("module", "app.relay").Str("room", string(env.RoomID)).
			Str("to", string(env.To)).Msg("target left room, envelope dropped")
		return
	}

	sink, ok := r.sinks.Sink(env.To)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("to", string(env.To)).Msg("no transport for target, envelope dropped")
		return
	}
	if err := sink.TrySend(env); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("to", string(env.To)).Msg("relay send failed")
	}
}
