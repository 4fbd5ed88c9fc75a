package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/emberchat/broadcast/internal/domain"
)

// Snapshot is an immutable copy of a session's state, produced by every
// successful mutation and fanned out to room participants. Consumers never
// observe a mutation without the matching snapshot.
type Snapshot struct {
	RoomID   domain.RoomID   `json:"room"`
	HostID   domain.UserID   `json:"host_id,omitempty"`
	Speakers []domain.UserID `json:"speakers"`
	MicQueue []domain.UserID `json:"mic_queue"`
}

// BroadcastSession is the authoritative per-room state: host slot, speaker
// set and mic queue. All mutation happens under one mutex (single-writer
// discipline); no operation blocks on I/O while holding it.
//
// Invariant: a user id appears in at most one of {host, speakers, micQueue}.
type BroadcastSession struct {
	roomID domain.RoomID
	auth   Authorizer

	mu         sync.Mutex
	hostID     domain.UserID
	speakers   []domain.UserID
	speakerSet map[domain.UserID]struct{}
	queue      *micQueue
}

func NewBroadcastSession(roomID domain.RoomID) *BroadcastSession {
	return &BroadcastSession{
		roomID:     roomID,
		speakerSet: make(map[domain.UserID]struct{}),
		queue:      newMicQueue(),
	}
}

func (s *BroadcastSession) RoomID() domain.RoomID { return s.roomID }

// Snapshot returns a copy of the current state. Safe to call concurrently
// with mutations; callers own the returned slices.
func (s *BroadcastSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *BroadcastSession) snapshotLocked() Snapshot {
	speakers := make([]domain.UserID, len(s.speakers))
	copy(speakers, s.speakers)
	return Snapshot{
		RoomID:   s.roomID,
		HostID:   s.hostID,
		Speakers: speakers,
		MicQueue: s.queue.toSequence(),
	}
}

// RequestMic appends userID to the mic queue. The distinct rejection
// reasons matter to callers: they are surfaced, not swallowed.
func (s *BroadcastSession) RequestMic(userID domain.UserID) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID == s.hostID && s.hostID != "" {
		return Snapshot{}, ErrAlreadySpeaking
	}
	if _, ok := s.speakerSet[userID]; ok {
		return Snapshot{}, ErrAlreadySpeaking
	}
	if !s.queue.enqueue(userID) {
		return Snapshot{}, ErrAlreadyQueued
	}
	log.Info().Str("module", "core.session").Str("room", string(s.roomID)).
		Str("user", string(userID)).Int("queue_len", s.queue.len()).Msg("mic requested")
	return s.snapshotLocked(), nil
}

// ApproveMic moves target from the queue into the speaker set. Both steps
// happen under the lock so a racing approve/reject sees either all or
// nothing of the transition.
func (s *BroadcastSession) ApproveMic(actorID domain.UserID, actorRole domain.Role, targetID domain.UserID) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.auth.Allows(ActionApproveMic, actorRole, actorID == s.hostID && s.hostID != "", false) {
		return Snapshot{}, ErrPermissionDenied
	}
	if !s.queue.dequeue(targetID) {
		return Snapshot{}, ErrNotInQueue
	}
	s.speakers = append(s.speakers, targetID)
	s.speakerSet[targetID] = struct{}{}
	log.Info().Str("module", "core.session").Str("room", string(s.roomID)).
		Str("actor", string(actorID)).Str("target", string(targetID)).Msg("mic approved")
	return s.snapshotLocked(), nil
}

// RejectMic drops target from the queue without promotion.
func (s *BroadcastSession) RejectMic(actorID domain.UserID, actorRole domain.Role, targetID domain.UserID) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.auth.Allows(ActionRejectMic, actorRole, actorID == s.hostID && s.hostID != "", false) {
		return Snapshot{}, ErrPermissionDenied
	}
	if !s.queue.dequeue(targetID) {
		return Snapshot{}, ErrNotInQueue
	}
	log.Info().Str("module", "core.session").Str("room", string(s.roomID)).
		Str("actor", string(actorID)).Str("target", string(targetID)).Msg("mic rejected")
	return s.snapshotLocked(), nil
}

// RemoveSpeaker evicts target from the speaker set. The host slot is not
// removable through this path for any actor.
func (s *BroadcastSession) RemoveSpeaker(actorID domain.UserID, actorRole domain.Role, targetID domain.UserID) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	targetIsHost := targetID == s.hostID && s.hostID != ""
	if targetIsHost {
		return Snapshot{}, ErrCannotRemoveHost
	}
	if !s.auth.Allows(ActionRemoveSpeaker, actorRole, actorID == s.hostID && s.hostID != "", targetIsHost) {
		return Snapshot{}, ErrPermissionDenied
	}
	if !s.removeSpeakerLocked(targetID) {
		return Snapshot{}, ErrNotASpeaker
	}
	log.Info().Str("module", "core.session").Str("room", string(s.roomID)).
		Str("actor", string(actorID)).Str("target", string(targetID)).Msg("speaker removed")
	return s.snapshotLocked(), nil
}

// AssignHost sets the host slot. Administrative: used on room creation and
// host reconnect, not gated by the moderation table. The new host leaves
// the speaker set or queue first so the disjointness invariant holds.
func (s *BroadcastSession) AssignHost(userID domain.UserID) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeSpeakerLocked(userID)
	s.queue.dequeue(userID)
	s.hostID = userID
	log.Info().Str("module", "core.session").Str("room", string(s.roomID)).
		Str("host", string(userID)).Msg("host assigned")
	return s.snapshotLocked()
}

// Disconnect applies the implicit cleanup for a departed participant:
// speakers are removed, queued users dropped, listeners ignored. The host
// slot survives so a reconnecting host reattaches to it. Returns the new
// snapshot and whether anything changed.
func (s *BroadcastSession) Disconnect(userID domain.UserID) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.removeSpeakerLocked(userID)
	if s.queue.dequeue(userID) {
		changed = true
	}
	if changed {
		log.Info().Str("module", "core.session").Str("room", string(s.roomID)).
			Str("user", string(userID)).Msg("participant cleanup on disconnect")
	}
	return s.snapshotLocked(), changed
}

// RoleOf classifies a user id against the current state. Anyone not in the
// host slot, speaker set or queue is a listener.
func (s *BroadcastSession) RoleOf(userID domain.UserID) domain.ParticipantRole {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID == s.hostID && s.hostID != "" {
		return domain.ParticipantHost
	}
	if _, ok := s.speakerSet[userID]; ok {
		return domain.ParticipantSpeaker
	}
	if s.queue.contains(userID) {
		return domain.ParticipantQueued
	}
	return domain.ParticipantListener
}

func (s *BroadcastSession) removeSpeakerLocked(userID domain.UserID) bool {
	if _, ok := s.speakerSet[userID]; !ok {
		return false
	}
	delete(s.speakerSet, userID)
	for i, id := range s.speakers {
		if id == userID {
			s.speakers = append(s.speakers[:i], s.speakers[i+1:]...)
			break
		}
	}
	return true
}
