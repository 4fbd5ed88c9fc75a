package app

import (
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/emberchat/broadcast/internal/core"
	"github.com/emberchat/broadcast/internal/domain"
)

// SessionRegistry owns every live BroadcastSession: exactly one instance
// per room id, created on first access and destroyed only when broadcast
// mode is disabled or the room goes away. An empty session stays alive so
// a reconnecting host finds its slot intact.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[domain.RoomID]*core.BroadcastSession

	// info coalesces concurrent snapshot reads per room so a burst of
	// broadcast-info fetches hits each session once.
	info singleflight.Group
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[domain.RoomID]*core.BroadcastSession)}
}

func (r *SessionRegistry) GetOrCreate(roomID domain.RoomID) *core.BroadcastSession {
	r.mu.RLock()
	s, ok := r.sessions[roomID]
	r.mu.RUnlock()
	if ok {
		return s
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.sessions[roomID]; ok {
		return s
	}
	s = core.NewBroadcastSession(roomID)
	r.sessions[roomID] = s
	log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("broadcast session created")
	return s
}

func (r *SessionRegistry) Get(roomID domain.RoomID) (*core.BroadcastSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[roomID]
	return s, ok
}

// Remove destroys the room's session. Callers are responsible for telling
// participants; the registry only drops ownership.
func (r *SessionRegistry) Remove(roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[roomID]; ok {
		delete(r.sessions, roomID)
		log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("broadcast session removed")
	}
}

func (r *SessionRegistry) List() []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RoomID, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	return out
}

// Info returns the room's current snapshot, coalescing concurrent callers
// onto a single read per room.
func (r *SessionRegistry) Info(roomID domain.RoomID) core.Snapshot {
	v, _, _ := r.info.Do(string(roomID), func() (any, error) {
		return r.GetOrCreate(roomID).Snapshot(), nil
	})
	return v.(core.Snapshot)
}
