package signal

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/emberchat/broadcast/internal/app"
	"github.com/emberchat/broadcast/internal/domain"
)

var ErrNotConnected = errors.New("not connected")

type entry struct {
	user        domain.User
	roomID      domain.RoomID
	conn        *WsSignalConn
	unsubscribe func()
	cancel      context.CancelFunc
}

// Presence tracks which users are connected and which room they are in.
// It is the roster the core consumes (app.Roster) and the transport
// resolver the relay consumes (app.SinkRegistry). One connection per user:
// a reconnect replaces the old one.
type Presence struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]*entry
	known  map[domain.UserID]domain.User
}

func NewPresence() *Presence {
	return &Presence{
		byUser: make(map[domain.UserID]*entry),
		known:  make(map[domain.UserID]domain.User),
	}
}

// Connect registers a live connection. Any previous connection for the
// same user is cancelled first; its room, if any, is returned so the
// caller can run the departure cleanup.
func (p *Presence) Connect(user domain.User, conn *WsSignalConn, cancel context.CancelFunc) (domain.RoomID, bool) {
	p.mu.Lock()
	old, had := p.byUser[user.ID]
	p.byUser[user.ID] = &entry{user: user, conn: conn, cancel: cancel}
	p.known[user.ID] = user
	p.mu.Unlock()

	var prevRoom domain.RoomID
	if had {
		prevRoom = old.roomID
		if old.unsubscribe != nil {
			old.unsubscribe()
		}
		old.cancel()
		old.conn.Close()
		log.Info().Str("module", "signal.presence").Str("user", string(user.ID)).Msg("replaced stale connection")
	}
	log.Info().Str("module", "signal.presence").Str("user", string(user.ID)).Str("role", user.Role.String()).Msg("connected")
	return prevRoom, prevRoom != ""
}

// Disconnect drops the user and reports the room they were in, if any.
// The conn argument guards against a stale connection's teardown removing
// the entry of a newer one after a reconnect.
func (p *Presence) Disconnect(userID domain.UserID, conn *WsSignalConn) (domain.RoomID, bool) {
	p.mu.Lock()
	e, ok := p.byUser[userID]
	if ok && e.conn != conn {
		p.mu.Unlock()
		return "", false
	}
	if ok {
		delete(p.byUser, userID)
	}
	p.mu.Unlock()
	if !ok {
		return "", false
	}
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	log.Info().Str("module", "signal.presence").Str("user", string(userID)).Msg("disconnected")
	return e.roomID, e.roomID != ""
}

// Join binds the user to a room and retains the event-hub unsubscribe so
// leave/disconnect can detach it. Returns the room left behind, if any.
func (p *Presence) Join(userID domain.UserID, roomID domain.RoomID, unsubscribe func()) (domain.RoomID, bool) {
	p.mu.Lock()
	e, ok := p.byUser[userID]
	if !ok {
		p.mu.Unlock()
		unsubscribe()
		return "", false
	}
	prevRoom := e.roomID
	prevUnsub := e.unsubscribe
	e.roomID = roomID
	e.unsubscribe = unsubscribe
	p.mu.Unlock()

	if prevUnsub != nil {
		prevUnsub()
	}
	return prevRoom, prevRoom != ""
}

// Leave unbinds the user from their room.
func (p *Presence) Leave(userID domain.UserID) (domain.RoomID, bool) {
	p.mu.Lock()
	e, ok := p.byUser[userID]
	if !ok || e.roomID == "" {
		p.mu.Unlock()
		return "", false
	}
	roomID := e.roomID
	unsub := e.unsubscribe
	e.roomID = ""
	e.unsubscribe = nil
	p.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	return roomID, true
}

func (p *Presence) Rename(userID domain.UserID, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byUser[userID]
	if !ok {
		return ErrNotConnected
	}
	if err := e.user.SetUsername(name); err != nil {
		return err
	}
	p.known[userID] = e.user
	return nil
}

// RoomOf reports the user's current room.
func (p *Presence) RoomOf(userID domain.UserID) (domain.RoomID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byUser[userID]
	if !ok || e.roomID == "" {
		return "", false
	}
	return e.roomID, true
}

// Participants implements app.Roster: online users in the room, sorted by
// username for stable client rendering.
func (p *Presence) Participants(roomID domain.RoomID) []domain.User {
	p.mu.RLock()
	out := make([]domain.User, 0, 8)
	for _, e := range p.byUser {
		if e.roomID == roomID {
			out = append(out, e.user)
		}
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (p *Presence) InRoom(roomID domain.RoomID, userID domain.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byUser[userID]
	return ok && e.roomID == roomID
}

func (p *Presence) RoleOf(userID domain.UserID) domain.Role {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e, ok := p.byUser[userID]; ok {
		return e.user.Role
	}
	if u, ok := p.known[userID]; ok {
		return u.Role
	}
	return domain.RoleGuest
}

// Sink implements app.SinkRegistry for the relay.
func (p *Presence) Sink(userID domain.UserID) (app.Sink, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byUser[userID]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

func (p *Presence) Lookup(userID domain.UserID) (domain.User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e, ok := p.byUser[userID]; ok {
		return e.user, true
	}
	u, ok := p.known[userID]
	return u, ok
}
