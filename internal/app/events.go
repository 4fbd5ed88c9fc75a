package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/emberchat/broadcast/internal/core"
	"github.com/emberchat/broadcast/internal/domain"
)

type EventKind string

const (
	EventBroadcastInfo  EventKind = "broadcastInfoUpdate"
	EventMicRequest     EventKind = "micRequest"
	EventMicApproved    EventKind = "micApproved"
	EventMicRejected    EventKind = "micRejected"
	EventSpeakerRemoved EventKind = "speakerRemoved"
)

// Event is a room-scoped notification pushed to subscribed participants.
// Snapshot rides along on broadcastInfoUpdate; the human-facing kinds carry
// the actor/target pair instead.
type Event struct {
	Kind     EventKind      `json:"type"`
	RoomID   domain.RoomID  `json:"room"`
	Snapshot *core.Snapshot `json:"snapshot,omitempty"`
	ActorID  domain.UserID  `json:"actor_id,omitempty"`
	TargetID domain.UserID  `json:"target_id,omitempty"`
}

const subscriberBuffer = 16

type subscriber struct {
	userID domain.UserID
	ch     chan Event
}

// Hub fans events out to per-room subscribers. Delivery is fire-and-forget:
// a subscriber whose buffer is full loses the event rather than stalling
// the publisher, so a slow client never delays a moderation action.
type Hub struct {
	mu   sync.RWMutex
	subs map[domain.RoomID]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[domain.RoomID]map[*subscriber]struct{})}
}

// Subscribe registers userID for roomID's events. The returned cancel
// detaches and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(roomID domain.RoomID, userID domain.UserID) (<-chan Event, func()) {
	sub := &subscriber{userID: userID, ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	room, ok := h.subs[roomID]
	if !ok {
		room = make(map[*subscriber]struct{})
		h.subs[roomID] = room
	}
	room[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if room, ok := h.subs[roomID]; ok {
				delete(room, sub)
				if len(room) == 0 {
					delete(h.subs, roomID)
				}
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers ev to roomID's subscribers. A nil audience means every
// subscriber; otherwise only the listed user ids receive it.
func (h *Hub) Publish(roomID domain.RoomID, ev Event, audience []domain.UserID) {
	var allowed map[domain.UserID]struct{}
	if audience != nil {
		allowed = make(map[domain.UserID]struct{}, len(audience))
		for _, id := range audience {
			allowed[id] = struct{}{}
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[roomID] {
		if allowed != nil {
			if _, ok := allowed[sub.userID]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- ev:
		default:
			log.Warn().Str("module", "app.events").Str("room", string(roomID)).
				Str("user", string(sub.userID)).Str("kind", string(ev.Kind)).Msg("subscriber buffer full, event dropped")
		}
	}
}
