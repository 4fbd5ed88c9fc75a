package core

import "github.com/emberchat/broadcast/internal/domain"

// micQueue is an insertion-ordered set of users awaiting promotion to
// speaker. Order is significant: first requested, first considered.
// Not safe for concurrent use; BroadcastSession serializes access.
type micQueue struct {
	order []domain.UserID
	index map[domain.UserID]struct{}
}

func newMicQueue() *micQueue {
	return &micQueue{index: make(map[domain.UserID]struct{})}
}

// enqueue appends uid unless already present. Returns false on duplicate.
func (q *micQueue) enqueue(uid domain.UserID) bool {
	if _, ok := q.index[uid]; ok {
		return false
	}
	q.order = append(q.order, uid)
	q.index[uid] = struct{}{}
	return true
}

// dequeue removes uid wherever it sits, preserving the order of the rest.
func (q *micQueue) dequeue(uid domain.UserID) bool {
	if _, ok := q.index[uid]; !ok {
		return false
	}
	delete(q.index, uid)
	for i, id := range q.order {
		if id == uid {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

func (q *micQueue) contains(uid domain.UserID) bool {
	_, ok := q.index[uid]
	return ok
}

func (q *micQueue) len() int { return len(q.order) }

// toSequence returns a copy in insertion order for deterministic
// queue-position reporting.
func (q *micQueue) toSequence() []domain.UserID {
	out := make([]domain.UserID, len(q.order))
	copy(out, q.order)
	return out
}
