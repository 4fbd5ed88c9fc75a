package domain

// RoomID is an opaque identifier owned by the surrounding chat product.
// This core never mints room ids.
type RoomID string

// ParticipantRole is the in-room position of a user, derived on demand
// from session state plus the online roster. Distinct from the global
// Role: a room host may be a plain member everywhere else.
type ParticipantRole string

const (
	ParticipantHost     ParticipantRole = "host"
	ParticipantSpeaker  ParticipantRole = "speaker"
	ParticipantListener ParticipantRole = "listener"
	ParticipantQueued   ParticipantRole = "queued"
)

// Participant is a read-only roster view; the core never stores these.
type Participant struct {
	UserID   UserID          `json:"user_id"`
	Username string          `json:"username"`
	Role     ParticipantRole `json:"role"`
	Online   bool            `json:"online"`
}
