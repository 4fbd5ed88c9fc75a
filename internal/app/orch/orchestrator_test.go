package orch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberchat/broadcast/internal/app"
	"github.com/emberchat/broadcast/internal/core"
	"github.com/emberchat/broadcast/internal/domain"
)

type staticRoster struct {
	users map[domain.UserID]domain.User
	rooms map[domain.UserID]domain.RoomID
}

func newStaticRoster() *staticRoster {
	return &staticRoster{
		users: make(map[domain.UserID]domain.User),
		rooms: make(map[domain.UserID]domain.RoomID),
	}
}

func (r *staticRoster) join(roomID domain.RoomID, u domain.User) {
	r.users[u.ID] = u
	r.rooms[u.ID] = roomID
}

func (r *staticRoster) leave(uid domain.UserID) {
	delete(r.rooms, uid)
}

func (r *staticRoster) Participants(roomID domain.RoomID) []domain.User {
	var out []domain.User
	for uid, room := range r.rooms {
		if room == roomID {
			out = append(out, r.users[uid])
		}
	}
	return out
}

func (r *staticRoster) InRoom(roomID domain.RoomID, uid domain.UserID) bool {
	return r.rooms[uid] == roomID
}

func (r *staticRoster) RoleOf(uid domain.UserID) domain.Role {
	return r.users[uid].Role
}

func (r *staticRoster) Lookup(uid domain.UserID) (domain.User, bool) {
	u, ok := r.users[uid]
	return u, ok
}

func newTestOrchestrator(roster app.Roster) *Orchestrator {
	return &Orchestrator{
		Sessions: app.NewSessionRegistry(),
		Roster:   roster,
		Events:   app.NewHub(),
	}
}

func collect(ch <-chan app.Event) []app.Event {
	var out []app.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func kinds(events []app.Event) []app.EventKind {
	out := make([]app.EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

// Scenario: host approves a queued request.
func TestRequestApproveFlow(t *testing.T) {
	roster := newStaticRoster()
	roster.join("r1", domain.User{ID: "1", Username: "host", Role: domain.RoleMember})
	roster.join("r1", domain.User{ID: "2", Username: "alice", Role: domain.RoleMember})
	o := newTestOrchestrator(roster)
	o.AssignHost("r1", "1")

	require.NoError(t, o.RequestMic("r1", "2"))
	snap := o.BroadcastInfo("r1")
	assert.Equal(t, []domain.UserID{"2"}, snap.MicQueue)

	require.NoError(t, o.ApproveMic("r1", "1", "2"))
	snap = o.BroadcastInfo("r1")
	assert.Equal(t, []domain.UserID{"2"}, snap.Speakers)
	assert.Empty(t, snap.MicQueue)
}

// Scenario: moderator removes a speaker but can never remove the host.
func TestModeratorRemovesSpeaker(t *testing.T) {
	roster := newStaticRoster()
	roster.join("r1", domain.User{ID: "1", Role: domain.RoleMember})
	roster.join("r1", domain.User{ID: "4", Role: domain.RoleModerator})
	o := newTestOrchestrator(roster)
	o.AssignHost("r1", "1")

	for _, uid := range []domain.UserID{"2", "3"} {
		roster.join("r1", domain.User{ID: uid, Role: domain.RoleMember})
		require.NoError(t, o.RequestMic("r1", uid))
		require.NoError(t, o.ApproveMic("r1", "4", uid))
	}

	require.NoError(t, o.RemoveSpeaker("r1", "4", "3"))
	assert.Equal(t, []domain.UserID{"2"}, o.BroadcastInfo("r1").Speakers)

	err := o.RemoveSpeaker("r1", "4", "1")
	assert.ErrorIs(t, err, core.ErrCannotRemoveHost)
	assert.Equal(t, []domain.UserID{"2"}, o.BroadcastInfo("r1").Speakers)
}

// Scenario: a guest without elevated role cannot approve.
func TestGuestCannotApprove(t *testing.T) {
	roster := newStaticRoster()
	roster.join("r1", domain.User{ID: "1", Role: domain.RoleMember})
	roster.join("r1", domain.User{ID: "2", Role: domain.RoleMember})
	roster.join("r1", domain.User{ID: "5", Role: domain.RoleGuest})
	o := newTestOrchestrator(roster)
	o.AssignHost("r1", "1")

	require.NoError(t, o.RequestMic("r1", "2"))
	before := o.BroadcastInfo("r1")

	err := o.ApproveMic("r1", "5", "2")
	assert.ErrorIs(t, err, core.ErrPermissionDenied)
	assert.Equal(t, before, o.BroadcastInfo("r1"))
}

func TestSnapshotBroadcastOnEveryMutation(t *testing.T) {
	roster := newStaticRoster()
	roster.join("r1", domain.User{ID: "1", Role: domain.RoleMember})
	roster.join("r1", domain.User{ID: "2", Role: domain.RoleMember})
	o := newTestOrchestrator(roster)

	ch, cancel := o.Events.Subscribe("r1", "2")
	defer cancel()

	o.AssignHost("r1", "1")
	require.NoError(t, o.RequestMic("r1", "2"))
	require.NoError(t, o.ApproveMic("r1", "1", "2"))

	var infos []core.Snapshot
	for _, ev := range collect(ch) {
		if ev.Kind == app.EventBroadcastInfo {
			require.NotNil(t, ev.Snapshot)
			infos = append(infos, *ev.Snapshot)
		}
	}
	require.Len(t, infos, 3, "every successful mutation produces a snapshot")
	assert.Equal(t, []domain.UserID{"2"}, infos[1].MicQueue)
	assert.Equal(t, []domain.UserID{"2"}, infos[2].Speakers)
}

func TestMicRequestGoesToManagersOnly(t *testing.T) {
	roster := newStaticRoster()
	roster.join("r1", domain.User{ID: "1", Role: domain.RoleMember})   // host
	roster.join("r1", domain.User{ID: "4", Role: domain.RoleModerator})
	roster.join("r1", domain.User{ID: "6", Role: domain.RoleMember})   // bystander
	o := newTestOrchestrator(roster)
	o.AssignHost("r1", "1")

	hostCh, c1 := o.Events.Subscribe("r1", "1")
	modCh, c2 := o.Events.Subscribe("r1", "4")
	bystanderCh, c3 := o.Events.Subscribe("r1", "6")
	defer c1()
	defer c2()
	defer c3()

	require.NoError(t, o.RequestMic("r1", "6"))

	assert.Contains(t, kinds(collect(hostCh)), app.EventMicRequest)
	assert.Contains(t, kinds(collect(modCh)), app.EventMicRequest)
	assert.NotContains(t, kinds(collect(bystanderCh)), app.EventMicRequest,
		"plain members only see the snapshot update")
}

func TestNotificationReachesAffectedUser(t *testing.T) {
	roster := newStaticRoster()
	roster.join("r1", domain.User{ID: "1", Role: domain.RoleMember})
	roster.join("r1", domain.User{ID: "2", Role: domain.RoleMember})
	o := newTestOrchestrator(roster)
	o.AssignHost("r1", "1")
	require.NoError(t, o.RequestMic("r1", "2"))

	targetCh, cancel := o.Events.Subscribe("r1", "2")
	defer cancel()

	require.NoError(t, o.ApproveMic("r1", "1", "2"))
	assert.Contains(t, kinds(collect(targetCh)), app.EventMicApproved)
}

func TestDisconnectCleansUp(t *testing.T) {
	roster := newStaticRoster()
	roster.join("r1", domain.User{ID: "1", Role: domain.RoleMember})
	roster.join("r1", domain.User{ID: "2", Role: domain.RoleMember})
	o := newTestOrchestrator(roster)
	o.AssignHost("r1", "1")

	require.NoError(t, o.RequestMic("r1", "2"))
	require.NoError(t, o.ApproveMic("r1", "1", "2"))

	roster.leave("2")
	o.Disconnect("r1", "2")
	assert.Empty(t, o.BroadcastInfo("r1").Speakers)

	// Host disconnect keeps the slot for reconnection.
	roster.leave("1")
	o.Disconnect("r1", "1")
	assert.Equal(t, domain.UserID("1"), o.BroadcastInfo("r1").HostID)
}

func TestParticipantsIncludeOfflineHost(t *testing.T) {
	roster := newStaticRoster()
	roster.join("r1", domain.User{ID: "1", Username: "host", Role: domain.RoleMember})
	roster.join("r1", domain.User{ID: "2", Username: "alice", Role: domain.RoleMember})
	o := newTestOrchestrator(roster)
	o.AssignHost("r1", "1")

	roster.leave("1")
	o.Disconnect("r1", "1")

	parts := o.Participants("r1")
	require.Len(t, parts, 2)

	var host *domain.Participant
	for i := range parts {
		if parts[i].UserID == "1" {
			host = &parts[i]
		}
	}
	require.NotNil(t, host)
	assert.Equal(t, domain.ParticipantHost, host.Role)
	assert.False(t, host.Online)
}

func TestRateLimitedRequest(t *testing.T) {
	roster := newStaticRoster()
	roster.join("r1", domain.User{ID: "1", Role: domain.RoleMember})
	roster.join("r1", domain.User{ID: "2", Role: domain.RoleMember})
	o := newTestOrchestrator(roster)
	o.Limiter = app.NewMicRateLimiter(1, time.Minute)
	o.AssignHost("r1", "1")

	require.NoError(t, o.RequestMic("r1", "2"))
	require.NoError(t, o.RejectMic("r1", "1", "2"))

	err := o.RequestMic("r1", "2")
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

func TestDisableBroadcast(t *testing.T) {
	roster := newStaticRoster()
	o := newTestOrchestrator(roster)
	o.AssignHost("r1", "1")

	o.DisableBroadcast("r1")
	assert.Empty(t, o.Sessions.List())
}
