package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberchat/broadcast/internal/domain"
)

func assertDisjoint(t *testing.T, snap Snapshot) {
	t.Helper()
	seen := make(map[domain.UserID]string)
	if snap.HostID != "" {
		seen[snap.HostID] = "host"
	}
	for _, id := range snap.Speakers {
		prev, dup := seen[id]
		require.False(t, dup, "user %s in both %s and speakers", id, prev)
		seen[id] = "speakers"
	}
	for _, id := range snap.MicQueue {
		prev, dup := seen[id]
		require.False(t, dup, "user %s in both %s and micQueue", id, prev)
		seen[id] = "micQueue"
	}
}

func TestRequestThenApprove(t *testing.T) {
	s := NewBroadcastSession("r1")
	s.AssignHost("1")

	snap, err := s.RequestMic("2")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"2"}, snap.MicQueue)
	assertDisjoint(t, snap)

	snap, err = s.ApproveMic("1", domain.RoleMember, "2")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"2"}, snap.Speakers)
	assert.Empty(t, snap.MicQueue)
	assertDisjoint(t, snap)
}

func TestApproveBeforeRequest(t *testing.T) {
	s := NewBroadcastSession("r1")
	s.AssignHost("1")

	_, err := s.ApproveMic("1", domain.RoleMember, "2")
	assert.ErrorIs(t, err, ErrNotInQueue)
}

func TestRequestMic_Rejections(t *testing.T) {
	s := NewBroadcastSession("r1")
	s.AssignHost("1")

	_, err := s.RequestMic("1")
	assert.ErrorIs(t, err, ErrAlreadySpeaking, "host is already speaking")

	_, err = s.RequestMic("2")
	require.NoError(t, err)
	_, err = s.RequestMic("2")
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	_, err = s.ApproveMic("1", domain.RoleMember, "2")
	require.NoError(t, err)
	_, err = s.RequestMic("2")
	assert.ErrorIs(t, err, ErrAlreadySpeaking)
}

func TestRejectMic(t *testing.T) {
	s := NewBroadcastSession("r1")
	s.AssignHost("1")

	_, err := s.RequestMic("2")
	require.NoError(t, err)

	snap, err := s.RejectMic("1", domain.RoleMember, "2")
	require.NoError(t, err)
	assert.Empty(t, snap.MicQueue)
	assert.Empty(t, snap.Speakers)

	_, err = s.RejectMic("1", domain.RoleMember, "2")
	assert.ErrorIs(t, err, ErrNotInQueue)
}

func TestRemoveSpeaker_ModeratorAndHostTarget(t *testing.T) {
	s := NewBroadcastSession("r1")
	s.AssignHost("1")

	for _, uid := range []domain.UserID{"2", "3"} {
		_, err := s.RequestMic(uid)
		require.NoError(t, err)
		_, err = s.ApproveMic("1", domain.RoleMember, uid)
		require.NoError(t, err)
	}

	snap, err := s.RemoveSpeaker("4", domain.RoleModerator, "3")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"2"}, snap.Speakers)

	_, err = s.RemoveSpeaker("4", domain.RoleModerator, "1")
	assert.ErrorIs(t, err, ErrCannotRemoveHost)
	assert.Equal(t, []domain.UserID{"2"}, s.Snapshot().Speakers, "failed command must not mutate")

	_, err = s.RemoveSpeaker("4", domain.RoleModerator, "9")
	assert.ErrorIs(t, err, ErrNotASpeaker)
}

func TestPermissionDenied_StateUnchanged(t *testing.T) {
	s := NewBroadcastSession("r1")
	s.AssignHost("1")

	_, err := s.RequestMic("2")
	require.NoError(t, err)
	before := s.Snapshot()

	_, err = s.ApproveMic("5", domain.RoleGuest, "2")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, before, s.Snapshot())
}

func TestAssignHost_MutuallyExclusive(t *testing.T) {
	s := NewBroadcastSession("r1")
	s.AssignHost("1")

	_, err := s.RequestMic("2")
	require.NoError(t, err)
	_, err = s.ApproveMic("1", domain.RoleMember, "2")
	require.NoError(t, err)
	_, err = s.RequestMic("3")
	require.NoError(t, err)

	snap := s.AssignHost("2")
	assert.Equal(t, domain.UserID("2"), snap.HostID)
	assert.Empty(t, snap.Speakers, "new host must leave the speaker set")
	assertDisjoint(t, snap)

	snap = s.AssignHost("3")
	assert.Equal(t, domain.UserID("3"), snap.HostID)
	assert.Empty(t, snap.MicQueue, "new host must leave the queue")
	assertDisjoint(t, snap)
}

func TestDisconnect(t *testing.T) {
	s := NewBroadcastSession("r1")
	s.AssignHost("1")

	_, err := s.RequestMic("2")
	require.NoError(t, err)
	_, err = s.ApproveMic("1", domain.RoleMember, "2")
	require.NoError(t, err)
	_, err = s.RequestMic("3")
	require.NoError(t, err)

	snap, changed := s.Disconnect("2")
	assert.True(t, changed)
	assert.Empty(t, snap.Speakers)

	snap, changed = s.Disconnect("3")
	assert.True(t, changed)
	assert.Empty(t, snap.MicQueue)

	// Listener disconnect is a no-op; host disconnect keeps the slot.
	_, changed = s.Disconnect("9")
	assert.False(t, changed)
	snap, changed = s.Disconnect("1")
	assert.False(t, changed)
	assert.Equal(t, domain.UserID("1"), snap.HostID)
}

func TestConcurrentApprove_ExactlyOneWins(t *testing.T) {
	s := NewBroadcastSession("r1")
	s.AssignHost("1")

	_, err := s.RequestMic("2")
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.ApproveMic("1", domain.RoleMember, "2")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrNotInQueue)
		}
	}
	assert.Equal(t, 1, wins)

	snap := s.Snapshot()
	assert.Equal(t, []domain.UserID{"2"}, snap.Speakers)
	assertDisjoint(t, snap)
}

func TestRoleOf(t *testing.T) {
	s := NewBroadcastSession("r1")
	s.AssignHost("1")
	_, err := s.RequestMic("2")
	require.NoError(t, err)
	_, err = s.RequestMic("3")
	require.NoError(t, err)
	_, err = s.ApproveMic("1", domain.RoleMember, "2")
	require.NoError(t, err)

	assert.Equal(t, domain.ParticipantHost, s.RoleOf("1"))
	assert.Equal(t, domain.ParticipantSpeaker, s.RoleOf("2"))
	assert.Equal(t, domain.ParticipantQueued, s.RoleOf("3"))
	assert.Equal(t, domain.ParticipantListener, s.RoleOf("4"))
}
