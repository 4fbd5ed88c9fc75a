package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMicRateLimiter(t *testing.T) {
	rl := NewMicRateLimiter(2, time.Minute)

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))

	// Other users have their own window.
	assert.True(t, rl.Allow("u2"))
}

func TestMicRateLimiter_WindowExpiry(t *testing.T) {
	rl := NewMicRateLimiter(1, 10*time.Millisecond)

	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))

	time.Sleep(15 * time.Millisecond)
	assert.True(t, rl.Allow("u1"))
}
