package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartRateLimiter_Allow(t *testing.T) {
	r := require.New(t)

	// Given
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewStartRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	// When / Then
	r.True(rl.Allow("alice"))
	r.True(rl.Allow("alice"))
	r.False(rl.Allow("alice"))
	r.True(rl.Allow("bob"))

	now = now.Add(61 * time.Second)
	r.True(rl.Allow("alice"))
}

func TestStartRateLimiter_Forget(t *testing.T) {
	r := require.New(t)

	rl := NewStartRateLimiter(1, time.Hour)
	r.True(rl.Allow("alice"))
	r.False(rl.Allow("alice"))

	rl.Forget("alice")

	r.True(rl.Allow("alice"))
}

func TestStartRateLimiter_DisabledWithZeroLimit(t *testing.T) {
	rl := NewStartRateLimiter(0, time.Minute)
	for range 10 {
		require.True(t, rl.Allow("alice"))
	}
}
