package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBlocksBeyondLimit(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(), "message %d within limit", i)
	}
	assert.False(t, rl.Allow())
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := newRateLimiter(2, 30*time.Millisecond)
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	time.Sleep(40 * time.Millisecond)
	assert.True(t, rl.Allow())
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0, time.Second)
	for i := 0; i < 1000; i++ {
		assert.True(t, rl.Allow())
	}
}
