package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_BurstThenDeny(t *testing.T) {
	tb := NewTokenBucket(1, 3)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "burst exhausted")
}

func TestTokenBucket_Refills(t *testing.T) {
	tb := NewTokenBucket(100, 1)

	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, tb.Allow(), "tokens must refill over time")
}

func TestTokenBucket_CapsAtBurst(t *testing.T) {
	tb := NewTokenBucket(1000, 2)

	time.Sleep(20 * time.Millisecond)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "refill never exceeds burst capacity")
}

func TestNewTokenBucket_SanitizesInputs(t *testing.T) {
	tb := NewTokenBucket(-5, 0)
	assert.True(t, tb.Allow(), "degenerate parameters fall back to a working bucket")
}
