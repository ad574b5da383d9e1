package backoff

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Delay(t *testing.T) {
	p := Default()

	tests := []struct {
		attempts int
		expected time.Duration
	}{
		{-1, 30 * time.Second},
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{4, 4 * time.Minute},
		{6, 16 * time.Minute},
		{7, 30 * time.Minute},
		{50, 30 * time.Minute},
		{math.MaxInt32, 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.attempts), func(t *testing.T) {
			assert.Equal(t, tt.expected, p.Delay(tt.attempts))
		})
	}
}

func TestPolicy_DelayIsMonotonicAndBounded(t *testing.T) {
	policies := []Policy{
		Default(),
		{Base: time.Millisecond, Max: time.Hour},
		{Base: 7 * time.Second, Max: 7 * time.Second},
		{Base: time.Duration(math.MaxInt64 / 3), Max: time.Duration(math.MaxInt64)},
	}

	for _, p := range policies {
		prev := time.Duration(0)
		for attempts := 0; attempts < 200; attempts++ {
			d := p.Delay(attempts)
			assert.GreaterOrEqual(t, d, prev, "attempts=%d policy=%+v", attempts, p)
			assert.LessOrEqual(t, d, p.Max, "attempts=%d policy=%+v", attempts, p)
			assert.Positive(t, d)
			prev = d
		}
	}
}

func TestPolicy_Degenerate(t *testing.T) {
	assert.Equal(t, time.Duration(0), Policy{}.Delay(3))
	// a max below base is raised to base
	assert.Equal(t, time.Minute, Policy{Base: time.Minute, Max: time.Second}.Delay(5))
}

func TestPolicy_NextRunAt(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(time.Minute), Default().NextRunAt(now, 2))
}
