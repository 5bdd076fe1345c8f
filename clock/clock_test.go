package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVotingClockOffset(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Fixed(base)

	require.True(t, c.Now().Equal(base))

	c.SetOffset(2 * time.Hour)
	assert.True(t, c.Now().Equal(base.Add(2*time.Hour)), "got %v", c.Now())
	assert.Equal(t, 2*time.Hour, c.Offset())
}

func TestInWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before start", start.Add(-time.Second), false},
		{"at start", start, true},
		{"inside", start.Add(time.Hour), true},
		{"at end", end, true},
		{"after end", end.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InWindow(tt.now, start, end))
		})
	}
}
