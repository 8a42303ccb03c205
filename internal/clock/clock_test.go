package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSystemClock_Now(t *testing.T) {
	t.Parallel()

	got := SystemClock{}.Now()
	require.InDelta(t, time.Now().Unix(), got, 2)
}

func TestManualClock(t *testing.T) {
	t.Parallel()

	c := NewManualClock(100)
	require.Equal(t, int64(100), c.Now())

	c.Advance(10)
	require.Equal(t, int64(110), c.Now())

	// negative or zero advance is ignored
	c.Advance(-5)
	c.Advance(0)
	require.Equal(t, int64(110), c.Now())

	c.Set(200)
	require.Equal(t, int64(200), c.Now())

	// time never moves backwards
	c.Set(150)
	require.Equal(t, int64(200), c.Now())
}
