package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optiontrader/internal/market"
)

func TestParseIntervalDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"15m": 15 * time.Minute,
		"15":  15 * time.Minute,
		"1H":  time.Hour,
		"30s": 30 * time.Second,
		"1d":  24 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, ok := ParseIntervalDuration(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "m", "0m", "-5", "5x", "abc"} {
		_, ok := ParseIntervalDuration(bad)
		assert.False(t, ok, bad)
	}
}

func TestNormalizeInterval(t *testing.T) {
	got, err := NormalizeInterval("15")
	require.NoError(t, err)
	assert.Equal(t, "15m", got)
	got, err = NormalizeInterval("60m")
	require.NoError(t, err)
	assert.Equal(t, "1h", got)
	_, err = NormalizeInterval("soon")
	assert.Error(t, err)
	assert.Equal(t, "45s", FormatInterval(45*time.Second))
	assert.Equal(t, "1d", FormatInterval(24*time.Hour))
}

func TestDropUnclosed(t *testing.T) {
	interval := time.Minute
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	klines := []market.Candle{
		{OpenTime: base.UnixMilli()},
		{OpenTime: base.Add(interval).UnixMilli()},
	}
	open := dropUnclosedAt(klines, interval, base.Add(90*time.Second), 10*time.Second)
	assert.Len(t, open, 1)

	closed := dropUnclosedAt(klines, interval, base.Add(2*interval+11*time.Second), 10*time.Second)
	assert.Len(t, closed, 2)

	assert.Empty(t, dropUnclosedAt(nil, interval, base, 0))
}

func TestNextBarClose(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 7, 30, 0, time.UTC)
	nextClose, wakeAt := NextBarClose(now, 15*time.Minute, 2*time.Second)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 15, 0, 0, time.UTC), nextClose)
	assert.Equal(t, nextClose.Add(2*time.Second), wakeAt)

	clock := NewBarClock(15*time.Minute, -time.Second)
	clock.nowFn = func() time.Time { return now }
	assert.Zero(t, clock.Offset)
	assert.Equal(t, 7*time.Minute+30*time.Second, clock.UntilNextBar())
}

func TestWait(t *testing.T) {
	assert.True(t, Wait(context.Background(), 0))
	assert.True(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, Wait(ctx, time.Hour))
	assert.False(t, Wait(ctx, 0))
}
