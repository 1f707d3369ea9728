package market

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(n int, interval int64) []Candle {
	out := make([]Candle, n)
	for i := range out {
		open := int64(i) * interval
		out[i] = Candle{OpenTime: open, CloseTime: open + interval - 1, Open: 1, High: 2, Low: 0.5, Close: float64(i + 1), Volume: float64(10 + i)}
	}
	return out
}

func TestEnsureChronological(t *testing.T) {
	assert.NoError(t, EnsureChronological(nil))
	assert.NoError(t, EnsureChronological(series(5, 60)))

	same := series(3, 60)
	same[2].OpenTime = same[1].OpenTime
	assert.NoError(t, EnsureChronological(same), "equal open times are non-decreasing")

	bad := series(4, 60)
	bad[3].OpenTime = 0
	err := EnsureChronological(bad)
	assert.ErrorIs(t, err, ErrNotChronological)
}

func TestSeriesHelpers(t *testing.T) {
	c := series(3, 60)
	assert.Equal(t, []float64{1, 1, 1}, Opens(c))
	assert.Equal(t, []float64{1, 2, 3}, Closes(c))
	assert.Equal(t, []float64{2, 2, 2}, Highs(c))
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, Lows(c))
	assert.Equal(t, []float64{10, 11, 12}, Volumes(c))

	last, ok := Last(c)
	require.True(t, ok)
	assert.Equal(t, float64(3), last.Close)
	_, ok = Last(nil)
	assert.False(t, ok)

	for i := range c {
		c[i].Volume = 0
	}
	assert.Nil(t, Volumes(c), "all-zero volume means the feed has none")
}

func TestFetchTimeframesConcurrent(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	src := SourceFunc(func(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
		mu.Lock()
		seen[interval] = limit
		mu.Unlock()
		if interval == "1h" {
			return series(10, 3600), nil
		}
		return series(40, 900), nil
	})

	tf, err := FetchTimeframes(context.Background(), src, TimeframeRequest{Symbol: "EURUSDT", SmallInterval: "15m", BigInterval: "1h", Limit: 50})
	require.NoError(t, err)
	assert.Len(t, tf.Small, 40)
	assert.Len(t, tf.Big, 10)
	assert.Equal(t, map[string]int{"15m": 50, "1h": 50}, seen)
}

func TestFetchTimeframesPropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	src := SourceFunc(func(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
		if interval == "1h" {
			return nil, boom
		}
		return series(5, 60), nil
	})
	_, err := FetchTimeframes(context.Background(), src, TimeframeRequest{Symbol: "X", SmallInterval: "1m", BigInterval: "1h", Limit: 5})
	assert.ErrorIs(t, err, boom)

	unordered := SourceFunc(func(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
		c := series(3, 60)
		c[0], c[2] = c[2], c[0]
		return c, nil
	})
	_, err = FetchTimeframes(context.Background(), unordered, TimeframeRequest{Symbol: "X", SmallInterval: "1m", BigInterval: "1h", Limit: 5})
	assert.ErrorIs(t, err, ErrNotChronological)
}

type recordingWriter struct {
	calls int
	err   error
}

func (w *recordingWriter) InsertCandles(ctx context.Context, symbol, interval string, candles []Candle) (int, error) {
	w.calls++
	return len(candles), w.err
}

func TestCachedSourceWritesThrough(t *testing.T) {
	base := SourceFunc(func(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
		return series(limit, 60), nil
	})
	w := &recordingWriter{err: errors.New("disk full")}
	src := NewCachedSource(base, w)

	got, err := src.FetchHistory(context.Background(), "X", "1m", 4)
	require.NoError(t, err, "cache failures must not fail the fetch")
	assert.Len(t, got, 4)
	assert.Equal(t, 1, w.calls)

	plain := NewCachedSource(base, nil)
	_, isCached := plain.(*CachedSource)
	assert.False(t, isCached)
}
