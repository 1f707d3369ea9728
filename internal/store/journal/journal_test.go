package journal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"optiontrader/internal/analysis"
	"optiontrader/internal/analysis/indicator"
	"optiontrader/internal/trading"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func openJournal(t *testing.T, runID string) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "db", "journal.db"), runID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestOpenValidatesArguments(t *testing.T) {
	_, err := Open("", "run")
	assert.Error(t, err)
	_, err = Open(filepath.Join(t.TempDir(), "x.db"), " ")
	assert.Error(t, err)
}

func TestTradeLifecycleIsUpserted(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, "run-1")
	opened := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

	res := analysis.AnalysisResult{
		Direction:   analysis.DirectionCall,
		Confidence:  0.85,
		ShouldTrade: true,
		BarTime:     opened.UnixMilli(),
		Indicators: []indicator.Result{
			{Name: indicator.NameRSI, Signal: indicator.SignalUp, Confidence: 0.9},
		},
	}
	require.NoError(t, j.NoteAnalysis(ctx, res))

	order := trading.Order{ID: "ord-1", InstrumentID: 76, Direction: trading.DirectionCall, Amount: 100, OpenedAt: opened, ExpiresAt: opened.Add(time.Minute)}
	j.OnOrderPlaced(ctx, 1, order)
	// 重复推送不会产生第二条记录
	j.OnOrderPlaced(ctx, 1, order)

	j.OnPositionClosed(ctx, 1, trading.Position{
		ExternalID: "ord-1", InstrumentID: 76, Direction: trading.DirectionCall, Invest: 100,
		OpenQuote: 1.1, CloseQuote: 1.2, PnL: 85, PnLNet: 85, Status: trading.StatusClosed,
		OpenedAt: opened, ClosedAt: opened.Add(time.Minute),
	})

	trades, err := j.ListTrades(ctx, "")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	tr := trades[0]
	assert.Equal(t, "run-1", tr.RunID)
	assert.Equal(t, 1, tr.Cycle)
	assert.Equal(t, "call", tr.Direction)
	assert.Equal(t, float64(100), tr.Invest)
	assert.Equal(t, float64(85), tr.PnL)
	assert.Equal(t, "closed", tr.Status)
	assert.Equal(t, opened.Add(time.Minute).UnixMilli(), tr.ExpiresAt)
	assert.Equal(t, opened.Add(time.Minute).UnixMilli(), tr.ClosedAt)
	assert.Equal(t, "call", gjson.GetBytes(tr.Analysis, "direction").String())
	assert.Equal(t, "rsi", gjson.GetBytes(tr.Analysis, "indicators.0.name").String())

	analyses, err := j.ListAnalyses(ctx, "run-1", 10)
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	assert.True(t, analyses[0].ShouldTrade)
	assert.InDelta(t, 0.85, analyses[0].Confidence, 1e-9)
}

func TestPendingSnapshotIsConsumedOnce(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, "run-2")

	require.NoError(t, j.NoteAnalysis(ctx, analysis.AnalysisResult{Direction: analysis.DirectionPut, ShouldTrade: true}))
	j.OnOrderPlaced(ctx, 1, trading.Order{ID: "a", Direction: trading.DirectionPut, Amount: 1})
	j.OnOrderPlaced(ctx, 2, trading.Order{ID: "b", Direction: trading.DirectionPut, Amount: 1})

	trades, err := j.ListTrades(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "put", gjson.GetBytes(trades[0].Analysis, "direction").String())
	assert.JSONEq(t, "{}", string(trades[1].Analysis))
}

func TestRunsAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	a, err := Open(path, "a")
	require.NoError(t, err)
	a.OnOrderPlaced(ctx, 1, trading.Order{ID: "x", Amount: 1})
	require.NoError(t, a.Close())

	b, err := Open(path, "b")
	require.NoError(t, err)
	defer b.Close()
	mine, err := b.ListTrades(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, mine)
	theirs, err := b.ListTrades(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestOnErrorRecordsKind(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, "run-3")
	j.OnError(ctx, 2, fmt.Errorf("%w: closed", trading.ErrInstrumentUnavailable))
	j.OnError(ctx, 2, &trading.MonitorError{OrderID: "o", Op: "feed", Err: errors.New("eof")})
	j.OnError(ctx, 2, nil)

	events, err := j.ListEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "instrument_unavailable", events[0].Kind)
	assert.Equal(t, "monitoring", events[1].Kind)
	assert.Equal(t, 2, events[1].Cycle)
}
