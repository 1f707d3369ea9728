package livehttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"optiontrader/internal/analysis"
	"optiontrader/internal/store/journal"
	"optiontrader/internal/trading"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeState struct{ snap trading.StateSnapshot }

func (f fakeState) Snapshot() trading.StateSnapshot { return f.snap }

type fakeAnalysis struct {
	res analysis.AnalysisResult
	ok  bool
}

func (f fakeAnalysis) LastResult() (analysis.AnalysisResult, bool) { return f.res, f.ok }

type fakeJournal struct {
	trades    []journal.TradeRecord
	analyses  []journal.AnalysisRecord
	err       error
	lastRun   string
	lastLimit int
}

func (f *fakeJournal) RunID() string { return "run-1" }

func (f *fakeJournal) ListTrades(_ context.Context, runID string) ([]journal.TradeRecord, error) {
	f.lastRun = runID
	return f.trades, f.err
}

func (f *fakeJournal) ListAnalyses(_ context.Context, runID string, limit int) ([]journal.AnalysisRecord, error) {
	f.lastRun, f.lastLimit = runID, limit
	return f.analyses, f.err
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, rec.Body.String()
}

func newTestServer(t *testing.T, cfg ServerConfig) http.Handler {
	t.Helper()
	if cfg.State == nil {
		closed := []trading.Position{{ExternalID: "a", Invest: 10, PnL: 8.5, Status: trading.StatusClosed}}
		cfg.State = fakeState{snap: trading.StateSnapshot{Cycle: 2, MaxCycles: 5, Phase: trading.PhaseIdle, Closed: closed, Stats: trading.ComputeStats(closed)}}
	}
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	return srv.Handler()
}

func TestNewServerRequiresState(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestHealthAndState(t *testing.T) {
	h := newTestServer(t, ServerConfig{Symbol: "EURUSDT", Journal: &fakeJournal{}})

	code, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", gjson.Get(body, "status").String())

	code, body = get(t, h, "/api/state")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "run-1", gjson.Get(body, "run_id").String())
	assert.Equal(t, "EURUSDT", gjson.Get(body, "symbol").String())
	assert.Equal(t, int64(2), gjson.Get(body, "state.cycle").Int())
	assert.Equal(t, "100", gjson.Get(body, "state.stats.win_rate_pct").String())
}

func TestPositionsFromMemory(t *testing.T) {
	h := newTestServer(t, ServerConfig{})
	code, body := get(t, h, "/api/positions")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "memory", gjson.Get(body, "source").String())
	assert.Equal(t, "a", gjson.Get(body, "positions.0.external_id").String())

	code, _ = get(t, h, "/api/positions?run_id=old")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPositionsFromJournal(t *testing.T) {
	j := &fakeJournal{trades: []journal.TradeRecord{{OrderID: "x", PnL: -1}}}
	h := newTestServer(t, ServerConfig{Journal: j})

	code, body := get(t, h, "/api/positions?run_id=old")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "journal", gjson.Get(body, "source").String())
	assert.Equal(t, "x", gjson.Get(body, "positions.0.order_id").String())
	assert.Equal(t, "old", j.lastRun)

	j.err = errors.New("db locked")
	code, _ = get(t, h, "/api/positions")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestLastAnalysis(t *testing.T) {
	h := newTestServer(t, ServerConfig{Analysis: fakeAnalysis{}})
	code, _ := get(t, h, "/api/analysis/last")
	assert.Equal(t, http.StatusNotFound, code)

	h = newTestServer(t, ServerConfig{Analysis: fakeAnalysis{ok: true, res: analysis.AnalysisResult{Direction: analysis.DirectionPut, Confidence: 0.82, ShouldTrade: true}}})
	code, body := get(t, h, "/api/analysis/last")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "put", gjson.Get(body, "direction").String())
	assert.True(t, gjson.Get(body, "should_trade").Bool())
}

func TestAnalysesLimit(t *testing.T) {
	j := &fakeJournal{}
	h := newTestServer(t, ServerConfig{Journal: j})

	code, _ := get(t, h, "/api/analyses?limit=abc")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = get(t, h, "/api/analyses?limit=7")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 7, j.lastLimit)
}

func TestMetricsRoute(t *testing.T) {
	h := newTestServer(t, ServerConfig{Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("optiontrader_up 1\n"))
	})})
	code, body := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "optiontrader_up 1")
}
