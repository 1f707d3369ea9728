// Package metrics 暴露交易运行时的 Prometheus 指标。
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"optiontrader/internal/analysis"
	"optiontrader/internal/trading"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "optiontrader"

// Recorder 持有独立的 registry，测试与多实例之间互不干扰。
type Recorder struct {
	registry *prometheus.Registry

	analyses      *prometheus.CounterVec
	confidence    prometheus.Gauge
	tradesPlaced  *prometheus.CounterVec
	tradesClosed  *prometheus.CounterVec
	pnl           prometheus.Gauge
	cycle         prometheus.Gauge
	errorsTotal   *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	breakerState  *prometheus.GaugeVec
}

var _ trading.Observer = (*Recorder)(nil)

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Signal aggregations by resulting direction",
		}, []string{"direction"}),
		confidence: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_confidence",
			Help:      "Weighted confidence of the latest analysis",
		}),
		tradesPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_placed_total",
			Help:      "Orders accepted by the broker",
		}, []string{"direction"}),
		tradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_closed_total",
			Help:      "Closed positions by outcome",
		}, []string{"outcome"}),
		pnl: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pnl_total",
			Help:      "Cumulative realized PnL of this run",
		}),
		cycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trade_cycle",
			Help:      "Last completed trade cycle",
		}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Lifecycle errors by kind",
		}, []string{"kind"}),
		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candle_fetch_duration_seconds",
			Help:      "Latency of fetching both timeframes",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"result"}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "0=closed, 1=open, 2=half-open",
		}, []string{"name"}),
	}
}

// Handler 返回只包含本 registry 的 /metrics 处理器。
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) ObserveAnalysis(res analysis.AnalysisResult) {
	r.analyses.WithLabelValues(string(res.Direction)).Inc()
	r.confidence.Set(res.Confidence)
}

// NoteAnalysis 让 Recorder 可以直接挂在控制器的分析回调上。
func (r *Recorder) NoteAnalysis(_ context.Context, res analysis.AnalysisResult) error {
	r.ObserveAnalysis(res)
	return nil
}

func (r *Recorder) ObserveFetch(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.fetchDuration.WithLabelValues(result).Observe(d.Seconds())
}

// SetBreakerState 接收 circuit.State 的数值。
func (r *Recorder) SetBreakerState(name string, state int) {
	r.breakerState.WithLabelValues(name).Set(float64(state))
}

func (r *Recorder) OnOrderPlaced(_ context.Context, _ int, order trading.Order) {
	r.tradesPlaced.WithLabelValues(string(order.Direction)).Inc()
}

func (r *Recorder) OnPositionClosed(_ context.Context, cycle int, pos trading.Position) {
	r.tradesClosed.WithLabelValues(outcome(pos.PnL)).Inc()
	r.pnl.Add(pos.PnL)
	r.cycle.Set(float64(cycle))
}

func (r *Recorder) OnError(_ context.Context, _ int, err error) {
	if err == nil {
		return
	}
	r.errorsTotal.WithLabelValues(errorKind(err)).Inc()
}

func outcome(pnl float64) string {
	switch {
	case pnl > 0:
		return "win"
	case pnl < 0:
		return "loss"
	default:
		return "draw"
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, trading.ErrInstrumentNotFound):
		return "instrument_not_found"
	case errors.Is(err, trading.ErrInstrumentUnavailable):
		return "instrument_unavailable"
	case errors.Is(err, trading.ErrOrderSubmissionFailed):
		return "order_submission"
	case errors.Is(err, trading.ErrMonitoring):
		return "monitoring"
	default:
		return "other"
	}
}
