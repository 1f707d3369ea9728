package analysis

import (
	"fmt"
	"sync"

	"optiontrader/internal/analysis/indicator"
	"optiontrader/internal/config"
	"optiontrader/internal/logger"
	"optiontrader/internal/market"
)

// Engine 持有 8 个指标实例并负责按 K 线顺序驱动它们。
//
// 有状态指标要求每根新 K 线只计算一次：Engine 以最新小周期 K 线的 OpenTime
// 作为闸门，同一根 K 线重复分析时直接返回缓存结果，旧 K 线会被拒绝。
type Engine struct {
	mu sync.Mutex

	indicators    []indicator.Indicator
	bigTrend      *indicator.TrendStrength
	weights       map[string]float64
	minCandles    int
	minConfidence float64
	tieBreak      string
	trendFilter   bool

	gate barGate
}

// NewEngine 根据 analysis 配置构建指标集合；权重非法时返回 config.ErrConfigInvalid。
func NewEngine(cfg config.AnalysisConfig) (*Engine, error) {
	if err := config.ValidateWeights(cfg.Weights); err != nil {
		return nil, err
	}
	if cfg.MinCandles <= 0 {
		return nil, fmt.Errorf("%w: analysis.min_candles must be > 0", config.ErrConfigInvalid)
	}
	set := []indicator.Indicator{
		indicator.NewRSI(indicator.RSISettings{
			Period: cfg.RSI.Period, Oversold: cfg.RSI.Oversold, Overbought: cfg.RSI.Overbought, Neutral: cfg.RSI.Neutral,
		}),
		indicator.NewMACD(indicator.MACDSettings{
			FastPeriod: cfg.MACD.FastPeriod, SlowPeriod: cfg.MACD.SlowPeriod, SignalPeriod: cfg.MACD.SignalPeriod, Threshold: cfg.MACD.Threshold,
		}),
		indicator.NewBollinger(indicator.BollingerSettings{
			Period: cfg.Bollinger.Period, Deviations: cfg.Bollinger.Deviations,
			SqueezeThreshold: cfg.Bollinger.SqueezeThreshold, VolatilityThreshold: cfg.Bollinger.VolatilityThreshold,
		}),
		indicator.NewStochastic(indicator.StochasticSettings{
			Period: cfg.Stochastic.Period, Smoothing: cfg.Stochastic.Smoothing,
			Oversold: cfg.Stochastic.Oversold, Overbought: cfg.Stochastic.Overbought,
		}),
		indicator.NewEMACrossover(indicator.EMASettings{
			FastPeriod: cfg.EMA.FastPeriod, SlowPeriod: cfg.EMA.SlowPeriod, Threshold: cfg.EMA.Threshold,
		}),
		indicator.NewATRBands(indicator.ATRSettings{Period: cfg.ATR.Period, Multiplier: cfg.ATR.Multiplier}),
		indicator.NewVolume(indicator.VolumeSettings{Period: cfg.Volume.Period, Threshold: cfg.Volume.Threshold}),
		indicator.NewTrendStrength(indicator.TrendSettings{Period: cfg.Trend.Period, Threshold: cfg.Trend.Threshold}),
	}
	e := newEngine(set, cfg.Weights, cfg.MinCandles, cfg.MinConfidence, cfg.TieBreak)
	e.trendFilter = cfg.BigTrendFilter
	e.bigTrend = indicator.NewTrendStrength(indicator.TrendSettings{Period: cfg.Trend.Period, Threshold: cfg.Trend.Threshold})
	return e, nil
}

func newEngine(set []indicator.Indicator, weights map[string]float64, minCandles int, minConfidence float64, tieBreak string) *Engine {
	w := make(map[string]float64, len(weights))
	for k, v := range weights {
		w[k] = v
	}
	return &Engine{
		indicators:    set,
		weights:       w,
		minCandles:    minCandles,
		minConfidence: minConfidence,
		tieBreak:      tieBreak,
	}
}

// Analyze 对最新一根已收盘的小周期 K 线进行分析，big 为可选的大周期 K 线。
func (e *Engine) Analyze(small, big []market.Candle) AnalysisResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(small) < e.minCandles {
		return noTrade(fmt.Sprintf("insufficient candles (%d/%d)", len(small), e.minCandles))
	}
	if err := market.EnsureChronological(small); err != nil {
		return noTrade(err.Error())
	}
	latest, _ := market.Last(small)
	if cached, done := e.gate.check(latest.OpenTime); done {
		return cached
	}

	in := candleInput(small)
	results := make([]indicator.Result, 0, len(e.indicators))
	for _, ind := range e.indicators {
		res := ind.Calculate(in)
		logger.Debugf("%s", res.Text)
		results = append(results, res)
	}

	out := Aggregate(results, e.weights, e.minConfidence, e.tieBreak)
	out.BarTime = latest.OpenTime
	e.applyBigTrend(&out, big)

	e.gate.store(latest.OpenTime, out)
	return out
}

func (e *Engine) applyBigTrend(out *AnalysisResult, big []market.Candle) {
	if e.bigTrend == nil || len(big) == 0 || market.EnsureChronological(big) != nil {
		return
	}
	bt := e.bigTrend.Calculate(indicator.Input{Closes: market.Closes(big)})
	if bt.Insufficient {
		return
	}
	out.BigTrend = bt.Signal
	if !e.trendFilter || !out.ShouldTrade || !bt.Active() {
		return
	}
	against := (out.Direction == DirectionCall && bt.Signal == indicator.SignalDown) ||
		(out.Direction == DirectionPut && bt.Signal == indicator.SignalUp)
	if against {
		out.Reason = fmt.Sprintf("%s contradicts big timeframe trend %s", out.Direction, bt.Signal)
		out.Direction = DirectionNone
		out.ShouldTrade = false
	}
}

// LastResult 返回最近一次完成计算的结果。
func (e *Engine) LastResult() (AnalysisResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate.last, e.gate.ok
}

// barGate 保证每根小周期 K 线只分析一次：同一根返回缓存，更早的 K 线被拒绝。
type barGate struct {
	ok   bool
	bar  int64
	last AnalysisResult
}

func (g *barGate) check(openTime int64) (AnalysisResult, bool) {
	if !g.ok {
		return AnalysisResult{}, false
	}
	switch {
	case openTime == g.bar:
		return g.last, true
	case openTime < g.bar:
		return noTrade(fmt.Sprintf("stale bar %d, already analyzed %d", openTime, g.bar)), true
	}
	return AnalysisResult{}, false
}

func (g *barGate) store(openTime int64, res AnalysisResult) {
	g.ok = true
	g.bar = openTime
	g.last = res
}

func candleInput(candles []market.Candle) indicator.Input {
	return indicator.Input{
		Opens:   market.Opens(candles),
		Closes:  market.Closes(candles),
		Highs:   market.Highs(candles),
		Lows:    market.Lows(candles),
		Volumes: market.Volumes(candles),
	}
}
