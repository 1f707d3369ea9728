package analysis

import (
	"fmt"
	"sync"

	"optiontrader/internal/analysis/indicator"
	"optiontrader/internal/config"
	"optiontrader/internal/logger"
	"optiontrader/internal/market"
)

// SupportResistanceAnalyzer 是 analysis.mode=support_resistance 时替代加权引擎的分析器。
// 小周期给出形态信号，大周期最近两根 K 线提供 r4/s4 参考位。
type SupportResistanceAnalyzer struct {
	mu sync.Mutex

	ind           *indicator.SupportResistance
	minCandles    int
	minConfidence float64

	gate barGate
}

func NewSupportResistanceAnalyzer(cfg config.AnalysisConfig) (*SupportResistanceAnalyzer, error) {
	if cfg.MinCandles <= 0 {
		return nil, fmt.Errorf("%w: analysis.min_candles must be > 0", config.ErrConfigInvalid)
	}
	sr := cfg.SupportResistance
	ind := indicator.NewSupportResistance(indicator.SupportResistanceSettings{
		Period:            sr.Period,
		StdDevMultiplier:  sr.StdDevMultiplier,
		StdDevMultiplier1: sr.StdDevMultiplier1,
		RSIBuyThreshold:   sr.RSIBuyThreshold,
		RSISellThreshold:  sr.RSISellThreshold,
	})
	minCandles := cfg.MinCandles
	if minCandles < ind.MinSamples() {
		minCandles = ind.MinSamples()
	}
	return &SupportResistanceAnalyzer{ind: ind, minCandles: minCandles, minConfidence: cfg.MinConfidence}, nil
}

// Analyze 仅在信号非中性且置信度达到 min_confidence 时给出交易方向。
func (a *SupportResistanceAnalyzer) Analyze(small, big []market.Candle) AnalysisResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(small) < a.minCandles {
		return noTrade(fmt.Sprintf("insufficient candles (%d/%d)", len(small), a.minCandles))
	}
	if err := market.EnsureChronological(small); err != nil {
		return noTrade(err.Error())
	}
	if len(big) < 2 {
		return noTrade(fmt.Sprintf("insufficient big timeframe candles (%d/2)", len(big)))
	}
	if err := market.EnsureChronological(big); err != nil {
		return noTrade(err.Error())
	}
	latest, _ := market.Last(small)
	if cached, done := a.gate.check(latest.OpenTime); done {
		return cached
	}

	res := a.ind.Calculate(candleInput(small))
	if res.Insufficient {
		return noTrade(res.Text)
	}
	levels, _ := indicator.BigLevels(candleInput(big))
	for k, v := range levels {
		res.Values[k] = v
	}
	logger.Debugf("%s", res.Text)

	out := AnalysisResult{
		Direction:      DirectionNone,
		Confidence:     res.Confidence,
		SignalStrength: res.Confidence,
		Indicators:     []indicator.Result{res},
		BarTime:        latest.OpenTime,
	}
	switch res.Signal {
	case indicator.SignalUp:
		out.UpCount = 1
	case indicator.SignalDown:
		out.DownCount = 1
	}
	switch {
	case !res.Active():
		out.Reason = "no support/resistance signal"
	case res.Confidence < a.minConfidence:
		out.Reason = fmt.Sprintf("confidence %.3f below threshold %.3f", res.Confidence, a.minConfidence)
	case res.Signal == indicator.SignalUp:
		out.Direction, out.ShouldTrade = DirectionCall, true
	default:
		out.Direction, out.ShouldTrade = DirectionPut, true
	}

	a.gate.store(latest.OpenTime, out)
	return out
}

// LastResult 返回最近一次完成计算的结果。
func (a *SupportResistanceAnalyzer) LastResult() (AnalysisResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gate.last, a.gate.ok
}
