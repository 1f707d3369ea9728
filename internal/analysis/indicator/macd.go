package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// MACDSettings 描述 MACD 指标参数。
type MACDSettings struct {
	FastPeriod   int     `json:"fast_period,omitempty"`
	SlowPeriod   int     `json:"slow_period,omitempty"`
	SignalPeriod int     `json:"signal_period,omitempty"`
	Threshold    float64 `json:"threshold,omitempty"`
}

func (s MACDSettings) withDefaults() MACDSettings {
	if s.FastPeriod <= 0 {
		s.FastPeriod = 12
	}
	if s.SlowPeriod <= 0 {
		s.SlowPeriod = 26
	}
	if s.SlowPeriod < s.FastPeriod {
		s.FastPeriod, s.SlowPeriod = s.SlowPeriod, s.FastPeriod
	}
	if s.SignalPeriod <= 0 {
		s.SignalPeriod = 9
	}
	if s.Threshold <= 0 {
		s.Threshold = 0.0005
	}
	return s
}

// MACD 的信号线是 MACD 序列的 EMA；交叉检测依赖上一次调用保存的 MACD/信号值。
type MACD struct {
	cfg MACDSettings

	hasPrev    bool
	prevMACD   float64
	prevSignal float64
	prevHist   float64
}

func NewMACD(cfg MACDSettings) *MACD {
	return &MACD{cfg: cfg.withDefaults()}
}

func (m *MACD) Name() string { return NameMACD }

func (m *MACD) MinSamples() int { return m.cfg.SlowPeriod + m.cfg.SignalPeriod - 1 }

func (m *MACD) Calculate(in Input) Result {
	need := m.MinSamples()
	if len(in.Closes) < need {
		return insufficient(NameMACD, len(in.Closes), need)
	}
	fast := talib.Ema(in.Closes, m.cfg.FastPeriod)
	slow := talib.Ema(in.Closes, m.cfg.SlowPeriod)
	start := m.cfg.SlowPeriod - 1
	line := make([]float64, 0, len(in.Closes)-start)
	for i := start; i < len(in.Closes); i++ {
		line = append(line, fast[i]-slow[i])
	}
	signalLine := talib.Ema(line, m.cfg.SignalPeriod)

	macd := last(line)
	sig := last(signalLine)
	hist := macd - sig

	cross := 0
	if m.hasPrev {
		cross = crossed(m.prevMACD, m.prevSignal, macd, sig)
	}

	signal := SignalNeutral
	switch {
	case cross > 0:
		signal = SignalUp
	case cross < 0:
		signal = SignalDown
	case hist > m.cfg.Threshold:
		signal = SignalUp
	case hist < -m.cfg.Threshold:
		signal = SignalDown
	}

	confidence := math.Min(math.Abs(hist)/m.cfg.Threshold, 1)
	if cross != 0 {
		confidence = math.Max(confidence, 0.7)
	}
	if m.hasPrev && sign(hist) != 0 && sign(hist) == sign(m.prevHist) {
		confidence = math.Min(confidence*1.2, 1)
	}

	m.hasPrev = true
	m.prevMACD, m.prevSignal, m.prevHist = macd, sig, hist

	values := map[string]float64{"macd": macd, "signal": sig, "histogram": hist, "crossover": float64(cross)}
	return newResult(NameMACD, signal, confidence, values,
		describe(NameMACD, signal, confidence, fmt.Sprintf("macd=%.6f signal=%.6f hist=%.6f", macd, sig, hist)))
}
