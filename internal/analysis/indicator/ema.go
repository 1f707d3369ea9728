package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// EMASettings 描述快慢 EMA 交叉参数。
type EMASettings struct {
	FastPeriod int     `json:"fast_period,omitempty"`
	SlowPeriod int     `json:"slow_period,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
}

func (s EMASettings) withDefaults() EMASettings {
	if s.FastPeriod <= 0 {
		s.FastPeriod = 9
	}
	if s.SlowPeriod <= 0 {
		s.SlowPeriod = 21
	}
	if s.SlowPeriod < s.FastPeriod {
		s.FastPeriod, s.SlowPeriod = s.SlowPeriod, s.FastPeriod
	}
	if s.Threshold <= 0 {
		s.Threshold = 0.0005
	}
	return s
}

// EMACrossover 先用上一次的快慢线判断交叉，再保存本次的值。
type EMACrossover struct {
	cfg EMASettings

	hasPrev  bool
	prevFast float64
	prevSlow float64
}

func NewEMACrossover(cfg EMASettings) *EMACrossover {
	return &EMACrossover{cfg: cfg.withDefaults()}
}

func (e *EMACrossover) Name() string { return NameEMA }

func (e *EMACrossover) MinSamples() int { return e.cfg.SlowPeriod }

func (e *EMACrossover) Calculate(in Input) Result {
	need := e.MinSamples()
	if len(in.Closes) < need {
		return insufficient(NameEMA, len(in.Closes), need)
	}
	fast := last(talib.Ema(in.Closes, e.cfg.FastPeriod))
	slow := last(talib.Ema(in.Closes, e.cfg.SlowPeriod))
	gap := fast - slow

	cross := 0
	if e.hasPrev {
		cross = crossed(e.prevFast, e.prevSlow, fast, slow)
	}
	e.hasPrev = true
	e.prevFast, e.prevSlow = fast, slow

	signal := SignalNeutral
	switch {
	case cross > 0:
		signal = SignalUp
	case cross < 0:
		signal = SignalDown
	case math.Abs(gap) > e.cfg.Threshold && gap > 0:
		signal = SignalUp
	case math.Abs(gap) > e.cfg.Threshold && gap < 0:
		signal = SignalDown
	}
	confidence := math.Abs(gap) / e.cfg.Threshold

	values := map[string]float64{"fast": fast, "slow": slow, "gap": gap, "crossover": float64(cross)}
	return newResult(NameEMA, signal, confidence, values,
		describe(NameEMA, signal, confidence, fmt.Sprintf("fast=%.6f slow=%.6f", fast, slow)))
}
