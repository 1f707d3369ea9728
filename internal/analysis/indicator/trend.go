package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// TrendSettings 描述趋势强度参数；Threshold 单位为百分比。
type TrendSettings struct {
	Period    int     `json:"period,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

func (s TrendSettings) withDefaults() TrendSettings {
	if s.Period <= 0 {
		s.Period = 20
	}
	if s.Threshold <= 0 {
		s.Threshold = 0.1
	}
	return s
}

// TrendStrength 以收盘价相对 SMA 的偏离百分比衡量趋势。
type TrendStrength struct {
	cfg TrendSettings
}

func NewTrendStrength(cfg TrendSettings) *TrendStrength {
	return &TrendStrength{cfg: cfg.withDefaults()}
}

func (t *TrendStrength) Name() string { return NameTrend }

func (t *TrendStrength) MinSamples() int { return t.cfg.Period }

func (t *TrendStrength) Calculate(in Input) Result {
	need := t.MinSamples()
	if len(in.Closes) < need {
		return insufficient(NameTrend, len(in.Closes), need)
	}
	window := tail(in.Closes, need)
	sma := last(talib.Sma(window, t.cfg.Period))
	price := last(window)
	values := map[string]float64{"sma": sma, "price": price}
	if sma == 0 {
		values["deviation_pct"] = 0
		return newResult(NameTrend, SignalNeutral, 0, values, describe(NameTrend, SignalNeutral, 0, "zero sma"))
	}
	deviation := (price - sma) / sma * 100
	values["deviation_pct"] = deviation

	signal := SignalNeutral
	if math.Abs(deviation) > t.cfg.Threshold {
		if deviation > 0 {
			signal = SignalUp
		} else {
			signal = SignalDown
		}
	}
	confidence := math.Min(math.Abs(deviation)/t.cfg.Threshold, 1)
	return newResult(NameTrend, signal, confidence, values,
		describe(NameTrend, signal, confidence, fmt.Sprintf("deviation=%.3f%%", deviation)))
}
