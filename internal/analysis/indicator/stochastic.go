package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// StochasticSettings 描述随机指标参数；%D 为最近 Smoothing 个 %K 的简单平均。
type StochasticSettings struct {
	Period     int     `json:"period,omitempty"`
	Smoothing  int     `json:"smoothing,omitempty"`
	Oversold   float64 `json:"oversold,omitempty"`
	Overbought float64 `json:"overbought,omitempty"`
}

func (s StochasticSettings) withDefaults() StochasticSettings {
	if s.Period < 2 {
		s.Period = 14
	}
	if s.Smoothing <= 0 {
		s.Smoothing = 3
	}
	if s.Oversold <= 0 {
		s.Oversold = 20
	}
	if s.Overbought <= 0 {
		s.Overbought = 80
	}
	return s
}

const stochasticFlat = 50

type Stochastic struct {
	cfg StochasticSettings

	hasPrev bool
	prevK   float64
	prevD   float64
}

func NewStochastic(cfg StochasticSettings) *Stochastic {
	return &Stochastic{cfg: cfg.withDefaults()}
}

func (s *Stochastic) Name() string { return NameStochastic }

func (s *Stochastic) MinSamples() int { return s.cfg.Period + s.cfg.Smoothing - 1 }

func (s *Stochastic) Calculate(in Input) Result {
	need := s.MinSamples()
	n := len(in.Closes)
	if n < need || len(in.Highs) != n || len(in.Lows) != n {
		return insufficient(NameStochastic, n, need)
	}
	closes := tail(in.Closes, need)
	highest := talib.Max(tail(in.Highs, need), s.cfg.Period)
	lowest := talib.Min(tail(in.Lows, need), s.cfg.Period)

	kSeries := make([]float64, 0, s.cfg.Smoothing)
	for i := s.cfg.Period - 1; i < need; i++ {
		hh, ll := highest[i], lowest[i]
		if hh == ll {
			kSeries = append(kSeries, stochasticFlat)
			continue
		}
		kSeries = append(kSeries, (closes[i]-ll)/(hh-ll)*100)
	}
	k := last(kSeries)
	d := mean(tail(kSeries, s.cfg.Smoothing))

	cross := 0
	if s.hasPrev {
		cross = crossed(s.prevK, s.prevD, k, d)
	}
	inOversold := k <= s.cfg.Oversold && d <= s.cfg.Oversold
	inOverbought := k >= s.cfg.Overbought && d >= s.cfg.Overbought

	signal := SignalNeutral
	switch {
	case cross > 0:
		signal = SignalUp
	case cross < 0:
		signal = SignalDown
	case inOversold:
		signal = SignalUp
	case inOverbought:
		signal = SignalDown
	}

	var confidence float64
	switch {
	case inOversold:
		confidence = math.Max(1-k/s.cfg.Oversold, 1-d/s.cfg.Oversold)
	case inOverbought:
		span := 100 - s.cfg.Overbought
		confidence = math.Max(1-(100-k)/span, 1-(100-d)/span)
	}
	if cross != 0 {
		confidence = math.Max(confidence, 0.7)
	}

	s.hasPrev = true
	s.prevK, s.prevD = k, d

	values := map[string]float64{"k": k, "d": d, "crossover": float64(cross)}
	return newResult(NameStochastic, signal, confidence, values,
		describe(NameStochastic, signal, confidence, fmt.Sprintf("K=%.2f D=%.2f", k, d)))
}
