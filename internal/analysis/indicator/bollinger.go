package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// BollingerSettings 描述布林带参数；带宽 = (上轨-下轨)/中轨。
type BollingerSettings struct {
	Period              int     `json:"period,omitempty"`
	Deviations          float64 `json:"deviations,omitempty"`
	SqueezeThreshold    float64 `json:"squeeze_threshold,omitempty"`
	VolatilityThreshold float64 `json:"volatility_threshold,omitempty"`
}

func (s BollingerSettings) withDefaults() BollingerSettings {
	if s.Period <= 1 {
		s.Period = 20
	}
	if s.Deviations <= 0 {
		s.Deviations = 2
	}
	if s.SqueezeThreshold <= 0 {
		s.SqueezeThreshold = 0.01
	}
	if s.VolatilityThreshold <= 0 {
		s.VolatilityThreshold = 0.04
	}
	return s
}

type Bollinger struct {
	cfg BollingerSettings
}

func NewBollinger(cfg BollingerSettings) *Bollinger {
	return &Bollinger{cfg: cfg.withDefaults()}
}

func (b *Bollinger) Name() string { return NameBollinger }

func (b *Bollinger) MinSamples() int { return b.cfg.Period }

func (b *Bollinger) Calculate(in Input) Result {
	need := b.MinSamples()
	if len(in.Closes) < need {
		return insufficient(NameBollinger, len(in.Closes), need)
	}
	window := tail(in.Closes, need)
	upperS, middleS, lowerS := talib.BBands(window, b.cfg.Period, b.cfg.Deviations, b.cfg.Deviations, talib.SMA)
	upper, middle, lower := last(upperS), last(middleS), last(lowerS)
	price := last(window)
	width := upper - lower

	values := map[string]float64{"upper": upper, "middle": middle, "lower": lower, "price": price}
	if middle == 0 || width <= 0 {
		values["bandwidth"] = 0
		return newResult(NameBollinger, SignalNeutral, 0, values,
			describe(NameBollinger, SignalNeutral, 0, "flat band"))
	}
	bandwidth := width / middle
	values["bandwidth"] = bandwidth

	sideOfMiddle := func() Signal {
		switch {
		case price > middle:
			return SignalUp
		case price < middle:
			return SignalDown
		default:
			return SignalNeutral
		}
	}

	signal := SignalNeutral
	mode := "inside"
	switch {
	case price <= lower:
		signal, mode = SignalUp, "lower touch"
	case price >= upper:
		signal, mode = SignalDown, "upper touch"
	case bandwidth > b.cfg.VolatilityThreshold:
		signal, mode = sideOfMiddle(), "expansion"
	case bandwidth < b.cfg.SqueezeThreshold:
		signal, mode = sideOfMiddle(), "squeeze"
	}

	var confidence float64
	if price <= lower || price >= upper {
		distance := math.Min(math.Abs(price-lower), math.Abs(price-upper))
		confidence = 1 - distance/width
	} else {
		confidence = 1 - math.Abs(price-middle)/(width/2)
	}
	return newResult(NameBollinger, signal, confidence, values,
		describe(NameBollinger, signal, confidence, fmt.Sprintf("%s bandwidth=%.4f", mode, bandwidth)))
}
