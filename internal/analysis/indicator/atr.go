package indicator

import (
	"fmt"

	"github.com/markcheno/go-talib"
)

// ATRSettings 描述 ATR 通道参数。
type ATRSettings struct {
	Period     int     `json:"period,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`
}

func (s ATRSettings) withDefaults() ATRSettings {
	if s.Period <= 1 {
		s.Period = 14
	}
	if s.Multiplier <= 0 {
		s.Multiplier = 1.5
	}
	return s
}

// ATRBands 以上一根收盘价 ± multiplier·ATR（Wilder）为通道，判断当前收盘是否突破。
type ATRBands struct {
	cfg ATRSettings
}

func NewATRBands(cfg ATRSettings) *ATRBands {
	return &ATRBands{cfg: cfg.withDefaults()}
}

func (a *ATRBands) Name() string { return NameATR }

func (a *ATRBands) MinSamples() int { return a.cfg.Period + 2 }

func (a *ATRBands) Calculate(in Input) Result {
	need := a.MinSamples()
	n := len(in.Closes)
	if n < need || len(in.Highs) != n || len(in.Lows) != n {
		return insufficient(NameATR, n, need)
	}
	atrSeries := talib.Atr(in.Highs, in.Lows, in.Closes, a.cfg.Period)
	atr := atrSeries[n-2]
	prevClose := in.Closes[n-2]
	price := in.Closes[n-1]
	upper := prevClose + a.cfg.Multiplier*atr
	lower := prevClose - a.cfg.Multiplier*atr
	width := upper - lower

	values := map[string]float64{"atr": atr, "upper": upper, "lower": lower, "price": price}
	if width <= 0 {
		return newResult(NameATR, SignalNeutral, 0, values,
			describe(NameATR, SignalNeutral, 0, "flat range"))
	}
	signal := SignalNeutral
	var confidence float64
	switch {
	case price > upper:
		signal = SignalUp
		confidence = 0.5 + (price-upper)/width
	case price < lower:
		signal = SignalDown
		confidence = 0.5 + (lower-price)/width
	}
	return newResult(NameATR, signal, confidence, values,
		describe(NameATR, signal, confidence, fmt.Sprintf("atr=%.6f band=[%.5f, %.5f]", atr, lower, upper)))
}
