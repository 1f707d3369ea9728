package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// RSISettings 描述 RSI 指标参数。
type RSISettings struct {
	Period     int     `json:"period,omitempty"`
	Oversold   float64 `json:"oversold,omitempty"`
	Overbought float64 `json:"overbought,omitempty"`
	Neutral    float64 `json:"neutral,omitempty"`
}

func (s RSISettings) withDefaults() RSISettings {
	if s.Period <= 0 {
		s.Period = 14
	}
	if s.Oversold <= 0 {
		s.Oversold = 30
	}
	if s.Overbought <= 0 {
		s.Overbought = 70
	}
	if s.Neutral <= 0 {
		s.Neutral = 50
	}
	return s
}

// RSI 使用简单平均（非 Wilder 平滑）的涨跌幅计算相对强弱。
type RSI struct {
	cfg  RSISettings
	last float64
}

func NewRSI(cfg RSISettings) *RSI {
	cfg = cfg.withDefaults()
	return &RSI{cfg: cfg, last: cfg.Neutral}
}

func (r *RSI) Name() string { return NameRSI }

func (r *RSI) MinSamples() int { return r.cfg.Period + 1 }

func (r *RSI) Calculate(in Input) Result {
	need := r.MinSamples()
	if len(in.Closes) < need {
		return insufficient(NameRSI, len(in.Closes), need)
	}
	window := tail(in.Closes, need)
	gains := make([]float64, 0, r.cfg.Period)
	losses := make([]float64, 0, r.cfg.Period)
	for i := 1; i < len(window); i++ {
		diff := window[i] - window[i-1]
		gains = append(gains, math.Max(0, diff))
		losses = append(losses, math.Max(0, -diff))
	}
	avgGain := last(talib.Sma(gains, r.cfg.Period))
	avgLoss := last(talib.Sma(losses, r.cfg.Period))

	var rsi float64
	switch {
	case avgGain == 0 && avgLoss == 0:
		rsi = r.cfg.Neutral
	case avgLoss == 0:
		rsi = 100
	default:
		rsi = 100 - 100/(1+avgGain/avgLoss)
	}
	r.last = rsi

	signal := SignalNeutral
	var confidence float64
	switch {
	case rsi <= r.cfg.Oversold:
		signal = SignalUp
		confidence = 1 - rsi/r.cfg.Oversold
	case rsi >= r.cfg.Overbought:
		signal = SignalDown
		confidence = 1 - (100-rsi)/(100-r.cfg.Overbought)
	default:
		confidence = math.Max(0, 1-math.Abs(rsi-r.cfg.Neutral)/r.cfg.Neutral)
	}
	values := map[string]float64{"value": rsi, "avg_gain": avgGain, "avg_loss": avgLoss}
	return newResult(NameRSI, signal, confidence, values,
		describe(NameRSI, signal, confidence, fmt.Sprintf("%.2f", rsi)))
}

// Last 返回最近一次计算出的 RSI 值。
func (r *RSI) Last() float64 { return r.last }
