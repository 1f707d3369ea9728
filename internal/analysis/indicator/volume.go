package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// VolumeSettings 描述放量判定参数。
type VolumeSettings struct {
	Period    int     `json:"period,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

func (s VolumeSettings) withDefaults() VolumeSettings {
	if s.Period <= 0 {
		s.Period = 20
	}
	if s.Threshold <= 0 {
		s.Threshold = 1.5
	}
	return s
}

// Volume 在放量时沿当根收盘变化方向给出信号。
type Volume struct {
	cfg VolumeSettings
}

func NewVolume(cfg VolumeSettings) *Volume {
	return &Volume{cfg: cfg.withDefaults()}
}

func (v *Volume) Name() string { return NameVolume }

func (v *Volume) MinSamples() int {
	if v.cfg.Period < 2 {
		return 2
	}
	return v.cfg.Period
}

func (v *Volume) Calculate(in Input) Result {
	need := v.MinSamples()
	n := len(in.Closes)
	if n < need || len(in.Volumes) != n {
		return insufficient(NameVolume, len(in.Volumes), need)
	}
	current := in.Volumes[n-1]
	avg := last(talib.Sma(tail(in.Volumes, v.cfg.Period), v.cfg.Period))
	change := in.Closes[n-1] - in.Closes[n-2]

	values := map[string]float64{"volume": current, "average": avg, "price_change": change}
	if avg <= 0 {
		values["ratio"] = 0
		return newResult(NameVolume, SignalNeutral, 0, values,
			describe(NameVolume, SignalNeutral, 0, "no volume"))
	}
	ratio := current / avg
	values["ratio"] = ratio

	signal := SignalNeutral
	if ratio > v.cfg.Threshold {
		switch {
		case change > 0:
			signal = SignalUp
		case change < 0:
			signal = SignalDown
		}
	}
	confidence := math.Min(ratio/v.cfg.Threshold, 1)
	return newResult(NameVolume, signal, confidence, values,
		describe(NameVolume, signal, confidence, fmt.Sprintf("ratio=%.2f", ratio)))
}
