package indicator

import (
	"fmt"
	"math"
	"strings"
)

// Signal 是单个指标给出的方向。
type Signal string

const (
	SignalUp      Signal = "up"
	SignalDown    Signal = "down"
	SignalNeutral Signal = "neutral"
)

// 指标名称，与 analysis.weights 的键一致。
const (
	NameRSI        = "rsi"
	NameMACD       = "macd"
	NameBollinger  = "bollinger"
	NameStochastic = "stochastic"
	NameEMA        = "ema"
	NameATR        = "atr"
	NameVolume     = "volume"
	NameTrend      = "trend"

	// NameSupportResistance 是独立分析模式，不参与加权。
	NameSupportResistance = "support_resistance"
)

// Input 是一次计算使用的滚动窗口，按时间升序排列。
// Opens/Highs/Lows/Volumes 可缺省，依赖它们的指标会返回数据不足。
type Input struct {
	Opens   []float64
	Closes  []float64
	Highs   []float64
	Lows    []float64
	Volumes []float64
}

// Result 保存一次计算的信号、置信度与诊断值。
type Result struct {
	Name         string             `json:"name"`
	Signal       Signal             `json:"signal"`
	Confidence   float64            `json:"confidence"`
	Values       map[string]float64 `json:"values,omitempty"`
	Text         string             `json:"text"`
	Insufficient bool               `json:"insufficient,omitempty"`
}

// Active 表示该结果参与加权（非中性）。
func (r Result) Active() bool {
	return r.Signal == SignalUp || r.Signal == SignalDown
}

// Indicator 是所有指标的统一契约。
//
// 带交叉检测的实现会在实例内保存上一根 K 线的值：同一实例必须按时间顺序、
// 每根新 K 线只调用一次，不能并发调用。
type Indicator interface {
	Name() string
	// MinSamples 返回产生非"数据不足"结果所需的最少样本数。
	MinSamples() int
	Calculate(in Input) Result
}

// NormalizeConfidence 把 NaN/Inf 归零并截断到 [0,1]。
func NormalizeConfidence(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func insufficient(name string, have, need int) Result {
	return Result{
		Name:         name,
		Signal:       SignalNeutral,
		Confidence:   0,
		Text:         fmt.Sprintf("%s: insufficient data (%d/%d)", strings.ToUpper(name), have, need),
		Insufficient: true,
	}
}

func newResult(name string, signal Signal, confidence float64, values map[string]float64, text string) Result {
	for k, v := range values {
		values[k] = roundValue(v)
	}
	return Result{
		Name:       name,
		Signal:     signal,
		Confidence: NormalizeConfidence(confidence),
		Values:     values,
		Text:       text,
	}
}

func describe(name string, signal Signal, confidence float64, detail string) string {
	action := "No Clear Signal"
	switch signal {
	case SignalUp:
		action = "Potential Call"
	case SignalDown:
		action = "Potential Put"
	}
	return fmt.Sprintf("%s: %s (%s) | %s | confidence=%.1f%%",
		strings.ToUpper(name), signal, detail, action, NormalizeConfidence(confidence)*100)
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

func tail(series []float64, n int) []float64 {
	if n >= len(series) {
		return series
	}
	return series[len(series)-n:]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// crossed 判断 a 相对 b 在两次观测之间是否发生交叉：+1 上穿，-1 下穿，0 无。
func crossed(prevA, prevB, a, b float64) int {
	switch {
	case prevA < prevB && a > b:
		return 1
	case prevA > prevB && a < b:
		return -1
	default:
		return 0
	}
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// roundValue 保留 8 位小数，外汇报价的 MACD 量级在 1e-4 左右。
func roundValue(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*1e8) / 1e8
}
