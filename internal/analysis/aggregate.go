package analysis

import (
	"fmt"
	"math"

	"optiontrader/internal/analysis/indicator"
	"optiontrader/internal/config"
)

// Direction 是聚合后的交易方向。
type Direction string

const (
	DirectionCall Direction = "call"
	DirectionPut  Direction = "put"
	DirectionNone Direction = "none"
)

// AnalysisResult 是一次聚合的输出，Indicators 保留各指标原始结果便于展示和落库。
type AnalysisResult struct {
	Direction      Direction          `json:"direction"`
	Confidence     float64            `json:"confidence"`
	SignalStrength float64            `json:"signal_strength"`
	ShouldTrade    bool               `json:"should_trade"`
	UpCount        int                `json:"up_count"`
	DownCount      int                `json:"down_count"`
	Indicators     []indicator.Result `json:"indicators,omitempty"`
	BigTrend       indicator.Signal   `json:"big_trend,omitempty"`
	Reason         string             `json:"reason,omitempty"`
	BarTime        int64              `json:"bar_time,omitempty"`
}

func noTrade(reason string) AnalysisResult {
	return AnalysisResult{Direction: DirectionNone, Reason: reason}
}

// Aggregate 按权重合成各指标结果：
//   - 只有非中性指标参与，权重在参与者之间重新归一，因此加权置信度不超过 1；
//   - 置信度达到 minConfidence 时按多空票数定方向，票数相同由 tieBreak 决定；
//   - signalStrength = |多-空| / 指标总数，仅作诊断。
func Aggregate(results []indicator.Result, weights map[string]float64, minConfidence float64, tieBreak string) AnalysisResult {
	out := AnalysisResult{Direction: DirectionNone, Indicators: results}

	totalActive := 0.0
	for _, r := range results {
		if r.Active() {
			totalActive += weights[r.Name]
		}
	}

	weighted := 0.0
	for _, r := range results {
		if !r.Active() {
			continue
		}
		switch r.Signal {
		case indicator.SignalUp:
			out.UpCount++
		case indicator.SignalDown:
			out.DownCount++
		}
		if totalActive <= 0 {
			continue
		}
		weighted += indicator.NormalizeConfidence(r.Confidence) * weights[r.Name] / totalActive
	}
	out.Confidence = math.Min(weighted, 1)
	out.SignalStrength = math.Abs(float64(out.UpCount-out.DownCount)) / float64(len(config.IndicatorNames))

	if totalActive <= 0 {
		out.Reason = "no active indicators"
		return out
	}
	if out.Confidence < minConfidence {
		out.Reason = fmt.Sprintf("confidence %.3f below threshold %.3f", out.Confidence, minConfidence)
		return out
	}
	switch {
	case out.UpCount > out.DownCount:
		out.Direction = DirectionCall
	case out.DownCount > out.UpCount:
		out.Direction = DirectionPut
	default:
		switch tieBreak {
		case config.TieBreakCall:
			out.Direction = DirectionCall
		case config.TieBreakPut:
			out.Direction = DirectionPut
		default:
			out.Reason = fmt.Sprintf("tie %d/%d", out.UpCount, out.DownCount)
			return out
		}
	}
	out.ShouldTrade = true
	return out
}
