package config

// 指标名称，同时作为 analysis.weights 的键。
const (
	IndicatorRSI        = "rsi"
	IndicatorMACD       = "macd"
	IndicatorBollinger  = "bollinger"
	IndicatorStochastic = "stochastic"
	IndicatorEMA        = "ema"
	IndicatorATR        = "atr"
	IndicatorVolume     = "volume"
	IndicatorTrend      = "trend"
)

// IndicatorNames 按固定顺序列出全部 8 个指标。
var IndicatorNames = []string{
	IndicatorRSI,
	IndicatorMACD,
	IndicatorBollinger,
	IndicatorStochastic,
	IndicatorEMA,
	IndicatorATR,
	IndicatorVolume,
	IndicatorTrend,
}

// analysis.mode 的取值。
const (
	AnalysisModeTechnical         = "technical"
	AnalysisModeSupportResistance = "support_resistance"
)

// 多空票数相同时的处理策略。
const (
	TieBreakNone = "none"
	TieBreakPut  = "put"
	TieBreakCall = "call"
)

// WeightTolerance 是权重之和与 1 的最大允许偏差。
const WeightTolerance = 1e-4
