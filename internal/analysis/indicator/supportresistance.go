package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// SupportResistanceSettings 描述支撑/阻力分析器参数。
// StdDevMultiplier 对应外轨，StdDevMultiplier1 对应内轨。
type SupportResistanceSettings struct {
	Period            int     `json:"period,omitempty"`
	StdDevMultiplier  float64 `json:"std_dev_multiplier,omitempty"`
	StdDevMultiplier1 float64 `json:"std_dev_multiplier_1,omitempty"`
	RSIBuyThreshold   float64 `json:"rsi_buy_threshold,omitempty"`
	RSISellThreshold  float64 `json:"rsi_sell_threshold,omitempty"`
}

func (s SupportResistanceSettings) withDefaults() SupportResistanceSettings {
	if s.Period <= 1 {
		s.Period = 14
	}
	if s.StdDevMultiplier <= 0 {
		s.StdDevMultiplier = 2
	}
	if s.StdDevMultiplier1 <= 0 {
		s.StdDevMultiplier1 = 1.75
	}
	if s.RSIBuyThreshold <= 0 {
		s.RSIBuyThreshold = 40
	}
	if s.RSISellThreshold <= 0 {
		s.RSISellThreshold = 60
	}
	return s
}

// 置信度分档：三根 K 线形态 > 外轨反转 > 仅触及内轨。
const (
	srConfidencePattern = 0.8
	srConfidenceOuter   = 0.6
	srConfidenceInner   = 0.4
)

// SupportResistance 在最近三根 K 线上寻找触及标准差通道后的连续同向收盘，
// 配合 RSI 给出反转信号。与加权指标集互斥，由 analysis.mode 选择。
//
// 仅触及内轨（con2）时信号保持中性，但置信度记为 0.4，便于诊断展示。
type SupportResistance struct {
	cfg SupportResistanceSettings
	rsi *RSI
}

func NewSupportResistance(cfg SupportResistanceSettings) *SupportResistance {
	cfg = cfg.withDefaults()
	return &SupportResistance{
		cfg: cfg,
		rsi: NewRSI(RSISettings{Period: cfg.Period}),
	}
}

func (s *SupportResistance) Name() string { return NameSupportResistance }

// MinSamples 至少为 3（period > 1），形态判断需要最近三根 K 线。
func (s *SupportResistance) MinSamples() int { return s.cfg.Period + 1 }

type srBar struct{ open, close float64 }

func (s *SupportResistance) Calculate(in Input) Result {
	need := s.MinSamples()
	n := len(in.Closes)
	if n < need || len(in.Opens) != n || len(in.Highs) != n || len(in.Lows) != n {
		return insufficient(NameSupportResistance, n, need)
	}

	window := tail(in.Closes, s.cfg.Period)
	basis := last(talib.Sma(window, s.cfg.Period))
	dev := last(talib.StdDev(window, s.cfg.Period, 1))
	upper, lower := basis+dev*s.cfg.StdDevMultiplier, basis-dev*s.cfg.StdDevMultiplier
	upper1, lower1 := basis+dev*s.cfg.StdDevMultiplier1, basis-dev*s.cfg.StdDevMultiplier1

	s.rsi.Calculate(in)
	rsi := s.rsi.Last()

	cur := srBar{in.Opens[n-1], in.Closes[n-1]}
	prev := srBar{in.Opens[n-2], in.Closes[n-2]}
	prev2 := srBar{in.Opens[n-3], in.Closes[n-3]}

	buy1 := cur.close <= prev.close && prev.open >= prev.close && cur.open >= cur.close
	buy2 := buy1 && cur.close <= lower1
	buy21 := buy1 && prev2.close > prev2.open && cur.close <= lower && rsi <= s.cfg.RSIBuyThreshold
	buy3 := buy2 && prev.close <= prev2.close && prev2.open > prev2.close && rsi <= s.cfg.RSIBuyThreshold

	sell1 := cur.close >= prev.close && prev.open <= prev.close && cur.open <= cur.close
	sell2 := sell1 && cur.close >= upper1
	sell21 := sell1 && prev2.close < prev2.open && cur.close >= upper && rsi >= s.cfg.RSISellThreshold
	sell3 := sell2 && prev.close >= prev2.close && prev2.open < prev2.close && rsi >= s.cfg.RSISellThreshold

	signal, pattern := SignalNeutral, "none"
	switch {
	case buy3:
		signal, pattern = SignalUp, "buy con3"
	case sell3:
		signal, pattern = SignalDown, "sell con3"
	case buy21:
		signal, pattern = SignalUp, "buy con21"
	case sell21:
		signal, pattern = SignalDown, "sell con21"
	case buy2:
		pattern = "buy con2"
	case sell2:
		pattern = "sell con2"
	}

	var confidence float64
	switch {
	case buy3 || sell3:
		confidence = srConfidencePattern
	case buy21 || sell21:
		confidence = srConfidenceOuter
	case buy2 || sell2:
		confidence = srConfidenceInner
	}

	values := map[string]float64{
		"basis":   basis,
		"upper":   upper,
		"lower":   lower,
		"upper1":  upper1,
		"lower1":  lower1,
		"rsi":     rsi,
		"price":   cur.close,
		"r3":      in.Highs[n-1],
		"s3":      in.Lows[n-1],
		"r3_back": math.Max(in.Highs[n-1], in.Highs[n-2]),
		"s3_back": math.Max(in.Lows[n-1], in.Lows[n-2]),
	}
	for name, on := range map[string]bool{
		"buy_con1": buy1, "buy_con2": buy2, "buy_con21": buy21, "buy_con3": buy3,
		"sell_con1": sell1, "sell_con2": sell2, "sell_con21": sell21, "sell_con3": sell3,
	} {
		values[name] = flag(on)
	}
	return newResult(NameSupportResistance, signal, confidence, values,
		describe(NameSupportResistance, signal, confidence, fmt.Sprintf("%s rsi=%.2f band=[%.5f, %.5f]", pattern, rsi, lower, upper)))
}

// BigLevels 由大周期最近两根 K 线给出 r4/s4 及其回看值，数据不足时 ok=false。
func BigLevels(big Input) (levels map[string]float64, ok bool) {
	n := len(big.Highs)
	if n < 2 || len(big.Lows) != n {
		return nil, false
	}
	return map[string]float64{
		"r4":      roundValue(big.Highs[n-1]),
		"s4":      roundValue(big.Lows[n-1]),
		"r4_back": roundValue(math.Max(big.Highs[n-1], big.Highs[n-2])),
		"s4_back": roundValue(math.Max(big.Lows[n-1], big.Lows[n-2])),
	}, true
}

func flag(on bool) float64 {
	if on {
		return 1
	}
	return 0
}
