package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ErrConfigInvalid 表示配置在构造期校验失败，不可重试。
var ErrConfigInvalid = errors.New("config invalid")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfigInvalid, fmt.Sprintf(format, args...))
}

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Broker.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if len(c.Broker.Instruments) > 0 {
		found := false
		for _, inst := range c.Broker.Instruments {
			if inst.ID == c.Trading.InstrumentID {
				found = true
				break
			}
		}
		if !found {
			return invalidf("trading.instrument_id %d not listed in broker.instruments", c.Trading.InstrumentID)
		}
	}
	if err := c.Analysis.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (m *MarketConfig) validate() error {
	switch m.Source {
	case "binance", "paper":
	default:
		return invalidf("market.source must be binance or paper, got %q", m.Source)
	}
	if m.Source == "paper" && strings.TrimSpace(m.CacheDir) == "" {
		return invalidf("market.source=paper replays candles from market.cache_dir, which is empty")
	}
	if m.RateLimitPerSecond < 0 {
		return invalidf("market.rate_limit_per_second must be >= 0")
	}
	return nil
}

func (b *BrokerConfig) validate() error {
	if b.Kind != "paper" {
		return invalidf("broker.kind %q is not supported", b.Kind)
	}
	if b.PayoutPct <= 0 || b.PayoutPct > 100 {
		return invalidf("broker.payout_pct must be in (0,100]")
	}
	if b.ExpirySeconds <= 0 {
		return invalidf("broker.expiry_seconds must be > 0")
	}
	seen := make(map[int64]bool, len(b.Instruments))
	for _, inst := range b.Instruments {
		if inst.ID <= 0 {
			return invalidf("broker.instruments contains entry without id (ticker=%s)", inst.Ticker)
		}
		if seen[inst.ID] {
			return invalidf("broker.instruments has duplicate id %d", inst.ID)
		}
		seen[inst.ID] = true
		if strings.TrimSpace(inst.Symbol) == "" {
			return invalidf("broker.instruments.%d missing symbol and ticker %q is not recognized", inst.ID, inst.Ticker)
		}
		for _, hhmm := range []string{inst.OpenFrom, inst.OpenUntil} {
			if strings.TrimSpace(hhmm) == "" {
				continue
			}
			if _, err := time.Parse("15:04", strings.TrimSpace(hhmm)); err != nil {
				return invalidf("broker.instruments.%d invalid time %q", inst.ID, hhmm)
			}
		}
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if t.InstrumentID <= 0 {
		return invalidf("trading.instrument_id is required")
	}
	if strings.TrimSpace(t.Symbol) == "" {
		return invalidf("trading.symbol is required")
	}
	if t.Amount <= 0 {
		return invalidf("trading.amount must be > 0")
	}
	if t.MaxTradeCycles < 1 {
		return invalidf("trading.max_trade_cycles must be >= 1")
	}
	if t.WaitBetweenTradesSeconds < 0 {
		return invalidf("trading.wait_between_trades_seconds must be >= 0")
	}
	for i, rule := range t.ExitRules {
		if strings.TrimSpace(rule.Name) == "" {
			return invalidf("trading.exit_rules[%d] missing name", i)
		}
	}
	return nil
}

func (a *AnalysisConfig) validate() error {
	if a.MinCandles <= 0 {
		return invalidf("analysis.min_candles must be > 0")
	}
	if a.Lookback < a.MinCandles {
		return invalidf("analysis.lookback (%d) must be >= analysis.min_candles (%d)", a.Lookback, a.MinCandles)
	}
	if a.MinConfidence < 0 || a.MinConfidence > 1 {
		return invalidf("analysis.min_confidence must be within [0,1]")
	}
	switch a.Mode {
	case AnalysisModeTechnical, AnalysisModeSupportResistance:
	default:
		return invalidf("analysis.mode must be %s or %s, got %q", AnalysisModeTechnical, AnalysisModeSupportResistance, a.Mode)
	}
	switch a.TieBreak {
	case TieBreakNone, TieBreakPut, TieBreakCall:
	default:
		return invalidf("analysis.tie_break must be one of none/put/call, got %q", a.TieBreak)
	}
	if err := ValidateWeights(a.Weights); err != nil {
		return err
	}
	if a.RSI.Period <= 0 || a.RSI.Oversold <= 0 || a.RSI.Overbought >= 100 || a.RSI.Oversold >= a.RSI.Overbought {
		return invalidf("analysis.rsi requires period > 0 and 0 < oversold < overbought < 100")
	}
	if a.MACD.FastPeriod <= 0 || a.MACD.SignalPeriod <= 0 || a.MACD.FastPeriod >= a.MACD.SlowPeriod {
		return invalidf("analysis.macd requires 0 < fast_period < slow_period and signal_period > 0")
	}
	if a.MACD.Threshold <= 0 {
		return invalidf("analysis.macd.threshold must be > 0")
	}
	if a.Bollinger.Period <= 1 || a.Bollinger.Deviations <= 0 {
		return invalidf("analysis.bollinger requires period > 1 and deviations > 0")
	}
	if a.Bollinger.SqueezeThreshold >= a.Bollinger.VolatilityThreshold {
		return invalidf("analysis.bollinger.squeeze_threshold must be below volatility_threshold")
	}
	if a.Stochastic.Period <= 1 || a.Stochastic.Smoothing <= 0 || a.Stochastic.Oversold >= a.Stochastic.Overbought {
		return invalidf("analysis.stochastic requires period > 1, smoothing > 0 and oversold < overbought")
	}
	if a.EMA.FastPeriod <= 0 || a.EMA.FastPeriod >= a.EMA.SlowPeriod || a.EMA.Threshold <= 0 {
		return invalidf("analysis.ema requires 0 < fast_period < slow_period and threshold > 0")
	}
	if a.ATR.Period <= 1 || a.ATR.Multiplier <= 0 {
		return invalidf("analysis.atr requires period > 1 and multiplier > 0")
	}
	if a.Volume.Period <= 0 || a.Volume.Threshold <= 0 {
		return invalidf("analysis.volume requires period > 0 and threshold > 0")
	}
	if a.Trend.Period <= 0 || a.Trend.Threshold <= 0 {
		return invalidf("analysis.trend requires period > 0 and threshold > 0")
	}
	sr := a.SupportResistance
	if sr.Period <= 1 || sr.StdDevMultiplier <= 0 || sr.StdDevMultiplier1 <= 0 {
		return invalidf("analysis.support_resistance requires period > 1 and positive std_dev multipliers")
	}
	if sr.RSIBuyThreshold <= 0 || sr.RSISellThreshold >= 100 || sr.RSIBuyThreshold >= sr.RSISellThreshold {
		return invalidf("analysis.support_resistance requires 0 < rsi_buy_threshold < rsi_sell_threshold < 100")
	}
	return nil
}

// ValidateWeights 校验权重表：8 个指标齐全、非负且合计 1±1e-4。
func ValidateWeights(weights map[string]float64) error {
	known := make(map[string]bool, len(IndicatorNames))
	for _, name := range IndicatorNames {
		known[name] = true
		if _, ok := weights[name]; !ok {
			return invalidf("analysis.weights missing indicator %q", name)
		}
	}
	extra := make([]string, 0)
	sum := 0.0
	for name, w := range weights {
		if !known[name] {
			extra = append(extra, name)
			continue
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return invalidf("analysis.weights.%s must be a finite non-negative number", name)
		}
		sum += w
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return invalidf("analysis.weights contains unknown indicators: %s", strings.Join(extra, ", "))
	}
	if math.Abs(sum-1.0) > WeightTolerance {
		return invalidf("indicator weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return invalidf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}
