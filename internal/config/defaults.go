package config

import (
	"strings"

	"optiontrader/internal/pkg/symbol"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9991"
	defaultAppLogPath        = "data/logs/optiontrader.log"
	defaultMarketSource      = "binance"
	defaultMarketREST        = "https://fapi.binance.com"
	defaultMarketTimeout     = 15
	defaultMarketRateLimit   = 5
	defaultBrokerKind        = "paper"
	defaultBrokerPayoutPct   = 85
	defaultBrokerExpiry      = 60
	defaultBrokerQuoteMS     = 1000
	defaultBrokerBalance     = 10000
	defaultTradingAmount     = 1
	defaultMaxTradeCycles    = 5
	defaultWaitBetweenTrades = 15
	defaultExpiryGrace       = 30
	defaultProfitExitPct     = 25
	defaultSmallInterval     = "15m"
	defaultBigInterval       = "1h"
	defaultLookback          = 300
	defaultMinCandles        = 100
	defaultMinConfidence     = 0.8
	defaultTieBreak          = TieBreakNone
	defaultBarCloseDelay     = 2
	defaultStorePath         = "data/db/journal.db"
	defaultRSIPeriod         = 14
	defaultRSIOversold       = 30
	defaultRSIOverbought     = 70
	defaultRSINeutral        = 50
	defaultMACDFast          = 12
	defaultMACDSlow          = 26
	defaultMACDSignal        = 9
	defaultMACDThreshold     = 0.0005
	defaultAnalysisMode      = AnalysisModeTechnical
	defaultSRPeriod          = 14
	defaultSRMultiplier      = 2
	defaultSRMultiplier1     = 1.75
	defaultSRRSIBuy          = 40
	defaultSRRSISell         = 60
	defaultBollPeriod        = 20
	defaultBollDeviations    = 2
	defaultBollSqueeze       = 0.01
	defaultBollVolatility    = 0.04
	defaultStochPeriod       = 14
	defaultStochSmoothing    = 3
	defaultStochOversold     = 20
	defaultStochOverbought   = 80
	defaultEMAFast           = 9
	defaultEMASlow           = 21
	defaultEMAThreshold      = 0.0005
	defaultATRPeriod         = 14
	defaultATRMultiplier     = 1.5
	defaultVolumePeriod      = 20
	defaultVolumeThreshold   = 1.5
	defaultTrendPeriod       = 20
	defaultTrendThreshold    = 0.1
	profitAbovePctRuleName   = "profit_above_pct"
	profitAbovePctParamName  = "pct"
)

// DefaultWeights 为 8 个指标的默认权重，合计为 1。
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		IndicatorRSI:        0.15,
		IndicatorMACD:       0.15,
		IndicatorBollinger:  0.15,
		IndicatorStochastic: 0.10,
		IndicatorEMA:        0.15,
		IndicatorATR:        0.10,
		IndicatorVolume:     0.10,
		IndicatorTrend:      0.10,
	}
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Broker.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Analysis.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	m.Source = strings.ToLower(strings.TrimSpace(m.Source))
	applyFieldDefaults(keys,
		stringFieldDefault("market.source", &m.Source, defaultMarketSource),
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST),
		intFieldDefault("market.http_timeout_seconds", &m.HTTPTimeoutSeconds, defaultMarketTimeout),
		floatFieldDefault("market.rate_limit_per_second", &m.RateLimitPerSecond, defaultMarketRateLimit),
	)
}

func (b *BrokerConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("broker.kind", &b.Kind, defaultBrokerKind),
		floatFieldDefault("broker.payout_pct", &b.PayoutPct, defaultBrokerPayoutPct),
		intFieldDefault("broker.expiry_seconds", &b.ExpirySeconds, defaultBrokerExpiry),
		intFieldDefault("broker.quote_interval_ms", &b.QuoteIntervalMS, defaultBrokerQuoteMS),
		floatFieldDefault("broker.initial_balance", &b.InitialBalance, defaultBrokerBalance),
	)
	// 未写 symbol 的标的从券商 ticker 推导行情交易对
	for i := range b.Instruments {
		if strings.TrimSpace(b.Instruments[i].Symbol) == "" {
			b.Instruments[i].Symbol = symbol.FromTicker(b.Instruments[i].Ticker)
		}
	}
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("trading.amount", &t.Amount, defaultTradingAmount),
		intFieldDefault("trading.max_trade_cycles", &t.MaxTradeCycles, defaultMaxTradeCycles),
		intFieldDefault("trading.wait_between_trades_seconds", &t.WaitBetweenTradesSeconds, defaultWaitBetweenTrades),
		intFieldDefault("trading.expiry_grace_seconds", &t.ExpiryGraceSeconds, defaultExpiryGrace),
		fieldDefault{
			key:  "trading.exit_rules",
			need: func() bool { return len(t.ExitRules) == 0 },
			apply: func() {
				t.ExitRules = []ExitRuleConfig{{
					Name:   profitAbovePctRuleName,
					Params: map[string]any{profitAbovePctParamName: float64(defaultProfitExitPct)},
				}}
			},
		},
	)
}

func (a *AnalysisConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	a.TieBreak = strings.ToLower(strings.TrimSpace(a.TieBreak))
	a.Mode = strings.ToLower(strings.TrimSpace(a.Mode))
	applyFieldDefaults(keys,
		stringFieldDefault("analysis.mode", &a.Mode, defaultAnalysisMode),
		stringFieldDefault("analysis.small_interval", &a.SmallInterval, defaultSmallInterval),
		stringFieldDefault("analysis.big_interval", &a.BigInterval, defaultBigInterval),
		intFieldDefault("analysis.lookback", &a.Lookback, defaultLookback),
		intFieldDefault("analysis.min_candles", &a.MinCandles, defaultMinCandles),
		floatFieldDefault("analysis.min_confidence", &a.MinConfidence, defaultMinConfidence),
		stringFieldDefault("analysis.tie_break", &a.TieBreak, defaultTieBreak),
		intFieldDefault("analysis.bar_close_delay_seconds", &a.BarCloseDelaySeconds, defaultBarCloseDelay),
		fieldDefault{
			need:  func() bool { return len(a.Weights) == 0 },
			apply: func() { a.Weights = DefaultWeights() },
		},

		intFieldDefault("analysis.rsi.period", &a.RSI.Period, defaultRSIPeriod),
		floatFieldDefault("analysis.rsi.oversold", &a.RSI.Oversold, defaultRSIOversold),
		floatFieldDefault("analysis.rsi.overbought", &a.RSI.Overbought, defaultRSIOverbought),
		floatFieldDefault("analysis.rsi.neutral", &a.RSI.Neutral, defaultRSINeutral),

		intFieldDefault("analysis.macd.fast_period", &a.MACD.FastPeriod, defaultMACDFast),
		intFieldDefault("analysis.macd.slow_period", &a.MACD.SlowPeriod, defaultMACDSlow),
		intFieldDefault("analysis.macd.signal_period", &a.MACD.SignalPeriod, defaultMACDSignal),
		floatFieldDefault("analysis.macd.threshold", &a.MACD.Threshold, defaultMACDThreshold),

		intFieldDefault("analysis.bollinger.period", &a.Bollinger.Period, defaultBollPeriod),
		floatFieldDefault("analysis.bollinger.deviations", &a.Bollinger.Deviations, defaultBollDeviations),
		floatFieldDefault("analysis.bollinger.squeeze_threshold", &a.Bollinger.SqueezeThreshold, defaultBollSqueeze),
		floatFieldDefault("analysis.bollinger.volatility_threshold", &a.Bollinger.VolatilityThreshold, defaultBollVolatility),

		intFieldDefault("analysis.stochastic.period", &a.Stochastic.Period, defaultStochPeriod),
		intFieldDefault("analysis.stochastic.smoothing", &a.Stochastic.Smoothing, defaultStochSmoothing),
		floatFieldDefault("analysis.stochastic.oversold", &a.Stochastic.Oversold, defaultStochOversold),
		floatFieldDefault("analysis.stochastic.overbought", &a.Stochastic.Overbought, defaultStochOverbought),

		intFieldDefault("analysis.ema.fast_period", &a.EMA.FastPeriod, defaultEMAFast),
		intFieldDefault("analysis.ema.slow_period", &a.EMA.SlowPeriod, defaultEMASlow),
		floatFieldDefault("analysis.ema.threshold", &a.EMA.Threshold, defaultEMAThreshold),

		intFieldDefault("analysis.support_resistance.period", &a.SupportResistance.Period, defaultSRPeriod),
		floatFieldDefault("analysis.support_resistance.std_dev_multiplier", &a.SupportResistance.StdDevMultiplier, defaultSRMultiplier),
		floatFieldDefault("analysis.support_resistance.std_dev_multiplier_1", &a.SupportResistance.StdDevMultiplier1, defaultSRMultiplier1),
		floatFieldDefault("analysis.support_resistance.rsi_buy_threshold", &a.SupportResistance.RSIBuyThreshold, defaultSRRSIBuy),
		floatFieldDefault("analysis.support_resistance.rsi_sell_threshold", &a.SupportResistance.RSISellThreshold, defaultSRRSISell),

		intFieldDefault("analysis.atr.period", &a.ATR.Period, defaultATRPeriod),
		floatFieldDefault("analysis.atr.multiplier", &a.ATR.Multiplier, defaultATRMultiplier),

		intFieldDefault("analysis.volume.period", &a.Volume.Period, defaultVolumePeriod),
		floatFieldDefault("analysis.volume.threshold", &a.Volume.Threshold, defaultVolumeThreshold),

		intFieldDefault("analysis.trend.period", &a.Trend.Period, defaultTrendPeriod),
		floatFieldDefault("analysis.trend.threshold", &a.Trend.Threshold, defaultTrendThreshold),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
