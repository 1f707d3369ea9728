package config

import "strings"

// Config 是 optiontrader 的主配置载体，加载完成后视为只读。
type Config struct {
	App      AppConfig      `yaml:"app"`
	Market   MarketConfig   `yaml:"market"`
	Broker   BrokerConfig   `yaml:"broker"`
	Trading  TradingConfig  `yaml:"trading"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Store    StoreConfig    `yaml:"store"`
	Notify   NotifyConfig   `yaml:"notify"`
}

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`
	HTTPAddr string `yaml:"http_addr"`
}

// MarketConfig 描述 K 线来源。
type MarketConfig struct {
	Source             string  `yaml:"source"` // binance | paper
	RESTBaseURL        string  `yaml:"rest_base_url"`
	HTTPTimeoutSeconds int     `yaml:"http_timeout_seconds"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	ProxyURL           string  `yaml:"proxy_url"`
	// CacheDir 为空时不缓存；source=paper 时从这里回放 K 线。
	CacheDir string `yaml:"cache_dir"`
}

// BrokerConfig 描述模拟券商（paper）的参数。
type BrokerConfig struct {
	Kind            string             `yaml:"kind"`
	PayoutPct       float64            `yaml:"payout_pct"`
	ExpirySeconds   int                `yaml:"expiry_seconds"`
	QuoteIntervalMS int                `yaml:"quote_interval_ms"`
	InitialBalance  float64            `yaml:"initial_balance"`
	Instruments     []InstrumentConfig `yaml:"instruments"`
}

type InstrumentConfig struct {
	ID     int64  `yaml:"id"`
	Ticker string `yaml:"ticker"`
	Symbol string `yaml:"symbol"`
	// OpenFrom/OpenUntil 为 UTC "HH:MM"，留空表示全天可买。
	OpenFrom  string `yaml:"open_from"`
	OpenUntil string `yaml:"open_until"`
}

// TradingConfig 控制下单与周期上限。
type TradingConfig struct {
	InstrumentID             int64            `yaml:"instrument_id"`
	Symbol                   string           `yaml:"symbol"`
	Amount                   float64          `yaml:"amount"`
	MaxTradeCycles           int              `yaml:"max_trade_cycles"`
	WaitBetweenTradesSeconds int              `yaml:"wait_between_trades_seconds"`
	ConsumeCycleOnError      bool             `yaml:"consume_cycle_on_error"`
	ExpiryGraceSeconds       int              `yaml:"expiry_grace_seconds"`
	ExitRules                []ExitRuleConfig `yaml:"exit_rules"`
}

type ExitRuleConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

// AnalysisConfig 对应信号聚合引擎的全部参数。
type AnalysisConfig struct {
	Mode                 string             `yaml:"mode"`
	SmallInterval        string             `yaml:"small_interval"`
	BigInterval          string             `yaml:"big_interval"`
	Lookback             int                `yaml:"lookback"`
	MinCandles           int                `yaml:"min_candles"`
	MinConfidence        float64            `yaml:"min_confidence"`
	TieBreak             string             `yaml:"tie_break"`
	BigTrendFilter       bool               `yaml:"big_trend_filter"`
	BarCloseDelaySeconds int                `yaml:"bar_close_delay_seconds"`
	Weights              map[string]float64 `yaml:"weights"`

	RSI        RSIConfig        `yaml:"rsi"`
	MACD       MACDConfig       `yaml:"macd"`
	Bollinger  BollingerConfig  `yaml:"bollinger"`
	Stochastic StochasticConfig `yaml:"stochastic"`
	EMA        EMAConfig        `yaml:"ema"`
	ATR        ATRConfig        `yaml:"atr"`
	Volume     VolumeConfig     `yaml:"volume"`
	Trend      TrendConfig      `yaml:"trend"`

	SupportResistance SupportResistanceConfig `yaml:"support_resistance"`
}

type RSIConfig struct {
	Period     int     `yaml:"period"`
	Oversold   float64 `yaml:"oversold"`
	Overbought float64 `yaml:"overbought"`
	Neutral    float64 `yaml:"neutral"`
}

type MACDConfig struct {
	FastPeriod   int     `yaml:"fast_period"`
	SlowPeriod   int     `yaml:"slow_period"`
	SignalPeriod int     `yaml:"signal_period"`
	Threshold    float64 `yaml:"threshold"`
}

type BollingerConfig struct {
	Period              int     `yaml:"period"`
	Deviations          float64 `yaml:"deviations"`
	SqueezeThreshold    float64 `yaml:"squeeze_threshold"`
	VolatilityThreshold float64 `yaml:"volatility_threshold"`
}

type StochasticConfig struct {
	Period     int     `yaml:"period"`
	Smoothing  int     `yaml:"smoothing"`
	Oversold   float64 `yaml:"oversold"`
	Overbought float64 `yaml:"overbought"`
}

type EMAConfig struct {
	FastPeriod int     `yaml:"fast_period"`
	SlowPeriod int     `yaml:"slow_period"`
	Threshold  float64 `yaml:"threshold"`
}

type ATRConfig struct {
	Period     int     `yaml:"period"`
	Multiplier float64 `yaml:"multiplier"`
}

type VolumeConfig struct {
	Period    int     `yaml:"period"`
	Threshold float64 `yaml:"threshold"`
}

type TrendConfig struct {
	Period    int     `yaml:"period"`
	Threshold float64 `yaml:"threshold"`
}

// SupportResistanceConfig 配置 analysis.mode=support_resistance 时使用的分析器。
type SupportResistanceConfig struct {
	Period            int     `yaml:"period"`
	StdDevMultiplier  float64 `yaml:"std_dev_multiplier"`
	StdDevMultiplier1 float64 `yaml:"std_dev_multiplier_1"`
	RSIBuyThreshold   float64 `yaml:"rsi_buy_threshold"`
	RSISellThreshold  float64 `yaml:"rsi_sell_threshold"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
