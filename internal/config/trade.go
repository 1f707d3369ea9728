package config

import "time"

// TradeConfig 是运行期不可变的交易参数，由 Config 派生一次后注入各组件。
type TradeConfig struct {
	Symbol              string
	InstrumentID        int64
	Amount              float64
	MaxTradeCycles      int
	WaitBetweenTrades   time.Duration
	ExpiryGrace         time.Duration
	ConsumeCycleOnError bool
	ExitRules           []ExitRuleConfig
	Analysis            AnalysisConfig
	BarCloseDelay       time.Duration
}

func (c *Config) TradeConfig() TradeConfig {
	rules := make([]ExitRuleConfig, len(c.Trading.ExitRules))
	for i, r := range c.Trading.ExitRules {
		params := make(map[string]any, len(r.Params))
		for k, v := range r.Params {
			params[k] = v
		}
		rules[i] = ExitRuleConfig{Name: r.Name, Params: params}
	}
	an := c.Analysis
	an.Weights = make(map[string]float64, len(c.Analysis.Weights))
	for k, v := range c.Analysis.Weights {
		an.Weights[k] = v
	}
	return TradeConfig{
		Symbol:              c.Trading.Symbol,
		InstrumentID:        c.Trading.InstrumentID,
		Amount:              c.Trading.Amount,
		MaxTradeCycles:      c.Trading.MaxTradeCycles,
		WaitBetweenTrades:   time.Duration(c.Trading.WaitBetweenTradesSeconds) * time.Second,
		ExpiryGrace:         time.Duration(c.Trading.ExpiryGraceSeconds) * time.Second,
		ConsumeCycleOnError: c.Trading.ConsumeCycleOnError,
		ExitRules:           rules,
		Analysis:            an,
		BarCloseDelay:       time.Duration(c.Analysis.BarCloseDelaySeconds) * time.Second,
	}
}
