package exit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optiontrader/internal/config"
	"optiontrader/internal/trading"
)

func pos(invest, pnl float64) trading.Position {
	return trading.Position{ExternalID: "o-1", Invest: invest, PnL: pnl, Status: trading.StatusOpen}
}

func TestProfitAbovePct(t *testing.T) {
	rule := ProfitAbovePct{Pct: decimal.NewFromInt(25)}
	cases := []struct {
		name   string
		invest float64
		pnl    float64
		want   Decision
	}{
		{"above threshold", 100, 30, Sell},
		{"below threshold", 100, 20, Hold},
		{"exactly at threshold", 100, 25, Sell},
		{"loss", 100, -50, Hold},
		{"zero invest", 0, 30, Hold},
		{"float noise", 0.3, 0.075, Sell},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rule.Evaluate(pos(tc.invest, tc.pnl)))
		})
	}
}

func TestLossBelowPct(t *testing.T) {
	rule := LossBelowPct{Pct: decimal.NewFromInt(50)}
	assert.Equal(t, Sell, rule.Evaluate(pos(100, -50)))
	assert.Equal(t, Hold, rule.Evaluate(pos(100, -49.99)))
	assert.Equal(t, Hold, rule.Evaluate(pos(100, 80)))
}

func TestChainReturnsFirstSell(t *testing.T) {
	chain := NewChain(
		LossBelowPct{Pct: decimal.NewFromInt(50)},
		ProfitAbovePct{Pct: decimal.NewFromInt(25)},
	)
	d, name := chain.Evaluate(pos(100, 30))
	assert.Equal(t, Sell, d)
	assert.Equal(t, RuleProfitAbovePct, name)

	sell, _ := chain.ShouldSell(pos(100, 10))
	assert.False(t, sell)

	var nilChain *Chain
	d, _ = nilChain.Evaluate(pos(100, 30))
	assert.Equal(t, Hold, d)
	assert.Equal(t, "sell", Sell.String())
}

func TestRegistryBuild(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []string{RuleLossBelowPct, RuleProfitAbovePct}, reg.Names())

	chain, err := reg.Build([]config.ExitRuleConfig{
		{Name: RuleProfitAbovePct, Params: map[string]any{"pct": 25}},
		{Name: RuleLossBelowPct, Params: map[string]any{"pct": "80"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{RuleProfitAbovePct, RuleLossBelowPct}, chain.Names())
	sell, name := chain.ShouldSell(pos(100, 30))
	assert.True(t, sell)
	assert.Equal(t, RuleProfitAbovePct, name)

	empty, err := reg.Build(nil)
	require.NoError(t, err)
	sell, _ = empty.ShouldSell(pos(100, 1000))
	assert.False(t, sell)
}

func TestRegistryRejectsBadSpecs(t *testing.T) {
	reg := DefaultRegistry()
	cases := map[string]config.ExitRuleConfig{
		"unknown rule":  {Name: "trailing_stop", Params: map[string]any{"pct": 1}},
		"missing pct":   {Name: RuleProfitAbovePct},
		"negative pct":  {Name: RuleProfitAbovePct, Params: map[string]any{"pct": -5}},
		"wrong type":    {Name: RuleProfitAbovePct, Params: map[string]any{"pct": "lots"}},
		"unknown param": {Name: RuleProfitAbovePct, Params: map[string]any{"pct": 10, "ratio": 1}},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Build([]config.ExitRuleConfig{spec})
			assert.ErrorIs(t, err, config.ErrConfigInvalid)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := DefaultRegistry()
	err := reg.Register(Template{ID: RuleProfitAbovePct, Factory: func(map[string]any) (Rule, error) { return nil, nil }})
	assert.Error(t, err)
	assert.Error(t, reg.Register(Template{ID: "x"}))
}
