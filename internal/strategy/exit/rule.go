// Package exit 定义持仓监控阶段的提前退出规则。规则是纯函数，真正的卖出由 trading 包执行。
package exit

import (
	"github.com/shopspring/decimal"

	"optiontrader/internal/trading"
)

// Decision 是单条规则的判定结果。
type Decision int

const (
	Hold Decision = iota
	Sell
)

func (d Decision) String() string {
	if d == Sell {
		return "sell"
	}
	return "hold"
}

// Rule 对一次持仓快照给出 Hold/Sell，不能有副作用。
type Rule interface {
	Name() string
	Evaluate(pos trading.Position) Decision
}

var hundred = decimal.NewFromInt(100)

// ProfitAbovePct 在浮盈达到投入金额的 Pct% 时卖出。
type ProfitAbovePct struct {
	Pct decimal.Decimal
}

func (r ProfitAbovePct) Name() string { return RuleProfitAbovePct }

func (r ProfitAbovePct) Evaluate(pos trading.Position) Decision {
	invest := decimal.NewFromFloat(pos.Invest)
	pnl := decimal.NewFromFloat(pos.PnL)
	if !invest.IsPositive() || !pnl.IsPositive() {
		return Hold
	}
	if pnl.GreaterThanOrEqual(invest.Mul(r.Pct).Div(hundred)) {
		return Sell
	}
	return Hold
}

// LossBelowPct 在浮亏达到投入金额的 Pct% 时止损卖出。
type LossBelowPct struct {
	Pct decimal.Decimal
}

func (r LossBelowPct) Name() string { return RuleLossBelowPct }

func (r LossBelowPct) Evaluate(pos trading.Position) Decision {
	invest := decimal.NewFromFloat(pos.Invest)
	pnl := decimal.NewFromFloat(pos.PnL)
	if !invest.IsPositive() || !pnl.IsNegative() {
		return Hold
	}
	if pnl.LessThanOrEqual(invest.Mul(r.Pct).Div(hundred).Neg()) {
		return Sell
	}
	return Hold
}

// Chain 按顺序执行规则，返回第一个 Sell。
type Chain struct {
	rules []Rule
}

func NewChain(rules ...Rule) *Chain {
	return &Chain{rules: rules}
}

func (c *Chain) Evaluate(pos trading.Position) (Decision, string) {
	if c == nil {
		return Hold, ""
	}
	for _, r := range c.rules {
		if r.Evaluate(pos) == Sell {
			return Sell, r.Name()
		}
	}
	return Hold, ""
}

// ShouldSell 让 Chain 满足 trading.ExitPolicy。
func (c *Chain) ShouldSell(pos trading.Position) (bool, string) {
	d, name := c.Evaluate(pos)
	return d == Sell, name
}

func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r.Name())
	}
	return out
}
