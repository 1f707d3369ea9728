package trading

import "github.com/shopspring/decimal"

// Stats 汇总已平仓记录：pnl>0 计为盈利，=0 为平局，<0 为亏损。
type Stats struct {
	TotalTrades int             `json:"total_trades"`
	Wins        int             `json:"wins"`
	Draws       int             `json:"draws"`
	Losses      int             `json:"losses"`
	TotalPnL    decimal.Decimal `json:"total_pnl"`
	TotalInvest decimal.Decimal `json:"total_invest"`
	WinRate     decimal.Decimal `json:"win_rate_pct"`
}

func ComputeStats(positions []Position) Stats {
	st := Stats{TotalPnL: decimal.Zero, TotalInvest: decimal.Zero, WinRate: decimal.Zero}
	for _, p := range positions {
		pnl := decimal.NewFromFloat(p.PnL)
		st.TotalTrades++
		st.TotalPnL = st.TotalPnL.Add(pnl)
		st.TotalInvest = st.TotalInvest.Add(decimal.NewFromFloat(p.Invest))
		switch pnl.Sign() {
		case 1:
			st.Wins++
		case 0:
			st.Draws++
		default:
			st.Losses++
		}
	}
	if st.TotalTrades > 0 {
		st.WinRate = decimal.NewFromInt(int64(st.Wins)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(st.TotalTrades))).
			Round(2)
	}
	return st
}
