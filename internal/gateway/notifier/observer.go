package notifier

import (
	"context"
	"fmt"
	"time"

	"optiontrader/internal/logger"
	"optiontrader/internal/trading"
)

// Observer 把生命周期事件转成推送；发送失败只记日志，不影响交易流程。
type Observer struct {
	sender TextNotifier
	symbol string
	now    func() time.Time
}

var _ trading.Observer = (*Observer)(nil)

func NewObserver(sender TextNotifier, symbol string) *Observer {
	if sender == nil {
		sender = Nop{}
	}
	return &Observer{sender: sender, symbol: symbol, now: time.Now}
}

func (o *Observer) OnOrderPlaced(ctx context.Context, cycle int, order trading.Order) {
	msg := StructuredMessage{
		Icon:  "📥",
		Title: fmt.Sprintf("下单 %s %s", o.symbol, order.Direction),
		Sections: []MessageSection{{
			Title: "订单",
			Lines: []string{
				kv("cycle", cycle),
				kv("order", order.ID),
				kv("amount", money(order.Amount)),
				kv("expires", order.ExpiresAt.UTC().Format(time.RFC3339)),
			},
		}},
		Timestamp: o.now(),
	}
	o.send(ctx, msg)
}

func (o *Observer) OnPositionClosed(ctx context.Context, cycle int, pos trading.Position) {
	msg := StructuredMessage{
		Icon:  outcomeIcon(pos.PnL),
		Title: fmt.Sprintf("平仓 %s %s", o.symbol, pos.Direction),
		Sections: []MessageSection{{
			Title: "结果",
			Lines: []string{
				kv("cycle", cycle),
				kv("order", pos.ExternalID),
				kv("invest", money(pos.Invest)),
				kv("quote", fmt.Sprintf("%g -> %g", pos.OpenQuote, pos.CloseQuote)),
				kv("pnl", money(pos.PnL)),
			},
		}},
		Timestamp: o.now(),
	}
	o.send(ctx, msg)
}

func (o *Observer) OnError(ctx context.Context, cycle int, err error) {
	if err == nil {
		return
	}
	o.send(ctx, StructuredMessage{
		Icon:      "⚠️",
		Title:     "交易异常",
		Sections:  []MessageSection{{Lines: []string{kv("cycle", cycle), kv("error", err)}}},
		Timestamp: o.now(),
	})
}

// SendSummary 推送运行结束时的统计。
func (o *Observer) SendSummary(ctx context.Context, snap trading.StateSnapshot) {
	o.send(ctx, SummaryMessage(o.symbol, snap, o.now()))
}

func (o *Observer) send(ctx context.Context, msg StructuredMessage) {
	if err := o.sender.SendText(ctx, msg.RenderMarkdown()); err != nil {
		logger.Warnf("通知发送失败: %v", err)
	}
}

// SummaryMessage 汇总一次运行的成交统计。
func SummaryMessage(symbol string, snap trading.StateSnapshot, ts time.Time) StructuredMessage {
	st := snap.Stats
	return StructuredMessage{
		Icon:  "📊",
		Title: "运行汇总 " + symbol,
		Sections: []MessageSection{
			{
				Title: "周期",
				Lines: []string{
					kv("cycles", fmt.Sprintf("%d/%d", len(snap.Closed), snap.MaxCycles)),
					kv("errors", snap.Errors),
				},
			},
			{
				Title: "成交",
				Lines: []string{
					kv("trades", st.TotalTrades),
					kv("wins", st.Wins),
					kv("draws", st.Draws),
					kv("losses", st.Losses),
					kv("win_rate", st.WinRate.StringFixed(2)+"%"),
					kv("pnl", st.TotalPnL.String()),
					kv("invest", st.TotalInvest.String()),
				},
			},
		},
		Timestamp: ts,
	}
}
