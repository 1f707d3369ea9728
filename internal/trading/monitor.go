package trading

import (
	"context"
	"errors"
	"time"

	"optiontrader/internal/logger"
)

var (
	errFeedClosed     = errors.New("position feed closed")
	errExpiryExceeded = errors.New("no close reported after expiry grace")
)

// PositionMonitor 跟踪单笔订单直至平仓。
//
// 每笔订单一条订阅，所有退出路径都会取消订阅并停止计时器；
// 平仓只会被解析一次，之后同一订单的重复通知被忽略。
type PositionMonitor struct {
	broker Broker
	exit   ExitPolicy
	grace  time.Duration
	now    func() time.Time
}

// NewPositionMonitor 创建监控器；grace<=0 时不设置到期兜底计时器。
func NewPositionMonitor(broker Broker, exit ExitPolicy, grace time.Duration) *PositionMonitor {
	return &PositionMonitor{broker: broker, exit: exit, grace: grace, now: time.Now}
}

// Monitor 阻塞直到订单平仓，或返回 *MonitorError（errors.Is ErrMonitoring）。
func (m *PositionMonitor) Monitor(ctx context.Context, order Order) (Position, error) {
	updates, unsubscribe, err := m.broker.SubscribePositionUpdates(ctx)
	if err != nil {
		return Position{}, &MonitorError{OrderID: order.ID, Op: "subscribe", Err: err}
	}
	defer unsubscribe()

	var timeout <-chan time.Time
	if m.grace > 0 && !order.ExpiresAt.IsZero() {
		timer := time.NewTimer(order.ExpiresAt.Sub(m.now()) + m.grace)
		defer timer.Stop()
		timeout = timer.C
	}

	var (
		last       Position
		sellIssued bool
	)
	for {
		select {
		case <-ctx.Done():
			return last, &MonitorError{OrderID: order.ID, Op: "wait", Err: ctx.Err()}
		case <-timeout:
			return last, &MonitorError{OrderID: order.ID, Op: "expiry", Err: errExpiryExceeded}
		case upd, ok := <-updates:
			if !ok {
				return last, &MonitorError{OrderID: order.ID, Op: "feed", Err: errFeedClosed}
			}
			if upd.Err != nil {
				return last, &MonitorError{OrderID: order.ID, Op: "feed", Err: upd.Err}
			}
			pos := upd.Position
			if pos.ExternalID != order.ID {
				continue
			}
			last = pos
			if pos.Closed() {
				logger.Infof("订单 %s 已平仓 pnl=%.4f", order.ID, pos.PnL)
				return pos, nil
			}
			if sellIssued || m.exit == nil {
				continue
			}
			sell, rule := m.exit.ShouldSell(pos)
			if !sell {
				continue
			}
			logger.Infof("订单 %s 触发提前卖出 rule=%s pnl=%.4f invest=%.4f", order.ID, rule, pos.PnL, pos.Invest)
			if err := m.broker.SellPosition(ctx, pos.ExternalID); err != nil {
				return last, &MonitorError{OrderID: order.ID, Op: "sell", Err: err}
			}
			sellIssued = true
		}
	}
}
