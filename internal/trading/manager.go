package trading

import (
	"context"
	"fmt"
	"time"

	"optiontrader/internal/logger"
)

// ManagerConfig 是生命周期管理器的不可变参数。
type ManagerConfig struct {
	InstrumentID        int64
	Amount              float64
	ConsumeCycleOnError bool
}

// Manager 是订单生命周期状态机：Idle → Placing → Monitoring → {Closed, Error} → Idle | Done。
// 只允许一个逻辑协程驱动同一个 Manager。
type Manager struct {
	cfg       ManagerConfig
	broker    Broker
	monitor   *PositionMonitor
	state     *TradingState
	observers []Observer
	now       func() time.Time
}

func NewManager(cfg ManagerConfig, broker Broker, monitor *PositionMonitor, state *TradingState, observers ...Observer) *Manager {
	return &Manager{
		cfg:       cfg,
		broker:    broker,
		monitor:   monitor,
		state:     state,
		observers: observers,
		now:       time.Now,
	}
}

func (m *Manager) State() *TradingState { return m.state }

// HandleSignal 按配置金额下单并监控。
func (m *Manager) HandleSignal(ctx context.Context, dir Direction) (Position, bool, error) {
	return m.PlaceAndMonitor(ctx, dir, m.cfg.Amount)
}

// PlaceAndMonitor 提交一笔订单并阻塞到平仓。
//
// 返回值 placed=false 表示因已有在途订单或上一笔未到期而跳过。周期用尽时返回
// ErrMaxCyclesReached：下单前检测到时不会提交订单；平仓后刚好用尽时与该持仓一起返回。
func (m *Manager) PlaceAndMonitor(ctx context.Context, dir Direction, amount float64) (Position, bool, error) {
	if m.state.Done() {
		return Position{}, false, ErrMaxCyclesReached
	}
	now := m.now()
	if !m.state.tryBegin(now) {
		logger.Debugf("跳过信号 %s：已有在途订单或上一笔未到期", dir)
		return Position{}, false, nil
	}
	cycle := m.state.Cycle()

	inst, err := m.broker.ResolveTradableInstrument(ctx, m.cfg.InstrumentID, now)
	if err != nil {
		m.state.abort()
		err = fmt.Errorf("%w: instrument %d: %w", ErrInstrumentUnavailable, m.cfg.InstrumentID, err)
		m.notifyError(ctx, cycle, err)
		return Position{}, false, err
	}

	order, err := m.broker.SubmitOrder(ctx, inst, dir, amount)
	if err != nil {
		m.state.abort()
		err = fmt.Errorf("%w: %s %s %.2f: %w", ErrOrderSubmissionFailed, inst.Ticker, dir, amount, err)
		m.notifyError(ctx, cycle, err)
		return Position{}, false, err
	}
	m.state.placed(order)
	logger.Infof("周期 %d 下单成功 id=%s %s %s amount=%.2f expires=%s",
		cycle, order.ID, inst.Ticker, dir, amount, order.ExpiresAt.Format(time.RFC3339))
	for _, o := range m.observers {
		o.OnOrderPlaced(ctx, cycle, order)
	}

	pos, err := m.monitor.Monitor(ctx, order)
	if err != nil {
		m.state.fail(m.cfg.ConsumeCycleOnError)
		m.notifyError(ctx, cycle, err)
		return pos, true, err
	}

	completed := m.state.closeCycle(pos)
	for _, o := range m.observers {
		o.OnPositionClosed(ctx, completed, pos)
	}
	if m.state.Done() {
		return pos, true, ErrMaxCyclesReached
	}
	return pos, true, nil
}

func (m *Manager) notifyError(ctx context.Context, cycle int, err error) {
	logger.Errorf("周期 %d 交易失败: %v", cycle, err)
	for _, o := range m.observers {
		o.OnError(ctx, cycle, err)
	}
}
