package trading

import (
	"sync"
	"time"
)

// Phase 是生命周期状态机的当前阶段。
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePlacing    Phase = "placing"
	PhaseMonitoring Phase = "monitoring"
	PhaseDone       Phase = "done"
)

// TradingState 记录周期计数、在途订单与已平仓记录。
// 同一时刻最多一笔在途订单：由 hasActiveOrder 与上一笔订单的到期时间共同保证。
type TradingState struct {
	mu sync.RWMutex

	maxCycles      int
	cycle          int
	phase          Phase
	hasActiveOrder bool
	activeOrder    Order
	lastExpiry     time.Time
	closed         []Position
	errors         int
}

func NewTradingState(maxCycles int) *TradingState {
	if maxCycles < 1 {
		maxCycles = 1
	}
	return &TradingState{maxCycles: maxCycles, cycle: 1, phase: PhaseIdle}
}

// StateSnapshot 是只读快照，供 HTTP 与汇总使用。
type StateSnapshot struct {
	Cycle          int        `json:"cycle"`
	MaxCycles      int        `json:"max_cycles"`
	Phase          Phase      `json:"phase"`
	HasActiveOrder bool       `json:"has_active_order"`
	ActiveOrder    *Order     `json:"active_order,omitempty"`
	LastExpiry     time.Time  `json:"last_expiry,omitempty"`
	Errors         int        `json:"errors"`
	Closed         []Position `json:"closed"`
	Stats          Stats      `json:"stats"`
}

func (s *TradingState) Snapshot() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := StateSnapshot{
		Cycle:          s.cycle,
		MaxCycles:      s.maxCycles,
		Phase:          s.phase,
		HasActiveOrder: s.hasActiveOrder,
		LastExpiry:     s.lastExpiry,
		Errors:         s.errors,
		Closed:         append([]Position(nil), s.closed...),
	}
	if s.hasActiveOrder && s.activeOrder.ID != "" {
		o := s.activeOrder
		snap.ActiveOrder = &o
	}
	snap.Stats = ComputeStats(snap.Closed)
	return snap
}

// Cycle 返回当前周期（从 1 开始）。
func (s *TradingState) Cycle() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycle
}

// Done 表示周期已用尽。
func (s *TradingState) Done() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycle > s.maxCycles
}

// tryBegin 在空闲且上一笔订单已到期时占用下单槽位。
func (s *TradingState) tryBegin(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasActiveOrder || s.cycle > s.maxCycles {
		return false
	}
	if !s.lastExpiry.IsZero() && now.Before(s.lastExpiry) {
		return false
	}
	s.hasActiveOrder = true
	s.phase = PhasePlacing
	return true
}

func (s *TradingState) placed(order Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeOrder = order
	s.lastExpiry = order.ExpiresAt
	s.phase = PhaseMonitoring
}

// abort 释放槽位但不消耗周期（订单未成交）。
func (s *TradingState) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()
}

// fail 在监控失败后释放槽位，consume 为 true 时计入一个周期。
func (s *TradingState) fail(consume bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
	completed := s.cycle
	if consume {
		s.cycle++
	}
	s.release()
	return completed
}

// closeCycle 记录平仓并推进周期，返回刚完成的周期号。
func (s *TradingState) closeCycle(pos Position) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, pos)
	completed := s.cycle
	s.cycle++
	s.release()
	return completed
}

func (s *TradingState) release() {
	s.hasActiveOrder = false
	s.activeOrder = Order{}
	if s.cycle > s.maxCycles {
		s.phase = PhaseDone
	} else {
		s.phase = PhaseIdle
	}
}
