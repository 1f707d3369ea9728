package trading

import (
	"errors"
	"fmt"
)

var (
	// ErrInstrumentNotFound 由 Broker 返回，表示当前没有可购买的标的。
	ErrInstrumentNotFound = errors.New("instrument not found")

	ErrInstrumentUnavailable = errors.New("instrument unavailable")
	ErrOrderSubmissionFailed = errors.New("order submission failed")
	ErrMonitoring            = errors.New("position monitoring failed")

	// ErrMaxCyclesReached 是正常的结束信号，不是故障。
	ErrMaxCyclesReached = errors.New("max trade cycles reached")
)

// MonitorError 描述持仓监控阶段的失败；资源已在返回前释放。
type MonitorError struct {
	OrderID string
	Op      string
	Err     error
}

func (e *MonitorError) Error() string {
	return fmt.Sprintf("monitor order %s: %s: %v", e.OrderID, e.Op, e.Err)
}

func (e *MonitorError) Unwrap() []error {
	return []error{ErrMonitoring, e.Err}
}

// IsTerminal 判断 err 是否为正常结束信号。
func IsTerminal(err error) bool {
	return errors.Is(err, ErrMaxCyclesReached)
}
