package scheduler

import (
	"context"
	"time"

	"optiontrader/internal/logger"
)

// BarClock 计算小周期 K 线的收盘时刻，控制器在收盘后 Offset 再拉取数据。
type BarClock struct {
	Interval time.Duration
	Offset   time.Duration

	nowFn func() time.Time
}

func NewBarClock(interval, offset time.Duration) *BarClock {
	if offset < 0 {
		logger.Warnf("BarClock: negative offset=%s, clamp to 0", offset)
		offset = 0
	}
	return &BarClock{Interval: interval, Offset: offset, nowFn: time.Now}
}

// NextBarClose 返回 now 之后下一根 K 线的收盘时刻与唤醒时刻（收盘 + Offset）。
func NextBarClose(now time.Time, interval, offset time.Duration) (nextClose, wakeAt time.Time) {
	now = now.UTC()
	if interval <= 0 {
		return now, now.Add(offset)
	}
	nextClose = now.Truncate(interval).Add(interval)
	return nextClose, nextClose.Add(offset)
}

// UntilNextBar 返回距离下一次唤醒的等待时长。
func (c *BarClock) UntilNextBar() time.Duration {
	now := c.nowFn().UTC()
	nextClose, wakeAt := NextBarClose(now, c.Interval, c.Offset)
	wait := wakeAt.Sub(now)
	logger.Infof("BarClock: 距离K线收盘=%s (收盘=%s) 将在=%s 执行下一轮",
		nextClose.Sub(now).Truncate(time.Second),
		nextClose.Format(time.RFC3339),
		wakeAt.Format(time.RFC3339),
	)
	return wait
}

// WaitNextBar 阻塞到下一次唤醒；ctx 取消时返回 false。
func (c *BarClock) WaitNextBar(ctx context.Context) bool {
	return Wait(ctx, c.UntilNextBar())
}

// Wait sleeps for d unless ctx is done first. d<=0 returns immediately (false if ctx is done).
func Wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
