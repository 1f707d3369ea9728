package scheduler

import (
	"time"

	"optiontrader/internal/market"
)

const DefaultKlineGrace = 10 * time.Second

// DropUnclosed drops the last element if it is still in-progress.
// Exchange style: the last kline may be the current, not-yet-closed candle.
//
// Candle times are expected to be in milliseconds since epoch.
func DropUnclosed(klines []market.Candle, interval time.Duration) []market.Candle {
	return dropUnclosedAt(klines, interval, time.Now().UTC(), DefaultKlineGrace)
}

func dropUnclosedAt(klines []market.Candle, interval time.Duration, now time.Time, grace time.Duration) []market.Candle {
	if len(klines) == 0 || interval <= 0 {
		return klines
	}
	if grace < 0 {
		grace = 0
	}
	last := klines[len(klines)-1]
	if last.OpenTime <= 0 {
		return klines
	}
	cutoffMs := last.OpenTime + interval.Milliseconds() + grace.Milliseconds()
	if now.UnixMilli() < cutoffMs {
		return klines[:len(klines)-1]
	}
	return klines
}
