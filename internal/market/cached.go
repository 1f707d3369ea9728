package market

import (
	"context"

	"optiontrader/internal/logger"
)

// CandleWriter 持久化拉取到的 K 线（见 store/candlecache）。
type CandleWriter interface {
	InsertCandles(ctx context.Context, symbol, interval string, candles []Candle) (int, error)
}

// CachedSource 在转发请求的同时把结果写入缓存；写入失败只记日志。
type CachedSource struct {
	next  Source
	cache CandleWriter
}

func NewCachedSource(next Source, cache CandleWriter) Source {
	if cache == nil {
		return next
	}
	return &CachedSource{next: next, cache: cache}
}

func (s *CachedSource) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	candles, err := s.next.FetchHistory(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	if len(candles) > 0 {
		if _, werr := s.cache.InsertCandles(ctx, symbol, interval, candles); werr != nil {
			logger.Warnf("写入 K 线缓存失败 %s %s: %v", symbol, interval, werr)
		}
	}
	return candles, nil
}
