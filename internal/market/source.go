package market

import "context"

// Source 提供历史 K 线（已收盘）。
type Source interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// SourceFunc 便于在测试与组合中把函数当作 Source 使用。
type SourceFunc func(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

func (f SourceFunc) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	return f(ctx, symbol, interval, limit)
}
