package market

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Timeframes 是一次分析所需的小周期与大周期 K 线。
type Timeframes struct {
	Small     []Candle
	Big       []Candle
	FetchedIn time.Duration
}

// TimeframeRequest 描述双周期拉取参数。
type TimeframeRequest struct {
	Symbol        string
	SmallInterval string
	BigInterval   string
	Limit         int
}

// FetchTimeframes 并发拉取两个周期，全部返回后才进入分析；任一失败即整体失败。
func FetchTimeframes(ctx context.Context, src Source, req TimeframeRequest) (Timeframes, error) {
	if src == nil {
		return Timeframes{}, fmt.Errorf("market source is nil")
	}
	start := time.Now()
	var out Timeframes
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		candles, err := src.FetchHistory(gctx, req.Symbol, req.SmallInterval, req.Limit)
		if err != nil {
			return fmt.Errorf("fetch %s %s: %w", req.Symbol, req.SmallInterval, err)
		}
		if err := EnsureChronological(candles); err != nil {
			return fmt.Errorf("%s %s: %w", req.Symbol, req.SmallInterval, err)
		}
		out.Small = candles
		return nil
	})
	group.Go(func() error {
		candles, err := src.FetchHistory(gctx, req.Symbol, req.BigInterval, req.Limit)
		if err != nil {
			return fmt.Errorf("fetch %s %s: %w", req.Symbol, req.BigInterval, err)
		}
		if err := EnsureChronological(candles); err != nil {
			return fmt.Errorf("%s %s: %w", req.Symbol, req.BigInterval, err)
		}
		out.Big = candles
		return nil
	})
	if err := group.Wait(); err != nil {
		return Timeframes{}, err
	}
	out.FetchedIn = time.Since(start)
	return out, nil
}
