package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"optiontrader/internal/analysis"
	"optiontrader/internal/logger"
	"optiontrader/internal/market"
	"optiontrader/internal/pkg/circuit"
	"optiontrader/internal/scheduler"
	"optiontrader/internal/trading"
)

// Analyzer 对两个周期的 K 线给出交易决策。
type Analyzer interface {
	Analyze(small, big []market.Candle) analysis.AnalysisResult
}

// SignalHandler 执行一次完整的下单→监控→平仓。
type SignalHandler interface {
	HandleSignal(ctx context.Context, dir trading.Direction) (trading.Position, bool, error)
}

// AnalysisSink 接收每一次分析结果（落库、指标）。
type AnalysisSink interface {
	NoteAnalysis(ctx context.Context, res analysis.AnalysisResult) error
}

type ControllerConfig struct {
	Symbol            string
	SmallInterval     string
	BigInterval       string
	Lookback          int
	WaitBetweenTrades time.Duration
}

// Controller 驱动 拉取→分析→下单 的主循环，直到周期用尽或 ctx 取消。
type Controller struct {
	cfg     ControllerConfig
	source  market.Source
	engine  Analyzer
	trader  SignalHandler
	breaker *circuit.Breaker
	sinks   []AnalysisSink
	fetchFn func(time.Duration, error)

	waitFor     func(ctx context.Context, d time.Duration) bool
	waitNextBar func(ctx context.Context) bool
}

func NewController(cfg ControllerConfig, source market.Source, engine Analyzer, trader SignalHandler, clock *scheduler.BarClock, breaker *circuit.Breaker, sinks ...AnalysisSink) *Controller {
	if breaker == nil {
		breaker = circuit.New("market", 5, 2*time.Minute)
	}
	c := &Controller{
		cfg:     cfg,
		source:  source,
		engine:  engine,
		trader:  trader,
		breaker: breaker,
		sinks:   sinks,
		waitFor: scheduler.Wait,
	}
	c.waitNextBar = func(ctx context.Context) bool {
		if clock == nil {
			return scheduler.Wait(ctx, time.Minute)
		}
		return clock.WaitNextBar(ctx)
	}
	return c
}

// OnFetch 注册拉取耗时回调（指标）。
func (c *Controller) OnFetch(fn func(time.Duration, error)) { c.fetchFn = fn }

// Run 阻塞直到周期用尽（返回 nil）或 ctx 取消（返回 nil）。
func (c *Controller) Run(ctx context.Context) error {
	logger.Infof("控制器启动 symbol=%s small=%s big=%s", c.cfg.Symbol, c.cfg.SmallInterval, c.cfg.BigInterval)
	for {
		if ctx.Err() != nil {
			logger.Infof("控制器退出: %v", ctx.Err())
			return nil
		}
		next, err := c.safeStep(ctx)
		if trading.IsTerminal(err) {
			logger.Infof("已达到最大交易周期，停止交易")
			return nil
		}
		if !next(ctx) {
			logger.Infof("控制器退出: %v", ctx.Err())
			return nil
		}
	}
}

// safeStep 捕获单轮中的 panic，记录后按下一根 K 线重试。
func (c *Controller) safeStep(ctx context.Context) (next func(context.Context) bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("控制器单轮 panic: %v", r)
			next, err = c.waitNextBar, nil
		}
	}()
	return c.step(ctx)
}

// step 执行一轮，返回下一轮之前的等待方式。
func (c *Controller) step(ctx context.Context) (func(context.Context) bool, error) {
	tf, err := c.fetch(ctx)
	if err != nil {
		if errors.Is(err, circuit.ErrOpen) {
			retry := c.breaker.RetryAfter()
			logger.Warnf("行情熔断中，%s 后重试", retry.Truncate(time.Second))
			return c.sleep(retry + time.Second), nil
		}
		logger.Warnf("拉取行情失败: %v", err)
		return c.waitNextBar, nil
	}

	res := c.engine.Analyze(tf.Small, tf.Big)
	for _, sink := range c.sinks {
		if serr := sink.NoteAnalysis(ctx, res); serr != nil {
			logger.Warnf("记录分析结果失败: %v", serr)
		}
	}
	if !res.ShouldTrade {
		logger.Infof("无交易信号 direction=%s confidence=%.3f reason=%s", res.Direction, res.Confidence, res.Reason)
		return c.waitNextBar, nil
	}

	dir, err := toTradingDirection(res.Direction)
	if err != nil {
		logger.Errorf("%v", err)
		return c.waitNextBar, nil
	}
	logger.Infof("交易信号 %s confidence=%.3f up=%d down=%d", dir, res.Confidence, res.UpCount, res.DownCount)

	pos, placed, err := c.trader.HandleSignal(ctx, dir)
	switch {
	case errors.Is(err, trading.ErrMaxCyclesReached):
		if placed {
			logger.Infof("最后一笔平仓 id=%s pnl=%.2f", pos.ExternalID, pos.PnL)
		}
		return nil, err
	case err != nil:
		// 单笔失败不终止循环，状态已由 Manager 回滚
		logger.Warnf("本轮交易失败: %v", err)
		return c.sleep(c.cfg.WaitBetweenTrades), nil
	case !placed:
		return c.waitNextBar, nil
	}
	logger.Infof("平仓 id=%s %s pnl=%.2f，等待 %s 后继续", pos.ExternalID, pos.Direction, pos.PnL, c.cfg.WaitBetweenTrades)
	return c.sleep(c.cfg.WaitBetweenTrades), nil
}

func (c *Controller) fetch(ctx context.Context) (market.Timeframes, error) {
	var tf market.Timeframes
	start := time.Now()
	err := c.breaker.Do(func() error {
		var ferr error
		tf, ferr = market.FetchTimeframes(ctx, c.source, market.TimeframeRequest{
			Symbol:        c.cfg.Symbol,
			SmallInterval: c.cfg.SmallInterval,
			BigInterval:   c.cfg.BigInterval,
			Limit:         c.cfg.Lookback,
		})
		return ferr
	})
	if c.fetchFn != nil && !errors.Is(err, circuit.ErrOpen) {
		c.fetchFn(time.Since(start), err)
	}
	return tf, err
}

func (c *Controller) sleep(d time.Duration) func(context.Context) bool {
	return func(ctx context.Context) bool { return c.waitFor(ctx, d) }
}

func toTradingDirection(dir analysis.Direction) (trading.Direction, error) {
	d, err := trading.ParseDirection(string(dir))
	if err != nil {
		return "", fmt.Errorf("analysis direction %q is not tradable: %w", dir, err)
	}
	return d, nil
}
