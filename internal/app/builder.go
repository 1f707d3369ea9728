package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"optiontrader/internal/analysis"
	"optiontrader/internal/config"
	"optiontrader/internal/gateway/binance"
	"optiontrader/internal/gateway/notifier"
	"optiontrader/internal/gateway/paper"
	"optiontrader/internal/logger"
	"optiontrader/internal/market"
	"optiontrader/internal/metrics"
	"optiontrader/internal/pkg/circuit"
	"optiontrader/internal/scheduler"
	"optiontrader/internal/store/candlecache"
	"optiontrader/internal/store/journal"
	"optiontrader/internal/strategy/exit"
	"optiontrader/internal/trading"
	livehttp "optiontrader/internal/transport/http/live"

	"github.com/google/uuid"
)

// MarketStack 是行情侧的构建结果。
type MarketStack struct {
	Source market.Source
	Quotes paper.QuoteFunc
	Cache  *candlecache.Store
}

type AppBuilder struct {
	cfg   *config.Config
	runID string

	marketStackFn func(config.MarketConfig, config.AnalysisConfig) (*MarketStack, error)
	notifierFn    func(config.NotifyConfig) notifier.TextNotifier
}

type AppBuilderOption func(*AppBuilder)

// WithMarketStack 替换行情构建（测试使用内存行情）。
func WithMarketStack(fn func(config.MarketConfig, config.AnalysisConfig) (*MarketStack, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.marketStackFn = fn }
}

func WithNotifier(fn func(config.NotifyConfig) notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) { b.notifierFn = fn }
}

func WithRunID(id string) AppBuilderOption {
	return func(b *AppBuilder) { b.runID = id }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		runID:         uuid.NewString(),
		marketStackFn: buildMarketStack,
		notifierFn:    buildNotifier,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	tc := cfg.TradeConfig()
	logger.SetLevel(cfg.App.LogLevel)

	a := &App{cfg: cfg, runID: b.runID, symbol: tc.Symbol}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	ms, err := b.marketStackFn(cfg.Market, tc.Analysis)
	if err != nil {
		return nil, err
	}
	if ms.Cache != nil {
		a.closers = append(a.closers, ms.Cache.Close)
	}

	analyzer, err := newAnalyzer(tc.Analysis)
	if err != nil {
		return nil, err
	}
	chain, err := exit.DefaultRegistry().Build(tc.ExitRules)
	if err != nil {
		return nil, err
	}

	jr, err := journal.Open(cfg.Store.Path, b.runID)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	a.closers = append(a.closers, jr.Close)

	rec := metrics.New()
	a.notify = notifier.NewObserver(b.notifierFn(cfg.Notify), tc.Symbol)

	pc := paper.FromConfig(cfg.Broker)
	if len(pc.Instruments) == 0 {
		// 未列出标的时按 trading 段生成一个全天可交易的标的
		pc.Instruments = []config.InstrumentConfig{{ID: tc.InstrumentID, Ticker: tc.Symbol, Symbol: tc.Symbol}}
	}
	broker := paper.New(pc, ms.Quotes, ms.Source)
	a.broker = broker

	state := trading.NewTradingState(tc.MaxTradeCycles)
	monitor := trading.NewPositionMonitor(broker, chain, tc.ExpiryGrace)
	a.manager = trading.NewManager(trading.ManagerConfig{
		InstrumentID:        tc.InstrumentID,
		Amount:              tc.Amount,
		ConsumeCycleOnError: tc.ConsumeCycleOnError,
	}, broker, monitor, state, jr, rec, a.notify)

	interval, ok2 := scheduler.ParseIntervalDuration(tc.Analysis.SmallInterval)
	if !ok2 {
		return nil, fmt.Errorf("%w: analysis.small_interval %q", config.ErrConfigInvalid, tc.Analysis.SmallInterval)
	}
	breaker := circuit.New("market", 5, 2*time.Minute)
	breaker.SetStateChangeHandler(func(name string, _, to circuit.State) {
		rec.SetBreakerState(name, int(to))
	})
	a.controller = NewController(ControllerConfig{
		Symbol:            tc.Symbol,
		SmallInterval:     tc.Analysis.SmallInterval,
		BigInterval:       tc.Analysis.BigInterval,
		Lookback:          tc.Analysis.Lookback,
		WaitBetweenTrades: tc.WaitBetweenTrades,
	}, ms.Source, analyzer, a.manager, scheduler.NewBarClock(interval, tc.BarCloseDelay), breaker, jr, rec)
	a.controller.OnFetch(rec.ObserveFetch)

	if strings.TrimSpace(cfg.App.HTTPAddr) != "" {
		srv, err := livehttp.NewServer(livehttp.ServerConfig{
			Addr:     cfg.App.HTTPAddr,
			Symbol:   tc.Symbol,
			State:    state,
			Analysis: analyzer,
			Journal:  jr,
			Metrics:  rec.Handler(),
		})
		if err != nil {
			return nil, err
		}
		a.http = srv
	}

	a.Summary = &StartupSummary{
		RunID:      b.runID,
		Symbol:     tc.Symbol,
		Instrument: tc.InstrumentID,
		Source:     cfg.Market.Source,
		Mode:       tc.Analysis.Mode,
		Intervals:  []string{tc.Analysis.SmallInterval, tc.Analysis.BigInterval},
		MaxCycles:  tc.MaxTradeCycles,
		Amount:     tc.Amount,
		MinConf:    tc.Analysis.MinConfidence,
		ExitRules:  chain.Names(),
		HTTPAddr:   cfg.App.HTTPAddr,
	}
	ok = true
	return a, nil
}

// diagnosedAnalyzer 同时驱动控制循环与 /api/analysis/last。
type diagnosedAnalyzer interface {
	Analyzer
	LastResult() (analysis.AnalysisResult, bool)
}

// newAnalyzer 按 analysis.mode 选择加权指标引擎或支撑/阻力分析器。
func newAnalyzer(ac config.AnalysisConfig) (diagnosedAnalyzer, error) {
	if ac.Mode == config.AnalysisModeSupportResistance {
		sr, err := analysis.NewSupportResistanceAnalyzer(ac)
		if err != nil {
			return nil, err
		}
		return sr, nil
	}
	engine, err := analysis.NewEngine(ac)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

func buildMarketStack(mc config.MarketConfig, ac config.AnalysisConfig) (*MarketStack, error) {
	var cache *candlecache.Store
	if strings.TrimSpace(mc.CacheDir) != "" {
		c, err := candlecache.New(mc.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("open candle cache: %w", err)
		}
		cache = c
	}
	switch mc.Source {
	case "paper":
		if cache == nil {
			return nil, fmt.Errorf("%w: market.source=paper requires market.cache_dir", config.ErrConfigInvalid)
		}
		return &MarketStack{Source: cache, Quotes: lastCloseQuotes(cache, ac.SmallInterval), Cache: cache}, nil
	default:
		src, err := binance.New(binance.Config{
			RESTBaseURL:        mc.RESTBaseURL,
			HTTPTimeout:        time.Duration(mc.HTTPTimeoutSeconds) * time.Second,
			RateLimitPerSecond: mc.RateLimitPerSecond,
			ProxyURL:           mc.ProxyURL,
		})
		if err != nil {
			if cache != nil {
				_ = cache.Close()
			}
			return nil, err
		}
		ms := &MarketStack{Source: src, Quotes: src.LatestPrice}
		if cache != nil {
			ms.Source = market.NewCachedSource(src, cache)
			ms.Cache = cache
		}
		return ms, nil
	}
}

// lastCloseQuotes 以最近一根已收盘 K 线的收盘价作为报价。
func lastCloseQuotes(src market.Source, interval string) paper.QuoteFunc {
	return func(ctx context.Context, symbol string) (float64, error) {
		candles, err := src.FetchHistory(ctx, symbol, interval, 1)
		if err != nil {
			return 0, err
		}
		last, ok := market.Last(candles)
		if !ok {
			return 0, fmt.Errorf("no candles for %s %s", symbol, interval)
		}
		return last.Close, nil
	}
}

func buildNotifier(nc config.NotifyConfig) notifier.TextNotifier {
	if !nc.Telegram.Enabled {
		return notifier.Nop{}
	}
	return notifier.NewTelegram(nc.Telegram.BotToken, nc.Telegram.ChatID)
}
