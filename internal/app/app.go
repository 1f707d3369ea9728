package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"optiontrader/internal/config"
	"optiontrader/internal/gateway/notifier"
	"optiontrader/internal/gateway/paper"
	"optiontrader/internal/logger"
	"optiontrader/internal/trading"
	livehttp "optiontrader/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：HTTP、模拟券商估值循环与交易控制器。
type App struct {
	cfg        *config.Config
	runID      string
	symbol     string
	controller *Controller
	manager    *trading.Manager
	broker     *paper.Broker
	http       *livehttp.Server
	notify     *notifier.Observer
	closers    []func() error

	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

func (a *App) RunID() string { return a.runID }

// State 返回交易状态快照。
func (a *App) State() trading.StateSnapshot { return a.manager.State().Snapshot() }

// Run 阻塞到交易周期用尽或 ctx 取消；两者都返回 nil。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.controller == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()
	if a.Summary != nil {
		a.Summary.Print()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, gctx := errgroup.WithContext(runCtx)

	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(gctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	if a.broker != nil {
		group.Go(func() error { return a.broker.Run(gctx) })
	}
	group.Go(func() error {
		// 控制器结束即整体结束
		defer cancel()
		return a.controller.Run(gctx)
	})

	err := group.Wait()
	a.report()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) report() {
	snap := a.manager.State().Snapshot()
	logger.InfoBlock(FormatRunSummary(a.runID, a.symbol, snap))
	if a.notify != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		a.notify.SendSummary(ctx, snap)
	}
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warnf("关闭资源失败: %v", err)
		}
	}
	a.closers = nil
}
