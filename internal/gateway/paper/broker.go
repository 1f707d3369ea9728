// Package paper 实现一个模拟的二元期权经纪商，用于空跑和测试。
package paper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"optiontrader/internal/config"
	"optiontrader/internal/logger"
	"optiontrader/internal/market"
	"optiontrader/internal/scheduler"
	"optiontrader/internal/trading"
)

// ErrInsufficientBalance 表示模拟账户余额不足。
var ErrInsufficientBalance = errors.New("insufficient balance")

// QuoteFunc 返回标的的最新价格。
type QuoteFunc func(ctx context.Context, symbol string) (float64, error)

type Config struct {
	PayoutPct      float64
	Expiry         time.Duration
	QuoteInterval  time.Duration
	InitialBalance float64
	Instruments    []config.InstrumentConfig
}

// FromConfig 把 broker 配置段转换为 paper.Config。
func FromConfig(cfg config.BrokerConfig) Config {
	return Config{
		PayoutPct:      cfg.PayoutPct,
		Expiry:         time.Duration(cfg.ExpirySeconds) * time.Second,
		QuoteInterval:  time.Duration(cfg.QuoteIntervalMS) * time.Millisecond,
		InitialBalance: cfg.InitialBalance,
		Instruments:    cfg.Instruments,
	}
}

type position struct {
	pos    trading.Position
	symbol string
	expiry time.Time
}

type subscriber struct {
	ch   chan trading.Update
	done chan struct{}
}

// Broker 以 QuoteFunc 驱动持仓估值，到期按赔率结算：赢得 invest×payout，输掉 invest，平价为 0。
// 提前卖出按已过去时间比例结算当前估值。
type Broker struct {
	cfg     Config
	quotes  QuoteFunc
	candles market.Source

	mu        sync.Mutex
	balance   decimal.Decimal
	positions map[string]*position
	subs      map[int]*subscriber
	nextSub   int

	now func() time.Time
}

func New(cfg Config, quotes QuoteFunc, candles market.Source) *Broker {
	if cfg.PayoutPct <= 0 {
		cfg.PayoutPct = 85
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = time.Minute
	}
	if cfg.QuoteInterval <= 0 {
		cfg.QuoteInterval = time.Second
	}
	return &Broker{
		cfg:       cfg,
		quotes:    quotes,
		candles:   candles,
		balance:   decimal.NewFromFloat(cfg.InitialBalance),
		positions: make(map[string]*position),
		subs:      make(map[int]*subscriber),
		now:       time.Now,
	}
}

func (b *Broker) Balance() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance
}

func (b *Broker) instrument(id int64) (config.InstrumentConfig, bool) {
	for _, inst := range b.cfg.Instruments {
		if inst.ID == id {
			return inst, true
		}
	}
	return config.InstrumentConfig{}, false
}

func (b *Broker) FetchCandles(ctx context.Context, instrumentID int64, intervalSeconds int, from, to time.Time) ([]market.Candle, error) {
	inst, ok := b.instrument(instrumentID)
	if !ok {
		return nil, fmt.Errorf("%w: id=%d", trading.ErrInstrumentNotFound, instrumentID)
	}
	if b.candles == nil {
		return nil, fmt.Errorf("paper broker has no candle source")
	}
	interval := time.Duration(intervalSeconds) * time.Second
	if interval <= 0 || !to.After(from) {
		return nil, fmt.Errorf("invalid candle window %s..%s every %ds", from, to, intervalSeconds)
	}
	limit := int(to.Sub(from)/interval) + 1
	all, err := b.candles.FetchHistory(ctx, inst.Symbol, scheduler.FormatInterval(interval), limit)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(all))
	for _, c := range all {
		if c.OpenTime >= from.UnixMilli() && c.OpenTime <= to.UnixMilli() {
			out = append(out, c)
		}
	}
	return out, nil
}

// ResolveTradableInstrument 检查标的的可交易时间窗（UTC HH:MM，可跨零点）。
func (b *Broker) ResolveTradableInstrument(ctx context.Context, instrumentID int64, now time.Time) (trading.Instrument, error) {
	inst, ok := b.instrument(instrumentID)
	if !ok {
		return trading.Instrument{}, fmt.Errorf("%w: id=%d", trading.ErrInstrumentNotFound, instrumentID)
	}
	if !withinWindow(now.UTC(), inst.OpenFrom, inst.OpenUntil) {
		return trading.Instrument{}, fmt.Errorf("%w: %s closed at %s", trading.ErrInstrumentNotFound, inst.Ticker, now.UTC().Format("15:04"))
	}
	return trading.Instrument{ID: inst.ID, Ticker: inst.Ticker, Symbol: inst.Symbol}, nil
}

func withinWindow(now time.Time, from, until string) bool {
	from, until = strings.TrimSpace(from), strings.TrimSpace(until)
	if from == "" || until == "" {
		return true
	}
	start, err1 := time.Parse("15:04", from)
	end, err2 := time.Parse("15:04", until)
	if err1 != nil || err2 != nil {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	s := start.Hour()*60 + start.Minute()
	e := end.Hour()*60 + end.Minute()
	if s <= e {
		return minute >= s && minute < e
	}
	return minute >= s || minute < e
}

func (b *Broker) SubmitOrder(ctx context.Context, inst trading.Instrument, dir trading.Direction, amount float64) (trading.Order, error) {
	if amount <= 0 {
		return trading.Order{}, fmt.Errorf("amount must be > 0")
	}
	if dir != trading.DirectionCall && dir != trading.DirectionPut {
		return trading.Order{}, fmt.Errorf("unknown direction %q", dir)
	}
	quote, err := b.quotes(ctx, inst.Symbol)
	if err != nil {
		return trading.Order{}, fmt.Errorf("quote %s: %w", inst.Symbol, err)
	}
	now := b.now()
	invest := decimal.NewFromFloat(amount)

	b.mu.Lock()
	if b.balance.LessThan(invest) {
		b.mu.Unlock()
		return trading.Order{}, fmt.Errorf("%w: balance %s < %s", ErrInsufficientBalance, b.balance, invest)
	}
	b.balance = b.balance.Sub(invest)
	order := trading.Order{
		ID:           uuid.NewString(),
		InstrumentID: inst.ID,
		Direction:    dir,
		Amount:       amount,
		OpenedAt:     now,
		ExpiresAt:    now.Add(b.cfg.Expiry),
	}
	p := &position{
		symbol: inst.Symbol,
		expiry: order.ExpiresAt,
		pos: trading.Position{
			ExternalID:   order.ID,
			InstrumentID: inst.ID,
			Direction:    dir,
			Invest:       amount,
			OpenQuote:    quote,
			CloseQuote:   quote,
			Status:       trading.StatusOpen,
			OpenedAt:     now,
		},
	}
	b.positions[order.ID] = p
	snapshot := p.pos
	b.mu.Unlock()

	logger.Debugf("paper: 开仓 %s %s %s invest=%.2f quote=%.6f", order.ID, inst.Ticker, dir, amount, quote)
	b.publish(trading.Update{Position: snapshot})
	return order, nil
}

// SubscribePositionUpdates 返回的 channel 不会被关闭；调用 unsubscribe 后不再投递。
func (b *Broker) SubscribePositionUpdates(ctx context.Context) (<-chan trading.Update, func(), error) {
	sub := &subscriber{ch: make(chan trading.Update, 64), done: make(chan struct{})}
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
	return sub.ch, unsubscribe, nil
}

// SellPosition 按当前估值提前平仓。
func (b *Broker) SellPosition(ctx context.Context, positionID string) error {
	b.mu.Lock()
	p, ok := b.positions[positionID]
	if !ok || p.pos.Status != trading.StatusOpen {
		b.mu.Unlock()
		return fmt.Errorf("position %s is not open", positionID)
	}
	p.pos.Status = trading.StatusClosing
	closing := p.pos
	symbol := p.symbol
	b.mu.Unlock()
	b.publish(trading.Update{Position: closing})

	quote, err := b.quotes(ctx, symbol)
	if err != nil {
		b.mu.Lock()
		p.pos.Status = trading.StatusOpen
		b.mu.Unlock()
		return fmt.Errorf("quote %s: %w", symbol, err)
	}
	now := b.now()
	b.mu.Lock()
	closed := b.settle(p, quote, now, false)
	b.mu.Unlock()
	b.publish(trading.Update{Position: closed})
	return nil
}

// Run 按 QuoteInterval 刷新估值并结算到期持仓，直到 ctx 结束。
func (b *Broker) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.QuoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}

// Tick 对所有未平仓持仓执行一次估值。
func (b *Broker) Tick(ctx context.Context) {
	b.mu.Lock()
	open := make([]*position, 0, len(b.positions))
	for _, p := range b.positions {
		if p.pos.Status == trading.StatusOpen {
			open = append(open, p)
		}
	}
	b.mu.Unlock()
	sort.Slice(open, func(i, j int) bool { return open[i].pos.OpenedAt.Before(open[j].pos.OpenedAt) })

	for _, p := range open {
		quote, err := b.quotes(ctx, p.symbol)
		if err != nil {
			logger.Warnf("paper: quote %s failed: %v", p.symbol, err)
			continue
		}
		now := b.now()
		b.mu.Lock()
		if p.pos.Status != trading.StatusOpen {
			b.mu.Unlock()
			continue
		}
		var upd trading.Position
		if !now.Before(p.expiry) {
			upd = b.settle(p, quote, now, true)
		} else {
			p.pos.CloseQuote = quote
			p.pos.PnL = b.markToMarket(p, quote, now).InexactFloat64()
			p.pos.PnLNet = p.pos.PnL
			upd = p.pos
		}
		b.mu.Unlock()
		b.publish(trading.Update{Position: upd})
	}
}

// outcome 返回 +1 盈利，-1 亏损，0 平价。
func outcome(dir trading.Direction, open, current float64) int {
	switch {
	case current == open:
		return 0
	case (current > open) == (dir == trading.DirectionCall):
		return 1
	default:
		return -1
	}
}

func (b *Broker) fullPnL(p *position, quote float64) decimal.Decimal {
	invest := decimal.NewFromFloat(p.pos.Invest)
	switch outcome(p.pos.Direction, p.pos.OpenQuote, quote) {
	case 1:
		return invest.Mul(decimal.NewFromFloat(b.cfg.PayoutPct)).Div(decimal.NewFromInt(100))
	case -1:
		return invest.Neg()
	default:
		return decimal.Zero
	}
}

func (b *Broker) markToMarket(p *position, quote float64, now time.Time) decimal.Decimal {
	total := p.expiry.Sub(p.pos.OpenedAt)
	if total <= 0 {
		return b.fullPnL(p, quote)
	}
	elapsed := now.Sub(p.pos.OpenedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > total {
		elapsed = total
	}
	frac := decimal.NewFromInt(int64(elapsed)).Div(decimal.NewFromInt(int64(total)))
	return b.fullPnL(p, quote).Mul(frac).Round(8)
}

// settle 必须在持有 b.mu 时调用。
func (b *Broker) settle(p *position, quote float64, now time.Time, expired bool) trading.Position {
	pnl := b.fullPnL(p, quote)
	if !expired {
		pnl = b.markToMarket(p, quote, now)
	}
	p.pos.CloseQuote = quote
	p.pos.PnL = pnl.InexactFloat64()
	p.pos.PnLNet = p.pos.PnL
	p.pos.Status = trading.StatusClosed
	p.pos.ClosedAt = now
	b.balance = b.balance.Add(decimal.NewFromFloat(p.pos.Invest)).Add(pnl)
	logger.Debugf("paper: 平仓 %s pnl=%s expired=%v balance=%s", p.pos.ExternalID, pnl, expired, b.balance)
	return p.pos
}

func (b *Broker) publish(upd trading.Update) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()
	for _, s := range subs {
		select {
		case s.ch <- upd:
		case <-s.done:
		}
	}
}

var _ trading.Broker = (*Broker)(nil)
