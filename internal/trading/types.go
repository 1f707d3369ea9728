package trading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"optiontrader/internal/market"
)

// Direction 是二元期权的买入方向。
type Direction string

const (
	DirectionCall Direction = "call"
	DirectionPut  Direction = "put"
)

// ParseDirection 接受 call/put（大小写不敏感），以及 up/down 别名。
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "up":
		return DirectionCall, nil
	case "put", "down":
		return DirectionPut, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Instrument 是经纪商侧当前可交易的标的句柄。
type Instrument struct {
	ID     int64  `json:"id"`
	Ticker string `json:"ticker"`
	Symbol string `json:"symbol"`
}

// Order 是一次已被接受的下单。
type Order struct {
	ID           string    `json:"id"`
	InstrumentID int64     `json:"instrument_id"`
	Direction    Direction `json:"direction"`
	Amount       float64   `json:"amount"`
	OpenedAt     time.Time `json:"opened_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type PositionStatus string

const (
	StatusOpen    PositionStatus = "open"
	StatusClosing PositionStatus = "closing"
	StatusClosed  PositionStatus = "closed"
)

// Position 是经纪商推送的持仓快照；ExternalID 与 Order.ID 相同。
type Position struct {
	ExternalID   string         `json:"external_id"`
	InstrumentID int64          `json:"instrument_id"`
	Direction    Direction      `json:"direction"`
	Invest       float64        `json:"invest"`
	OpenQuote    float64        `json:"open_quote"`
	CloseQuote   float64        `json:"close_quote"`
	PnL          float64        `json:"pnl"`
	PnLNet       float64        `json:"pnl_net"`
	Status       PositionStatus `json:"status"`
	OpenedAt     time.Time      `json:"opened_at"`
	ClosedAt     time.Time      `json:"closed_at,omitempty"`
}

func (p Position) Closed() bool { return p.Status == StatusClosed }

// Update 是订阅流中的一条消息；Err 非空表示推送通道出错。
type Update struct {
	Position Position
	Err      error
}

// Broker 是下单、持仓推送与行情的外部协作方。
type Broker interface {
	FetchCandles(ctx context.Context, instrumentID int64, intervalSeconds int, from, to time.Time) ([]market.Candle, error)
	// ResolveTradableInstrument 返回 now 时刻可以购买的标的，找不到时返回 ErrInstrumentNotFound。
	ResolveTradableInstrument(ctx context.Context, instrumentID int64, now time.Time) (Instrument, error)
	SubmitOrder(ctx context.Context, inst Instrument, dir Direction, amount float64) (Order, error)
	// SubscribePositionUpdates 建立一条持仓推送订阅；调用方必须调用 unsubscribe 释放。
	SubscribePositionUpdates(ctx context.Context) (<-chan Update, func(), error)
	SellPosition(ctx context.Context, positionID string) error
}

// ExitPolicy 在每次持仓更新时判断是否提前卖出；实现必须无副作用。
type ExitPolicy interface {
	ShouldSell(pos Position) (bool, string)
}

// Observer 接收生命周期事件，用于落库、指标与通知。回调在交易协程内同步执行。
type Observer interface {
	OnOrderPlaced(ctx context.Context, cycle int, order Order)
	OnPositionClosed(ctx context.Context, cycle int, pos Position)
	OnError(ctx context.Context, cycle int, err error)
}
