package journal

import (
	"gorm.io/datatypes"
)

// TradeRecord 是一笔订单从下单到平仓的完整记录，order_id 唯一。
type TradeRecord struct {
	ID           int64          `gorm:"column:id;primaryKey" json:"id"`
	RunID        string         `gorm:"column:run_id;index" json:"run_id"`
	Cycle        int            `gorm:"column:cycle" json:"cycle"`
	OrderID      string         `gorm:"column:order_id;uniqueIndex" json:"order_id"`
	InstrumentID int64          `gorm:"column:instrument_id" json:"instrument_id"`
	Direction    string         `gorm:"column:direction" json:"direction"`
	Invest       float64        `gorm:"column:invest" json:"invest"`
	OpenQuote    float64        `gorm:"column:open_quote" json:"open_quote"`
	CloseQuote   float64        `gorm:"column:close_quote" json:"close_quote"`
	PnL          float64        `gorm:"column:pnl" json:"pnl"`
	PnLNet       float64        `gorm:"column:pnl_net" json:"pnl_net"`
	Status       string         `gorm:"column:status" json:"status"`
	Analysis     datatypes.JSON `gorm:"column:analysis_json;type:TEXT" json:"analysis,omitempty"`
	OpenedAt     int64          `gorm:"column:opened_at" json:"opened_at"`
	ExpiresAt    int64          `gorm:"column:expires_at" json:"expires_at"`
	ClosedAt     int64          `gorm:"column:closed_at" json:"closed_at"`
	CreatedAtMS  int64          `gorm:"column:created_at" json:"created_at"`
	UpdatedAtMS  int64          `gorm:"column:updated_at" json:"updated_at"`
}

func (TradeRecord) TableName() string { return "trades" }

// AnalysisRecord 是一次信号聚合的快照。
type AnalysisRecord struct {
	ID             int64          `gorm:"column:id;primaryKey" json:"id"`
	RunID          string         `gorm:"column:run_id;index:idx_analysis_run,priority:1" json:"run_id"`
	BarTime        int64          `gorm:"column:bar_time;index:idx_analysis_run,priority:2" json:"bar_time"`
	Direction      string         `gorm:"column:direction" json:"direction"`
	Confidence     float64        `gorm:"column:confidence" json:"confidence"`
	SignalStrength float64        `gorm:"column:signal_strength" json:"signal_strength"`
	ShouldTrade    bool           `gorm:"column:should_trade" json:"should_trade"`
	Reason         string         `gorm:"column:reason" json:"reason"`
	Indicators     datatypes.JSON `gorm:"column:indicators_json;type:TEXT" json:"indicators,omitempty"`
	CreatedAtMS    int64          `gorm:"column:created_at" json:"created_at"`
}

func (AnalysisRecord) TableName() string { return "analyses" }

// EventRecord 记录生命周期中的错误，便于事后排查。
type EventRecord struct {
	ID          int64  `gorm:"column:id;primaryKey" json:"id"`
	RunID       string `gorm:"column:run_id;index" json:"run_id"`
	Cycle       int    `gorm:"column:cycle" json:"cycle"`
	Kind        string `gorm:"column:kind" json:"kind"`
	Message     string `gorm:"column:message" json:"message"`
	CreatedAtMS int64  `gorm:"column:created_at" json:"created_at"`
}

func (EventRecord) TableName() string { return "events" }
