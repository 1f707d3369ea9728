// Package journal 用 gorm + SQLite 记录每次运行的分析与交易。
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"optiontrader/internal/analysis"
	"optiontrader/internal/logger"
	"optiontrader/internal/trading"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var errNotInitialized = errors.New("journal 未初始化")

// Journal 落库分析快照与交易记录，同时作为 trading.Observer 挂到生命周期管理器上。
type Journal struct {
	db    *gorm.DB
	runID string
	now   func() time.Time

	mu      sync.Mutex
	pending datatypes.JSON
}

var _ trading.Observer = (*Journal)(nil)

// Open 打开（或创建）path 处的数据库；runID 区分不同进程的记录。
func Open(path, runID string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: 数据库路径不能为空")
	}
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("journal: run id 不能为空")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&TradeRecord{}, &AnalysisRecord{}, &EventRecord{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// HTTP 读与交易协程写并行，SQLite 下保持少量连接
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Journal{db: db, runID: runID, now: time.Now}, nil
}

func (j *Journal) RunID() string { return j.runID }

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NoteAnalysis 保存一次分析结果，并把它作为下一笔订单的分析快照。
func (j *Journal) NoteAnalysis(ctx context.Context, res analysis.AnalysisResult) error {
	if j == nil || j.db == nil {
		return errNotInitialized
	}
	indicators, err := json.Marshal(res.Indicators)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(res)
	if err != nil {
		return err
	}
	rec := AnalysisRecord{
		RunID:          j.runID,
		BarTime:        res.BarTime,
		Direction:      string(res.Direction),
		Confidence:     res.Confidence,
		SignalStrength: res.SignalStrength,
		ShouldTrade:    res.ShouldTrade,
		Reason:         res.Reason,
		Indicators:     datatypes.JSON(indicators),
		CreatedAtMS:    j.now().UnixMilli(),
	}
	if err := j.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return err
	}
	if res.ShouldTrade {
		j.mu.Lock()
		j.pending = datatypes.JSON(snapshot)
		j.mu.Unlock()
	}
	return nil
}

func (j *Journal) takePending() datatypes.JSON {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := j.pending
	j.pending = nil
	if len(out) == 0 {
		return datatypes.JSON("{}")
	}
	return out
}

func (j *Journal) OnOrderPlaced(ctx context.Context, cycle int, order trading.Order) {
	if j == nil || j.db == nil {
		return
	}
	now := j.now().UnixMilli()
	rec := TradeRecord{
		RunID:        j.runID,
		Cycle:        cycle,
		OrderID:      order.ID,
		InstrumentID: order.InstrumentID,
		Direction:    string(order.Direction),
		Invest:       order.Amount,
		Status:       string(trading.StatusOpen),
		Analysis:     j.takePending(),
		OpenedAt:     timeToMillis(order.OpenedAt),
		ExpiresAt:    timeToMillis(order.ExpiresAt),
		CreatedAtMS:  now,
		UpdatedAtMS:  now,
	}
	err := j.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"cycle", "direction", "invest", "opened_at", "expires_at", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		logger.Warnf("journal: 记录下单失败 order=%s: %v", order.ID, err)
	}
}

func (j *Journal) OnPositionClosed(ctx context.Context, cycle int, pos trading.Position) {
	if j == nil || j.db == nil {
		return
	}
	now := j.now().UnixMilli()
	rec := TradeRecord{
		RunID:        j.runID,
		Cycle:        cycle,
		OrderID:      pos.ExternalID,
		InstrumentID: pos.InstrumentID,
		Direction:    string(pos.Direction),
		Invest:       pos.Invest,
		OpenQuote:    pos.OpenQuote,
		CloseQuote:   pos.CloseQuote,
		PnL:          pos.PnL,
		PnLNet:       pos.PnLNet,
		Status:       string(pos.Status),
		Analysis:     datatypes.JSON("{}"),
		OpenedAt:     timeToMillis(pos.OpenedAt),
		ClosedAt:     timeToMillis(pos.ClosedAt),
		CreatedAtMS:  now,
		UpdatedAtMS:  now,
	}
	err := j.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"open_quote", "close_quote", "pnl", "pnl_net", "status", "closed_at", "updated_at",
			}),
		}).
		Create(&rec).Error
	if err != nil {
		logger.Warnf("journal: 记录平仓失败 order=%s: %v", pos.ExternalID, err)
	}
}

func (j *Journal) OnError(ctx context.Context, cycle int, err error) {
	if j == nil || j.db == nil || err == nil {
		return
	}
	rec := EventRecord{
		RunID:       j.runID,
		Cycle:       cycle,
		Kind:        errorKind(err),
		Message:     err.Error(),
		CreatedAtMS: j.now().UnixMilli(),
	}
	if werr := j.db.WithContext(ctx).Create(&rec).Error; werr != nil {
		logger.Warnf("journal: 记录错误事件失败: %v", werr)
	}
}

// ListTrades 返回某次运行的全部交易，按周期升序；runID 为空时使用当前运行。
func (j *Journal) ListTrades(ctx context.Context, runID string) ([]TradeRecord, error) {
	if j == nil || j.db == nil {
		return nil, errNotInitialized
	}
	if strings.TrimSpace(runID) == "" {
		runID = j.runID
	}
	var out []TradeRecord
	err := j.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("cycle ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListAnalyses 返回最近 limit 条分析快照，按时间倒序。
func (j *Journal) ListAnalyses(ctx context.Context, runID string, limit int) ([]AnalysisRecord, error) {
	if j == nil || j.db == nil {
		return nil, errNotInitialized
	}
	if strings.TrimSpace(runID) == "" {
		runID = j.runID
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []AnalysisRecord
	err := j.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (j *Journal) ListEvents(ctx context.Context, runID string) ([]EventRecord, error) {
	if j == nil || j.db == nil {
		return nil, errNotInitialized
	}
	if strings.TrimSpace(runID) == "" {
		runID = j.runID
	}
	var out []EventRecord
	err := j.db.WithContext(ctx).Where("run_id = ?", runID).Order("id ASC").Find(&out).Error
	return out, err
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, trading.ErrInstrumentNotFound):
		return "instrument_not_found"
	case errors.Is(err, trading.ErrInstrumentUnavailable):
		return "instrument_unavailable"
	case errors.Is(err, trading.ErrOrderSubmissionFailed):
		return "order_submission_failed"
	case errors.Is(err, trading.ErrMonitoring):
		return "monitoring"
	default:
		return "other"
	}
}

func timeToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
