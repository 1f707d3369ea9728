package livehttp

import (
	"context"

	"optiontrader/internal/analysis"
	"optiontrader/internal/store/journal"
	"optiontrader/internal/trading"
)

// StateProvider 返回交易状态的只读快照。
type StateProvider interface {
	Snapshot() trading.StateSnapshot
}

// AnalysisProvider 返回最近一次聚合结果。
type AnalysisProvider interface {
	LastResult() (analysis.AnalysisResult, bool)
}

// JournalReader 是落库记录的查询面。
type JournalReader interface {
	RunID() string
	ListTrades(ctx context.Context, runID string) ([]journal.TradeRecord, error)
	ListAnalyses(ctx context.Context, runID string, limit int) ([]journal.AnalysisRecord, error)
}

type stateResponse struct {
	RunID    string                `json:"run_id,omitempty"`
	Symbol   string                `json:"symbol,omitempty"`
	Snapshot trading.StateSnapshot `json:"state"`
}
