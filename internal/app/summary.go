package app

import (
	"fmt"
	"strings"

	"optiontrader/internal/logger"
	"optiontrader/internal/trading"
)

// StartupSummary 是启动时打印的配置摘要。
type StartupSummary struct {
	RunID      string
	Symbol     string
	Instrument int64
	Source     string
	Mode       string
	Intervals  []string
	MaxCycles  int
	Amount     float64
	MinConf    float64
	ExitRules  []string
	HTTPAddr   string
}

func (s *StartupSummary) Print() {
	logger.InfoBlock(s.String())
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString("启动配置摘要 (STARTUP SUMMARY)\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "  运行 ID: %s\n", s.RunID)
	fmt.Fprintf(&b, "  标的: %s (instrument=%d)\n", s.Symbol, s.Instrument)
	fmt.Fprintf(&b, "  行情来源: %s\n", s.Source)
	fmt.Fprintf(&b, "  分析模式: %s  分析周期: %s\n", s.Mode, formatList(s.Intervals))
	fmt.Fprintf(&b, "  最大周期: %d  单笔金额: %.2f  最低置信度: %.2f\n", s.MaxCycles, s.Amount, s.MinConf)
	fmt.Fprintf(&b, "  出场规则: %s\n", formatList(s.ExitRules))
	if s.HTTPAddr != "" {
		fmt.Fprintf(&b, "  HTTP: %s\n", s.HTTPAddr)
	}
	b.WriteString(strings.Repeat("=", 60))
	return b.String()
}

// FormatRunSummary 生成运行结束时的统计文本。
func FormatRunSummary(runID, symbol string, snap trading.StateSnapshot) string {
	st := snap.Stats
	lines := []string{
		strings.Repeat("=", 60),
		fmt.Sprintf("运行汇总 (RUN SUMMARY) %s %s", symbol, runID),
		strings.Repeat("=", 60),
		fmt.Sprintf("  完成周期: %d/%d  错误: %d", len(snap.Closed), snap.MaxCycles, snap.Errors),
		fmt.Sprintf("  成交: %d  盈利: %d  平局: %d  亏损: %d", st.TotalTrades, st.Wins, st.Draws, st.Losses),
		fmt.Sprintf("  胜率: %s%%  总盈亏: %s  总投入: %s", st.WinRate.StringFixed(2), st.TotalPnL.String(), st.TotalInvest.String()),
	}
	for i, p := range snap.Closed {
		lines = append(lines, fmt.Sprintf("  #%d %s %s invest=%.2f pnl=%.2f", i+1, p.ExternalID, p.Direction, p.Invest, p.PnL))
	}
	lines = append(lines, strings.Repeat("=", 60))
	return strings.Join(lines, "\n")
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
