package notifier

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Telegram 单条消息上限 4096 字符，留出时间戳与截断标记的余量。
const maxMessageRunes = 3800

// MessageSection 是消息中的一个段落。
type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage 是一条交易推送：标题行、代码块中的段落、时间戳。
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Timestamp time.Time
}

// RenderMarkdown 生成 Telegram Markdown 文本，超长时按字符截断。
func (m StructuredMessage) RenderMarkdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}
	b.WriteString(renderSections(m.Sections))
	if !m.Timestamp.IsZero() {
		b.WriteString("UTC " + m.Timestamp.UTC().Format("2006-01-02 15:04:05"))
	}
	return truncateRunes(strings.TrimSpace(b.String()), maxMessageRunes)
}

func renderSections(secs []MessageSection) string {
	var body strings.Builder
	for _, sec := range secs {
		lines := nonEmpty(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		if body.Len() > 0 {
			body.WriteString("\n")
		}
		if title := strings.TrimSpace(sec.Title); title != "" {
			body.WriteString(unfence(title) + "\n")
		}
		for _, line := range lines {
			body.WriteString("- " + unfence(line) + "\n")
		}
	}
	if body.Len() == 0 {
		return ""
	}
	return "```\n" + body.String() + "```\n\n"
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if text := strings.TrimSpace(line); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// unfence 防止正文里的 ``` 提前闭合代码块。
func unfence(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

// kv 生成 "key: value"；value 为空时返回空串，渲染时被丢弃。
func kv(key string, value any) string {
	text := strings.TrimSpace(fmt.Sprint(value))
	if text == "" {
		return ""
	}
	return key + ": " + text
}

// outcomeIcon 按盈亏选择图标。
func outcomeIcon(pnl float64) string {
	switch {
	case pnl > 0:
		return "✅"
	case pnl < 0:
		return "❌"
	default:
		return "➖"
	}
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
