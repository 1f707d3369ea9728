package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultTelegramAPI = "https://api.telegram.org"
	telegramAttempts   = 3
)

// Telegram 通过 Bot API 推送消息到指定群/频道。
type Telegram struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client
	// Backoff 返回第 attempt 次失败后的等待时间。
	Backoff func(attempt int) time.Duration
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  defaultTelegramAPI,
		Client:   &http.Client{Timeout: 15 * time.Second},
		Backoff:  func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
	}
}

// SendText 发送 Markdown 文本，最多尝试 3 次；HTTP 200 但 ok=false 同样视为失败。
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if strings.TrimSpace(t.BotToken) == "" || strings.TrimSpace(t.ChatID) == "" {
		return fmt.Errorf("telegram 配置不完整")
	}
	base := strings.TrimRight(t.BaseURL, "/")
	if base == "" {
		base = defaultTelegramAPI
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", base, t.BotToken)
	body, err := json.Marshal(map[string]any{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= telegramAttempts; attempt++ {
		lastErr = t.post(ctx, url, body)
		if lastErr == nil {
			return nil
		}
		if attempt == telegramAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.backoff(attempt)):
		}
	}
	return lastErr
}

func (t *Telegram) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("telegram status=%d: %s", resp.StatusCode, gjson.GetBytes(raw, "description").String())
	}
	if !gjson.GetBytes(raw, "ok").Bool() {
		return fmt.Errorf("telegram rejected: %s", gjson.GetBytes(raw, "description").String())
	}
	return nil
}

func (t *Telegram) backoff(attempt int) time.Duration {
	if t.Backoff == nil {
		return time.Duration(attempt) * time.Second
	}
	return t.Backoff(attempt)
}
