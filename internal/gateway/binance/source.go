package binance

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	"optiontrader/internal/market"
	"optiontrader/internal/pkg/symbol"
	"optiontrader/internal/scheduler"
)

const maxHistoryLimit = 1500

// Source 基于 go-binance SDK 的 U 本位合约 K 线源，实现 market.Source。
type Source struct {
	cfg     Config
	client  *futures.Client
	limiter *rate.Limiter
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient

	limiter := rate.NewLimiter(rate.Inf, 1)
	if final.RateLimitPerSecond > 0 {
		burst := int(math.Ceil(final.RateLimitPerSecond))
		limiter = rate.NewLimiter(rate.Limit(final.RateLimitPerSecond), burst)
	}
	return &Source{cfg: final, client: client, limiter: limiter}, nil
}

// FetchHistory 返回已收盘的 K 线，最后一根未收盘的会被丢弃。
func (s *Source) FetchHistory(ctx context.Context, sym, interval string, limit int) ([]market.Candle, error) {
	out, dur, err := s.klines(ctx, sym, interval, limit)
	if err != nil {
		return nil, err
	}
	return scheduler.DropUnclosed(out, dur), nil
}

// LatestPrice 以 1m 当前 K 线的收盘价作为最新成交价。
func (s *Source) LatestPrice(ctx context.Context, sym string) (float64, error) {
	out, _, err := s.klines(ctx, sym, "1m", 1)
	if err != nil {
		return 0, err
	}
	last, ok := market.Last(out)
	if !ok || last.Close <= 0 {
		return 0, fmt.Errorf("no price for %s", sym)
	}
	return last.Close, nil
}

func (s *Source) klines(ctx context.Context, sym, interval string, limit int) ([]market.Candle, time.Duration, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	clean := symbol.ToBinance(sym)
	if clean == "" {
		return nil, 0, fmt.Errorf("symbol is required")
	}
	norm, err := scheduler.NormalizeInterval(interval)
	if err != nil {
		return nil, 0, err
	}
	dur, _ := scheduler.ParseIntervalDuration(norm)
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	kls, err := s.client.NewKlinesService().Symbol(clean).Interval(norm).Limit(limit).Do(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("binance klines %s %s: %w", clean, norm, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	return out, dur, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
