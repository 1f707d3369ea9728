package binance

import (
	"strings"
	"time"
)

type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
	// RateLimitPerSecond 为 0 时不限速。
	RateLimitPerSecond float64
	ProxyURL           string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	if out.RateLimitPerSecond < 0 {
		out.RateLimitPerSecond = 0
	}
	out.ProxyURL = strings.TrimSpace(out.ProxyURL)
	return out
}
