// Package symbol 在券商 ticker、内部写法与 Binance 交易对之间转换。
package symbol

import (
	"strings"
)

// Symbol 是拆分后的交易对，例如 EUR/USDT。
type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// 长的在前：USDT 必须先于 USD 匹配。
var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "TUSD", "USD", "EUR", "JPY", "GBP", "BTC", "ETH", "BNB"}

// 二元期权券商常见的 ticker 后缀，例如 EURUSD-OTC、EURUSD_otc。
var tickerSuffixes = []string{"-OTC", "_OTC", "-OP", ".OTC"}

func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}
	return Symbol{}
}

func Normalize(s string) string {
	return Parse(s).Internal()
}

// ToBinance 转为 Binance 合约格式（去掉斜杠）；无法识别报价币时原样大写返回。
func ToBinance(s string) string {
	if b := Parse(s).Binance(); b != "" {
		return b
	}
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "/", "")
}

// FromTicker 把券商 ticker 转成行情交易对：去掉 OTC 后缀，法币 USD 报价映射到 USDT。
// 无法识别时返回空串。
func FromTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	for _, suffix := range tickerSuffixes {
		t = strings.TrimSuffix(t, suffix)
	}
	sym := Parse(t)
	if sym.Base == "" {
		return ""
	}
	if sym.Quote == "USD" {
		sym.Quote = "USDT"
	}
	return sym.Binance()
}
