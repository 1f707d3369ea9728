package market

import (
	"errors"
	"fmt"
)

// ErrNotChronological 表示 K 线序列的 open_time 出现倒序。
var ErrNotChronological = errors.New("candles are not in chronological order")

// Candle 是一根已收盘的 OHLCV K 线，获取后不可修改。
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// EnsureChronological 校验 open_time 非递减；序列不会被重排。
func EnsureChronological(candles []Candle) error {
	for i := 1; i < len(candles); i++ {
		if candles[i].OpenTime < candles[i-1].OpenTime {
			return fmt.Errorf("%w: index %d open_time %d < %d",
				ErrNotChronological, i, candles[i].OpenTime, candles[i-1].OpenTime)
		}
	}
	return nil
}

func Opens(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Open
	}
	return out
}

func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes 返回成交量序列；全部为 0 时返回 nil（数据源不提供成交量）。
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	hasVolume := false
	for i, c := range candles {
		out[i] = c.Volume
		if c.Volume != 0 {
			hasVolume = true
		}
	}
	if !hasVolume {
		return nil
	}
	return out
}

// Last 返回最后一根 K 线。
func Last(candles []Candle) (Candle, bool) {
	if len(candles) == 0 {
		return Candle{}, false
	}
	return candles[len(candles)-1], true
}
