package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
trading:
  instrument_id: 76
  symbol: EURUSDT
`

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", minimalYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "binance", cfg.Market.Source)
	assert.Equal(t, defaultMaxTradeCycles, cfg.Trading.MaxTradeCycles)
	assert.Equal(t, "15m", cfg.Analysis.SmallInterval)
	assert.Equal(t, "1h", cfg.Analysis.BigInterval)
	assert.Equal(t, TieBreakNone, cfg.Analysis.TieBreak)
	assert.InDelta(t, 0.8, cfg.Analysis.MinConfidence, 1e-9)
	assert.Equal(t, 14, cfg.Analysis.RSI.Period)
	assert.Equal(t, 26, cfg.Analysis.MACD.SlowPeriod)
	assert.Len(t, cfg.Analysis.Weights, len(IndicatorNames))
	require.Len(t, cfg.Trading.ExitRules, 1)
	assert.Equal(t, "profit_above_pct", cfg.Trading.ExitRules[0].Name)
	assert.Equal(t, float64(25), cfg.Trading.ExitRules[0].Params["pct"])
}

func TestLoadKeepsExplicitZero(t *testing.T) {
	body := minimalYAML + `
analysis:
  min_confidence: 0
`
	cfg, err := Load(writeConfig(t, t.TempDir(), "config.yaml", body))
	require.NoError(t, err)
	assert.Zero(t, cfg.Analysis.MinConfidence)
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
trading:
  instrument_id: 1
  symbol: BTCUSDT
  amount: 5
analysis:
  small_interval: 5m
`)
	path := writeConfig(t, dir, "config.yaml", `
include:
  - base.yaml
trading:
  instrument_id: 2
  symbol: ETHUSDT
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cfg.Trading.InstrumentID)
	assert.Equal(t, "ETHUSDT", cfg.Trading.Symbol)
	assert.Equal(t, float64(5), cfg.Trading.Amount)
	assert.Equal(t, "5m", cfg.Analysis.SmallInterval)
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include: [b.yaml]\n")
	path := writeConfig(t, dir, "b.yaml", "include: [a.yaml]\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestLoadRejectsBadWeights(t *testing.T) {
	body := minimalYAML + `
analysis:
  weights:
    rsi: 0.5
    macd: 0.5
    bollinger: 0.1
    stochastic: 0
    ema: 0
    atr: 0
    volume: 0
    trend: 0
`
	_, err := Load(writeConfig(t, t.TempDir(), "config.yaml", body))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestValidateWeights(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, ValidateWeights(DefaultWeights()))
	})
	t.Run("within tolerance", func(t *testing.T) {
		w := DefaultWeights()
		w[IndicatorRSI] += 0.00005
		assert.NoError(t, ValidateWeights(w))
	})
	t.Run("outside tolerance", func(t *testing.T) {
		w := DefaultWeights()
		w[IndicatorRSI] += 0.001
		assert.ErrorIs(t, ValidateWeights(w), ErrConfigInvalid)
	})
	t.Run("missing indicator", func(t *testing.T) {
		w := DefaultWeights()
		delete(w, IndicatorTrend)
		assert.ErrorIs(t, ValidateWeights(w), ErrConfigInvalid)
	})
	t.Run("unknown indicator", func(t *testing.T) {
		w := DefaultWeights()
		w["ai"] = 0
		err := ValidateWeights(w)
		assert.ErrorIs(t, err, ErrConfigInvalid)
		assert.Contains(t, err.Error(), "ai")
	})
	t.Run("negative weight", func(t *testing.T) {
		w := DefaultWeights()
		w[IndicatorRSI] = -0.15
		w[IndicatorMACD] = 0.45
		assert.ErrorIs(t, ValidateWeights(w), ErrConfigInvalid)
	})
}

func TestValidateRejectsUnknownInstrument(t *testing.T) {
	body := minimalYAML + `
broker:
  instruments:
    - id: 1
      symbol: BTCUSDT
`
	_, err := Load(writeConfig(t, t.TempDir(), "config.yaml", body))
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestValidateTieBreak(t *testing.T) {
	body := minimalYAML + `
analysis:
  tie_break: coin
`
	_, err := Load(writeConfig(t, t.TempDir(), "config.yaml", body))
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestDumpMasksToken(t *testing.T) {
	body := minimalYAML + `
notify:
  telegram:
    enabled: true
    bot_token: "123456:ABCDEFGH"
    chat_id: "42"
`
	cfg, err := Load(writeConfig(t, t.TempDir(), "config.yaml", body))
	require.NoError(t, err)
	out, err := cfg.Dump()
	require.NoError(t, err)
	assert.NotContains(t, out, "ABCDEFGH")
	assert.Contains(t, out, "123***FGH")
	assert.Contains(t, out, "instrument_id: 76")
	assert.Equal(t, "123456:ABCDEFGH", cfg.Notify.Telegram.BotToken)
}

func TestTradeConfigIsDetached(t *testing.T) {
	cfg, err := Load(writeConfig(t, t.TempDir(), "config.yaml", minimalYAML))
	require.NoError(t, err)

	tc := cfg.TradeConfig()
	assert.Equal(t, "EURUSDT", tc.Symbol)
	assert.Equal(t, int64(76), tc.InstrumentID)
	assert.Equal(t, 15*time.Second, tc.WaitBetweenTrades)
	assert.Equal(t, 30*time.Second, tc.ExpiryGrace)
	assert.Equal(t, 2*time.Second, tc.BarCloseDelay)

	tc.Analysis.Weights[IndicatorRSI] = 0.9
	tc.ExitRules[0].Params["pct"] = 1.0
	assert.InDelta(t, 0.15, cfg.Analysis.Weights[IndicatorRSI], 1e-9)
	assert.Equal(t, float64(25), cfg.Trading.ExitRules[0].Params["pct"])
}

func TestPaperSourceNeedsCacheDir(t *testing.T) {
	body := minimalYAML + `
market:
  source: paper
`
	_, err := Load(writeConfig(t, t.TempDir(), "config.yaml", body))
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestInstrumentSymbolFromTicker(t *testing.T) {
	body := minimalYAML + `
broker:
  instruments:
    - id: 76
      ticker: EURUSD-OTC
`
	cfg, err := Load(writeConfig(t, t.TempDir(), "config.yaml", body))
	require.NoError(t, err)
	require.Len(t, cfg.Broker.Instruments, 1)
	assert.Equal(t, "EURUSDT", cfg.Broker.Instruments[0].Symbol)

	bad := minimalYAML + `
broker:
  instruments:
    - id: 76
      ticker: "???"
`
	_, err = Load(writeConfig(t, t.TempDir(), "config.yaml", bad))
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestLoadAcceptsSingleInclude(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", minimalYAML)
	path := writeConfig(t, dir, "config.yaml", `
include: base.yaml
analysis:
  tie_break: put
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "EURUSDT", cfg.Trading.Symbol)
	assert.Equal(t, TieBreakPut, cfg.Analysis.TieBreak)

	bad := writeConfig(t, dir, "bad.yaml", "include: [1, base.yaml]\n")
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include entries must be strings")
}

func TestBollingerDefaultThresholds(t *testing.T) {
	cfg, err := Load(writeConfig(t, t.TempDir(), "config.yaml", minimalYAML))
	require.NoError(t, err)
	assert.InDelta(t, 0.01, cfg.Analysis.Bollinger.SqueezeThreshold, 1e-12)
	assert.InDelta(t, 0.04, cfg.Analysis.Bollinger.VolatilityThreshold, 1e-12)
}

func TestAnalysisModeDefaultsAndValidation(t *testing.T) {
	cfg, err := Load(writeConfig(t, t.TempDir(), "config.yaml", minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, AnalysisModeTechnical, cfg.Analysis.Mode)
	sr := cfg.Analysis.SupportResistance
	assert.Equal(t, 14, sr.Period)
	assert.InDelta(t, 2.0, sr.StdDevMultiplier, 1e-12)
	assert.InDelta(t, 1.75, sr.StdDevMultiplier1, 1e-12)
	assert.InDelta(t, 40.0, sr.RSIBuyThreshold, 1e-12)
	assert.InDelta(t, 60.0, sr.RSISellThreshold, 1e-12)

	body := minimalYAML + `
analysis:
  mode: " Support_Resistance "
  support_resistance:
    period: 10
`
	cfg, err = Load(writeConfig(t, t.TempDir(), "config.yaml", body))
	require.NoError(t, err)
	assert.Equal(t, AnalysisModeSupportResistance, cfg.Analysis.Mode)
	assert.Equal(t, 10, cfg.Analysis.SupportResistance.Period)

	for _, bad := range []string{
		"analysis:\n  mode: fibonacci\n",
		"analysis:\n  support_resistance:\n    rsi_buy_threshold: 70\n",
	} {
		_, err = Load(writeConfig(t, t.TempDir(), "config.yaml", minimalYAML+bad))
		assert.ErrorIs(t, err, ErrConfigInvalid, bad)
	}
}
