package indicator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/markcheno/go-talib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSet() []Indicator {
	return []Indicator{
		NewRSI(RSISettings{}),
		NewMACD(MACDSettings{}),
		NewBollinger(BollingerSettings{}),
		NewStochastic(StochasticSettings{}),
		NewEMACrossover(EMASettings{}),
		NewATRBands(ATRSettings{}),
		NewVolume(VolumeSettings{}),
		NewTrendStrength(TrendSettings{}),
	}
}

func flatInput(n int, price float64) Input {
	in := Input{}
	for i := 0; i < n; i++ {
		in.Closes = append(in.Closes, price)
		in.Highs = append(in.Highs, price)
		in.Lows = append(in.Lows, price)
		in.Volumes = append(in.Volumes, 10)
	}
	return in
}

func walkInput(n int, seed int64) Input {
	rng := rand.New(rand.NewSource(seed))
	in := Input{}
	price := 1.1
	for i := 0; i < n; i++ {
		price += (rng.Float64() - 0.5) * 0.002
		spread := rng.Float64() * 0.001
		in.Closes = append(in.Closes, price)
		in.Highs = append(in.Highs, price+spread)
		in.Lows = append(in.Lows, price-spread)
		in.Volumes = append(in.Volumes, 100+rng.Float64()*200)
	}
	return in
}

func prefix(in Input, n int) Input {
	out := Input{Closes: in.Closes[:n]}
	if in.Opens != nil {
		out.Opens = in.Opens[:n]
	}
	if in.Highs != nil {
		out.Highs = in.Highs[:n]
	}
	if in.Lows != nil {
		out.Lows = in.Lows[:n]
	}
	if in.Volumes != nil {
		out.Volumes = in.Volumes[:n]
	}
	return out
}

func TestNormalizeConfidence(t *testing.T) {
	assert.Zero(t, NormalizeConfidence(math.NaN()))
	assert.Zero(t, NormalizeConfidence(math.Inf(1)))
	assert.Zero(t, NormalizeConfidence(math.Inf(-1)))
	assert.Zero(t, NormalizeConfidence(-0.3))
	assert.Equal(t, 1.0, NormalizeConfidence(1.7))
	assert.Equal(t, 0.42, NormalizeConfidence(0.42))
}

func TestInsufficientData(t *testing.T) {
	for _, ind := range defaultSet() {
		in := prefix(walkInput(ind.MinSamples(), 1), ind.MinSamples()-1)
		res := ind.Calculate(in)
		assert.True(t, res.Insufficient, ind.Name())
		assert.Equal(t, SignalNeutral, res.Signal, ind.Name())
		assert.Zero(t, res.Confidence, ind.Name())
		assert.Contains(t, res.Text, "insufficient data", ind.Name())
	}
}

func TestMissingSeriesIsInsufficient(t *testing.T) {
	in := Input{Closes: walkInput(60, 2).Closes}
	assert.True(t, NewStochastic(StochasticSettings{}).Calculate(in).Insufficient)
	assert.True(t, NewATRBands(ATRSettings{}).Calculate(in).Insufficient)
	assert.True(t, NewVolume(VolumeSettings{}).Calculate(in).Insufficient)
	assert.False(t, NewRSI(RSISettings{}).Calculate(in).Insufficient)
}

func TestConfidenceAlwaysNormalized(t *testing.T) {
	in := walkInput(200, 7)
	for _, ind := range defaultSet() {
		for n := ind.MinSamples(); n <= len(in.Closes); n++ {
			res := ind.Calculate(prefix(in, n))
			require.False(t, res.Insufficient, "%s at %d", ind.Name(), n)
			assert.GreaterOrEqual(t, res.Confidence, 0.0)
			assert.LessOrEqual(t, res.Confidence, 1.0)
			assert.Contains(t, []Signal{SignalUp, SignalDown, SignalNeutral}, res.Signal)
			assert.Equal(t, ind.Name(), res.Name)
		}
	}
}

func TestFlatSeriesIsNeutral(t *testing.T) {
	in := flatInput(40, 100)
	for _, ind := range defaultSet() {
		res := ind.Calculate(in)
		require.False(t, res.Insufficient, ind.Name())
		assert.Equal(t, SignalNeutral, res.Signal, ind.Name())
	}
	rsi := NewRSI(RSISettings{})
	rsi.Calculate(in)
	assert.Equal(t, 50.0, rsi.Last())
}

func TestRSIExtremes(t *testing.T) {
	rising := make([]float64, 20)
	falling := make([]float64, 20)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 100 - float64(i)
	}
	up := NewRSI(RSISettings{}).Calculate(Input{Closes: rising})
	assert.Equal(t, SignalDown, up.Signal)
	assert.Equal(t, 100.0, up.Values["value"])
	assert.Equal(t, 1.0, up.Confidence)

	down := NewRSI(RSISettings{}).Calculate(Input{Closes: falling})
	assert.Equal(t, SignalUp, down.Signal)
	assert.Zero(t, down.Values["value"])
	assert.Equal(t, 1.0, down.Confidence)
}

func TestBollingerUpperTouch(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	closes[19] = 110
	res := NewBollinger(BollingerSettings{}).Calculate(Input{Closes: closes})
	assert.Equal(t, SignalDown, res.Signal)
	assert.Contains(t, res.Text, "upper touch")
	assert.Greater(t, res.Values["bandwidth"], 0.0)
}

func TestATRBreakoutUsesPreviousClose(t *testing.T) {
	in := Input{}
	for i := 0; i < 20; i++ {
		in.Closes = append(in.Closes, 100)
		in.Highs = append(in.Highs, 101)
		in.Lows = append(in.Lows, 99)
	}
	in.Closes[19], in.Highs[19], in.Lows[19] = 110, 110, 100

	res := NewATRBands(ATRSettings{}).Calculate(in)
	assert.Equal(t, SignalUp, res.Signal)
	assert.InDelta(t, 2.0, res.Values["atr"], 1e-9)
	assert.InDelta(t, 103.0, res.Values["upper"], 1e-9)
	assert.InDelta(t, 97.0, res.Values["lower"], 1e-9)
	assert.Equal(t, 1.0, res.Confidence)

	in.Closes[19] = 101
	inside := NewATRBands(ATRSettings{}).Calculate(in)
	assert.Equal(t, SignalNeutral, inside.Signal)
	assert.Zero(t, inside.Confidence)
}

func TestVolumeSpikeFollowsPriceChange(t *testing.T) {
	in := flatInput(20, 100)
	in.Volumes[19] = 30
	in.Closes[19] = 100.5
	res := NewVolume(VolumeSettings{}).Calculate(in)
	assert.Equal(t, SignalUp, res.Signal)
	assert.InDelta(t, 11.0, res.Values["average"], 1e-9)
	assert.Equal(t, 1.0, res.Confidence)

	in.Closes[19] = 100
	assert.Equal(t, SignalNeutral, NewVolume(VolumeSettings{}).Calculate(in).Signal)
}

func TestTrendDeviation(t *testing.T) {
	in := flatInput(20, 100)
	in.Closes[19] = 101
	res := NewTrendStrength(TrendSettings{}).Calculate(in)
	assert.Equal(t, SignalUp, res.Signal)
	assert.InDelta(t, 0.94953, res.Values["deviation_pct"], 1e-4)

	in.Closes[19] = 99
	assert.Equal(t, SignalDown, NewTrendStrength(TrendSettings{}).Calculate(in).Signal)
}

func TestEMACrossoverDetectedOnCrossingBar(t *testing.T) {
	closes := make([]float64, 0, 80)
	for i := 0; i < 40; i++ {
		closes = append(closes, 100-float64(i)*0.5)
	}
	for i := 0; i < 40; i++ {
		closes = append(closes, 80+float64(i)*1.5)
	}

	cfg := EMASettings{}.withDefaults()
	fast := talib.Ema(closes, cfg.FastPeriod)
	slow := talib.Ema(closes, cfg.SlowPeriod)
	crossAt := -1
	for i := cfg.SlowPeriod; i < len(closes); i++ {
		if fast[i-1] < slow[i-1] && fast[i] > slow[i] {
			crossAt = i
			break
		}
	}
	require.Positive(t, crossAt)

	ema := NewEMACrossover(EMASettings{})
	for n := cfg.SlowPeriod; n <= crossAt+1; n++ {
		res := ema.Calculate(Input{Closes: closes[:n]})
		if n-1 == crossAt {
			assert.Equal(t, SignalUp, res.Signal)
			assert.Equal(t, 1.0, res.Values["crossover"])
		} else {
			assert.Zero(t, res.Values["crossover"], "bar %d", n-1)
		}
	}
}

func TestMACDCrossoverNeedsPreviousBar(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/5)
	}

	primed := NewMACD(MACDSettings{})
	crossAt := -1
	for n := primed.MinSamples(); n <= len(closes); n++ {
		res := primed.Calculate(Input{Closes: closes[:n]})
		if res.Values["crossover"] != 0 {
			crossAt = n
			assert.GreaterOrEqual(t, res.Confidence, 0.7)
			break
		}
	}
	require.Positive(t, crossAt)

	fresh := NewMACD(MACDSettings{}).Calculate(Input{Closes: closes[:crossAt]})
	assert.Zero(t, fresh.Values["crossover"])
}

func TestStochasticCrossover(t *testing.T) {
	in := Input{}
	for i := 0; i < 120; i++ {
		c := 100 + 5*math.Sin(float64(i)/4)
		in.Closes = append(in.Closes, c)
		in.Highs = append(in.Highs, c+0.5)
		in.Lows = append(in.Lows, c-0.5)
	}
	stoch := NewStochastic(StochasticSettings{})
	found := false
	for n := stoch.MinSamples(); n <= len(in.Closes); n++ {
		res := stoch.Calculate(prefix(in, n))
		if cross := res.Values["crossover"]; cross != 0 {
			found = true
			if cross > 0 {
				assert.Equal(t, SignalUp, res.Signal)
			} else {
				assert.Equal(t, SignalDown, res.Signal)
			}
			assert.GreaterOrEqual(t, res.Confidence, 0.7)
		}
	}
	assert.True(t, found)
}

func TestATRFlatRangeIsNeutral(t *testing.T) {
	in := flatInput(19, 1.0)
	in.Closes = append(in.Closes, 1.01)
	in.Highs = append(in.Highs, 1.01)
	in.Lows = append(in.Lows, 1.01)

	res := NewATRBands(ATRSettings{}).Calculate(in)
	require.False(t, res.Insufficient)
	assert.Equal(t, SignalNeutral, res.Signal)
	assert.False(t, res.Active())
	assert.Zero(t, res.Confidence)
	assert.Zero(t, res.Values["atr"])
	assert.Contains(t, res.Text, "flat range")
}

func TestBollingerDefaultThresholds(t *testing.T) {
	cfg := BollingerSettings{}.withDefaults()
	assert.Equal(t, 0.01, cfg.SqueezeThreshold)
	assert.Equal(t, 0.04, cfg.VolatilityThreshold)
}

// srInput 先铺 flat 根价格为 100 的平盘 K 线，再追加给定的 (open, close)。
func srInput(flat int, bars ...srBar) Input {
	in := Input{}
	add := func(o, c float64) {
		in.Opens = append(in.Opens, o)
		in.Closes = append(in.Closes, c)
		in.Highs = append(in.Highs, math.Max(o, c)+0.2)
		in.Lows = append(in.Lows, math.Min(o, c)-0.2)
	}
	for i := 0; i < flat; i++ {
		add(100, 100)
	}
	for _, b := range bars {
		add(b.open, b.close)
	}
	return in
}

func TestSupportResistanceTiers(t *testing.T) {
	cases := []struct {
		name   string
		bars   []srBar
		signal Signal
		conf   float64
		flag   string
	}{
		{"buy pattern", []srBar{{100, 99}, {99, 98}, {98, 96}}, SignalUp, 0.8, "buy_con3"},
		{"sell pattern", []srBar{{100, 101}, {101, 102}, {102, 104}}, SignalDown, 0.8, "sell_con3"},
		{"buy outer band reversal", []srBar{{99.5, 100}, {100, 99}, {99, 96}}, SignalUp, 0.6, "buy_con21"},
		{"inner band only", []srBar{{100, 100}, {100, 99}, {99, 97}}, SignalNeutral, 0.4, "buy_con2"},
		{"no pattern", []srBar{{100, 100}, {100, 100}, {100.2, 100.1}}, SignalNeutral, 0, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := NewSupportResistance(SupportResistanceSettings{}).Calculate(srInput(12, tc.bars...))
			require.False(t, res.Insufficient)
			assert.Equal(t, NameSupportResistance, res.Name)
			assert.Equal(t, tc.signal, res.Signal)
			assert.InDelta(t, tc.conf, res.Confidence, 1e-9)
			if tc.flag != "" {
				assert.Equal(t, 1.0, res.Values[tc.flag])
			}
		})
	}
}

func TestSupportResistanceOuterBandDetails(t *testing.T) {
	res := NewSupportResistance(SupportResistanceSettings{}).Calculate(srInput(12, srBar{99.5, 100}, srBar{100, 99}, srBar{99, 96}))
	assert.Zero(t, res.Values["buy_con3"], "rising bar two back rules out the three-bar pattern")
	assert.Equal(t, 1.0, res.Values["buy_con2"])
	assert.Zero(t, res.Values["rsi"])
	assert.Less(t, res.Values["price"], res.Values["lower"])
	assert.InDelta(t, 99.2, res.Values["r3"], 1e-9)
	assert.InDelta(t, 95.8, res.Values["s3"], 1e-9)
	assert.InDelta(t, 100.2, res.Values["r3_back"], 1e-9)
	assert.InDelta(t, 98.8, res.Values["s3_back"], 1e-9)
}

func TestSupportResistanceInsufficient(t *testing.T) {
	sr := NewSupportResistance(SupportResistanceSettings{})
	assert.Equal(t, 15, sr.MinSamples())
	assert.True(t, sr.Calculate(srInput(11, srBar{100, 99}, srBar{99, 98}, srBar{98, 96})).Insufficient)

	in := srInput(12, srBar{100, 99}, srBar{99, 98}, srBar{98, 96})
	in.Opens = nil
	res := sr.Calculate(in)
	assert.True(t, res.Insufficient)
	assert.Equal(t, SignalNeutral, res.Signal)
}

func TestBigLevels(t *testing.T) {
	_, ok := BigLevels(Input{Highs: []float64{1}, Lows: []float64{0.5}})
	assert.False(t, ok)

	levels, ok := BigLevels(Input{Highs: []float64{1.3, 1.2}, Lows: []float64{1.0, 1.1}})
	require.True(t, ok)
	assert.Equal(t, 1.2, levels["r4"])
	assert.Equal(t, 1.1, levels["s4"])
	assert.Equal(t, 1.3, levels["r4_back"])
	assert.Equal(t, 1.1, levels["s4_back"])
}
