// Package indicators computes technical indicator series from daily bars
// and condenses them into a per-instrument summary.
//
// All indicator math runs on float64 extracted once from the decimal bar
// series; slots are NaN until their warmup window has filled.
package indicators

import (
	"math"

	"github.com/tradewind-labs/papertrader/pkg/types"
)

// Series holds the computed indicator columns, index-aligned with the
// input bars.
type Series struct {
	Close  []float64
	Volume []float64

	RSI         []float64
	EMA20       []float64
	SMA50       []float64
	SMA200      []float64
	MACD        []float64
	MACDSignal  []float64
	MACDHist    []float64
	BBUpper     []float64
	BBMid       []float64
	BBLower     []float64
	BBWidth     []float64
	ATR         []float64
	ADX         []float64
	VolumeAvg20 []float64
}

// Compute builds the full indicator series for a bar slice.
func Compute(bars []types.Bar) *Series {
	n := len(bars)
	s := &Series{
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	high := make([]float64, n)
	low := make([]float64, n)
	for i, b := range bars {
		s.Close[i], _ = b.Close.Float64()
		s.Volume[i], _ = b.Volume.Float64()
		high[i], _ = b.High.Float64()
		low[i], _ = b.Low.Float64()
	}

	s.RSI = rsi(s.Close, 14)
	s.EMA20 = ema(s.Close, 20)
	s.SMA50 = sma(s.Close, 50)
	s.SMA200 = sma(s.Close, 200)
	s.MACD, s.MACDSignal, s.MACDHist = macd(s.Close, 12, 26, 9)
	s.BBUpper, s.BBMid, s.BBLower, s.BBWidth = bollinger(s.Close, 20, 2.0)
	s.ATR = atr(high, low, s.Close, 14)
	s.ADX = adx(high, low, s.Close, 14)
	s.VolumeAvg20 = sma(s.Volume, 20)

	return s
}

// Summarize analyzes one instrument and returns its technical summary.
// Returns false when fewer than 30 bars are available.
func Summarize(ticker string, bars []types.Bar) (types.TechnicalSummary, bool) {
	if len(bars) < 30 {
		return types.TechnicalSummary{}, false
	}

	s := Compute(bars)
	last := len(bars) - 1

	sum := types.TechnicalSummary{
		Ticker: ticker,
		RSI:    valueOr(s.RSI[last], 50),
		ATR:    valueOr(s.ATR[last], 0),
		ADX:    valueOr(s.ADX[last], 0),
		SMA50:  valueOr(s.SMA50[last], 0),
		SMA200: valueOr(s.SMA200[last], 0),
		EMA20:  valueOr(s.EMA20[last], 0),
		Close:  bars[last].Close,
	}

	// Sub-signal components, weighted into the composite.
	var rsiSig, macdSig, smaSig, emaSig, volSig float64

	if rsi := s.RSI[last]; !math.IsNaN(rsi) {
		switch {
		case rsi < 30:
			rsiSig = 1
		case rsi > 70:
			rsiSig = -1
		}
	}

	if hist, prev := s.MACDHist[last], histAt(s.MACDHist, last-1); !math.IsNaN(hist) {
		switch {
		case hist > 0 && prev <= 0:
			macdSig = 1
		case hist < 0 && prev >= 0:
			macdSig = -1
		case hist > 0:
			macdSig = 0.5
		case hist < 0:
			macdSig = -0.5
		}
		sum.MACDHistogram = hist
	}
	switch {
	case macdSig > 0:
		sum.MACDSignal = 1
	case macdSig < 0:
		sum.MACDSignal = -1
	}

	if sma50, sma200 := s.SMA50[last], s.SMA200[last]; !math.IsNaN(sma50) && !math.IsNaN(sma200) {
		if sma50 > sma200 {
			smaSig = 1
		} else {
			smaSig = -1
		}
	}
	sum.SMACross = int(smaSig)

	if ema20 := s.EMA20[last]; !math.IsNaN(ema20) {
		if s.Close[last] > ema20 {
			emaSig = 1
		} else {
			emaSig = -1
		}
	}
	sum.EMATrend = int(emaSig)

	sum.VolumeRatio = 1.0
	if avg := s.VolumeAvg20[last]; !math.IsNaN(avg) && avg > 0 {
		sum.VolumeRatio = s.Volume[last] / avg
		if sum.VolumeRatio > 1.5 {
			volSig = 1
		}
	}

	sum.BBSqueeze = squeezeAt(s.BBWidth, last)
	if upper, lower := s.BBUpper[last], s.BBLower[last]; !math.IsNaN(upper) && !math.IsNaN(lower) {
		if bandRange := upper - lower; bandRange > 0 {
			sum.BBPosition = (s.Close[last]-lower)/bandRange*2 - 1
		}
	}

	composite := rsiSig*0.25 + macdSig*0.25 + smaSig*0.20 + emaSig*0.15 + volSig*0.15
	sum.Composite = math.Max(-1, math.Min(1, composite))

	return sum, true
}

// squeezeAt reports whether the band width at idx is within 10% of its
// 50-bar rolling minimum.
func squeezeAt(width []float64, idx int) bool {
	if idx < 0 || math.IsNaN(width[idx]) {
		return false
	}
	start := idx - 49
	if start < 0 {
		start = 0
	}
	minWidth := math.NaN()
	for i := start; i <= idx; i++ {
		if math.IsNaN(width[i]) {
			continue
		}
		if math.IsNaN(minWidth) || width[i] < minWidth {
			minWidth = width[i]
		}
	}
	if math.IsNaN(minWidth) || minWidth <= 0 {
		return false
	}
	return width[idx] < minWidth*1.1
}

func histAt(hist []float64, idx int) float64 {
	if idx < 0 || math.IsNaN(hist[idx]) {
		return 0
	}
	return hist[idx]
}

func valueOr(v, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return v
}

// sma computes a simple moving average; slots before the window fills
// are NaN.
func sma(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// ema computes an exponential moving average seeded with the SMA of the
// first period values.
func ema(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var seed float64
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	out[period-1] = seed

	alpha := 2.0 / (float64(period) + 1)
	for i := period; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rsi computes the Wilder relative strength index.
func rsi(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if len(values) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// macd computes MACD(fast, slow) with a signal EMA and histogram.
func macd(values []float64, fast, slow, signal int) (line, sig, hist []float64) {
	n := len(values)
	line, sig, hist = nanSlice(n), nanSlice(n), nanSlice(n)

	fastEMA := ema(values, fast)
	slowEMA := ema(values, slow)
	for i := 0; i < n; i++ {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			line[i] = fastEMA[i] - slowEMA[i]
		}
	}

	// Signal line: EMA of the MACD line over its valid region.
	valid := make([]float64, 0, n)
	offset := -1
	for i, v := range line {
		if !math.IsNaN(v) {
			if offset < 0 {
				offset = i
			}
			valid = append(valid, v)
		}
	}
	if offset >= 0 {
		sigValid := ema(valid, signal)
		for i, v := range sigValid {
			sig[offset+i] = v
			if !math.IsNaN(v) {
				hist[offset+i] = line[offset+i] - v
			}
		}
	}
	return line, sig, hist
}

// bollinger computes 20-period bands at stddev multiples of the SMA.
func bollinger(values []float64, period int, mult float64) (upper, mid, lower, width []float64) {
	n := len(values)
	upper, lower, width = nanSlice(n), nanSlice(n), nanSlice(n)
	mid = sma(values, period)

	for i := period - 1; i < n; i++ {
		mean := mid[i]
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			diff := values[j] - mean
			variance += diff * diff
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = mean + mult*sd
		lower[i] = mean - mult*sd
		width[i] = upper[i] - lower[i]
	}
	return upper, mid, lower, width
}

// trueRange returns the per-bar true range series.
func trueRange(high, low, closes []float64) []float64 {
	n := len(closes)
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			tr[i] = high[i] - low[i]
			continue
		}
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - closes[i-1])
		lc := math.Abs(low[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// atr computes the Wilder-smoothed average true range.
func atr(high, low, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if n <= period {
		return out
	}

	tr := trueRange(high, low, closes)
	var seed float64
	for i := 1; i <= period; i++ {
		seed += tr[i]
	}
	out[period] = seed / float64(period)
	for i := period + 1; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

// adx computes the Wilder average directional index.
func adx(high, low, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if n <= period*2 {
		return out
	}

	tr := trueRange(high, low, closes)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	var trSum, plusSum, minusSum float64
	for i := 1; i <= period; i++ {
		trSum += tr[i]
		plusSum += plusDM[i]
		minusSum += minusDM[i]
	}

	dx := nanSlice(n)
	dx[period] = dxValue(plusSum, minusSum, trSum)
	for i := period + 1; i < n; i++ {
		trSum = trSum - trSum/float64(period) + tr[i]
		plusSum = plusSum - plusSum/float64(period) + plusDM[i]
		minusSum = minusSum - minusSum/float64(period) + minusDM[i]
		dx[i] = dxValue(plusSum, minusSum, trSum)
	}

	var seed float64
	for i := period; i < period*2; i++ {
		seed += dx[i]
	}
	out[period*2-1] = seed / float64(period)
	for i := period * 2; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return out
}

func dxValue(plusSum, minusSum, trSum float64) float64 {
	if trSum == 0 {
		return 0
	}
	plusDI := 100 * plusSum / trSum
	minusDI := 100 * minusSum / trSum
	if plusDI+minusDI == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
