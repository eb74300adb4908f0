// Package indicators_test provides tests for the indicator pipeline.
package indicators_test

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradewind-labs/papertrader/internal/indicators"
	"github.com/tradewind-labs/papertrader/pkg/types"
)

func makeBars(n int, start, step float64) []types.Bar {
	bars := make([]types.Bar, n)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	price := start
	for i := 0; i < n; i++ {
		bars[i] = types.Bar{
			Date:   day,
			Open:   decimal.NewFromFloat(price),
			High:   decimal.NewFromFloat(price + 1),
			Low:    decimal.NewFromFloat(price - 1),
			Close:  decimal.NewFromFloat(price),
			Volume: decimal.NewFromInt(1_000_000),
		}
		day = day.AddDate(0, 0, 1)
		price += step
	}
	return bars
}

func TestSummarizeRequiresHistory(t *testing.T) {
	if _, ok := indicators.Summarize("AAPL", makeBars(29, 100, 0)); ok {
		t.Fatal("expected Summarize to reject fewer than 30 bars")
	}
	if _, ok := indicators.Summarize("AAPL", makeBars(30, 100, 0)); !ok {
		t.Fatal("expected Summarize to accept 30 bars")
	}
}

func TestComputeFlatSeries(t *testing.T) {
	s := indicators.Compute(makeBars(60, 100, 0))
	last := len(s.Close) - 1

	if got := s.EMA20[last]; math.Abs(got-100) > 1e-9 {
		t.Errorf("EMA20 on a flat series = %v, want 100", got)
	}
	if got := s.SMA50[last]; math.Abs(got-100) > 1e-9 {
		t.Errorf("SMA50 on a flat series = %v, want 100", got)
	}
	if got := s.MACDHist[last]; math.Abs(got) > 1e-9 {
		t.Errorf("MACD histogram on a flat series = %v, want 0", got)
	}
	if got := s.ATR[last]; math.Abs(got-2) > 1e-9 {
		t.Errorf("ATR on constant 2-point ranges = %v, want 2", got)
	}
}

func TestRSIDirection(t *testing.T) {
	rising := indicators.Compute(makeBars(60, 100, 0.5))
	falling := indicators.Compute(makeBars(60, 130, -0.5))
	last := 59

	if rising.RSI[last] <= 50 {
		t.Errorf("RSI of a rising series = %v, want > 50", rising.RSI[last])
	}
	if falling.RSI[last] >= 50 {
		t.Errorf("RSI of a falling series = %v, want < 50", falling.RSI[last])
	}
}

func TestSummarizeUptrend(t *testing.T) {
	sum, ok := indicators.Summarize("AAPL", makeBars(250, 100, 0.5))
	if !ok {
		t.Fatal("Summarize failed on 250 bars")
	}

	if sum.SMACross != 1 {
		t.Errorf("SMACross = %d, want 1 (50 above 200)", sum.SMACross)
	}
	if sum.EMATrend != 1 {
		t.Errorf("EMATrend = %d, want 1 (close above 20 EMA)", sum.EMATrend)
	}
	if sum.MACDSignal != 1 {
		t.Errorf("MACDSignal = %d, want 1 in a steady uptrend", sum.MACDSignal)
	}
	if sum.Composite < -1 || sum.Composite > 1 {
		t.Errorf("Composite = %v, want within [-1, 1]", sum.Composite)
	}
	if sum.ATR <= 0 {
		t.Errorf("ATR = %v, want positive", sum.ATR)
	}
	if math.Abs(sum.VolumeRatio-1.0) > 1e-9 {
		t.Errorf("VolumeRatio = %v, want 1.0 on constant volume", sum.VolumeRatio)
	}
}

func TestSummarizeBBPositionBounds(t *testing.T) {
	sum, ok := indicators.Summarize("MSFT", makeBars(60, 100, 0.3))
	if !ok {
		t.Fatal("Summarize failed")
	}
	if sum.BBPosition < -1.5 || sum.BBPosition > 1.5 {
		t.Errorf("BBPosition = %v, far outside the band scale", sum.BBPosition)
	}
}

func TestWarmupSlotsAreNaN(t *testing.T) {
	s := indicators.Compute(makeBars(60, 100, 0.5))

	if !math.IsNaN(s.SMA50[48]) {
		t.Errorf("SMA50[48] = %v, want NaN before the window fills", s.SMA50[48])
	}
	if math.IsNaN(s.SMA50[49]) {
		t.Error("SMA50[49] is NaN, want a value once the window fills")
	}
	if !math.IsNaN(s.RSI[13]) {
		t.Errorf("RSI[13] = %v, want NaN before warmup", s.RSI[13])
	}
	if math.IsNaN(s.RSI[14]) {
		t.Error("RSI[14] is NaN, want the first Wilder value")
	}
}
