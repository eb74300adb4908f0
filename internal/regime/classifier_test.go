// Package regime_test provides tests for the market regime classifier.
package regime_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/internal/regime"
	"github.com/tradewind-labs/papertrader/pkg/types"
)

func flatBars(n int, price float64, lastDay time.Time) []types.Bar {
	bars := make([]types.Bar, n)
	day := lastDay.AddDate(0, 0, -(n - 1))
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
	}
	return bars
}

func newClassifier() *regime.Classifier {
	return regime.NewClassifier(config.Default().Regime, zap.NewNop())
}

func TestClassifyInsufficientHistory(t *testing.T) {
	c := newClassifier()

	a := c.Classify(flatBars(10, 100, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), nil)

	if a.Regime != types.RegimeRangeBound {
		t.Errorf("regime = %s, want range_bound default", a.Regime)
	}
	if a.Confidence != 0.3 {
		t.Errorf("confidence = %v, want 0.3", a.Confidence)
	}
	if a.Breadth != 50 {
		t.Errorf("breadth = %v, want 50", a.Breadth)
	}
	if a.SizeModifier != 0.75 {
		t.Errorf("size modifier = %v, want 0.75", a.SizeModifier)
	}
	if !a.HasStrategy(types.StrategyMeanReversion) || !a.HasStrategy(types.StrategyBreakout) {
		t.Errorf("active strategies = %v, want mean_reversion and breakout", a.ActiveStrategies)
	}
}

func TestClassifyHighVolatilityOverridesAll(t *testing.T) {
	c := newClassifier()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	a := c.Classify(flatBars(60, 100, day), flatBars(60, 35, day))

	if a.Regime != types.RegimeHighVolatility {
		t.Fatalf("regime = %s, want high_volatility when VIX is 35", a.Regime)
	}
	if a.SizeModifier != 0.5 {
		t.Errorf("size modifier = %v, want 0.5", a.SizeModifier)
	}
	if len(a.ActiveStrategies) != 1 || a.ActiveStrategies[0] != types.StrategyBreakout {
		t.Errorf("active strategies = %v, want breakout only", a.ActiveStrategies)
	}
	if a.VIX != 35 {
		t.Errorf("VIX = %v, want 35", a.VIX)
	}
}

func TestClassifyRangeBoundOnFlatMarket(t *testing.T) {
	c := newClassifier()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	a := c.Classify(flatBars(60, 100, day), flatBars(60, 15, day))

	if a.Regime != types.RegimeRangeBound {
		t.Errorf("regime = %s, want range_bound on a flat market", a.Regime)
	}
	if a.SizeModifier != 0.75 {
		t.Errorf("size modifier = %v, want 0.75", a.SizeModifier)
	}
}

func TestRegimeAgeAccumulates(t *testing.T) {
	c := newClassifier()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	first := c.Classify(flatBars(60, 100, day), flatBars(60, 15, day))
	if first.AgeDays != 0 {
		t.Errorf("first day age = %d, want 0", first.AgeDays)
	}

	second := c.Classify(flatBars(61, 100, day.AddDate(0, 0, 1)), flatBars(61, 15, day.AddDate(0, 0, 1)))
	if second.AgeDays != 1 {
		t.Errorf("second day age = %d, want 1", second.AgeDays)
	}
	if len(c.History()) != 2 {
		t.Errorf("history length = %d, want 2", len(c.History()))
	}
}

func TestRegimeAgeResetsOnChange(t *testing.T) {
	c := newClassifier()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	c.Classify(flatBars(60, 100, day), flatBars(60, 15, day))
	changed := c.Classify(flatBars(61, 100, day.AddDate(0, 0, 1)), flatBars(61, 35, day.AddDate(0, 0, 1)))

	if changed.Regime != types.RegimeHighVolatility {
		t.Fatalf("regime = %s, want high_volatility", changed.Regime)
	}
	if changed.AgeDays != 0 {
		t.Errorf("age after a regime switch = %d, want 0", changed.AgeDays)
	}
}

func TestSameDayReclassifyReplaces(t *testing.T) {
	c := newClassifier()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	c.Classify(flatBars(60, 100, day), flatBars(60, 15, day))
	second := c.Classify(flatBars(60, 100, day), flatBars(60, 15, day))

	if got := len(c.History()); got != 1 {
		t.Errorf("history length after same-day reclassify = %d, want 1", got)
	}
	if second.AgeDays != 0 {
		t.Errorf("age after same-day reclassify = %d, want 0 on the regime's first day", second.AgeDays)
	}
}

func TestSetHistoryRoundTrip(t *testing.T) {
	c := newClassifier()
	days := []types.RegimeDay{
		{Date: time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), Regime: types.RegimeTrendingUp, Confidence: 0.8},
		{Date: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), Regime: types.RegimeTrendingUp, Confidence: 0.9},
	}
	c.SetHistory(days)

	got := c.History()
	if len(got) != 2 || got[1].Regime != types.RegimeTrendingUp {
		t.Fatalf("history = %+v, want the restored days", got)
	}
}
