// Package regime classifies the overall market environment from index
// and volatility data, and keeps a rolling history of daily regimes.
package regime

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/internal/indicators"
	"github.com/tradewind-labs/papertrader/pkg/types"
	"github.com/tradewind-labs/papertrader/pkg/utils"
)

// Classifier determines the current market regime. Concurrency-safe;
// the history is bounded to the configured limit.
type Classifier struct {
	cfg    config.RegimeConfig
	logger *zap.Logger

	mu      sync.RWMutex
	history []types.RegimeDay
}

// NewClassifier creates a regime classifier.
func NewClassifier(cfg config.RegimeConfig, logger *zap.Logger) *Classifier {
	return &Classifier{cfg: cfg, logger: logger}
}

// Classify assesses the market regime from index bars and VIX bars as of
// the last bar of marketBars. With fewer than 30 index bars it returns a
// conservative default.
func (c *Classifier) Classify(marketBars, vixBars []types.Bar) types.RegimeAssessment {
	asOf := time.Now()
	if len(marketBars) > 0 {
		asOf = marketBars[len(marketBars)-1].Date
	}

	if len(marketBars) < 30 {
		c.logger.Warn("insufficient market history for regime classification",
			zap.Int("bars", len(marketBars)))
		return c.record(defaultAssessment(asOf))
	}

	s := indicators.Compute(marketBars)
	last := len(marketBars) - 1

	adx := nonNaN(s.ADX[last])
	closePx := s.Close[last]
	ema20 := nonNaN(s.EMA20[last])
	sma50 := nonNaN(s.SMA50[last])
	sma200 := nonNaN(s.SMA200[last])

	vix := 0.0
	if len(vixBars) > 0 {
		vix, _ = vixBars[len(vixBars)-1].Close.Float64()
	}

	assessment := types.RegimeAssessment{
		ADX:       adx,
		VIX:       vix,
		Trend:     trendState(closePx, ema20, sma50, sma200),
		Breadth:   breadth(s, last),
		Timestamp: asOf,
	}

	trendingUp := adx > c.cfg.ADXTrending && closePx > ema20 && sma50 > sma200
	trendingDown := adx > c.cfg.ADXTrending && closePx < ema20 && sma50 < sma200

	switch {
	case vix > c.cfg.VIXHigh || atrExpanded(s.ATR, last, c.cfg.ATRExpansion):
		assessment.Regime = types.RegimeHighVolatility
		assessment.ActiveStrategies = []types.StrategyName{types.StrategyBreakout}
		assessment.SizeModifier = 0.5
	case trendingUp:
		assessment.Regime = types.RegimeTrendingUp
		assessment.ActiveStrategies = []types.StrategyName{types.StrategyTrendFollowing, types.StrategyMomentum}
		assessment.SizeModifier = 1.0
	case trendingDown:
		assessment.Regime = types.RegimeTrendingDown
		assessment.ActiveStrategies = []types.StrategyName{types.StrategyTrendFollowing, types.StrategyDefensive}
		assessment.SizeModifier = 0.5
	default:
		assessment.Regime = types.RegimeRangeBound
		assessment.ActiveStrategies = []types.StrategyName{types.StrategyMeanReversion, types.StrategyBreakout}
		assessment.SizeModifier = 0.75
	}

	if adx > 0 {
		assessment.Confidence = math.Min(adx/40, 1)
	} else {
		assessment.Confidence = 0.3
	}

	return c.record(assessment)
}

// record sets the regime age from history, appends the day entry, and
// trims the history to the configured bound.
func (c *Classifier) record(a types.RegimeAssessment) types.RegimeAssessment {
	c.mu.Lock()
	defer c.mu.Unlock()

	prior := c.history
	if n := len(prior); n > 0 && utils.SameDay(prior[n-1].Date, a.Timestamp) {
		prior = prior[:n-1]
	}
	age := 0
	for i := len(prior) - 1; i >= 0; i-- {
		if prior[i].Regime != a.Regime {
			break
		}
		age++
	}
	a.AgeDays = age

	if n := len(c.history); n > 0 && utils.SameDay(c.history[n-1].Date, a.Timestamp) {
		c.history[n-1] = regimeDay(a)
	} else {
		c.history = append(c.history, regimeDay(a))
	}
	limit := c.cfg.HistoryLimit
	if limit <= 0 {
		limit = 90
	}
	if len(c.history) > limit {
		c.history = c.history[len(c.history)-limit:]
	}

	c.logger.Debug("regime classified",
		zap.String("regime", string(a.Regime)),
		zap.Float64("confidence", a.Confidence),
		zap.Float64("adx", a.ADX),
		zap.Float64("vix", a.VIX),
		zap.Int("age_days", a.AgeDays))
	return a
}

// History returns a copy of the rolling regime history.
func (c *Classifier) History() []types.RegimeDay {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.RegimeDay, len(c.history))
	copy(out, c.history)
	return out
}

// SetHistory replaces the rolling history, used when restoring state.
func (c *Classifier) SetHistory(days []types.RegimeDay) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history[:0], days...)
}

func defaultAssessment(asOf time.Time) types.RegimeAssessment {
	return types.RegimeAssessment{
		Regime:           types.RegimeRangeBound,
		Confidence:       0.3,
		Trend:            types.TrendMixed,
		Breadth:          50,
		ActiveStrategies: []types.StrategyName{types.StrategyMeanReversion, types.StrategyBreakout},
		SizeModifier:     0.75,
		Timestamp:        asOf,
	}
}

func trendState(closePx, ema20, sma50, sma200 float64) types.TrendState {
	switch {
	case closePx > ema20 && closePx > sma50 && closePx > sma200:
		return types.TrendAboveAllSMA
	case closePx < ema20 && closePx < sma50 && closePx < sma200:
		return types.TrendBelowAllSMA
	default:
		return types.TrendMixed
	}
}

// breadth is the percentage of the last 20 bars closing above the 50-day
// moving average, a proxy for participation.
func breadth(s *indicators.Series, last int) float64 {
	start := last - 19
	if start < 0 {
		start = 0
	}
	count, total := 0, 0
	for i := start; i <= last; i++ {
		if math.IsNaN(s.SMA50[i]) {
			continue
		}
		total++
		if s.Close[i] > s.SMA50[i] {
			count++
		}
	}
	if total == 0 {
		return 50
	}
	return float64(count) / float64(total) * 100
}

// atrExpanded reports whether the current ATR exceeds its 20-bar mean by
// the expansion ratio.
func atrExpanded(atr []float64, last int, ratio float64) bool {
	if math.IsNaN(atr[last]) {
		return false
	}
	start := last - 19
	if start < 0 {
		start = 0
	}
	var sum float64
	var n int
	for i := start; i <= last; i++ {
		if math.IsNaN(atr[i]) {
			continue
		}
		sum += atr[i]
		n++
	}
	if n == 0 {
		return false
	}
	mean := sum / float64(n)
	return mean > 0 && atr[last] > mean*ratio
}

func regimeDay(a types.RegimeAssessment) types.RegimeDay {
	return types.RegimeDay{
		Date:       a.Timestamp,
		Regime:     a.Regime,
		Confidence: a.Confidence,
		ADX:        a.ADX,
		VIX:        a.VIX,
		Breadth:    a.Breadth,
	}
}

func nonNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
