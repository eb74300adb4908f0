// Package strategy matches scored instruments to trade strategies based
// on the current market regime, sizes the resulting candidates, and
// implements the defensive mode gate.
package strategy

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/pkg/types"
)

// tradePriority is the deterministic tiebreak order when two strategies
// match an instrument with equal score. Defensive never trades.
var tradePriority = []types.StrategyName{
	types.StrategyTrendFollowing,
	types.StrategyMomentum,
	types.StrategyBreakout,
	types.StrategyMeanReversion,
}

// watchlistPredicate decides whether a NEUTRAL instrument still
// qualifies as a watchlist candidate for a strategy.
type watchlistPredicate func(cfg config.StrategyConfig, tech types.TechnicalSummary) bool

// watchlistPredicates holds the per-strategy neutral carve-outs. Only
// mean reversion admits neutral signals: oversold setups often carry a
// bearish composite but a valid reversion entry.
var watchlistPredicates = map[types.StrategyName]watchlistPredicate{
	types.StrategyMeanReversion: func(cfg config.StrategyConfig, tech types.TechnicalSummary) bool {
		return tech.RSI <= cfg.Entry.RSIThreshold
	},
}

// Matcher pairs instruments with strategies and sizes candidate trades.
type Matcher struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMatcher creates a strategy matcher.
func NewMatcher(cfg *config.Config, logger *zap.Logger) *Matcher {
	return &Matcher{cfg: cfg, logger: logger}
}

// Match produces candidate signals for the scored instruments under the
// given regime. Slots are tracked locally so that earlier enter_now
// signals consume capacity for later ones within the same cycle.
func (m *Matcher) Match(scored []types.ScoredInstrument, regime types.RegimeAssessment, balance decimal.Decimal, openCount, maxPositions int) []types.StrategySignal {
	signals := make([]types.StrategySignal, 0, len(scored))
	availableSlots := maxPositions - openCount

	for _, inst := range scored {
		if inst.Signal == types.SignalNeutral && !m.neutralQualifies(inst, regime) {
			continue
		}

		name, label, direction, ok := m.findBestStrategy(inst, regime)
		if !ok {
			continue
		}

		atr := inst.Technical.ATR
		if atr <= 0 {
			continue
		}

		stratCfg := m.cfg.Strategy(name)
		entry := inst.Technical.Close
		stopDist := decimal.NewFromFloat(atr * stratCfg.Exit.StopLossATR)
		targetDist := decimal.NewFromFloat(atr * stratCfg.Exit.TakeProfitATR)

		var stop, target decimal.Decimal
		if direction == types.DirectionLong {
			stop = entry.Sub(stopDist)
			target = entry.Add(targetDist)
		} else {
			stop = entry.Add(stopDist)
			target = entry.Sub(targetDist)
		}

		riskPerUnit := entry.Sub(stop).Abs()
		rewardPerUnit := target.Sub(entry).Abs()
		rr := 0.0
		if riskPerUnit.IsPositive() {
			rrDec, _ := rewardPerUnit.Div(riskPerUnit).Float64()
			rr = rrDec
		}

		riskPct := decimal.NewFromFloat(m.cfg.Trader.RiskPerTradePct / 100)
		sizeMod := decimal.NewFromFloat(regime.SizeModifier)
		dollarRisk := balance.Mul(riskPct).Mul(sizeMod)
		quantity := decimal.Zero
		if riskPerUnit.IsPositive() {
			quantity = dollarRisk.Div(riskPerUnit).Round(4)
		}

		var action types.Action
		var skipReason string
		switch {
		case availableSlots <= 0:
			action = types.ActionSkip
			skipReason = "no position slots available"
		case inst.Signal == types.SignalStrongBuy || inst.Signal == types.SignalStrongSell,
			inst.Signal == types.SignalBuy || inst.Signal == types.SignalSell:
			action = types.ActionEnterNow
		case inst.Signal == types.SignalNeutral && name == types.StrategyMeanReversion:
			action = types.ActionWatchlist
		default:
			action = types.ActionSkip
			skipReason = "signal not strong enough"
		}

		signals = append(signals, types.StrategySignal{
			Instrument:    inst,
			Strategy:      name,
			Label:         label,
			Action:        action,
			Direction:     direction,
			EntryPrice:    entry.Round(4),
			StopLoss:      stop.Round(4),
			TakeProfit:    target.Round(4),
			RiskPerUnit:   riskPerUnit.Round(4),
			RewardPerUnit: rewardPerUnit.Round(4),
			RiskReward:    rr,
			Quantity:      quantity,
			DollarRisk:    dollarRisk.Round(2),
			SkipReason:    skipReason,
			Regime:        regime.Regime,
		})

		if action == types.ActionEnterNow {
			availableSlots--
		}
	}

	m.logger.Debug("strategy matching complete",
		zap.Int("candidates", len(scored)),
		zap.Int("signals", len(signals)),
		zap.String("regime", string(regime.Regime)))
	return signals
}

// neutralQualifies checks the watchlist carve-outs for a NEUTRAL signal.
func (m *Matcher) neutralQualifies(inst types.ScoredInstrument, regime types.RegimeAssessment) bool {
	for name, predicate := range watchlistPredicates {
		cfg := m.cfg.Strategy(name)
		if !cfg.Enabled || regimeIn(regime.Regime, cfg.SkipRegimes) {
			continue
		}
		if predicate(cfg, inst.Technical) {
			return true
		}
	}
	return false
}

// findBestStrategy scores every enabled, regime-aligned strategy against
// the instrument and returns the best match.
func (m *Matcher) findBestStrategy(inst types.ScoredInstrument, regime types.RegimeAssessment) (types.StrategyName, string, types.Direction, bool) {
	type candidate struct {
		name  types.StrategyName
		score float64
	}
	var candidates []candidate

	for name, cfg := range m.cfg.Strategies {
		if !cfg.Enabled || name == types.StrategyDefensive {
			continue
		}
		if regimeIn(regime.Regime, cfg.SkipRegimes) {
			continue
		}
		if len(cfg.ActiveRegimes) > 0 && !regimeIn(regime.Regime, cfg.ActiveRegimes) {
			continue
		}
		if score := scoreMatch(name, cfg, inst.Technical); score > 0 {
			candidates = append(candidates, candidate{name, score})
		}
	}
	if len(candidates) == 0 {
		return "", "", "", false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return priorityRank(candidates[i].name) < priorityRank(candidates[j].name)
	})
	best := candidates[0].name

	direction := types.DirectionLong
	if inst.Signal == types.SignalStrongSell || inst.Signal == types.SignalSell {
		direction = types.DirectionShort
	}

	return best, makeLabel(best, inst.Technical), direction, true
}

// scoreMatch rates how well an instrument fits a strategy's entry
// profile. Zero means no match.
func scoreMatch(name types.StrategyName, cfg config.StrategyConfig, tech types.TechnicalSummary) float64 {
	var score float64
	entry := cfg.Entry

	switch name {
	case types.StrategyTrendFollowing:
		if len(entry.RSIRange) == 2 && tech.RSI >= entry.RSIRange[0] && tech.RSI <= entry.RSIRange[1] {
			score += 2
		}
		if tech.EMATrend > 0 && entry.RequireEMABounce {
			score += 2
		}
		if tech.MACDSignal > 0 && entry.RequireMACDPositive {
			score += 1
		}
		if tech.VolumeRatio < 1.0 {
			// quiet volume on the pullback
			score += 1
		}

	case types.StrategyMeanReversion:
		if tech.RSI <= entry.RSIThreshold {
			score += 3
		}
		if tech.BBPosition < -0.5 && entry.RequireBBTouch {
			score += 2
		} else if tech.RSI <= entry.RSIThreshold-5 {
			// deep oversold counts even without a band touch
			score += 1
		}
		if entry.RequireAbove200SMA && tech.SMA200 > 0 {
			if close, _ := tech.Close.Float64(); close > tech.SMA200 {
				score += 1
			}
		}

	case types.StrategyBreakout:
		if tech.BBSqueeze {
			score += 3
		}
		if tech.VolumeRatio >= entry.VolumeSurge {
			score += 2
		}

	case types.StrategyMomentum:
		if len(entry.RSIRange) == 2 && tech.RSI >= entry.RSIRange[0] && tech.RSI <= entry.RSIRange[1] {
			score += 2
		}
		if tech.VolumeRatio >= entry.VolumeSurge {
			score += 2
		}
		if tech.MACDHistogram > 0 {
			score += 1
		}
	}

	return score
}

func priorityRank(name types.StrategyName) int {
	for i, n := range tradePriority {
		if n == name {
			return i
		}
	}
	return len(tradePriority)
}

func makeLabel(name types.StrategyName, tech types.TechnicalSummary) string {
	switch name {
	case types.StrategyTrendFollowing:
		return "Trend Following: Pullback to 20 EMA"
	case types.StrategyMeanReversion:
		return "Mean Reversion: Oversold Bounce"
	case types.StrategyBreakout:
		if tech.BBSqueeze {
			return "Breakout: BB Squeeze"
		}
		return "Breakout: Range Break"
	case types.StrategyMomentum:
		return "Momentum Continuation: New Highs"
	default:
		return string(name)
	}
}

// CheckDefensive reports whether new entries should be suspended: high
// VIX, deep drawdown, or a regime on the configured defensive list.
func (m *Matcher) CheckDefensive(regime types.RegimeAssessment, perf types.PerformanceSnapshot) bool {
	d := m.cfg.Defensive
	if regime.VIX > d.VIXAbove {
		m.logger.Warn("defensive mode", zap.String("trigger", fmt.Sprintf("VIX at %.1f", regime.VIX)))
		return true
	}
	if perf.MaxDrawdownPct < d.MaxDrawdownPct {
		m.logger.Warn("defensive mode", zap.String("trigger", fmt.Sprintf("drawdown at %.1f%%", perf.MaxDrawdownPct)))
		return true
	}
	if regimeIn(regime.Regime, d.Regimes) {
		m.logger.Warn("defensive mode", zap.String("trigger", "regime "+string(regime.Regime)))
		return true
	}
	return false
}

func regimeIn(r types.Regime, list []types.Regime) bool {
	for _, candidate := range list {
		if candidate == r {
			return true
		}
	}
	return false
}
