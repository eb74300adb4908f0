// Package risk implements the five-dimension risk profiler and the
// trading behavior log it draws on.
package risk

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/pkg/types"
)

// ReduceSize halves a signal's quantity and dollar risk in place,
// applied when an assessment recommends entering at reduced size.
func ReduceSize(sig *types.StrategySignal) {
	half := decimal.NewFromFloat(0.5)
	sig.Quantity = sig.Quantity.Mul(half).Round(4)
	sig.DollarRisk = sig.DollarRisk.Mul(half).Round(2)
}

// Profiler scores candidate trades and the portfolio across five risk
// dimensions. Concurrency-safe; holds the append-only behavior log.
type Profiler struct {
	cfg    config.RiskConfig
	trader config.TraderConfig
	logger *zap.Logger

	mu     sync.RWMutex
	log    []types.BehaviorEntry
	closed []types.ClosedTrade
}

// NewProfiler creates a risk profiler.
func NewProfiler(cfg config.RiskConfig, trader config.TraderConfig, logger *zap.Logger) *Profiler {
	return &Profiler{cfg: cfg, trader: trader, logger: logger}
}

// AssessTrade runs the full five-dimension assessment for one candidate
// trade. Any BLOCK or CRITICAL alert forces a blocked recommendation
// regardless of the composite score.
func (p *Profiler) AssessTrade(signal types.StrategySignal, positions []types.Position, perf types.PerformanceSnapshot, regime types.RegimeAssessment) types.RiskAssessment {
	profile := p.Profile(time.Now())

	d1 := p.positionRisk(&signal)
	d2 := p.portfolioRisk(&signal, positions, perf)
	d3 := p.marketRisk(&signal, regime)
	d4 := p.behavioralRisk(profile)
	d5 := p.strategyRisk(signal.Strategy, perf)

	w := p.cfg.Weights
	composite := d1.Score*w.Position + d2.Score*w.Portfolio + d3.Score*w.Market +
		d4.Score*w.Behavioral + d5.Score*w.Strategy

	a := assemble(d1, d2, d3, d4, d5, composite)
	switch {
	case a.HasHardBlocks:
		a.Recommendation = types.RecommendBlocked
		a.Reason = "hard block: " + a.BlockingAlerts[0].Message
	case composite >= 7:
		a.Recommendation = types.RecommendSkip
		a.Reason = "risk grade high, multiple factors elevated"
	case composite >= 5:
		a.Recommendation = types.RecommendReduceSize
		a.Reason = "risk grade elevated, consider half position"
	default:
		a.Recommendation = types.RecommendEnter
		a.Reason = "risk within acceptable parameters"
	}

	p.logger.Debug("trade risk assessed",
		zap.String("ticker", signal.Instrument.Ticker),
		zap.Float64("composite", a.Composite),
		zap.String("recommendation", string(a.Recommendation)))
	return a
}

// AssessPortfolio runs the portfolio-level assessment. The position
// dimension is zero and the remaining four are reweighted.
func (p *Profiler) AssessPortfolio(positions []types.Position, perf types.PerformanceSnapshot, regime types.RegimeAssessment) types.RiskAssessment {
	profile := p.Profile(time.Now())

	d1 := types.DimensionScore{Name: "position"}
	d2 := p.portfolioRisk(nil, positions, perf)
	d3 := p.marketRisk(nil, regime)
	d4 := p.behavioralRisk(profile)
	d5 := p.strategyRisk("", perf)

	w := p.cfg.PortfolioWeights
	composite := d2.Score*w.Portfolio + d3.Score*w.Market + d4.Score*w.Behavioral + d5.Score*w.Strategy

	a := assemble(d1, d2, d3, d4, d5, composite)
	a.HasHardBlocks = false
	a.BlockingAlerts = nil
	a.Recommendation = types.RecommendMonitor
	a.Reason = "portfolio-level assessment"
	return a
}

func assemble(d1, d2, d3, d4, d5 types.DimensionScore, composite float64) types.RiskAssessment {
	var all, blocking []types.RiskAlert
	for _, d := range []types.DimensionScore{d1, d2, d3, d4, d5} {
		all = append(all, d.Alerts...)
	}
	for _, alert := range all {
		if alert.Severity.IsHardBlock() {
			blocking = append(blocking, alert)
		}
	}
	return types.RiskAssessment{
		PositionRisk:   d1,
		PortfolioRisk:  d2,
		MarketRisk:     d3,
		BehavioralRisk: d4,
		StrategyRisk:   d5,
		Composite:      composite,
		Level:          classifyLevel(composite),
		HasHardBlocks:  len(blocking) > 0,
		Alerts:         all,
		BlockingAlerts: blocking,
		Timestamp:      time.Now(),
	}
}

func classifyLevel(score float64) types.RiskLevel {
	switch {
	case score <= 2:
		return types.RiskLow
	case score <= 4:
		return types.RiskModerate
	case score <= 6:
		return types.RiskElevated
	case score <= 8:
		return types.RiskHigh
	default:
		return types.RiskCritical
	}
}

// positionRisk checks reward:risk geometry and stop presence.
func (p *Profiler) positionRisk(signal *types.StrategySignal) types.DimensionScore {
	d := types.DimensionScore{Name: "position", Details: map[string]any{}}
	if signal == nil {
		return d
	}

	rr := signal.RiskReward
	d.Details["risk_reward"] = rr

	if rr < 1.5 {
		d.Score += 4
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityWarning, Dimension: "position",
			Message: fmt.Sprintf("R:R %.1f below 1.5", rr),
			Check:   "rr_ratio", Value: rr, Threshold: 1.5,
		})
	} else if rr < 2.0 {
		d.Score += 2
	}

	if !signal.StopLoss.IsPositive() {
		d.Score = 10
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityCritical, Dimension: "position",
			Message: "no stop-loss defined",
			Check:   "stop_loss_defined", Value: 0, Threshold: 1,
		})
	}

	d.Score = clampScore(d.Score)
	return d
}

// portfolioRisk checks slot usage, aggregate dollar risk, drawdown
// proximity, and sector concentration.
func (p *Profiler) portfolioRisk(signal *types.StrategySignal, positions []types.Position, perf types.PerformanceSnapshot) types.DimensionScore {
	d := types.DimensionScore{Name: "portfolio", Details: map[string]any{}}

	slotsUsed := len(positions)
	maxSlots := p.trader.MaxPositions
	d.Details["slots_used"] = slotsUsed

	if signal != nil && slotsUsed >= maxSlots {
		d.Score = 10
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityBlock, Dimension: "portfolio",
			Message: fmt.Sprintf("all %d position slots full", maxSlots),
			Check:   "max_positions", Value: float64(slotsUsed), Threshold: float64(maxSlots),
		})
		return d
	}

	if perf.Balance.IsPositive() && len(positions) > 0 {
		totalRiskPct := 0.0
		for _, pos := range positions {
			risk := pos.EntryPrice.Sub(pos.StopLoss).Abs().Mul(pos.Quantity)
			pct, _ := risk.Div(perf.Balance).Float64()
			totalRiskPct += pct * 100
		}
		d.Details["total_risk_pct"] = totalRiskPct

		if totalRiskPct > p.cfg.MaxTotalRiskPct {
			d.Score += 5
			d.Alerts = append(d.Alerts, types.RiskAlert{
				Severity: types.SeverityWarning, Dimension: "portfolio",
				Message: fmt.Sprintf("total open risk %.1f%% above %.1f%%", totalRiskPct, p.cfg.MaxTotalRiskPct),
				Check:   "total_exposure", Value: totalRiskPct, Threshold: p.cfg.MaxTotalRiskPct,
			})
		} else if totalRiskPct > p.cfg.MaxTotalRiskPct*0.66 {
			d.Score += 2
		}
	}

	dd := perf.MaxDrawdownPct
	if dd < p.cfg.MaxDrawdownLimit+p.cfg.DrawdownWarningBuffer {
		d.Score += 4
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityAlert, Dimension: "portfolio",
			Message: fmt.Sprintf("drawdown %.1f%% near limit %.1f%%", dd, p.cfg.MaxDrawdownLimit),
			Check:   "drawdown_proximity", Value: dd, Threshold: p.cfg.MaxDrawdownLimit,
		})
	}

	sectors := map[string][]string{}
	for _, pos := range positions {
		if pos.Sector != "" {
			sectors[pos.Sector] = append(sectors[pos.Sector], pos.Ticker)
		}
	}
	if signal != nil && signal.Instrument.Sector != "" {
		sectors[signal.Instrument.Sector] = append(sectors[signal.Instrument.Sector], signal.Instrument.Ticker)
	}
	for sector, tickers := range sectors {
		if len(tickers) > p.cfg.MaxSectorConcentration {
			d.Score += 3
			d.Alerts = append(d.Alerts, types.RiskAlert{
				Severity: types.SeverityWarning, Dimension: "portfolio",
				Message: fmt.Sprintf("sector concentration: %d positions in %s (%s)", len(tickers), sector, strings.Join(tickers, ", ")),
				Check:   "sector_concentration", Value: float64(len(tickers)), Threshold: float64(p.cfg.MaxSectorConcentration),
			})
			break
		}
	}

	d.Score = clampScore(d.Score)
	return d
}

// marketRisk checks regime alignment, volatility level, regime age, and
// classification confidence.
func (p *Profiler) marketRisk(signal *types.StrategySignal, regime types.RegimeAssessment) types.DimensionScore {
	d := types.DimensionScore{Name: "market", Details: map[string]any{
		"regime": string(regime.Regime),
		"vix":    regime.VIX,
	}}

	if signal != nil && !regime.HasStrategy(signal.Strategy) {
		d.Score = 10
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityBlock, Dimension: "market",
			Message: fmt.Sprintf("strategy %q not active in %s", signal.Strategy, regime.Regime),
			Check:   "regime_alignment",
		})
		return d
	}

	switch {
	case regime.VIX > p.cfg.VIXExtreme:
		d.Score += 5
	case regime.VIX > p.cfg.VIXHigh:
		d.Score += 3
	case regime.VIX > p.cfg.VIXElevated:
		d.Score += 1
	}

	if regime.AgeDays > p.cfg.RegimeAgeWarning {
		d.Score += 1
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityInfo, Dimension: "market",
			Message: fmt.Sprintf("regime persisted %dd, watch for transition", regime.AgeDays),
			Check:   "regime_age", Value: float64(regime.AgeDays), Threshold: float64(p.cfg.RegimeAgeWarning),
		})
	}

	if regime.Confidence < p.cfg.MinRegimeConfidence {
		d.Score += 2
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityWarning, Dimension: "market",
			Message: fmt.Sprintf("regime confidence low (%.0f%%)", regime.Confidence*100),
			Check:   "regime_confidence", Value: regime.Confidence, Threshold: p.cfg.MinRegimeConfidence,
		})
	}

	d.Score = clampScore(d.Score)
	return d
}

// behavioralRisk checks the rolling behavior profile for overtrading,
// revenge trading, streaks, and plan adherence.
func (p *Profiler) behavioralRisk(profile types.BehaviorProfile) types.DimensionScore {
	d := types.DimensionScore{Name: "behavioral", Details: map[string]any{}}

	if profile.TradesPerDay > p.cfg.MaxTradesPerDay {
		d.Score += 3
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityWarning, Dimension: "behavioral",
			Message: fmt.Sprintf("avg %.1f trades/day, possible overtrading", profile.TradesPerDay),
			Check:   "overtrading", Value: profile.TradesPerDay, Threshold: p.cfg.MaxTradesPerDay,
		})
	}

	if profile.RevengeTrades > 0 {
		d.Score += 4
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityAlert, Dimension: "behavioral",
			Message: fmt.Sprintf("%d possible revenge trade(s)", profile.RevengeTrades),
			Check:   "revenge_trading", Value: float64(profile.RevengeTrades),
		})
	}

	if profile.ConsecutiveWins >= p.cfg.WinStreakWarning {
		d.Score += 2
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityWarning, Dimension: "behavioral",
			Message: fmt.Sprintf("%d consecutive wins, watch overconfidence", profile.ConsecutiveWins),
			Check:   "win_streak", Value: float64(profile.ConsecutiveWins), Threshold: float64(p.cfg.WinStreakWarning),
		})
	}

	if profile.ConsecutiveLosses >= p.cfg.LossStreakWarning {
		d.Score += 4
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityAlert, Dimension: "behavioral",
			Message: fmt.Sprintf("%d consecutive losses, consider pausing", profile.ConsecutiveLosses),
			Check:   "loss_spiral", Value: float64(profile.ConsecutiveLosses), Threshold: float64(p.cfg.LossStreakWarning),
		})
	}

	if profile.PlanAdherence < p.cfg.MinPlanAdherence {
		d.Score += 3
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityWarning, Dimension: "behavioral",
			Message: fmt.Sprintf("plan adherence %.0f%%, discipline slipping", profile.PlanAdherence*100),
			Check:   "plan_adherence", Value: profile.PlanAdherence, Threshold: p.cfg.MinPlanAdherence,
		})
	}

	d.Details["plan_adherence"] = profile.PlanAdherence
	d.Details["discipline_avg"] = profile.AvgDiscipline
	d.Score = clampScore(d.Score)
	return d
}

// strategyRisk checks the historical record of the signal's strategy.
func (p *Profiler) strategyRisk(name types.StrategyName, perf types.PerformanceSnapshot) types.DimensionScore {
	d := types.DimensionScore{Name: "strategy", Details: map[string]any{}}

	metrics, ok := perf.Strategies[name]
	if name == "" || !ok {
		return d
	}
	d.Details["strategy"] = string(name)

	if metrics.Trades < p.cfg.MinSampleSize {
		d.Score += 2
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityInfo, Dimension: "strategy",
			Message: fmt.Sprintf("only %d trades for %s", metrics.Trades, name),
			Check:   "sample_size", Value: float64(metrics.Trades), Threshold: float64(p.cfg.MinSampleSize),
		})
	} else if metrics.WinRate < p.cfg.MinWinRate {
		d.Score += 4
		d.Alerts = append(d.Alerts, types.RiskAlert{
			Severity: types.SeverityAlert, Dimension: "strategy",
			Message: fmt.Sprintf("%s win rate %.0f%% below %.0f%%", name, metrics.WinRate*100, p.cfg.MinWinRate*100),
			Check:   "strategy_win_rate", Value: metrics.WinRate, Threshold: p.cfg.MinWinRate,
		})
	}

	d.Score = clampScore(d.Score)
	return d
}

func clampScore(s float64) float64 {
	if s > 10 {
		return 10
	}
	return s
}
