package portfolio

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradewind-labs/papertrader/pkg/types"
	"github.com/tradewind-labs/papertrader/pkg/utils"
)

// RecomputePerformance rebuilds the performance snapshot from the
// closed-trade history.
func (b *Book) RecomputePerformance() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recomputeLocked()
	b.perf.OpenPositions = len(b.positions)
}

// recomputeLocked derives all statistics from b.closed. Caller holds
// the lock.
func (b *Book) recomputeLocked() {
	trades := b.closed
	if len(trades) == 0 {
		return
	}

	pnls := make([]float64, 0, len(trades))
	var grossWins, grossLosses decimal.Decimal
	wins, losses, expired := 0, 0, 0
	var rSum float64
	rN := 0
	strategies := map[types.StrategyName]types.StrategyMetrics{}

	for _, t := range trades {
		pnl, _ := t.PnL.Float64()
		pnls = append(pnls, pnl)

		switch {
		case t.PnL.IsPositive():
			wins++
			grossWins = grossWins.Add(t.PnL)
		case t.PnL.IsNegative():
			losses++
			grossLosses = grossLosses.Add(t.PnL.Abs())
		}
		if t.ExitReason == types.ExitExpired {
			expired++
		}
		if t.RMultiple != 0 {
			rSum += t.RMultiple
			rN++
		}

		m := strategies[t.Strategy]
		m.Trades++
		m.PnL = m.PnL.Add(t.PnL)
		if t.PnL.IsPositive() {
			m.Wins++
		}
		strategies[t.Strategy] = m
	}
	for name, m := range strategies {
		m.WinRate = utils.RoundTo(float64(m.Wins)/float64(m.Trades), 3)
		strategies[name] = m
	}

	b.perf.TotalTrades = len(trades)
	b.perf.Wins = wins
	b.perf.Losses = losses
	b.perf.Expired = expired
	b.perf.WinRate = utils.RoundTo(float64(wins)/float64(len(trades)), 3)
	b.perf.ProfitFactor = profitFactor(grossWins, grossLosses)
	b.perf.Expectancy = expectancy(trades)
	b.perf.SharpeRatio = sharpe(pnls)
	if rN > 0 {
		b.perf.AvgRMultiple = utils.RoundTo(rSum/float64(rN), 2)
	}
	b.perf.Strategies = strategies
	b.perf.MaxDrawdownPct = maxDrawdown(b.perf.StartingBalance, trades)
	b.perf.UpdatedAt = time.Now()
}

// profitFactor is gross wins over gross losses. With no losers the
// gross win total itself is reported rather than infinity.
func profitFactor(grossWins, grossLosses decimal.Decimal) float64 {
	if grossLosses.IsPositive() {
		pf, _ := grossWins.Div(grossLosses).Float64()
		return utils.RoundTo(pf, 2)
	}
	pf, _ := grossWins.Float64()
	return utils.RoundTo(pf, 2)
}

func expectancy(trades []types.ClosedTrade) decimal.Decimal {
	var total decimal.Decimal
	for _, t := range trades {
		total = total.Add(t.PnL)
	}
	return total.Div(decimal.NewFromInt(int64(len(trades)))).Round(2)
}

// sharpe annualizes the per-trade P&L ratio assuming daily returns.
func sharpe(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}
	mean := utils.Mean(pnls)
	std := utils.StdDev(pnls)
	if std <= 0 {
		return 0
	}
	return utils.RoundTo(mean/std*math.Sqrt(252), 2)
}

// maxDrawdown walks the realized balance path trade by trade and
// returns the deepest peak-to-trough move in percent (negative).
func maxDrawdown(starting decimal.Decimal, trades []types.ClosedTrade) float64 {
	running := starting
	peak := starting
	maxDD := 0.0
	for _, t := range trades {
		running = running.Add(t.PnL)
		if running.GreaterThan(peak) {
			peak = running
		}
		if peak.IsPositive() {
			dd, _ := running.Sub(peak).Div(peak).Float64()
			if dd < maxDD {
				maxDD = dd
			}
		}
	}
	return utils.RoundTo(maxDD*100, 2)
}
