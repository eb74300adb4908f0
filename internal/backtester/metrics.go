package backtester

import (
	"math"

	"github.com/tradewind-labs/papertrader/internal/portfolio"
	"github.com/tradewind-labs/papertrader/pkg/types"
	"github.com/tradewind-labs/papertrader/pkg/utils"
)

// Compile builds the aggregate result block from the finished book and
// the per-day balance series.
func Compile(btCfg types.BacktestConfig, book *portfolio.Book, dailyBalances []types.DailyBalance, regimeHistory []types.RegimeDay, tradingDays int) *types.BacktestResult {
	perf := book.Performance()
	trades := book.ClosedTrades()

	result := &types.BacktestResult{
		ID:              btCfg.ID,
		Start:           btCfg.Start,
		End:             btCfg.End,
		TradingDays:     tradingDays,
		StartingBalance: perf.StartingBalance,
		EndingBalance:   perf.Balance,
		TotalTrades:     perf.TotalTrades,
		Wins:            perf.Wins,
		Losses:          perf.Losses,
		Expired:         perf.Expired,
		WinRate:         perf.WinRate,
		ProfitFactor:    perf.ProfitFactor,
		Expectancy:      perf.Expectancy,
		SharpeRatio:     perf.SharpeRatio,
		MaxDrawdownPct:  perf.MaxDrawdownPct,
		AvgRMultiple:    perf.AvgRMultiple,
		Strategies:      perf.Strategies,
		Directions:      directionBreakdown(trades),
		DailyBalances:   dailyBalances,
		RegimeHistory:   regimeHistory,
		Trades:          trades,
	}

	if perf.StartingBalance.IsPositive() {
		ret, _ := perf.Balance.Sub(perf.StartingBalance).Div(perf.StartingBalance).Float64()
		result.TotalReturnPct = utils.RoundTo(ret*100, 2)
	}

	if len(trades) > 0 {
		best, worst := trades[0], trades[0]
		for _, t := range trades[1:] {
			if t.PnL.GreaterThan(best.PnL) {
				best = t
			}
			if t.PnL.LessThan(worst.PnL) {
				worst = t
			}
		}
		result.BestTrade = &best
		result.WorstTrade = &worst
	}

	returns := dailyReturns(dailyBalances)
	result.SortinoRatio = sortino(returns)
	result.CalmarRatio = calmar(returns, result.MaxDrawdownPct)

	return result
}

func directionBreakdown(trades []types.ClosedTrade) map[types.Direction]types.DirectionMetrics {
	if len(trades) == 0 {
		return nil
	}
	out := map[types.Direction]types.DirectionMetrics{}
	for _, t := range trades {
		m := out[t.Direction]
		m.Trades++
		m.PnL = m.PnL.Add(t.PnL)
		if t.PnL.IsPositive() {
			m.Wins++
		}
		out[t.Direction] = m
	}
	for dir, m := range out {
		m.WinRate = utils.RoundTo(float64(m.Wins)/float64(m.Trades), 3)
		out[dir] = m
	}
	return out
}

// dailyReturns converts the balance series into simple day-over-day
// returns.
func dailyReturns(balances []types.DailyBalance) []float64 {
	var returns []float64
	for i := 1; i < len(balances); i++ {
		prev := balances[i-1].Balance
		if !prev.IsPositive() {
			continue
		}
		r, _ := balances[i].Balance.Sub(prev).Div(prev).Float64()
		returns = append(returns, r)
	}
	return returns
}

// sortino annualizes mean daily return over downside deviation only.
func sortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := utils.Mean(returns)

	var downside float64
	n := 0
	for _, r := range returns {
		if r < 0 {
			downside += r * r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	dd := math.Sqrt(downside / float64(n))
	if dd == 0 {
		return 0
	}
	return utils.RoundTo(mean/dd*math.Sqrt(252), 2)
}

// calmar is the annualized return over the maximum drawdown magnitude.
func calmar(returns []float64, maxDrawdownPct float64) float64 {
	if len(returns) == 0 || maxDrawdownPct == 0 {
		return 0
	}
	annualized := utils.Mean(returns) * 252
	return utils.RoundTo(annualized/math.Abs(maxDrawdownPct/100), 2)
}
