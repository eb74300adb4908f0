package portfolio_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/internal/portfolio"
	"github.com/tradewind-labs/papertrader/pkg/types"
)

func tradeWithPnL(strat types.StrategyName, pnl float64) types.ClosedTrade {
	return types.ClosedTrade{
		Ticker:   "AAPL",
		Strategy: strat,
		PnL:      decimal.NewFromFloat(pnl),
	}
}

func TestRecomputePerformance(t *testing.T) {
	b := portfolio.NewBook(config.Default(), zap.NewNop())

	trades := []types.ClosedTrade{
		tradeWithPnL(types.StrategyTrendFollowing, 10),
		tradeWithPnL(types.StrategyTrendFollowing, -5),
		tradeWithPnL(types.StrategyTrendFollowing, 15),
		tradeWithPnL(types.StrategyTrendFollowing, -8),
		tradeWithPnL(types.StrategyTrendFollowing, 20),
	}
	b.Restore(nil, trades, types.PerformanceSnapshot{
		StartingBalance: decimal.NewFromInt(500),
		Balance:         decimal.NewFromInt(532),
	})
	b.RecomputePerformance()
	perf := b.Performance()

	if perf.TotalTrades != 5 {
		t.Errorf("total trades = %d, want 5", perf.TotalTrades)
	}
	if perf.Wins != 3 || perf.Losses != 2 {
		t.Errorf("wins/losses = %d/%d, want 3/2", perf.Wins, perf.Losses)
	}
	if perf.WinRate != 0.6 {
		t.Errorf("win rate = %v, want 0.6", perf.WinRate)
	}
	// Gross wins 45 over gross losses 13.
	if perf.ProfitFactor != 3.46 {
		t.Errorf("profit factor = %v, want 3.46", perf.ProfitFactor)
	}
	// Net 32 over 5 trades.
	if !perf.Expectancy.Equal(decimal.RequireFromString("6.4")) {
		t.Errorf("expectancy = %s, want 6.4", perf.Expectancy)
	}
	// Peak 520 to trough 512.
	if perf.MaxDrawdownPct != -1.54 {
		t.Errorf("max drawdown = %v, want -1.54", perf.MaxDrawdownPct)
	}

	m, ok := perf.Strategies[types.StrategyTrendFollowing]
	if !ok {
		t.Fatal("missing strategy breakdown")
	}
	if m.Trades != 5 || m.Wins != 3 || m.WinRate != 0.6 {
		t.Errorf("strategy metrics = %+v, want 5 trades, 3 wins, 0.6", m)
	}
	if !m.PnL.Equal(decimal.NewFromInt(32)) {
		t.Errorf("strategy pnl = %s, want 32", m.PnL)
	}
}

func TestProfitFactorWithoutLosses(t *testing.T) {
	b := portfolio.NewBook(config.Default(), zap.NewNop())

	b.Restore(nil, []types.ClosedTrade{
		tradeWithPnL(types.StrategyBreakout, 10),
		tradeWithPnL(types.StrategyBreakout, 5),
	}, types.PerformanceSnapshot{
		StartingBalance: decimal.NewFromInt(500),
		Balance:         decimal.NewFromInt(515),
	})
	b.RecomputePerformance()

	// With no losers the gross win total itself is reported.
	if pf := b.Performance().ProfitFactor; pf != 15 {
		t.Errorf("profit factor = %v, want 15", pf)
	}
}

func TestExpiredTradesCounted(t *testing.T) {
	b := portfolio.NewBook(config.Default(), zap.NewNop())

	expired := tradeWithPnL(types.StrategyMeanReversion, 2)
	expired.ExitReason = types.ExitExpired
	b.Restore(nil, []types.ClosedTrade{expired}, types.PerformanceSnapshot{
		StartingBalance: decimal.NewFromInt(500),
		Balance:         decimal.NewFromInt(502),
	})
	b.RecomputePerformance()

	if got := b.Performance().Expired; got != 1 {
		t.Errorf("expired = %d, want 1", got)
	}
}

func TestAvgRMultipleSkipsZeroes(t *testing.T) {
	b := portfolio.NewBook(config.Default(), zap.NewNop())

	withR := func(pnl, r float64) types.ClosedTrade {
		trade := tradeWithPnL(types.StrategyMomentum, pnl)
		trade.RMultiple = r
		return trade
	}
	b.Restore(nil, []types.ClosedTrade{
		withR(10, 2.0),
		withR(-5, -1.0),
		withR(1, 0), // forced close with no defined risk
	}, types.PerformanceSnapshot{
		StartingBalance: decimal.NewFromInt(500),
		Balance:         decimal.NewFromInt(506),
	})
	b.RecomputePerformance()

	if got := b.Performance().AvgRMultiple; got != 0.5 {
		t.Errorf("avg R = %v, want 0.5 over the two defined trades", got)
	}
}
