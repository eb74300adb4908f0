// Package portfolio_test provides tests for the paper trading book.
package portfolio_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/internal/portfolio"
	"github.com/tradewind-labs/papertrader/pkg/types"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newBook() *portfolio.Book {
	return portfolio.NewBook(config.Default(), zap.NewNop())
}

func entrySignal(ticker string, strat types.StrategyName, entry, stop, target float64) types.StrategySignal {
	return types.StrategySignal{
		Instrument: types.ScoredInstrument{
			Ticker:    ticker,
			Technical: types.TechnicalSummary{Ticker: ticker},
		},
		Strategy:   strat,
		Action:     types.ActionEnterNow,
		Direction:  types.DirectionLong,
		EntryPrice: decimal.NewFromFloat(entry),
		StopLoss:   decimal.NewFromFloat(stop),
		TakeProfit: decimal.NewFromFloat(target),
		Quantity:   decimal.NewFromInt(1),
	}
}

func bar(high, low, closePx float64) types.Bar {
	return types.Bar{
		Date:   day0,
		High:   decimal.NewFromFloat(high),
		Low:    decimal.NewFromFloat(low),
		Close:  decimal.NewFromFloat(closePx),
		Volume: decimal.NewFromInt(1_000_000),
	}
}

func TestOpenFromSignals(t *testing.T) {
	b := newBook()

	opened := b.OpenFromSignals([]types.StrategySignal{
		entrySignal("AAPL", types.StrategyMeanReversion, 150, 145, 160),
	}, day0)

	if len(opened) != 1 {
		t.Fatalf("opened %d positions, want 1", len(opened))
	}
	pos := opened[0]
	if pos.ID != "PT-2024-03-01-001" {
		t.Errorf("position ID = %s, want PT-2024-03-01-001", pos.ID)
	}
	if pos.MaxHoldDays != 5 {
		t.Errorf("max hold = %d, want the mean reversion budget of 5", pos.MaxHoldDays)
	}
	if !b.Balance().Equal(decimal.NewFromInt(500)) {
		t.Errorf("balance = %s, opening must not move cash", b.Balance())
	}
}

func TestOpenSkipsDuplicateTicker(t *testing.T) {
	b := newBook()

	opened := b.OpenFromSignals([]types.StrategySignal{
		entrySignal("AAPL", types.StrategyMeanReversion, 150, 145, 160),
		entrySignal("AAPL", types.StrategyMeanReversion, 150, 145, 160),
	}, day0)

	if len(opened) != 1 {
		t.Fatalf("opened %d positions, want 1 per ticker", len(opened))
	}
}

func TestOpenIgnoresWatchlistAndZeroQuantity(t *testing.T) {
	b := newBook()

	watch := entrySignal("AAPL", types.StrategyMeanReversion, 150, 145, 160)
	watch.Action = types.ActionWatchlist
	zeroQty := entrySignal("MSFT", types.StrategyMeanReversion, 400, 395, 410)
	zeroQty.Quantity = decimal.Zero

	if opened := b.OpenFromSignals([]types.StrategySignal{watch, zeroQty}, day0); len(opened) != 0 {
		t.Fatalf("opened %d positions, want 0", len(opened))
	}
}

func TestAdvanceStopLoss(t *testing.T) {
	b := newBook()
	b.OpenFromSignals([]types.StrategySignal{
		entrySignal("AAPL", types.StrategyMeanReversion, 150, 145, 160),
	}, day0)

	closed := b.Advance(map[string]types.Bar{"AAPL": bar(146, 144, 145.5)}, day0.AddDate(0, 0, 1))

	if len(closed) != 1 {
		t.Fatalf("closed %d trades, want 1", len(closed))
	}
	trade := closed[0]
	if trade.ExitReason != types.ExitStoppedOut {
		t.Errorf("exit reason = %s, want stopped_out", trade.ExitReason)
	}
	if !trade.ExitPrice.Equal(decimal.NewFromInt(145)) {
		t.Errorf("exit price = %s, want the stop at 145", trade.ExitPrice)
	}
	if !trade.PnL.Equal(decimal.NewFromInt(-5)) {
		t.Errorf("pnl = %s, want -5", trade.PnL)
	}
	if !b.Balance().Equal(decimal.NewFromInt(495)) {
		t.Errorf("balance = %s, want 495", b.Balance())
	}
	if len(b.Positions()) != 0 {
		t.Error("position should be gone after the stop")
	}
}

func TestAdvanceTargetHit(t *testing.T) {
	b := newBook()
	b.OpenFromSignals([]types.StrategySignal{
		entrySignal("AAPL", types.StrategyMeanReversion, 150, 145, 160),
	}, day0)

	closed := b.Advance(map[string]types.Bar{"AAPL": bar(161, 152, 159)}, day0.AddDate(0, 0, 1))

	if len(closed) != 1 {
		t.Fatalf("closed %d trades, want 1", len(closed))
	}
	if closed[0].ExitReason != types.ExitTargetHit {
		t.Errorf("exit reason = %s, want target_hit", closed[0].ExitReason)
	}
	if !closed[0].ExitPrice.Equal(decimal.NewFromInt(160)) {
		t.Errorf("exit price = %s, want the target at 160", closed[0].ExitPrice)
	}
}

func TestAdvanceMissingBarOnlyAges(t *testing.T) {
	b := newBook()
	b.OpenFromSignals([]types.StrategySignal{
		entrySignal("AAPL", types.StrategyMeanReversion, 150, 145, 160),
	}, day0)

	closed := b.Advance(map[string]types.Bar{}, day0.AddDate(0, 0, 1))

	if len(closed) != 0 {
		t.Fatalf("closed %d trades, want 0 on a missing bar", len(closed))
	}
	positions := b.Positions()
	if len(positions) != 1 || positions[0].DaysHeld != 1 {
		t.Errorf("positions = %+v, want one aged to 1 day", positions)
	}
}

func TestAdvanceHoldExpiry(t *testing.T) {
	b := newBook()
	b.OpenFromSignals([]types.StrategySignal{
		entrySignal("AAPL", types.StrategyMeanReversion, 100, 90, 200),
	}, day0)

	var closed []types.ClosedTrade
	for i := 1; i <= 5; i++ {
		closed = b.Advance(map[string]types.Bar{"AAPL": bar(101.5, 100.5, 101)}, day0.AddDate(0, 0, i))
	}

	if len(closed) != 1 {
		t.Fatalf("closed %d trades, want 1 on day 5", len(closed))
	}
	if closed[0].ExitReason != types.ExitExpired {
		t.Errorf("exit reason = %s, want expired", closed[0].ExitReason)
	}
	if !closed[0].ExitPrice.Equal(decimal.NewFromInt(101)) {
		t.Errorf("exit price = %s, want the close at 101", closed[0].ExitPrice)
	}
	if closed[0].DaysHeld != 5 {
		t.Errorf("days held = %d, want 5", closed[0].DaysHeld)
	}
}

func TestTrailingStopTightensAndExits(t *testing.T) {
	b := newBook()
	// Breakout carries a 1.5x trailing stop multiplier.
	b.OpenFromSignals([]types.StrategySignal{
		entrySignal("TSLA", types.StrategyBreakout, 100, 95, 120),
	}, day0)

	// Day 1: new high at 105 activates the trail at 105 - 1.5*(105-103.5).
	closed := b.Advance(map[string]types.Bar{"TSLA": bar(105, 103.5, 104.5)}, day0.AddDate(0, 0, 1))
	if len(closed) != 0 {
		t.Fatalf("closed %d trades on day 1, want 0", len(closed))
	}
	positions := b.Positions()
	if len(positions) != 1 {
		t.Fatal("position missing after day 1")
	}
	if !positions[0].TrailingStop.Equal(decimal.RequireFromString("102.75")) {
		t.Errorf("trailing stop = %s, want 102.75", positions[0].TrailingStop)
	}

	// Day 2: the pullback pierces the trail.
	closed = b.Advance(map[string]types.Bar{"TSLA": bar(104, 102, 102.5)}, day0.AddDate(0, 0, 2))
	if len(closed) != 1 {
		t.Fatalf("closed %d trades on day 2, want 1", len(closed))
	}
	if closed[0].ExitReason != types.ExitTrailingStopped {
		t.Errorf("exit reason = %s, want trailing_stopped", closed[0].ExitReason)
	}
	if !closed[0].ExitPrice.Equal(decimal.RequireFromString("102.75")) {
		t.Errorf("exit price = %s, want 102.75", closed[0].ExitPrice)
	}
	if !closed[0].PnL.Equal(decimal.RequireFromString("2.75")) {
		t.Errorf("pnl = %s, want 2.75", closed[0].PnL)
	}
}

func TestTrailingStopNeverLoosens(t *testing.T) {
	b := newBook()
	b.OpenFromSignals([]types.StrategySignal{
		entrySignal("TSLA", types.StrategyBreakout, 100, 95, 200),
	}, day0)

	b.Advance(map[string]types.Bar{"TSLA": bar(105, 103.5, 104.5)}, day0.AddDate(0, 0, 1))
	// A wider-range bar computes a looser trail; it must not apply.
	b.Advance(map[string]types.Bar{"TSLA": bar(105, 102.9, 104)}, day0.AddDate(0, 0, 2))

	positions := b.Positions()
	if len(positions) != 1 {
		t.Fatal("position should survive both days")
	}
	if !positions[0].TrailingStop.Equal(decimal.RequireFromString("102.75")) {
		t.Errorf("trailing stop = %s, want unchanged at 102.75", positions[0].TrailingStop)
	}
}

func TestShortPositionStop(t *testing.T) {
	b := newBook()
	sig := entrySignal("HOOD", types.StrategyMeanReversion, 100, 105, 90)
	sig.Direction = types.DirectionShort
	sig.Quantity = decimal.NewFromInt(2)
	b.OpenFromSignals([]types.StrategySignal{sig}, day0)

	closed := b.Advance(map[string]types.Bar{"HOOD": bar(106, 101, 104)}, day0.AddDate(0, 0, 1))

	if len(closed) != 1 {
		t.Fatalf("closed %d trades, want 1", len(closed))
	}
	if closed[0].ExitReason != types.ExitStoppedOut {
		t.Errorf("exit reason = %s, want stopped_out", closed[0].ExitReason)
	}
	if !closed[0].PnL.Equal(decimal.NewFromInt(-10)) {
		t.Errorf("pnl = %s, want -10 on a 2-share short stopped at 105", closed[0].PnL)
	}
}

func TestCloseAllForcesExit(t *testing.T) {
	b := newBook()
	b.OpenFromSignals([]types.StrategySignal{
		entrySignal("AAPL", types.StrategyMeanReversion, 150, 145, 160),
	}, day0)

	closed := b.CloseAll(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(152)}, day0.AddDate(0, 0, 3), types.ExitBacktestEnd)

	if len(closed) != 1 {
		t.Fatalf("closed %d trades, want 1", len(closed))
	}
	if closed[0].ExitReason != types.ExitBacktestEnd {
		t.Errorf("exit reason = %s, want backtest_end", closed[0].ExitReason)
	}
	if !closed[0].PnL.Equal(decimal.NewFromInt(2)) {
		t.Errorf("pnl = %s, want 2", closed[0].PnL)
	}
	if len(b.Positions()) != 0 {
		t.Error("positions should be empty after CloseAll")
	}
}

func TestPDTBlocksEntries(t *testing.T) {
	cfg := config.Default()
	cfg.Trader.PDTSimulation = true
	b := portfolio.NewBook(cfg, zap.NewNop())

	dayTrade := func(ticker string) types.ClosedTrade {
		return types.ClosedTrade{
			Ticker:    ticker,
			EntryDate: day0,
			ExitDate:  day0,
			PnL:       decimal.NewFromInt(1),
		}
	}
	b.Restore(nil, []types.ClosedTrade{dayTrade("A"), dayTrade("B"), dayTrade("C")}, types.PerformanceSnapshot{})

	opened := b.OpenFromSignals([]types.StrategySignal{
		entrySignal("AAPL", types.StrategyMeanReversion, 150, 145, 160),
	}, day0.AddDate(0, 0, 2))

	if len(opened) != 0 {
		t.Fatalf("opened %d positions, want 0 under the day-trade limit", len(opened))
	}
}

func TestPDTWindowSpansWeekend(t *testing.T) {
	cfg := config.Default()
	cfg.Trader.PDTSimulation = true
	b := portfolio.NewBook(cfg, zap.NewNop())

	// Round trips on Wed, Thu, Fri; the following Wednesday is still
	// within five business days of all three.
	dayTrade := func(ticker string, day time.Time) types.ClosedTrade {
		return types.ClosedTrade{
			Ticker:    ticker,
			EntryDate: day,
			ExitDate:  day,
			PnL:       decimal.NewFromInt(1),
		}
	}
	wed := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	b.Restore(nil, []types.ClosedTrade{
		dayTrade("A", wed),
		dayTrade("B", wed.AddDate(0, 0, 1)),
		dayTrade("C", wed.AddDate(0, 0, 2)),
	}, types.PerformanceSnapshot{})

	nextWed := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)
	opened := b.OpenFromSignals([]types.StrategySignal{
		entrySignal("AAPL", types.StrategyMeanReversion, 150, 145, 160),
	}, nextWed)

	if len(opened) != 0 {
		t.Fatalf("opened %d positions, want 0 under the day-trade limit", len(opened))
	}
}

func TestRestoreZeroSnapshotUsesConfiguredBalance(t *testing.T) {
	b := newBook()
	b.Restore(nil, nil, types.PerformanceSnapshot{})

	if !b.Balance().Equal(decimal.NewFromInt(500)) {
		t.Errorf("balance = %s, want the configured 500", b.Balance())
	}
}
