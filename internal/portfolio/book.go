// Package portfolio implements the paper trading book: position entry,
// the daily lifecycle evaluation, and derived performance statistics.
// No real orders, pure bookkeeping.
package portfolio

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/pkg/types"
	"github.com/tradewind-labs/papertrader/pkg/utils"
)

// Book owns the set of open positions, the closed-trade history, and
// the performance snapshot. Concurrency-safe.
type Book struct {
	cfg    *config.Config
	logger *zap.Logger

	mu        sync.RWMutex
	positions []types.Position
	closed    []types.ClosedTrade
	perf      types.PerformanceSnapshot
}

// NewBook creates an empty book with the configured starting balance.
func NewBook(cfg *config.Config, logger *zap.Logger) *Book {
	starting := decimal.NewFromFloat(cfg.Trader.StartingBalance)
	return &Book{
		cfg:    cfg,
		logger: logger,
		perf: types.PerformanceSnapshot{
			StartingBalance: starting,
			Balance:         starting,
		},
	}
}

// Restore replaces the book state, used when loading persisted state.
// A zero-value snapshot falls back to the configured starting balance.
func (b *Book) Restore(positions []types.Position, closed []types.ClosedTrade, perf types.PerformanceSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions = append(b.positions[:0], positions...)
	b.closed = append(b.closed[:0], closed...)
	if perf.StartingBalance.IsZero() {
		starting := decimal.NewFromFloat(b.cfg.Trader.StartingBalance)
		perf.StartingBalance = starting
		perf.Balance = starting
	}
	b.perf = perf
}

// Positions returns a copy of the open positions.
func (b *Book) Positions() []types.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.Position, len(b.positions))
	copy(out, b.positions)
	return out
}

// ClosedTrades returns a copy of the closed-trade history.
func (b *Book) ClosedTrades() []types.ClosedTrade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.ClosedTrade, len(b.closed))
	copy(out, b.closed)
	return out
}

// Performance returns the current performance snapshot.
func (b *Book) Performance() types.PerformanceSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.perf
}

// Balance returns the current virtual balance.
func (b *Book) Balance() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.perf.Balance
}

// OpenFromSignals opens positions for the enter_now signals, honoring
// the PDT simulation, the slot cap, and the one-position-per-ticker
// rule. Returns the newly opened positions.
func (b *Book) OpenFromSignals(signals []types.StrategySignal, today time.Time) []types.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	var opened []types.Position
	for _, sig := range signals {
		if sig.Action != types.ActionEnterNow {
			continue
		}
		if b.wouldViolatePDT(today) {
			b.logger.Warn("day-trade limit blocks entry", zap.String("ticker", sig.Instrument.Ticker))
			continue
		}
		if len(b.positions) >= b.cfg.Trader.MaxPositions {
			b.logger.Info("max positions reached",
				zap.Int("max", b.cfg.Trader.MaxPositions),
				zap.String("skipped", sig.Instrument.Ticker))
			break
		}
		if b.hasTicker(sig.Instrument.Ticker) {
			continue
		}
		if !sig.Quantity.IsPositive() {
			continue
		}

		stratCfg := b.cfg.Strategy(sig.Strategy)
		takeProfit := strategyTakeProfit(sig, stratCfg, sig.Instrument.Technical)

		pos := types.Position{
			ID:              utils.GeneratePositionID(today, len(b.positions)+len(opened)+1),
			Ticker:          sig.Instrument.Ticker,
			Sector:          sig.Instrument.Sector,
			Direction:       sig.Direction,
			EntryPrice:      sig.EntryPrice,
			EntryDate:       utils.DateOnly(today),
			Quantity:        sig.Quantity,
			StopLoss:        sig.StopLoss,
			TakeProfit:      takeProfit.Round(4),
			Strategy:        sig.Strategy,
			MaxHoldDays:     b.cfg.MaxHold(sig.Strategy),
			SignalScore:     sig.Instrument.CompositeScore,
			TrailingStopATR: stratCfg.Exit.TrailingStopATR,
			HighestPrice:    sig.EntryPrice,
			LowestPrice:     sig.EntryPrice,
		}

		b.positions = append(b.positions, pos)
		opened = append(opened, pos)
		b.logger.Info("paper trade opened",
			zap.String("id", pos.ID),
			zap.String("direction", string(pos.Direction)),
			zap.String("ticker", pos.Ticker),
			zap.String("entry", pos.EntryPrice.String()),
			zap.String("stop", pos.StopLoss.String()),
			zap.String("target", pos.TakeProfit.String()),
			zap.String("strategy", string(pos.Strategy)))
	}
	return opened
}

// strategyTakeProfit applies the strategy's take-profit method. The ATR
// target from the signal is the fallback when the method target lands
// on the wrong side of the entry.
func strategyTakeProfit(sig types.StrategySignal, cfg config.StrategyConfig, tech types.TechnicalSummary) decimal.Decimal {
	switch cfg.Exit.TakeProfitMethod {
	case "middle_band":
		// Mean reversion targets the middle band, proxied by the 20 EMA.
		if tech.EMA20 > 0 {
			mid := decimal.NewFromFloat(tech.EMA20)
			if sig.Direction == types.DirectionLong && mid.GreaterThan(sig.EntryPrice) {
				return mid
			}
			if sig.Direction == types.DirectionShort && mid.LessThan(sig.EntryPrice) {
				return mid
			}
		}
	case "measured_move":
		// Breakout projects the squeeze width, approximated as 4x ATR.
		if tech.ATR > 0 {
			move := decimal.NewFromFloat(tech.ATR * 4.0)
			if sig.Direction == types.DirectionLong {
				return sig.EntryPrice.Add(move)
			}
			return sig.EntryPrice.Sub(move)
		}
	}
	return sig.TakeProfit
}

// Advance evaluates every open position against the day's bars. A
// missing bar only ages the position. Exit checks run in a fixed order:
// trailing stop, initial stop, target, hold expiry.
func (b *Book) Advance(bars map[string]types.Bar, today time.Time) []types.ClosedTrade {
	b.mu.Lock()
	defer b.mu.Unlock()

	var closed []types.ClosedTrade
	stillOpen := b.positions[:0]

	for i := range b.positions {
		pos := b.positions[i]
		bar, ok := bars[pos.Ticker]
		if !ok {
			pos.DaysHeld++
			stillOpen = append(stillOpen, pos)
			continue
		}

		pos.DaysHeld++
		pos.HighestPrice = utils.DecimalMax(pos.HighestPrice, bar.High)
		pos.LowestPrice = utils.DecimalMin(pos.LowestPrice, bar.Low)
		updateTrailingStop(&pos, bar, b.logger)

		reason := checkExit(pos, bar)
		if reason == "" {
			if pos.Direction == types.DirectionLong {
				pos.UnrealizedPnL = bar.Close.Sub(pos.EntryPrice).Mul(pos.Quantity).Round(2)
			} else {
				pos.UnrealizedPnL = pos.EntryPrice.Sub(bar.Close).Mul(pos.Quantity).Round(2)
			}
			stillOpen = append(stillOpen, pos)
			continue
		}

		exitPrice := exitPriceFor(pos, bar, reason)
		trade := b.close(pos, exitPrice, reason, today)
		closed = append(closed, trade)
	}

	b.positions = stillOpen
	if len(closed) > 0 {
		b.recomputeLocked()
	}
	b.perf.OpenPositions = len(b.positions)
	return closed
}

// CloseAll force-closes every open position at the given prices, used
// at the end of a backtest. Positions without a price close at entry.
func (b *Book) CloseAll(prices map[string]decimal.Decimal, today time.Time, reason types.ExitReason) []types.ClosedTrade {
	b.mu.Lock()
	defer b.mu.Unlock()

	var closed []types.ClosedTrade
	for _, pos := range b.positions {
		exitPrice, ok := prices[pos.Ticker]
		if !ok {
			exitPrice = pos.EntryPrice
		}
		closed = append(closed, b.close(pos, exitPrice, reason, today))
	}
	b.positions = b.positions[:0]
	if len(closed) > 0 {
		b.recomputeLocked()
	}
	b.perf.OpenPositions = 0
	return closed
}

// close converts a position into a closed trade and realizes its P&L.
// Caller holds the lock.
func (b *Book) close(pos types.Position, exitPrice decimal.Decimal, reason types.ExitReason, today time.Time) types.ClosedTrade {
	var pnl decimal.Decimal
	if pos.Direction == types.DirectionLong {
		pnl = exitPrice.Sub(pos.EntryPrice).Mul(pos.Quantity).Round(2)
	} else {
		pnl = pos.EntryPrice.Sub(exitPrice).Mul(pos.Quantity).Round(2)
	}

	pnlPct := 0.0
	if cost := pos.EntryPrice.Mul(pos.Quantity); cost.IsPositive() {
		pct, _ := pnl.Div(cost).Float64()
		pnlPct = pct * 100
	}
	rMultiple := 0.0
	if risk := pos.EntryPrice.Sub(pos.StopLoss).Abs().Mul(pos.Quantity); risk.IsPositive() {
		r, _ := pnl.Div(risk).Float64()
		rMultiple = r
	}

	trade := types.ClosedTrade{
		ID:          pos.ID,
		PositionID:  pos.ID,
		Ticker:      pos.Ticker,
		Sector:      pos.Sector,
		Direction:   pos.Direction,
		Strategy:    pos.Strategy,
		EntryPrice:  pos.EntryPrice,
		EntryDate:   pos.EntryDate,
		ExitPrice:   exitPrice.Round(4),
		ExitDate:    utils.DateOnly(today),
		ExitReason:  reason,
		Quantity:    pos.Quantity,
		StopLoss:    pos.StopLoss,
		TakeProfit:  pos.TakeProfit,
		PnL:         pnl,
		PnLPct:      utils.RoundTo(pnlPct, 2),
		RMultiple:   utils.RoundTo(rMultiple, 2),
		DaysHeld:    pos.DaysHeld,
		SignalScore: pos.SignalScore,
	}
	b.closed = append(b.closed, trade)
	b.perf.Balance = b.perf.Balance.Add(pnl).Round(2)

	b.logger.Info("paper trade closed",
		zap.String("id", pos.ID),
		zap.String("direction", string(pos.Direction)),
		zap.String("ticker", pos.Ticker),
		zap.String("reason", string(reason)),
		zap.String("pnl", pnl.String()),
		zap.Int("days_held", pos.DaysHeld))
	return trade
}

// updateTrailingStop recomputes the trailing stop from the favorable
// extreme. It activates only once the position is in profit and only
// ever tightens.
func updateTrailingStop(pos *types.Position, bar types.Bar, logger *zap.Logger) {
	if pos.TrailingStopATR <= 0 {
		return
	}
	rangeProxy := bar.High.Sub(bar.Low).Abs()
	if !rangeProxy.IsPositive() {
		return
	}
	distance := rangeProxy.Mul(decimal.NewFromFloat(pos.TrailingStopATR))

	if pos.Direction == types.DirectionLong {
		newTrail := pos.HighestPrice.Sub(distance)
		if newTrail.GreaterThan(pos.EntryPrice) &&
			(pos.TrailingStop.IsZero() || newTrail.GreaterThan(pos.TrailingStop)) {
			pos.TrailingStop = newTrail.Round(4)
			logger.Debug("trailing stop raised",
				zap.String("ticker", pos.Ticker),
				zap.String("level", pos.TrailingStop.String()))
		}
		return
	}

	newTrail := pos.LowestPrice.Add(distance)
	if newTrail.LessThan(pos.EntryPrice) &&
		(pos.TrailingStop.IsZero() || newTrail.LessThan(pos.TrailingStop)) {
		pos.TrailingStop = newTrail.Round(4)
		logger.Debug("trailing stop lowered",
			zap.String("ticker", pos.Ticker),
			zap.String("level", pos.TrailingStop.String()))
	}
}

// checkExit returns the exit reason triggered by the day's bar, or ""
// when the position stays open.
func checkExit(pos types.Position, bar types.Bar) types.ExitReason {
	if pos.Direction == types.DirectionLong {
		if pos.TrailingStop.IsPositive() && bar.Low.LessThanOrEqual(pos.TrailingStop) {
			return types.ExitTrailingStopped
		}
		if bar.Low.LessThanOrEqual(pos.StopLoss) {
			return types.ExitStoppedOut
		}
		if bar.High.GreaterThanOrEqual(pos.TakeProfit) {
			return types.ExitTargetHit
		}
	} else {
		if pos.TrailingStop.IsPositive() && bar.High.GreaterThanOrEqual(pos.TrailingStop) {
			return types.ExitTrailingStopped
		}
		if bar.High.GreaterThanOrEqual(pos.StopLoss) {
			return types.ExitStoppedOut
		}
		if bar.Low.LessThanOrEqual(pos.TakeProfit) {
			return types.ExitTargetHit
		}
	}
	if pos.DaysHeld >= pos.MaxHoldDays {
		return types.ExitExpired
	}
	return ""
}

// exitPriceFor resolves the fill price for an exit reason. A stop exit
// uses the trailing level when one is active, since it is the tighter
// of the two.
func exitPriceFor(pos types.Position, bar types.Bar, reason types.ExitReason) decimal.Decimal {
	switch reason {
	case types.ExitStoppedOut:
		if pos.TrailingStop.IsPositive() {
			return pos.TrailingStop
		}
		return pos.StopLoss
	case types.ExitTrailingStopped:
		return pos.TrailingStop
	case types.ExitTargetHit:
		return pos.TakeProfit
	default:
		return bar.Close
	}
}

// hasTicker reports whether a position is already open for the ticker.
// Caller holds the lock.
func (b *Book) hasTicker(ticker string) bool {
	for _, p := range b.positions {
		if p.Ticker == ticker {
			return true
		}
	}
	return false
}

// wouldViolatePDT applies the pattern day trader simulation: three or
// more same-day round trips within the trailing five business days
// block new entries. Caller holds the lock.
func (b *Book) wouldViolatePDT(today time.Time) bool {
	if !b.cfg.Trader.PDTSimulation {
		return false
	}
	cutoff := utils.BusinessDaysAgo(today, 5)
	count := 0
	for _, t := range b.closed {
		if !t.EntryDate.Before(cutoff) && utils.SameDay(t.EntryDate, t.ExitDate) {
			count++
		}
	}
	if count >= b.cfg.Trader.PDTMaxDayTrades {
		b.logger.Warn("day-trade limit reached",
			zap.Int("day_trades", count),
			zap.Int("max", b.cfg.Trader.PDTMaxDayTrades))
		return true
	}
	return false
}
