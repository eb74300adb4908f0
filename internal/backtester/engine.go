// Package backtester replays historical bar data through the full
// decision pipeline: regime classification, scoring, strategy matching,
// and the paper book, one trading day at a time.
package backtester

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/internal/data"
	"github.com/tradewind-labs/papertrader/internal/indicators"
	"github.com/tradewind-labs/papertrader/internal/portfolio"
	"github.com/tradewind-labs/papertrader/internal/regime"
	"github.com/tradewind-labs/papertrader/internal/scoring"
	"github.com/tradewind-labs/papertrader/internal/strategy"
	"github.com/tradewind-labs/papertrader/pkg/types"
)

// Engine runs deterministic replays. Each run builds fresh pipeline
// components so regime history and book state never leak between runs.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewEngine creates a backtest engine.
func NewEngine(cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger}
}

// Run replays the configured date range against the store's series.
// Trading days come from the market ticker's bars; every per-day
// decision sees only bars dated on or before that day.
func (e *Engine) Run(btCfg types.BacktestConfig, store *data.Store) (*types.BacktestResult, error) {
	if btCfg.MarketTicker == "" {
		return nil, fmt.Errorf("backtest: market ticker required")
	}
	if !btCfg.End.After(btCfg.Start) {
		return nil, fmt.Errorf("backtest: end %s not after start %s",
			btCfg.End.Format("2006-01-02"), btCfg.Start.Format("2006-01-02"))
	}
	if btCfg.ID == "" {
		btCfg.ID = uuid.New().String()
	}

	runCfg := e.runConfig(btCfg)
	classifier := regime.NewClassifier(runCfg.Regime, e.logger)
	scorer := scoring.NewEngine(runCfg.Scoring, e.logger)
	matcher := strategy.NewMatcher(runCfg, e.logger)
	book := portfolio.NewBook(runCfg, e.logger)

	tradingDays := store.TradingDays(btCfg.MarketTicker, btCfg.Start, btCfg.End)
	if len(tradingDays) == 0 {
		return nil, fmt.Errorf("backtest: no trading days for %s in range", btCfg.MarketTicker)
	}
	e.logger.Info("backtest started",
		zap.String("id", btCfg.ID),
		zap.Int("trading_days", len(tradingDays)),
		zap.Time("start", btCfg.Start),
		zap.Time("end", btCfg.End))

	startedAt := time.Now()
	var dailyBalances []types.DailyBalance

	for _, day := range tradingDays {
		marketSlice := store.SliceThrough(btCfg.MarketTicker, day)
		if len(marketSlice) < 20 {
			continue
		}
		var vixSlice []types.Bar
		if btCfg.VIXTicker != "" {
			vixSlice = store.SliceThrough(btCfg.VIXTicker, day)
		}
		assessment := classifier.Classify(marketSlice, vixSlice)

		dayBars := e.barsOn(store, day)
		book.Advance(dayBars, day)

		scored := e.scoreUniverse(scorer, store, btCfg, day, dayBars)
		if len(scored) > 0 && !matcher.CheckDefensive(assessment, book.Performance()) {
			signals := matcher.Match(scored, assessment, book.Balance(),
				len(book.Positions()), runCfg.Trader.MaxPositions)
			book.OpenFromSignals(signals, day)
		}

		dailyBalances = append(dailyBalances, types.DailyBalance{
			Date:          day,
			Balance:       book.Balance().Add(unrealized(book.Positions(), dayBars)).Round(2),
			OpenPositions: len(book.Positions()),
		})
	}

	// Close whatever survived the range at the last available price.
	lastPrices := map[string]decimal.Decimal{}
	for _, pos := range book.Positions() {
		if bars := store.SliceThrough(pos.Ticker, btCfg.End); len(bars) > 0 {
			lastPrices[pos.Ticker] = bars[len(bars)-1].Close
		}
	}
	book.CloseAll(lastPrices, btCfg.End, types.ExitBacktestEnd)

	result := Compile(btCfg, book, dailyBalances, classifier.History(), len(tradingDays))
	result.StartedAt = startedAt
	result.CompletedAt = time.Now()

	e.logger.Info("backtest complete",
		zap.String("id", btCfg.ID),
		zap.Int("trades", result.TotalTrades),
		zap.String("ending_balance", result.EndingBalance.String()),
		zap.Float64("return_pct", result.TotalReturnPct))
	return result, nil
}

// runConfig clones the base config with the run's overrides applied.
func (e *Engine) runConfig(btCfg types.BacktestConfig) *config.Config {
	cfg := *e.cfg
	if btCfg.StartingBalance.IsPositive() {
		balance, _ := btCfg.StartingBalance.Float64()
		cfg.Trader.StartingBalance = balance
	}
	if btCfg.RiskPerTradePct > 0 {
		cfg.Trader.RiskPerTradePct = btCfg.RiskPerTradePct
	}
	if btCfg.MaxPositions > 0 {
		cfg.Trader.MaxPositions = btCfg.MaxPositions
	}
	return &cfg
}

// barsOn collects every ticker's bar for the given day.
func (e *Engine) barsOn(store *data.Store, day time.Time) map[string]types.Bar {
	bars := map[string]types.Bar{}
	for _, ticker := range store.Tickers() {
		if bar, ok := store.BarOn(ticker, day); ok {
			bars[ticker] = bar
		}
	}
	return bars
}

// scoreUniverse summarizes and scores every tradable ticker as of the
// day. The market and VIX series are never trade candidates, and a
// ticker must have a bar on the day itself.
func (e *Engine) scoreUniverse(scorer *scoring.Engine, store *data.Store, btCfg types.BacktestConfig, day time.Time, dayBars map[string]types.Bar) []types.ScoredInstrument {
	var summaries []types.TechnicalSummary
	for _, ticker := range store.Tickers() {
		if strings.EqualFold(ticker, btCfg.MarketTicker) || strings.EqualFold(ticker, btCfg.VIXTicker) {
			continue
		}
		if _, ok := dayBars[ticker]; !ok {
			continue
		}
		slice := store.SliceThrough(ticker, day)
		if len(slice) < 20 {
			continue
		}
		if summary, ok := indicators.Summarize(ticker, slice); ok {
			summaries = append(summaries, summary)
		}
	}
	if len(summaries) == 0 {
		return nil
	}
	return scorer.Score(summaries, nil)
}

// unrealized sums the mark-to-market P&L of open positions at the
// day's closes.
func unrealized(positions []types.Position, dayBars map[string]types.Bar) decimal.Decimal {
	total := decimal.Zero
	for _, pos := range positions {
		bar, ok := dayBars[pos.Ticker]
		if !ok {
			continue
		}
		if pos.Direction == types.DirectionLong {
			total = total.Add(bar.Close.Sub(pos.EntryPrice).Mul(pos.Quantity))
		} else {
			total = total.Add(pos.EntryPrice.Sub(bar.Close).Mul(pos.Quantity))
		}
	}
	return total
}
