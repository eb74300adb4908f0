// Package main runs a historical replay from the command line and
// prints a formatted report.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/backtester"
	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/internal/data"
	"github.com/tradewind-labs/papertrader/pkg/types"
)

func main() {
	dataDir := flag.String("data", "./data/bars", "Bar data directory")
	configPath := flag.String("config", "", "Config file (optional)")
	marketTicker := flag.String("market", "SPY", "Market index ticker for regime detection")
	vixTicker := flag.String("vix", "VIX", "Volatility index ticker")
	startStr := flag.String("start", "", "Start date (YYYY-MM-DD)")
	endStr := flag.String("end", "", "End date (YYYY-MM-DD)")
	balance := flag.Float64("balance", 500, "Starting balance")
	riskPct := flag.Float64("risk", 2.0, "Risk per trade, percent")
	maxPositions := flag.Int("max-positions", 3, "Max concurrent positions")
	outDir := flag.String("out", "./data/backtest", "Output directory for the JSON report")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		fatal("invalid -start, want YYYY-MM-DD: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		fatal("invalid -end, want YYYY-MM-DD: %v", err)
	}

	cfg, err := config.Load(logger, *configPath)
	if err != nil {
		fatal("load config: %v", err)
	}

	store := data.NewStore(*dataDir, logger)
	if err := store.LoadAll(); err != nil {
		fatal("load bar data: %v", err)
	}

	engine := backtester.NewEngine(cfg, logger)
	result, err := engine.Run(types.BacktestConfig{
		MarketTicker:    *marketTicker,
		VIXTicker:       *vixTicker,
		Start:           start,
		End:             end,
		StartingBalance: decimal.NewFromFloat(*balance),
		RiskPerTradePct: *riskPct,
		MaxPositions:    *maxPositions,
	}, store)
	if err != nil {
		fatal("backtest: %v", err)
	}

	printReport(result)

	if err := saveReport(result, *outDir); err != nil {
		fatal("save report: %v", err)
	}
}

func printReport(r *types.BacktestResult) {
	line := "============================================================"
	fmt.Println()
	fmt.Println(line)
	fmt.Printf("  BACKTEST RESULTS: %s to %s\n",
		r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	fmt.Println(line)
	fmt.Printf("\n  Period: %d trading days\n", r.TradingDays)
	fmt.Printf("  Starting Balance: $%s\n", r.StartingBalance.StringFixed(2))
	fmt.Printf("  Ending Balance:   $%s\n", r.EndingBalance.StringFixed(2))

	pnl := r.EndingBalance.Sub(r.StartingBalance)
	sign := ""
	if !pnl.IsNegative() {
		sign = "+"
	}
	fmt.Printf("  Total Return:     %s$%s (%s%.1f%%)\n", sign, pnl.StringFixed(2), sign, r.TotalReturnPct)

	fmt.Printf("\n  Trades: %d | Wins: %d | Losses: %d | Expired: %d\n",
		r.TotalTrades, r.Wins, r.Losses, r.Expired)
	fmt.Printf("  Win Rate:       %.1f%%\n", r.WinRate*100)
	fmt.Printf("  Profit Factor:  %.2f\n", r.ProfitFactor)
	fmt.Printf("  Expectancy:     $%s/trade\n", r.Expectancy.StringFixed(2))
	fmt.Printf("  Avg R-Multiple: %.2f\n", r.AvgRMultiple)
	fmt.Printf("  Sharpe Ratio:   %.2f\n", r.SharpeRatio)
	fmt.Printf("  Sortino Ratio:  %.2f\n", r.SortinoRatio)
	fmt.Printf("  Calmar Ratio:   %.2f\n", r.CalmarRatio)
	fmt.Printf("  Max Drawdown:   %.1f%%\n", r.MaxDrawdownPct)

	if r.BestTrade != nil {
		fmt.Printf("\n  Best Trade:  %s (%s) %s$%s\n",
			r.BestTrade.Ticker, r.BestTrade.Strategy, "+", r.BestTrade.PnL.StringFixed(2))
	}
	if r.WorstTrade != nil {
		fmt.Printf("  Worst Trade: %s (%s) $%s\n",
			r.WorstTrade.Ticker, r.WorstTrade.Strategy, r.WorstTrade.PnL.StringFixed(2))
	}

	if len(r.Strategies) > 0 {
		fmt.Println("\n  Strategy Breakdown:")
		fmt.Printf("  %-20s %6s %6s %10s\n", "Strategy", "Trades", "Win%", "P&L")
		names := make([]string, 0, len(r.Strategies))
		for name := range r.Strategies {
			names = append(names, string(name))
		}
		sort.Strings(names)
		for _, name := range names {
			m := r.Strategies[types.StrategyName(name)]
			fmt.Printf("  %-20s %6d %5.0f%% $%9s\n", name, m.Trades, m.WinRate*100, m.PnL.StringFixed(2))
		}
	}

	if len(r.RegimeHistory) > 0 {
		counts := map[types.Regime]int{}
		for _, day := range r.RegimeHistory {
			counts[day.Regime]++
		}
		fmt.Println("\n  Regime Distribution:")
		regimes := make([]string, 0, len(counts))
		for regime := range counts {
			regimes = append(regimes, string(regime))
		}
		sort.Slice(regimes, func(i, j int) bool {
			return counts[types.Regime(regimes[i])] > counts[types.Regime(regimes[j])]
		})
		for _, regime := range regimes {
			count := counts[types.Regime(regime)]
			pct := float64(count) / float64(len(r.RegimeHistory)) * 100
			fmt.Printf("    %s: %d days (%.0f%%)\n", regime, count, pct)
		}
	}

	fmt.Println()
	fmt.Println(line)
}

func saveReport(r *types.BacktestResult, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("backtest_%s_to_%s.json",
		r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	path := filepath.Join(dir, name)

	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return err
	}
	fmt.Printf("\nReport saved to %s\n", path)
	return nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
