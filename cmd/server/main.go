// Package main runs the paper trading daemon: a periodic evaluation
// cycle over the local bar data plus the HTTP/WebSocket API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tradewind-labs/papertrader/internal/api"
	"github.com/tradewind-labs/papertrader/internal/backtester"
	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/internal/data"
	"github.com/tradewind-labs/papertrader/internal/indicators"
	"github.com/tradewind-labs/papertrader/internal/portfolio"
	"github.com/tradewind-labs/papertrader/internal/regime"
	"github.com/tradewind-labs/papertrader/internal/risk"
	"github.com/tradewind-labs/papertrader/internal/scoring"
	"github.com/tradewind-labs/papertrader/internal/store"
	"github.com/tradewind-labs/papertrader/internal/strategy"
	"github.com/tradewind-labs/papertrader/pkg/types"
)

func main() {
	host := flag.String("host", "localhost", "Server host")
	port := flag.Int("port", 8080, "Server port")
	dataDir := flag.String("data", "./data/bars", "Bar data directory")
	stateDir := flag.String("state", "./data/state", "State directory")
	configPath := flag.String("config", "", "Config file (optional)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	interval := flag.Duration("interval", 15*time.Minute, "Evaluation cycle interval")
	marketTicker := flag.String("market", "SPY", "Market index ticker for regime detection")
	vixTicker := flag.String("vix", "VIX", "Volatility index ticker")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := config.Load(logger, *configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger.Info("starting paper trading daemon",
		zap.String("data_dir", *dataDir),
		zap.String("state_dir", *stateDir),
		zap.Duration("interval", *interval),
		zap.String("market", *marketTicker))

	dataStore := data.NewStore(*dataDir, logger)
	if err := dataStore.LoadAll(); err != nil {
		logger.Fatal("failed to load bar data", zap.Error(err))
	}

	stateStore, err := store.NewStateStore(*stateDir, logger)
	if err != nil {
		logger.Fatal("failed to open state store", zap.Error(err))
	}

	classifier := regime.NewClassifier(cfg.Regime, logger)
	scorer := scoring.NewEngine(cfg.Scoring, logger)
	matcher := strategy.NewMatcher(cfg, logger)
	profiler := risk.NewProfiler(cfg.Risk, cfg.Trader, logger)
	book := portfolio.NewBook(cfg, logger)
	btEngine := backtester.NewEngine(cfg, logger)

	restoreState(logger, stateStore, book, classifier, profiler)

	server := api.NewServer(cfg.Server, logger, book, classifier, profiler, btEngine, dataStore)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("api server error", zap.Error(err))
		}
	}()

	d := &daemon{
		cfg:          cfg,
		logger:       logger,
		dataStore:    dataStore,
		stateStore:   stateStore,
		classifier:   classifier,
		scorer:       scorer,
		matcher:      matcher,
		profiler:     profiler,
		book:         book,
		server:       server,
		marketTicker: *marketTicker,
		vixTicker:    *vixTicker,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go d.run(ctx, *interval)

	logger.Info("daemon started",
		zap.String("http", fmt.Sprintf("http://%s:%d/api/v1", cfg.Server.Host, cfg.Server.Port)),
		zap.String("ws", fmt.Sprintf("ws://%s:%d/ws", cfg.Server.Host, cfg.Server.Port)))

	<-sigChan
	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}
	d.persist()
	logger.Info("daemon stopped")
}

// daemon wires the pipeline components for the periodic cycle.
type daemon struct {
	cfg          *config.Config
	logger       *zap.Logger
	dataStore    *data.Store
	stateStore   *store.StateStore
	classifier   *regime.Classifier
	scorer       *scoring.Engine
	matcher      *strategy.Matcher
	profiler     *risk.Profiler
	book         *portfolio.Book
	server       *api.Server
	marketTicker string
	vixTicker    string
}

func (d *daemon) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.cycle()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.cycle()
		}
	}
}

// cycle runs one full evaluation: reload data, classify the regime,
// advance open positions, score the universe, match strategies, risk
// check, open entries, then persist and broadcast.
func (d *daemon) cycle() {
	start := time.Now()
	if err := d.dataStore.LoadAll(); err != nil {
		d.logger.Error("data reload failed", zap.Error(err))
		return
	}

	marketBars := d.dataStore.Bars(d.marketTicker)
	if len(marketBars) == 0 {
		d.logger.Warn("no market data, skipping cycle", zap.String("ticker", d.marketTicker))
		return
	}
	today := marketBars[len(marketBars)-1].Date
	vixBars := d.dataStore.Bars(d.vixTicker)

	assessment := d.classifier.Classify(marketBars, vixBars)

	dayBars := map[string]types.Bar{}
	for _, ticker := range d.dataStore.Tickers() {
		if bar, ok := d.dataStore.BarOn(ticker, today); ok {
			dayBars[ticker] = bar
		}
	}
	closed := d.book.Advance(dayBars, today)
	for _, trade := range closed {
		d.profiler.LogBehavior(types.BehaviorEntry{
			Date:        trade.ExitDate,
			Action:      types.BehaviorExit,
			Ticker:      trade.Ticker,
			Strategy:    trade.Strategy,
			Reason:      string(trade.ExitReason),
			PlanAligned: true,
		})
		d.server.Hub().BroadcastTradeClosed(trade)
	}
	d.profiler.SetClosedTrades(d.book.ClosedTrades())

	scored := d.scoreUniverse(today)
	var signals []types.StrategySignal
	opened := 0

	if d.matcher.CheckDefensive(assessment, d.book.Performance()) {
		d.logger.Warn("defensive mode active, no new entries")
	} else if len(scored) > 0 {
		signals = d.matcher.Match(scored, assessment, d.book.Balance(),
			len(d.book.Positions()), d.cfg.Trader.MaxPositions)

		var admitted []types.StrategySignal
		var alerts []types.RiskAlert
		for i := range signals {
			sig := &signals[i]
			if sig.Action != types.ActionEnterNow {
				continue
			}
			assessmentRisk := d.profiler.AssessTrade(*sig, d.book.Positions(), d.book.Performance(), assessment)
			sig.Risk = &assessmentRisk
			alerts = append(alerts, assessmentRisk.Alerts...)
			if assessmentRisk.Recommendation == types.RecommendBlocked || assessmentRisk.Recommendation == types.RecommendSkip {
				sig.Action = types.ActionSkip
				sig.SkipReason = assessmentRisk.Reason
				d.profiler.LogBehavior(types.BehaviorEntry{
					Date:        today,
					Action:      types.BehaviorSkip,
					Ticker:      sig.Instrument.Ticker,
					Strategy:    sig.Strategy,
					Reason:      assessmentRisk.Reason,
					PlanAligned: true,
				})
				continue
			}
			if assessmentRisk.Recommendation == types.RecommendReduceSize {
				risk.ReduceSize(sig)
			}
			admitted = append(admitted, *sig)
		}

		newPositions := d.book.OpenFromSignals(admitted, today)
		opened = len(newPositions)
		for _, pos := range newPositions {
			d.profiler.LogBehavior(types.BehaviorEntry{
				Date:        today,
				Action:      types.BehaviorEnter,
				Ticker:      pos.Ticker,
				Strategy:    pos.Strategy,
				PlanAligned: true,
			})
		}
		d.server.Hub().BroadcastRiskAlerts(alerts)
	}

	d.book.RecomputePerformance()
	d.persist()

	d.server.SetCycle(signals, assessment)
	d.server.Hub().BroadcastRegime(assessment)
	d.server.Hub().BroadcastPositions(d.book.Positions())
	api.ObserveCycle(opened, closed, len(d.book.Positions()))

	d.logger.Info("evaluation cycle complete",
		zap.String("regime", string(assessment.Regime)),
		zap.Int("scored", len(scored)),
		zap.Int("signals", len(signals)),
		zap.Int("opened", opened),
		zap.Int("closed", len(closed)),
		zap.Int("open_positions", len(d.book.Positions())),
		zap.String("balance", d.book.Balance().String()),
		zap.Duration("elapsed", time.Since(start)))
}

func (d *daemon) scoreUniverse(today time.Time) []types.ScoredInstrument {
	var summaries []types.TechnicalSummary
	for _, ticker := range d.dataStore.Tickers() {
		if strings.EqualFold(ticker, d.marketTicker) || strings.EqualFold(ticker, d.vixTicker) {
			continue
		}
		bars := d.dataStore.SliceThrough(ticker, today)
		if summary, ok := indicators.Summarize(ticker, bars); ok {
			summaries = append(summaries, summary)
		}
	}
	if len(summaries) == 0 {
		return nil
	}
	return d.scorer.Score(summaries, nil)
}

func (d *daemon) persist() {
	if err := d.stateStore.SavePositions(d.book.Positions()); err != nil {
		d.logger.Error("persist positions failed", zap.Error(err))
	}
	if err := d.stateStore.SaveTrades(d.book.ClosedTrades()); err != nil {
		d.logger.Error("persist trades failed", zap.Error(err))
	}
	if err := d.stateStore.SavePerformance(d.book.Performance()); err != nil {
		d.logger.Error("persist performance failed", zap.Error(err))
	}
	if err := d.stateStore.SaveRegimeHistory(d.classifier.History()); err != nil {
		d.logger.Error("persist regime history failed", zap.Error(err))
	}
	if err := d.stateStore.SaveBehaviorLog(d.profiler.BehaviorLog()); err != nil {
		d.logger.Error("persist behavior log failed", zap.Error(err))
	}
}

func restoreState(logger *zap.Logger, stateStore *store.StateStore, book *portfolio.Book, classifier *regime.Classifier, profiler *risk.Profiler) {
	positions, err := stateStore.LoadPositions()
	if err != nil {
		logger.Warn("could not load positions", zap.Error(err))
	}
	trades, err := stateStore.LoadTrades()
	if err != nil {
		logger.Warn("could not load trade history", zap.Error(err))
	}
	perf, err := stateStore.LoadPerformance()
	if err != nil {
		logger.Warn("could not load performance", zap.Error(err))
	}
	book.Restore(positions, trades, perf)

	history, err := stateStore.LoadRegimeHistory()
	if err != nil {
		logger.Warn("could not load regime history", zap.Error(err))
	}
	classifier.SetHistory(history)

	behavior, err := stateStore.LoadBehaviorLog()
	if err != nil {
		logger.Warn("could not load behavior log", zap.Error(err))
	}
	profiler.SetBehaviorLog(behavior)
	profiler.SetClosedTrades(trades)

	logger.Info("state restored",
		zap.Int("open_positions", len(positions)),
		zap.Int("closed_trades", len(trades)),
		zap.Int("regime_days", len(history)))
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
