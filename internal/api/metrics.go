package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tradewind-labs/papertrader/pkg/types"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrader_cycles_total",
		Help: "Completed evaluation cycles.",
	})
	tradesOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrader_trades_opened_total",
		Help: "Paper positions opened.",
	})
	tradesClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_trades_closed_total",
		Help: "Paper positions closed, by exit reason.",
	}, []string{"reason"})
	backtestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrader_backtests_total",
		Help: "Backtest runs started.",
	})
	openPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrader_open_positions",
		Help: "Currently open paper positions.",
	})
)

// ObserveCycle records one completed evaluation cycle.
func ObserveCycle(opened int, closed []types.ClosedTrade, open int) {
	cyclesTotal.Inc()
	tradesOpenedTotal.Add(float64(opened))
	for _, t := range closed {
		tradesClosedTotal.WithLabelValues(string(t.ExitReason)).Inc()
	}
	openPositions.Set(float64(open))
}

// ObserveBacktest records one backtest run.
func ObserveBacktest() {
	backtestsTotal.Inc()
}
