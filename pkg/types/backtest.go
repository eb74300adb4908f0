// Package types provides backtest configuration and result types.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// BacktestConfig configures one replay run.
type BacktestConfig struct {
	ID              string          `json:"id"`
	MarketTicker    string          `json:"marketTicker"` // broad-market series for regime detection
	VIXTicker       string          `json:"vixTicker,omitempty"`
	Start           time.Time       `json:"start"`
	End             time.Time       `json:"end"`
	StartingBalance decimal.Decimal `json:"startingBalance"`
	RiskPerTradePct float64         `json:"riskPerTradePct"`
	MaxPositions    int             `json:"maxPositions"`
}

// DailyBalance is one point of the day-by-day balance series, including
// unrealized P&L of positions still open that day.
type DailyBalance struct {
	Date          time.Time       `json:"date"`
	Balance       decimal.Decimal `json:"balance"`
	OpenPositions int             `json:"openPositions"`
}

// DirectionMetrics is the per-direction performance breakdown.
type DirectionMetrics struct {
	Trades  int             `json:"trades"`
	Wins    int             `json:"wins"`
	WinRate float64         `json:"winRate"`
	PnL     decimal.Decimal `json:"pnl"`
}

// BacktestResult is the full outcome of one replay run.
type BacktestResult struct {
	ID              string                           `json:"id"`
	Start           time.Time                        `json:"start"`
	End             time.Time                        `json:"end"`
	TradingDays     int                              `json:"tradingDays"`
	StartingBalance decimal.Decimal                  `json:"startingBalance"`
	EndingBalance   decimal.Decimal                  `json:"endingBalance"`
	TotalReturnPct  float64                          `json:"totalReturnPct"`
	TotalTrades     int                              `json:"totalTrades"`
	Wins            int                              `json:"wins"`
	Losses          int                              `json:"losses"`
	Expired         int                              `json:"expired"`
	WinRate         float64                          `json:"winRate"`
	ProfitFactor    float64                          `json:"profitFactor"`
	Expectancy      decimal.Decimal                  `json:"expectancy"`
	SharpeRatio     float64                          `json:"sharpeRatio"`
	SortinoRatio    float64                          `json:"sortinoRatio"`
	CalmarRatio     float64                          `json:"calmarRatio"`
	MaxDrawdownPct  float64                          `json:"maxDrawdownPct"`
	AvgRMultiple    float64                          `json:"avgRMultiple"`
	BestTrade       *ClosedTrade                     `json:"bestTrade,omitempty"`
	WorstTrade      *ClosedTrade                     `json:"worstTrade,omitempty"`
	Strategies      map[StrategyName]StrategyMetrics `json:"strategies,omitempty"`
	Directions      map[Direction]DirectionMetrics   `json:"directions,omitempty"`
	DailyBalances   []DailyBalance                   `json:"dailyBalances"`
	RegimeHistory   []RegimeDay                      `json:"regimeHistory"`
	Trades          []ClosedTrade                    `json:"trades"`
	StartedAt       time.Time                        `json:"startedAt"`
	CompletedAt     time.Time                        `json:"completedAt"`
}
