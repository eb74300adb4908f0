// Package types provides shared type definitions for the paper trading core.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Regime represents the classified behavior of the broad market.
type Regime string

const (
	RegimeTrendingUp     Regime = "trending_up"
	RegimeTrendingDown   Regime = "trending_down"
	RegimeRangeBound     Regime = "range_bound"
	RegimeHighVolatility Regime = "high_volatility"
)

// SignalClass is the discretized strength of a composite score.
type SignalClass string

const (
	SignalStrongBuy  SignalClass = "STRONG_BUY"
	SignalBuy        SignalClass = "BUY"
	SignalNeutral    SignalClass = "NEUTRAL"
	SignalSell       SignalClass = "SELL"
	SignalStrongSell SignalClass = "STRONG_SELL"
)

// Direction represents long or short exposure.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Action classifies the actionability of a strategy signal.
type Action string

const (
	ActionEnterNow  Action = "enter_now"
	ActionWatchlist Action = "watchlist"
	ActionSkip      Action = "skip"
)

// StrategyName identifies a trading strategy rule-set.
type StrategyName string

const (
	StrategyTrendFollowing StrategyName = "trend_following"
	StrategyMeanReversion  StrategyName = "mean_reversion"
	StrategyBreakout       StrategyName = "breakout"
	StrategyMomentum       StrategyName = "momentum"
	StrategyDefensive      StrategyName = "defensive"
)

// ExitReason is the terminal state of a closed position.
type ExitReason string

const (
	ExitStoppedOut      ExitReason = "stopped_out"
	ExitTrailingStopped ExitReason = "trailing_stopped"
	ExitTargetHit       ExitReason = "target_hit"
	ExitExpired         ExitReason = "expired"
	ExitManual          ExitReason = "manual"
	ExitBacktestEnd     ExitReason = "backtest_end"
)

// RiskLevel buckets a composite risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskElevated RiskLevel = "elevated"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// AlertSeverity grades a risk alert. Block and Critical are hard blocks.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityAlert    AlertSeverity = "alert"
	SeverityBlock    AlertSeverity = "block"
	SeverityCritical AlertSeverity = "critical"
)

// IsHardBlock reports whether the severity forces a blocked recommendation.
func (s AlertSeverity) IsHardBlock() bool {
	return s == SeverityBlock || s == SeverityCritical
}

// Recommendation is the risk engine verdict for a candidate trade.
type Recommendation string

const (
	RecommendEnter      Recommendation = "enter"
	RecommendReduceSize Recommendation = "reduce_size"
	RecommendSkip       Recommendation = "skip"
	RecommendBlocked    Recommendation = "blocked"
	RecommendMonitor    Recommendation = "monitor"
)

// SentimentClass classifies an aggregate news sentiment score.
type SentimentClass string

const (
	SentimentBullish SentimentClass = "bullish"
	SentimentNeutral SentimentClass = "neutral"
	SentimentBearish SentimentClass = "bearish"
)

// TrendState describes price location relative to its moving averages.
type TrendState string

const (
	TrendAboveAllSMA TrendState = "above_all_sma"
	TrendBelowAllSMA TrendState = "below_all_sma"
	TrendMixed       TrendState = "mixed"
)

// Bar represents a single daily candlestick.
type Bar struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// TechnicalSummary bundles the per-instrument indicator readings the
// matcher and risk engine consume. Produced by internal/indicators.
type TechnicalSummary struct {
	Ticker        string          `json:"ticker"`
	RSI           float64         `json:"rsi"`
	MACDSignal    int             `json:"macdSignal"` // -1, 0, 1
	MACDHistogram float64         `json:"macdHistogram"`
	SMACross      int             `json:"smaCross"` // -1 death, 0, 1 golden
	EMATrend      int             `json:"emaTrend"` // -1 below 20 EMA, 1 above
	BBSqueeze     bool            `json:"bbSqueeze"`
	BBPosition    float64         `json:"bbPosition"` // -1 lower band .. +1 upper band
	VolumeRatio   float64         `json:"volumeRatio"`
	ATR           float64         `json:"atr"`
	ADX           float64         `json:"adx"`
	SMA50         float64         `json:"sma50"`
	SMA200        float64         `json:"sma200"`
	EMA20         float64         `json:"ema20"`
	Close         decimal.Decimal `json:"close"`
	Composite     float64         `json:"composite"` // -1 .. +1
}

// SentimentSummary is the per-instrument news sentiment input. Optional;
// absence is treated as neutral.
type SentimentSummary struct {
	Ticker         string         `json:"ticker"`
	Score          float64        `json:"score"` // -1 .. +1
	Classification SentimentClass `json:"classification"`
	ArticleCount   int            `json:"articleCount"`
	TopHeadline    string         `json:"topHeadline,omitempty"`
	Source         string         `json:"source,omitempty"`
}

// ScoredInstrument is one ranked, scored candidate per evaluation cycle.
type ScoredInstrument struct {
	Rank           int               `json:"rank"`
	Ticker         string            `json:"ticker"`
	Sector         string            `json:"sector,omitempty"`
	CompositeScore float64           `json:"compositeScore"` // -1 .. +1
	Signal         SignalClass       `json:"signal"`
	Technical      TechnicalSummary  `json:"technical"`
	Sentiment      *SentimentSummary `json:"sentiment,omitempty"`
	Reasoning      string            `json:"reasoning,omitempty"`
}

// RegimeAssessment is an immutable snapshot produced once per evaluation
// cycle by the regime classifier.
type RegimeAssessment struct {
	Regime           Regime         `json:"regime"`
	Confidence       float64        `json:"confidence"` // 0 .. 1
	Trend            TrendState     `json:"trend"`
	ADX              float64        `json:"adx"`
	VIX              float64        `json:"vix"`
	Breadth          float64        `json:"breadth"` // percent, 0 .. 100
	AgeDays          int            `json:"ageDays"`
	ActiveStrategies []StrategyName `json:"activeStrategies"`
	SizeModifier     float64        `json:"sizeModifier"` // (0, 1]
	Timestamp        time.Time      `json:"timestamp"`
}

// HasStrategy reports whether the strategy may trade in this regime.
func (a RegimeAssessment) HasStrategy(name StrategyName) bool {
	for _, s := range a.ActiveStrategies {
		if s == name {
			return true
		}
	}
	return false
}

// RegimeDay is one entry of the rolling regime history.
type RegimeDay struct {
	Date       time.Time `json:"date"`
	Regime     Regime    `json:"regime"`
	Confidence float64   `json:"confidence"`
	ADX        float64   `json:"adx"`
	VIX        float64   `json:"vix"`
	Breadth    float64   `json:"breadth"`
}

// StrategySignal is one candidate trade for one (instrument, strategy)
// pair. Ephemeral: it exists for a single evaluation cycle only.
type StrategySignal struct {
	Instrument    ScoredInstrument `json:"instrument"`
	Strategy      StrategyName     `json:"strategy"`
	Label         string           `json:"label"`
	Action        Action           `json:"action"`
	Direction     Direction        `json:"direction"`
	EntryPrice    decimal.Decimal  `json:"entryPrice"`
	StopLoss      decimal.Decimal  `json:"stopLoss"`
	TakeProfit    decimal.Decimal  `json:"takeProfit"`
	RiskPerUnit   decimal.Decimal  `json:"riskPerUnit"`
	RewardPerUnit decimal.Decimal  `json:"rewardPerUnit"`
	RiskReward    float64          `json:"riskReward"`
	Quantity      decimal.Decimal  `json:"quantity"`
	DollarRisk    decimal.Decimal  `json:"dollarRisk"`
	SkipReason    string           `json:"skipReason,omitempty"`
	Regime        Regime           `json:"regime"`
	Risk          *RiskAssessment  `json:"risk,omitempty"`
}

// Position is one open simulated position. Owned and mutated exclusively
// by the portfolio book, one evaluation per time-step.
type Position struct {
	ID              string          `json:"id"`
	Ticker          string          `json:"ticker"`
	Sector          string          `json:"sector,omitempty"`
	Direction       Direction       `json:"direction"`
	EntryPrice      decimal.Decimal `json:"entryPrice"`
	EntryDate       time.Time       `json:"entryDate"`
	Quantity        decimal.Decimal `json:"quantity"`
	StopLoss        decimal.Decimal `json:"stopLoss"`
	TakeProfit      decimal.Decimal `json:"takeProfit"`
	Strategy        StrategyName    `json:"strategy"`
	MaxHoldDays     int             `json:"maxHoldDays"`
	DaysHeld        int             `json:"daysHeld"`
	SignalScore     float64         `json:"signalScore"`
	UnrealizedPnL   decimal.Decimal `json:"unrealizedPnl"`
	TrailingStop    decimal.Decimal `json:"trailingStop"`    // zero = inactive
	TrailingStopATR float64         `json:"trailingStopAtr"` // multiplier, 0 = disabled
	HighestPrice    decimal.Decimal `json:"highestPrice"`
	LowestPrice     decimal.Decimal `json:"lowestPrice"`
}

// ClosedTrade is the append-only record of a terminated position. It is
// the source of truth for all derived performance statistics.
type ClosedTrade struct {
	ID          string          `json:"id"`
	PositionID  string          `json:"positionId"`
	Ticker      string          `json:"ticker"`
	Sector      string          `json:"sector,omitempty"`
	Direction   Direction       `json:"direction"`
	Strategy    StrategyName    `json:"strategy"`
	EntryPrice  decimal.Decimal `json:"entryPrice"`
	EntryDate   time.Time       `json:"entryDate"`
	ExitPrice   decimal.Decimal `json:"exitPrice"`
	ExitDate    time.Time       `json:"exitDate"`
	ExitReason  ExitReason      `json:"exitReason"`
	Quantity    decimal.Decimal `json:"quantity"`
	StopLoss    decimal.Decimal `json:"stopLoss"`
	TakeProfit  decimal.Decimal `json:"takeProfit"`
	PnL         decimal.Decimal `json:"pnl"`
	PnLPct      float64         `json:"pnlPct"`
	RMultiple   float64         `json:"rMultiple"`
	DaysHeld    int             `json:"daysHeld"`
	SignalScore float64         `json:"signalScore"`
}

// RiskAlert is a single finding from one risk dimension check.
type RiskAlert struct {
	Severity  AlertSeverity `json:"severity"`
	Dimension string        `json:"dimension"`
	Message   string        `json:"message"`
	Check     string        `json:"check"`
	Value     float64       `json:"value"`
	Threshold float64       `json:"threshold"`
}

// DimensionScore is one of the five named risk dimensions.
type DimensionScore struct {
	Name    string         `json:"name"`
	Score   float64        `json:"score"` // 0 .. 10
	Alerts  []RiskAlert    `json:"alerts,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// RiskAssessment is the combined five-dimension risk verdict. Computed
// fresh on demand, never mutated.
type RiskAssessment struct {
	PositionRisk   DimensionScore `json:"positionRisk"`
	PortfolioRisk  DimensionScore `json:"portfolioRisk"`
	MarketRisk     DimensionScore `json:"marketRisk"`
	BehavioralRisk DimensionScore `json:"behavioralRisk"`
	StrategyRisk   DimensionScore `json:"strategyRisk"`
	Composite      float64        `json:"composite"` // 0 .. 10
	Level          RiskLevel      `json:"level"`
	HasHardBlocks  bool           `json:"hasHardBlocks"`
	Alerts         []RiskAlert    `json:"alerts,omitempty"`
	BlockingAlerts []RiskAlert    `json:"blockingAlerts,omitempty"`
	Recommendation Recommendation `json:"recommendation"`
	Reason         string         `json:"reason"`
	Timestamp      time.Time      `json:"timestamp"`
}

// BehaviorAction is the kind of logged trader action.
type BehaviorAction string

const (
	BehaviorEnter BehaviorAction = "entry"
	BehaviorExit  BehaviorAction = "exit"
	BehaviorSkip  BehaviorAction = "skip"
)

// BehaviorEntry is one append-only record of a trader action.
type BehaviorEntry struct {
	Date             time.Time      `json:"date"`
	Action           BehaviorAction `json:"action"`
	Ticker           string         `json:"ticker,omitempty"`
	Strategy         StrategyName   `json:"strategy,omitempty"`
	Reason           string         `json:"reason,omitempty"`
	PlanAligned      bool           `json:"planAligned"`
	DisciplineRating int            `json:"disciplineRating,omitempty"`
}

// BehaviorProfile is a rolling 7-day aggregate of logged trader actions,
// recomputed from the behavior log on demand.
type BehaviorProfile struct {
	Entries           int     `json:"entries"`
	Exits             int     `json:"exits"`
	Skips             int     `json:"skips"`
	PlanAdherence     float64 `json:"planAdherence"` // 0 .. 1
	AvgDiscipline     float64 `json:"avgDiscipline"`
	ConsecutiveWins   int     `json:"consecutiveWins"`
	ConsecutiveLosses int     `json:"consecutiveLosses"`
	TradesPerDay      float64 `json:"tradesPerDay"`
	RevengeTrades     int     `json:"revengeTrades"`
	FOMOEntries       int     `json:"fomoEntries"`
	EarlyExits        int     `json:"earlyExits"`
}

// StrategyMetrics is the per-strategy performance breakdown.
type StrategyMetrics struct {
	Trades  int             `json:"trades"`
	Wins    int             `json:"wins"`
	WinRate float64         `json:"winRate"`
	PnL     decimal.Decimal `json:"pnl"`
}

// PerformanceSnapshot is the cumulative balance and performance record,
// mutated only when a trade closes.
type PerformanceSnapshot struct {
	StartingBalance decimal.Decimal                  `json:"startingBalance"`
	Balance         decimal.Decimal                  `json:"balance"`
	TotalTrades     int                              `json:"totalTrades"`
	OpenPositions   int                              `json:"openPositions"`
	Wins            int                              `json:"wins"`
	Losses          int                              `json:"losses"`
	Expired         int                              `json:"expired"`
	WinRate         float64                          `json:"winRate"`
	ProfitFactor    float64                          `json:"profitFactor"`
	Expectancy      decimal.Decimal                  `json:"expectancy"`
	SharpeRatio     float64                          `json:"sharpeRatio"`
	AvgRMultiple    float64                          `json:"avgRMultiple"`
	MaxDrawdownPct  float64                          `json:"maxDrawdownPct"`
	Strategies      map[StrategyName]StrategyMetrics `json:"strategies,omitempty"`
	UpdatedAt       time.Time                        `json:"updatedAt"`
}
