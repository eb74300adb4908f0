// Package config loads the engine configuration. Every threshold has a
// compiled-in default; a missing config file degrades to defaults rather
// than failing the run.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/pkg/types"
)

// Config is the full engine configuration tree.
type Config struct {
	Trader     TraderConfig                             `mapstructure:"trader"`
	Regime     RegimeConfig                             `mapstructure:"regime"`
	Scoring    ScoringConfig                            `mapstructure:"scoring"`
	Strategies map[types.StrategyName]StrategyConfig    `mapstructure:"strategies"`
	Defensive  DefensiveConfig                          `mapstructure:"defensive"`
	Risk       RiskConfig                               `mapstructure:"risk"`
	Server     ServerConfig                             `mapstructure:"server"`
}

// TraderConfig holds the paper portfolio settings.
type TraderConfig struct {
	StartingBalance float64 `mapstructure:"starting_balance"`
	RiskPerTradePct float64 `mapstructure:"risk_per_trade_pct"`
	MaxPositions    int     `mapstructure:"max_concurrent_positions"`
	MaxHoldDays     int     `mapstructure:"max_hold_days"`
	PDTSimulation   bool    `mapstructure:"pdt_simulation"`
	PDTMaxDayTrades int     `mapstructure:"pdt_max_day_trades"`
}

// RegimeConfig holds the regime classifier thresholds.
type RegimeConfig struct {
	ADXTrending  float64 `mapstructure:"adx_trending"`
	VIXHigh      float64 `mapstructure:"vix_high"`
	ATRExpansion float64 `mapstructure:"atr_expansion"`
	HistoryLimit int     `mapstructure:"history_limit"`
}

// ScoringConfig holds composite score weights and signal thresholds.
type ScoringConfig struct {
	TechnicalWeight float64 `mapstructure:"technical_weight"`
	SentimentWeight float64 `mapstructure:"sentiment_weight"`
	VolumeWeight    float64 `mapstructure:"volume_weight"`
	StrongBuy       float64 `mapstructure:"strong_buy"`
	Buy             float64 `mapstructure:"buy"`
	Sell            float64 `mapstructure:"sell"`
	StrongSell      float64 `mapstructure:"strong_sell"`
	MaxResults      int     `mapstructure:"max_results"`
}

// EntryConfig holds per-strategy entry thresholds.
type EntryConfig struct {
	RSIRange            []float64 `mapstructure:"rsi_range"`
	RSIThreshold        float64   `mapstructure:"rsi_threshold"`
	RequireEMABounce    bool      `mapstructure:"require_ema_bounce"`
	RequireMACDPositive bool      `mapstructure:"require_macd_positive"`
	RequireBBTouch      bool      `mapstructure:"require_bb_touch"`
	RequireAbove200SMA  bool      `mapstructure:"require_above_200sma"`
	VolumeSurge         float64   `mapstructure:"volume_surge"`
}

// ExitConfig holds per-strategy exit multipliers (in ATR units) and the
// take-profit method.
type ExitConfig struct {
	StopLossATR      float64 `mapstructure:"stop_loss_atr"`
	TakeProfitATR    float64 `mapstructure:"take_profit_atr"`
	TakeProfitMethod string  `mapstructure:"take_profit_method"` // atr | middle_band | measured_move
	TrailingStopATR  float64 `mapstructure:"trailing_stop_atr"`
}

// StrategyConfig is one named strategy rule-set.
type StrategyConfig struct {
	Enabled       bool           `mapstructure:"enabled"`
	ActiveRegimes []types.Regime `mapstructure:"active_regimes"`
	SkipRegimes   []types.Regime `mapstructure:"skip_regimes"`
	Entry         EntryConfig    `mapstructure:"entry"`
	Exit          ExitConfig     `mapstructure:"exit"`
	MaxHoldDays   int            `mapstructure:"max_hold_days"`
}

// DefensiveConfig holds the triggers that suspend new entries.
type DefensiveConfig struct {
	VIXAbove       float64        `mapstructure:"vix_above"`
	MaxDrawdownPct float64        `mapstructure:"max_drawdown_pct"`
	Regimes        []types.Regime `mapstructure:"regimes"`
}

// RiskWeights are the five dimension weights for trade-level assessment.
type RiskWeights struct {
	Position   float64 `mapstructure:"position"`
	Portfolio  float64 `mapstructure:"portfolio"`
	Market     float64 `mapstructure:"market"`
	Behavioral float64 `mapstructure:"behavioral"`
	Strategy   float64 `mapstructure:"strategy"`
}

// RiskConfig holds the risk profiler thresholds and weights.
type RiskConfig struct {
	Weights          RiskWeights `mapstructure:"weights"`
	PortfolioWeights RiskWeights `mapstructure:"portfolio_weights"` // Position unused

	MaxTotalRiskPct        float64 `mapstructure:"max_total_risk_pct"`
	MaxDrawdownLimit       float64 `mapstructure:"max_drawdown_limit"`
	DrawdownWarningBuffer  float64 `mapstructure:"drawdown_warning_buffer"`
	MaxSectorConcentration int     `mapstructure:"max_sector_concentration"`

	VIXElevated         float64 `mapstructure:"vix_elevated"`
	VIXHigh             float64 `mapstructure:"vix_high"`
	VIXExtreme          float64 `mapstructure:"vix_extreme"`
	RegimeAgeWarning    int     `mapstructure:"regime_age_warning"`
	MinRegimeConfidence float64 `mapstructure:"min_regime_confidence"`

	MaxTradesPerDay   float64 `mapstructure:"max_trades_per_day"`
	WinStreakWarning  int     `mapstructure:"win_streak_warning"`
	LossStreakWarning int     `mapstructure:"loss_streak_warning"`
	MinPlanAdherence  float64 `mapstructure:"min_plan_adherence"`

	MinSampleSize int     `mapstructure:"min_sample_size"`
	MinWinRate    float64 `mapstructure:"min_win_rate"`
}

// ServerConfig holds the API server settings.
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	WebSocketPath string        `mapstructure:"websocket_path"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Trader: TraderConfig{
			StartingBalance: 500.0,
			RiskPerTradePct: 2.0,
			MaxPositions:    3,
			MaxHoldDays:     10,
			PDTSimulation:   false,
			PDTMaxDayTrades: 3,
		},
		Regime: RegimeConfig{
			ADXTrending:  25,
			VIXHigh:      28,
			ATRExpansion: 1.3,
			HistoryLimit: 90,
		},
		Scoring: ScoringConfig{
			TechnicalWeight: 0.60,
			SentimentWeight: 0.25,
			VolumeWeight:    0.15,
			StrongBuy:       0.7,
			Buy:             0.4,
			Sell:            -0.4,
			StrongSell:      -0.7,
			MaxResults:      10,
		},
		Strategies: map[types.StrategyName]StrategyConfig{
			types.StrategyTrendFollowing: {
				Enabled:       true,
				ActiveRegimes: []types.Regime{types.RegimeTrendingUp, types.RegimeTrendingDown},
				Entry: EntryConfig{
					RSIRange:            []float64{40, 55},
					RequireEMABounce:    true,
					RequireMACDPositive: true,
				},
				Exit: ExitConfig{
					StopLossATR:      1.5,
					TakeProfitATR:    3.0,
					TakeProfitMethod: "atr",
					TrailingStopATR:  1.0,
				},
				MaxHoldDays: 10,
			},
			types.StrategyMeanReversion: {
				Enabled:       true,
				ActiveRegimes: []types.Regime{types.RegimeRangeBound},
				SkipRegimes:   []types.Regime{types.RegimeHighVolatility, types.RegimeTrendingDown},
				Entry: EntryConfig{
					RSIThreshold:       38,
					RequireBBTouch:     true,
					RequireAbove200SMA: true,
				},
				Exit: ExitConfig{
					StopLossATR:      1.5,
					TakeProfitATR:    3.0,
					TakeProfitMethod: "middle_band",
				},
				MaxHoldDays: 5,
			},
			types.StrategyBreakout: {
				Enabled:       true,
				ActiveRegimes: []types.Regime{types.RegimeRangeBound, types.RegimeHighVolatility},
				Entry: EntryConfig{
					VolumeSurge: 1.5,
				},
				Exit: ExitConfig{
					StopLossATR:      1.5,
					TakeProfitATR:    3.0,
					TakeProfitMethod: "measured_move",
					TrailingStopATR:  1.5,
				},
				MaxHoldDays: 7,
			},
			types.StrategyMomentum: {
				Enabled:       true,
				ActiveRegimes: []types.Regime{types.RegimeTrendingUp},
				Entry: EntryConfig{
					RSIRange:    []float64{60, 75},
					VolumeSurge: 2.0,
				},
				Exit: ExitConfig{
					StopLossATR:      1.5,
					TakeProfitATR:    3.0,
					TakeProfitMethod: "atr",
					TrailingStopATR:  1.0,
				},
				MaxHoldDays: 10,
			},
			// Defensive is a mode, not a trade strategy: it never emits
			// signals and only exists for regime eligibility bookkeeping.
			types.StrategyDefensive: {
				Enabled:       true,
				ActiveRegimes: []types.Regime{types.RegimeTrendingDown},
			},
		},
		Defensive: DefensiveConfig{
			VIXAbove:       28,
			MaxDrawdownPct: -8.0,
			Regimes:        []types.Regime{types.RegimeHighVolatility},
		},
		Risk: RiskConfig{
			Weights: RiskWeights{
				Position: 0.25, Portfolio: 0.25, Market: 0.20, Behavioral: 0.15, Strategy: 0.15,
			},
			PortfolioWeights: RiskWeights{
				Portfolio: 0.30, Market: 0.25, Behavioral: 0.20, Strategy: 0.25,
			},
			MaxTotalRiskPct:        6.0,
			MaxDrawdownLimit:       -8.0,
			DrawdownWarningBuffer:  2.0,
			MaxSectorConcentration: 2,
			VIXElevated:            20,
			VIXHigh:                25,
			VIXExtreme:             30,
			RegimeAgeWarning:       30,
			MinRegimeConfidence:    0.5,
			MaxTradesPerDay:        2,
			WinStreakWarning:       3,
			LossStreakWarning:      3,
			MinPlanAdherence:       0.7,
			MinSampleSize:          5,
			MinWinRate:             0.4,
		},
		Server: ServerConfig{
			Host:          "localhost",
			Port:          8080,
			WebSocketPath: "/ws",
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  15 * time.Second,
		},
	}
}

// Load reads the configuration from path, falling back to defaults for
// any value not present. A missing file is not an error.
func Load(logger *zap.Logger, path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Config file not readable, using defaults",
			zap.String("path", path),
			zap.Error(err),
		)
		return cfg, nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	logger.Info("Configuration loaded", zap.String("path", path))
	return cfg, nil
}

// Strategy returns the configuration for a named strategy, falling back
// to a disabled zero config when unknown.
func (c *Config) Strategy(name types.StrategyName) StrategyConfig {
	if sc, ok := c.Strategies[name]; ok {
		return sc
	}
	return StrategyConfig{}
}

// MaxHold returns the hold-day budget for a strategy, falling back to the
// trader-level default.
func (c *Config) MaxHold(name types.StrategyName) int {
	if sc, ok := c.Strategies[name]; ok && sc.MaxHoldDays > 0 {
		return sc.MaxHoldDays
	}
	return c.Trader.MaxHoldDays
}
