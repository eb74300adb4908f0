// Package scoring combines technical, sentiment, and volume inputs into
// a ranked composite score per instrument.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/pkg/types"
	"github.com/tradewind-labs/papertrader/pkg/utils"
)

// Engine ranks instruments by weighted composite score.
type Engine struct {
	cfg    config.ScoringConfig
	logger *zap.Logger
}

// NewEngine creates a scoring engine.
func NewEngine(cfg config.ScoringConfig, logger *zap.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger}
}

// Score combines each instrument's technical summary with its optional
// sentiment summary and returns the strongest instruments sorted by
// absolute composite score descending, capped at MaxResults, ranks
// assigned from 1.
func (e *Engine) Score(technicals []types.TechnicalSummary, sentiments map[string]*types.SentimentSummary) []types.ScoredInstrument {
	scored := make([]types.ScoredInstrument, 0, len(technicals))

	for _, tech := range technicals {
		sentiment := sentiments[tech.Ticker]
		sentimentScore := 0.0
		if sentiment != nil {
			sentimentScore = utils.Clamp(sentiment.Score, -1, 1)
		}

		volumeScore := 0.0
		switch {
		case tech.VolumeRatio >= 2.0:
			volumeScore = 1.0
		case tech.VolumeRatio >= 1.5:
			volumeScore = 0.5
		}

		composite := tech.Composite*e.cfg.TechnicalWeight +
			sentimentScore*e.cfg.SentimentWeight +
			volumeScore*e.cfg.VolumeWeight
		composite = utils.RoundTo(utils.Clamp(composite, -1, 1), 4)

		inst := types.ScoredInstrument{
			Ticker:         tech.Ticker,
			CompositeScore: composite,
			Signal:         e.Classify(composite),
			Technical:      tech,
			Sentiment:      sentiment,
			Reasoning:      reasoning(tech, sentiment),
		}
		scored = append(scored, inst)
	}

	// Strongest signals first regardless of direction, so a hard sell
	// outranks a mild buy.
	sort.SliceStable(scored, func(i, j int) bool {
		return math.Abs(scored[i].CompositeScore) > math.Abs(scored[j].CompositeScore)
	})
	max := e.cfg.MaxResults
	if max <= 0 {
		max = 10
	}
	if len(scored) > max {
		scored = scored[:max]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}

	e.logger.Debug("scored instruments", zap.Int("count", len(scored)))
	return scored
}

// Classify maps a composite score onto the signal scale.
func (e *Engine) Classify(score float64) types.SignalClass {
	switch {
	case score >= e.cfg.StrongBuy:
		return types.SignalStrongBuy
	case score >= e.cfg.Buy:
		return types.SignalBuy
	case score <= e.cfg.StrongSell:
		return types.SignalStrongSell
	case score <= e.cfg.Sell:
		return types.SignalSell
	default:
		return types.SignalNeutral
	}
}

func reasoning(tech types.TechnicalSummary, sentiment *types.SentimentSummary) string {
	trend := "mixed trend"
	switch {
	case tech.SMACross > 0 && tech.EMATrend > 0:
		trend = "uptrend"
	case tech.SMACross < 0 && tech.EMATrend < 0:
		trend = "downtrend"
	}
	sentimentNote := "no sentiment"
	if sentiment != nil {
		sentimentNote = string(sentiment.Classification)
	}
	return fmt.Sprintf("rsi=%.1f adx=%.1f %s, volume %.1fx, %s", tech.RSI, tech.ADX, trend, tech.VolumeRatio, sentimentNote)
}
