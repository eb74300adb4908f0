// Package scoring_test provides tests for the composite scoring engine.
package scoring_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/internal/scoring"
	"github.com/tradewind-labs/papertrader/pkg/types"
)

func newEngine() *scoring.Engine {
	return scoring.NewEngine(config.Default().Scoring, zap.NewNop())
}

func TestScoreWeighting(t *testing.T) {
	engine := newEngine()

	technicals := []types.TechnicalSummary{
		{Ticker: "AAPL", Composite: 1.0, VolumeRatio: 2.0},
	}
	sentiments := map[string]*types.SentimentSummary{
		"AAPL": {Ticker: "AAPL", Score: 1.0, Classification: types.SentimentBullish},
	}

	scored := engine.Score(technicals, sentiments)
	if len(scored) != 1 {
		t.Fatalf("scored %d instruments, want 1", len(scored))
	}

	// 1.0*0.60 + 1.0*0.25 + 1.0*0.15
	if got := scored[0].CompositeScore; got < 0.999 || got > 1.001 {
		t.Errorf("composite = %v, want 1.0", got)
	}
	if scored[0].Signal != types.SignalStrongBuy {
		t.Errorf("signal = %s, want STRONG_BUY", scored[0].Signal)
	}
}

func TestScoreMissingSentimentIsNeutral(t *testing.T) {
	engine := newEngine()

	scored := engine.Score([]types.TechnicalSummary{
		{Ticker: "MSFT", Composite: 1.0, VolumeRatio: 1.0},
	}, nil)

	// 1.0*0.60 with zero sentiment and no volume surge.
	if got := scored[0].CompositeScore; got < 0.599 || got > 0.601 {
		t.Errorf("composite = %v, want 0.60", got)
	}
	if scored[0].Signal != types.SignalBuy {
		t.Errorf("signal = %s, want BUY", scored[0].Signal)
	}
	if scored[0].Sentiment != nil {
		t.Error("sentiment should stay nil when absent")
	}
}

func TestScoreVolumeTiers(t *testing.T) {
	engine := newEngine()

	cases := []struct {
		ratio float64
		want  float64
	}{
		{2.0, 0.15}, // surging: full volume weight
		{1.6, 0.075},
		{1.5, 0.075}, // elevated tier starts at 1.5
		{1.4, 0.0},
	}
	for _, tc := range cases {
		scored := engine.Score([]types.TechnicalSummary{
			{Ticker: "AAPL", Composite: 0, VolumeRatio: tc.ratio},
		}, nil)
		if got := scored[0].CompositeScore; got < tc.want-0.0001 || got > tc.want+0.0001 {
			t.Errorf("volume ratio %.1f: composite = %v, want %v", tc.ratio, got, tc.want)
		}
	}
}

func TestScoreRanksByMagnitude(t *testing.T) {
	engine := newEngine()

	scored := engine.Score([]types.TechnicalSummary{
		{Ticker: "MILDBUY", Composite: 0.5},
		{Ticker: "STRONGSELL", Composite: -1.5},
	}, nil)

	if scored[0].Ticker != "STRONGSELL" {
		t.Errorf("rank 1 is %s, a strong sell must outrank a mild buy", scored[0].Ticker)
	}
	if scored[0].Rank != 1 || scored[1].Rank != 2 {
		t.Errorf("ranks = %d, %d, want 1, 2", scored[0].Rank, scored[1].Rank)
	}
}

func TestScoreCapsResults(t *testing.T) {
	cfg := config.Default().Scoring
	cfg.MaxResults = 2
	engine := scoring.NewEngine(cfg, zap.NewNop())

	scored := engine.Score([]types.TechnicalSummary{
		{Ticker: "A", Composite: 0.9},
		{Ticker: "B", Composite: 0.5},
		{Ticker: "C", Composite: 0.1},
	}, nil)

	if len(scored) != 2 {
		t.Fatalf("scored %d instruments, want the cap of 2", len(scored))
	}
	if scored[0].Ticker != "A" || scored[1].Ticker != "B" {
		t.Errorf("kept %s, %s, want the two strongest", scored[0].Ticker, scored[1].Ticker)
	}
}

func TestScoreRanking(t *testing.T) {
	engine := newEngine()

	scored := engine.Score([]types.TechnicalSummary{
		{Ticker: "WEAK", Composite: 0.1},
		{Ticker: "STRONG", Composite: 0.9},
		{Ticker: "MID", Composite: 0.5},
	}, nil)

	want := []string{"STRONG", "MID", "WEAK"}
	for i, ticker := range want {
		if scored[i].Ticker != ticker {
			t.Errorf("rank %d is %s, want %s", i+1, scored[i].Ticker, ticker)
		}
		if scored[i].Rank != i+1 {
			t.Errorf("%s rank = %d, want %d", scored[i].Ticker, scored[i].Rank, i+1)
		}
	}
}

func TestClassifyThresholds(t *testing.T) {
	engine := newEngine()

	cases := []struct {
		score float64
		want  types.SignalClass
	}{
		{0.7, types.SignalStrongBuy},
		{0.69, types.SignalBuy},
		{0.4, types.SignalBuy},
		{0.39, types.SignalNeutral},
		{-0.39, types.SignalNeutral},
		{-0.4, types.SignalSell},
		{-0.69, types.SignalSell},
		{-0.7, types.SignalStrongSell},
	}
	for _, tc := range cases {
		if got := engine.Classify(tc.score); got != tc.want {
			t.Errorf("Classify(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
