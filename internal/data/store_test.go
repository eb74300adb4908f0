// Package data_test provides tests for the bar data store.
package data_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/data"
	"github.com/tradewind-labs/papertrader/pkg/types"
)

const spyJSON = `[
  {"date":"2024-03-04T00:00:00Z","open":510,"high":512,"low":508,"close":511,"volume":80000000},
  {"date":"2024-03-01T00:00:00Z","open":505,"high":508,"low":504,"close":507,"volume":75000000},
  {"date":"2024-03-05T00:00:00Z","open":511,"high":514,"low":510,"close":513.5,"volume":82000000}
]`

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestLoadSortsAscending(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "SPY.json", spyJSON)

	store := data.NewStore(dir, zap.NewNop())
	bars, err := store.Load("SPY")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("loaded %d bars, want 3", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i-1].Date.Before(bars[i].Date) {
			t.Errorf("bars out of order at %d: %s then %s", i, bars[i-1].Date, bars[i].Date)
		}
	}
}

func TestLoadMissingTicker(t *testing.T) {
	store := data.NewStore(t.TempDir(), zap.NewNop())

	bars, err := store.Load("NOPE")
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if bars != nil {
		t.Errorf("bars = %v, want nil for a missing file", bars)
	}
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "SPY.json", spyJSON)
	writeFixture(t, dir, "AAPL.json", `[{"date":"2024-03-01T00:00:00Z","open":170,"high":172,"low":169,"close":171,"volume":50000000}]`)
	writeFixture(t, dir, "notes.txt", "ignore me")

	store := data.NewStore(dir, zap.NewNop())
	if err := store.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	tickers := store.Tickers()
	if len(tickers) != 2 || tickers[0] != "AAPL" || tickers[1] != "SPY" {
		t.Errorf("tickers = %v, want [AAPL SPY]", tickers)
	}
}

func TestSliceThroughExcludesFuture(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "SPY.json", spyJSON)

	store := data.NewStore(dir, zap.NewNop())
	if _, err := store.Load("SPY"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cut := time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC) // intraday timestamp
	slice := store.SliceThrough("SPY", cut)
	if len(slice) != 2 {
		t.Fatalf("slice has %d bars, want 2 through March 4", len(slice))
	}
	if last := slice[len(slice)-1].Date; last.Day() != 4 {
		t.Errorf("last bar is %s, want March 4", last)
	}
}

func TestBarOn(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "SPY.json", spyJSON)

	store := data.NewStore(dir, zap.NewNop())
	if _, err := store.Load("SPY"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := store.BarOn("SPY", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)); !ok {
		t.Error("expected a bar on March 5")
	}
	if _, ok := store.BarOn("SPY", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)); ok {
		t.Error("unexpected bar on March 2")
	}
}

func TestTradingDays(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "SPY.json", spyJSON)

	store := data.NewStore(dir, zap.NewNop())
	if _, err := store.Load("SPY"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	days := store.TradingDays("SPY",
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	if len(days) != 2 {
		t.Fatalf("got %d trading days, want 2", len(days))
	}
	if days[0].Day() != 4 || days[1].Day() != 5 {
		t.Errorf("days = %v, want March 4 and 5", days)
	}
}

func TestPutOverridesSeries(t *testing.T) {
	store := data.NewStore(t.TempDir(), zap.NewNop())

	store.Put("AAPL", []types.Bar{
		{Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{Date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
	})

	bars := store.Bars("AAPL")
	if len(bars) != 2 || !bars[0].Date.Before(bars[1].Date) {
		t.Errorf("Put should sort the series, got %v", bars)
	}
}
