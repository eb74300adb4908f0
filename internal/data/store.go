// Package data loads and serves daily bar series from JSON files, one
// file per ticker.
package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/pkg/types"
	"github.com/tradewind-labs/papertrader/pkg/utils"
)

// Store holds bar series keyed by ticker. Series are sorted ascending
// by date at load time. Concurrency-safe.
type Store struct {
	dir    string
	logger *zap.Logger

	mu     sync.RWMutex
	series map[string][]types.Bar
}

// NewStore creates a store backed by <dir>/<TICKER>.json files.
func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger,
		series: make(map[string][]types.Bar),
	}
}

// LoadAll reads every .json file in the data directory.
func (s *Store) LoadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read data dir %s: %w", s.dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ticker := strings.TrimSuffix(name, ".json")
		if _, err := s.Load(ticker); err != nil {
			return err
		}
	}
	return nil
}

// Load reads one ticker's series from disk. A missing file yields an
// empty series with a warning, not an error.
func (s *Store) Load(ticker string) ([]types.Bar, error) {
	path := filepath.Join(s.dir, ticker+".json")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.logger.Warn("no data file for ticker", zap.String("ticker", ticker), zap.String("path", path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bars for %s: %w", ticker, err)
	}

	var bars []types.Bar
	if err := json.Unmarshal(raw, &bars); err != nil {
		return nil, fmt.Errorf("parse bars for %s: %w", ticker, err)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	s.mu.Lock()
	s.series[ticker] = bars
	s.mu.Unlock()

	s.logger.Debug("loaded bar series", zap.String("ticker", ticker), zap.Int("bars", len(bars)))
	return bars, nil
}

// Put stores a series directly, used by tests and the backtester.
func (s *Store) Put(ticker string, bars []types.Bar) {
	sorted := make([]types.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	s.mu.Lock()
	s.series[ticker] = sorted
	s.mu.Unlock()
}

// Bars returns the full series for a ticker.
func (s *Store) Bars(ticker string) []types.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series[ticker]
}

// Tickers returns all loaded tickers, sorted.
func (s *Store) Tickers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.series))
	for t := range s.series {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SliceThrough returns the bars up to and including the given date.
func (s *Store) SliceThrough(ticker string, date time.Time) []types.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bars := s.series[ticker]
	cut := utils.DateOnly(date)
	n := sort.Search(len(bars), func(i int) bool {
		return utils.DateOnly(bars[i].Date).After(cut)
	})
	return bars[:n]
}

// BarOn returns the bar for the exact date, if one exists.
func (s *Store) BarOn(ticker string, date time.Time) (types.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.series[ticker] {
		if utils.SameDay(b.Date, date) {
			return b, true
		}
	}
	return types.Bar{}, false
}

// TradingDays returns the ticker's bar dates within [start, end],
// ascending.
func (s *Store) TradingDays(ticker string, start, end time.Time) []time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	startDay := utils.DateOnly(start)
	endDay := utils.DateOnly(end)
	var days []time.Time
	for _, b := range s.series[ticker] {
		day := utils.DateOnly(b.Date)
		if day.Before(startDay) || day.After(endDay) {
			continue
		}
		days = append(days, day)
	}
	return days
}
