// Package store persists trader state as JSON files with atomic
// replacement, so a crash mid-write never leaves a torn file.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/pkg/types"
)

const (
	positionsFile   = "open_positions.json"
	tradesFile      = "trade_history.json"
	performanceFile = "performance.json"
	regimeFile      = "regime_history.json"
	behaviorFile    = "behavior_log.json"
)

// StateStore reads and writes the trader's persistent state under one
// directory. Missing files load as zero values.
type StateStore struct {
	dir    string
	logger *zap.Logger
}

// NewStateStore creates a state store rooted at dir, creating it if
// needed.
func NewStateStore(dir string, logger *zap.Logger) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return &StateStore{dir: dir, logger: logger}, nil
}

// SavePositions writes the open position set.
func (s *StateStore) SavePositions(positions []types.Position) error {
	return s.write(positionsFile, positions)
}

// LoadPositions reads the open position set.
func (s *StateStore) LoadPositions() ([]types.Position, error) {
	var out []types.Position
	err := s.read(positionsFile, &out)
	return out, err
}

// SaveTrades writes the closed-trade history.
func (s *StateStore) SaveTrades(trades []types.ClosedTrade) error {
	return s.write(tradesFile, trades)
}

// LoadTrades reads the closed-trade history.
func (s *StateStore) LoadTrades() ([]types.ClosedTrade, error) {
	var out []types.ClosedTrade
	err := s.read(tradesFile, &out)
	return out, err
}

// SavePerformance writes the performance snapshot.
func (s *StateStore) SavePerformance(perf types.PerformanceSnapshot) error {
	return s.write(performanceFile, perf)
}

// LoadPerformance reads the performance snapshot.
func (s *StateStore) LoadPerformance() (types.PerformanceSnapshot, error) {
	var out types.PerformanceSnapshot
	err := s.read(performanceFile, &out)
	return out, err
}

// SaveRegimeHistory writes the rolling regime history.
func (s *StateStore) SaveRegimeHistory(days []types.RegimeDay) error {
	return s.write(regimeFile, days)
}

// LoadRegimeHistory reads the rolling regime history.
func (s *StateStore) LoadRegimeHistory() ([]types.RegimeDay, error) {
	var out []types.RegimeDay
	err := s.read(regimeFile, &out)
	return out, err
}

// SaveBehaviorLog writes the behavior log.
func (s *StateStore) SaveBehaviorLog(entries []types.BehaviorEntry) error {
	return s.write(behaviorFile, entries)
}

// LoadBehaviorLog reads the behavior log.
func (s *StateStore) LoadBehaviorLog() ([]types.BehaviorEntry, error) {
	var out []types.BehaviorEntry
	err := s.read(behaviorFile, &out)
	return out, err
}

// write marshals v and atomically replaces the target file via a temp
// file in the same directory.
func (s *StateStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// read unmarshals the named file into v. A missing or empty file
// leaves v at its zero value.
func (s *StateStore) read(name string, v any) error {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		s.logger.Debug("state file missing, starting fresh", zap.String("file", name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}
