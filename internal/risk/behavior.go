package risk

import (
	"strings"
	"time"

	"github.com/tradewind-labs/papertrader/pkg/types"
	"github.com/tradewind-labs/papertrader/pkg/utils"
)

// LogBehavior appends one action to the behavior log.
func (p *Profiler) LogBehavior(entry types.BehaviorEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, entry)
}

// BehaviorLog returns a copy of the full behavior log.
func (p *Profiler) BehaviorLog() []types.BehaviorEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.BehaviorEntry, len(p.log))
	copy(out, p.log)
	return out
}

// SetBehaviorLog replaces the behavior log, used when restoring state.
func (p *Profiler) SetBehaviorLog(entries []types.BehaviorEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log[:0], entries...)
}

// SetClosedTrades feeds the closed-trade history used for win and loss
// streak detection. The book calls this after every close.
func (p *Profiler) SetClosedTrades(trades []types.ClosedTrade) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed[:0], trades...)
}

// Profile aggregates the last seven days of logged behavior as of the
// given time.
func (p *Profiler) Profile(asOf time.Time) types.BehaviorProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()

	const lookbackDays = 7
	cutoff := utils.DateOnly(asOf).AddDate(0, 0, -lookbackDays)

	var recent []types.BehaviorEntry
	for _, e := range p.log {
		if !e.Date.Before(cutoff) {
			recent = append(recent, e)
		}
	}

	profile := types.BehaviorProfile{
		PlanAdherence:     1.0,
		AvgDiscipline:     3.0,
		ConsecutiveWins:   p.countStreak(true),
		ConsecutiveLosses: p.countStreak(false),
	}

	aligned := 0
	disciplineSum, disciplineN := 0, 0
	stopDates := map[time.Time]bool{}

	for _, e := range recent {
		day := utils.DateOnly(e.Date)
		switch e.Action {
		case types.BehaviorEnter:
			profile.Entries++
			if strings.Contains(e.Reason, "fomo") {
				profile.FOMOEntries++
			}
		case types.BehaviorExit:
			profile.Exits++
			if e.Reason == string(types.ExitStoppedOut) {
				stopDates[day] = true
			}
			if e.Reason == "manual_early" {
				profile.EarlyExits++
			}
		case types.BehaviorSkip:
			profile.Skips++
		}
		if e.PlanAligned {
			aligned++
		}
		if e.DisciplineRating > 0 {
			disciplineSum += e.DisciplineRating
			disciplineN++
		}
	}

	if len(recent) > 0 {
		profile.PlanAdherence = float64(aligned) / float64(len(recent))
	}
	if disciplineN > 0 {
		profile.AvgDiscipline = float64(disciplineSum) / float64(disciplineN)
	}
	profile.TradesPerDay = float64(profile.Entries) / lookbackDays

	// Revenge trade: an entry on the same date as a stopped-out exit.
	for _, e := range recent {
		if e.Action == types.BehaviorEnter && stopDates[utils.DateOnly(e.Date)] {
			profile.RevengeTrades++
		}
	}

	return profile
}

// countStreak walks the closed-trade history backwards counting
// consecutive wins or losses.
func (p *Profiler) countStreak(wins bool) int {
	count := 0
	for i := len(p.closed) - 1; i >= 0; i-- {
		pnl := p.closed[i].PnL
		if (wins && pnl.IsPositive()) || (!wins && pnl.IsNegative()) {
			count++
			continue
		}
		break
	}
	return count
}
