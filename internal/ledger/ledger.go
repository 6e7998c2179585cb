// Package ledger accumulates per-attempt usage, keyed by provider and
// feature. The ledger is append-only: entries are only ever incremented,
// never deleted, and appends are safe under concurrent requests.
package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/davidbz/howl/internal/domain"
)

type key struct {
	provider string
	feature  domain.Feature
}

// Ledger implements the domain.UsageLedger interface with a serialized
// in-memory accumulator.
type Ledger struct {
	mu      sync.Mutex
	entries map[key]*domain.LedgerEntry
}

// NewLedger creates a new usage ledger.
func NewLedger() *Ledger {
	return &Ledger{
		entries: make(map[key]*domain.LedgerEntry),
	}
}

// Record appends one attempt's usage, regardless of outcome.
func (l *Ledger) Record(_ context.Context, feature domain.Feature, attempt domain.Attempt, usage domain.Usage) {
	k := key{provider: attempt.Provider, feature: feature}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[k]
	if !ok {
		entry = &domain.LedgerEntry{Provider: attempt.Provider, Feature: feature}
		l.entries[k] = entry
	}

	entry.Requests++
	if attempt.Outcome == domain.OutcomeSuccess {
		entry.Successes++
	} else {
		entry.Failures++
	}
	entry.InputUnits += int64(usage.InputUnits)
	entry.OutputUnits += int64(usage.OutputUnits)
}

// Snapshot returns a copy of all accumulated entries, ordered by
// provider then feature for stable reporting.
func (l *Ledger) Snapshot() []domain.LedgerEntry {
	l.mu.Lock()
	entries := make([]domain.LedgerEntry, 0, len(l.entries))
	for _, entry := range l.entries {
		entries = append(entries, *entry)
	}
	l.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Provider != entries[j].Provider {
			return entries[i].Provider < entries[j].Provider
		}
		return entries[i].Feature < entries[j].Feature
	})
	return entries
}
