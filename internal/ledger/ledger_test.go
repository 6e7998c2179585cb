package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/ledger"
)

func TestLedger_Record(t *testing.T) {
	t.Run("should accumulate usage per provider and feature", func(t *testing.T) {
		l := ledger.NewLedger()
		ctx := context.Background()

		l.Record(ctx, domain.FeatureSummary, domain.Attempt{Provider: "openai", Outcome: domain.OutcomeSuccess}, domain.Usage{InputUnits: 100, OutputUnits: 40})
		l.Record(ctx, domain.FeatureSummary, domain.Attempt{Provider: "openai", Outcome: domain.OutcomeFatalFailure}, domain.Usage{InputUnits: 50})
		l.Record(ctx, domain.FeatureQuiz, domain.Attempt{Provider: "openai", Outcome: domain.OutcomeSuccess}, domain.Usage{InputUnits: 10, OutputUnits: 5})

		entries := l.Snapshot()
		require.Len(t, entries, 2)

		// Snapshot is sorted by provider then feature.
		require.Equal(t, domain.FeatureQuiz, entries[0].Feature)
		summaryEntry := entries[1]
		require.Equal(t, int64(2), summaryEntry.Requests)
		require.Equal(t, int64(1), summaryEntry.Successes)
		require.Equal(t, int64(1), summaryEntry.Failures)
		require.Equal(t, int64(150), summaryEntry.InputUnits)
		require.Equal(t, int64(40), summaryEntry.OutputUnits)
	})

	t.Run("should record failed attempts too", func(t *testing.T) {
		l := ledger.NewLedger()

		l.Record(context.Background(), domain.FeatureOutline, domain.Attempt{Provider: "gemini", Outcome: domain.OutcomeRetryableFailure}, domain.Usage{})

		entries := l.Snapshot()
		require.Len(t, entries, 1)
		require.Equal(t, int64(1), entries[0].Failures)
		require.Zero(t, entries[0].Successes)
	})

	t.Run("should not corrupt counts under concurrent appends", func(t *testing.T) {
		l := ledger.NewLedger()
		ctx := context.Background()

		const goroutines = 16
		const perGoroutine = 200

		var wg sync.WaitGroup
		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perGoroutine; i++ {
					l.Record(ctx, domain.FeatureStudyCards, domain.Attempt{Provider: "naive", Outcome: domain.OutcomeSuccess}, domain.Usage{InputUnits: 1, OutputUnits: 1})
				}
			}()
		}
		wg.Wait()

		entries := l.Snapshot()
		require.Len(t, entries, 1)
		require.Equal(t, int64(goroutines*perGoroutine), entries[0].Requests)
		require.Equal(t, int64(goroutines*perGoroutine), entries[0].InputUnits)
	})
}
