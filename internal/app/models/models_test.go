package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskThresholds_Categorize(t *testing.T) {
	th := DefaultRiskThresholds
	cases := map[float64]RiskCategory{
		0.0:  RiskLow,
		0.29: RiskLow,
		0.30: RiskMedium,
		0.49: RiskMedium,
		0.50: RiskHigh,
		0.69: RiskHigh,
		0.70: RiskCritical,
		0.82: RiskCritical,
		1.0:  RiskCritical,
	}
	for score, want := range cases {
		assert.Equal(t, want, th.Categorize(score), "score %.2f", score)
	}

	custom := RiskThresholds{Critical: 0.9, High: 0.8, Medium: 0.1}
	assert.Equal(t, RiskHigh, custom.Categorize(0.82))
}

func TestRiskCategory_Rank(t *testing.T) {
	assert.Less(t, RiskLow.Rank(), RiskMedium.Rank())
	assert.Less(t, RiskMedium.Rank(), RiskHigh.Rank())
	assert.Less(t, RiskHigh.Rank(), RiskCritical.Rank())
	assert.Zero(t, RiskCategory("Severe").Rank())
}

func TestInterventionStatus_StateMachine(t *testing.T) {
	legal := map[InterventionStatus][]InterventionStatus{
		StatusPending:    {StatusScheduled, StatusCancelled},
		StatusScheduled:  {StatusInProgress, StatusCancelled, StatusNoShow},
		StatusInProgress: {StatusCompleted, StatusCancelled},
	}

	for _, from := range AllInterventionStatuses {
		for _, to := range AllInterventionStatuses {
			want := false
			for _, n := range legal[from] {
				if n == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	for _, s := range []InterventionStatus{StatusCompleted, StatusCancelled, StatusNoShow} {
		assert.True(t, s.IsTerminal(), s)
		assert.Empty(t, s.AllowedNext(), s)
	}
	assert.False(t, StatusScheduled.IsTerminal())
	assert.False(t, InterventionStatus("Bogus").IsTerminal())
}

func TestInterventionStatus_AllowedNextIsACopy(t *testing.T) {
	next := StatusScheduled.AllowedNext()
	next[0] = StatusCompleted
	assert.Equal(t, StatusInProgress, StatusScheduled.AllowedNext()[0])
}

func TestPriority(t *testing.T) {
	assert.True(t, PriorityHigh.Valid())
	assert.False(t, Priority("Urgent").Valid())
	assert.Greater(t, PriorityCritical.Rank(), PriorityHigh.Rank())
}
