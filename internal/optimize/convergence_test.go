package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerFirstUpdateNeverConverges(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 1, Threshold: 0.5})

	assert.False(t, tracker.Update(1.0))
	assert.Equal(t, 1.0, tracker.BestMisfit())
	assert.Zero(t, tracker.StaleCount())
}

func TestTrackerStopsAfterPatience(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 2, Threshold: 0.01})

	assert.False(t, tracker.Update(1.0))
	assert.False(t, tracker.Update(0.9999)) // below threshold, stale 1
	assert.True(t, tracker.Update(0.9998))  // stale 2, patience reached
	assert.Equal(t, 2, tracker.StaleCount())
}

func TestTrackerImprovementResetsStaleCount(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 2, Threshold: 0.01})

	tracker.Update(1.0)
	assert.False(t, tracker.Update(0.999)) // stale 1
	assert.False(t, tracker.Update(0.5))   // significant improvement
	assert.Zero(t, tracker.StaleCount())
	assert.Equal(t, 0.5, tracker.BestMisfit())

	// Needs the full patience again after the reset.
	assert.False(t, tracker.Update(0.4999))
	assert.True(t, tracker.Update(0.4998))
}

func TestTrackerDisabled(t *testing.T) {
	tracker := NewConvergenceTracker(DisabledConvergenceConfig())

	for i := 0; i < 10; i++ {
		assert.False(t, tracker.Update(1.0))
	}
	assert.Empty(t, tracker.History())
}

func TestTrackerHistoryAndReset(t *testing.T) {
	tracker := NewConvergenceTracker(DefaultConvergenceConfig())

	tracker.Update(1.0)
	tracker.Update(0.5)
	assert.Equal(t, []float64{1.0, 0.5}, tracker.History())

	// History returns a copy, not a view.
	tracker.History()[0] = 99
	assert.Equal(t, []float64{1.0, 0.5}, tracker.History())

	tracker.Reset()
	assert.Empty(t, tracker.History())
	assert.Zero(t, tracker.StaleCount())
}
