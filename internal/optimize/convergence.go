package optimize

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines parameters for detecting inversion convergence.
type ConvergenceConfig struct {
	// Enabled controls whether convergence detection is active
	Enabled bool

	// Patience is the number of accepted iterations with no significant
	// misfit improvement before stopping early
	Patience int

	// Threshold is the minimum relative improvement required to count as
	// progress. Example: 0.001 = 0.1% improvement required.
	// Relative improvement = (oldMisfit - newMisfit) / oldMisfit
	Threshold float64
}

// DefaultConvergenceConfig returns sensible defaults for convergence detection.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  3,
		Threshold: 0.001, // 0.1% improvement
	}
}

// DisabledConvergenceConfig returns a config with convergence detection disabled.
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{Enabled: false}
}

// ConvergenceTracker tracks accepted misfits and detects when the outer
// optimization has stalled.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	misfitHistory   []float64
	bestMisfit      float64 // best misfit ever seen
	lastSignificant float64 // last misfit that was a significant improvement
	staleCount      int     // accepted iterations without significant improvement
}

// NewConvergenceTracker creates a new tracker with the given config.
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		misfitHistory:   []float64{},
		bestMisfit:      math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records an accepted misfit and returns true if convergence is
// detected.
func (c *ConvergenceTracker) Update(misfit float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.misfitHistory = append(c.misfitHistory, misfit)

	if misfit < c.bestMisfit {
		c.bestMisfit = misfit
	}

	// First misfit, initialize the reference point.
	if len(c.misfitHistory) == 1 {
		c.lastSignificant = misfit
		return false
	}

	relativeImprovement := (c.lastSignificant - misfit) / c.lastSignificant

	if relativeImprovement >= c.config.Threshold {
		c.lastSignificant = misfit
		c.staleCount = 0
		slog.Debug("Misfit improvement detected",
			"misfit", misfit,
			"relative_improvement", relativeImprovement,
		)
	} else {
		c.staleCount++
		slog.Debug("No significant misfit improvement",
			"misfit", misfit,
			"last_significant", c.lastSignificant,
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
		)

		if c.staleCount >= c.config.Patience {
			slog.Info("Convergence detected, stopping early",
				"stale_count", c.staleCount,
				"patience", c.config.Patience,
				"best_misfit", c.bestMisfit,
			)
			return true
		}
	}

	return false
}

// BestMisfit returns the best misfit seen so far.
func (c *ConvergenceTracker) BestMisfit() float64 { return c.bestMisfit }

// History returns a copy of the accepted misfit history.
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.misfitHistory...)
}

// StaleCount returns the current number of iterations without improvement.
func (c *ConvergenceTracker) StaleCount() int { return c.staleCount }

// Reset clears the tracker's state.
func (c *ConvergenceTracker) Reset() {
	c.misfitHistory = []float64{}
	c.bestMisfit = math.Inf(1)
	c.lastSignificant = math.Inf(1)
	c.staleCount = 0
}
