package store

import (
	"fmt"
	"time"

	"github.com/fwilab/seistep/internal/search"
)

// RunConfig holds the configuration of an inversion job (checkpoint copy).
// Keeping a copy here avoids import cycles with the driver packages and lets
// resume validate that the saved state matches the requested settings.
type RunConfig struct {
	Problem   string  `json:"problem"`  // objective name, e.g. quadratic, rosenbrock
	Dim       int     `json:"dim"`      // model dimension
	Strategy  string  `json:"strategy"` // bracket, bounded
	Iters     int     `json:"iters"`    // outer iteration budget
	MaxTrials int     `json:"maxTrials"`
	MaxStep   float64 `json:"maxStep,omitempty"` // 0 = unbounded
	Seed      int64   `json:"seed"`
}

// Checkpoint is a saved inversion state that can be resumed later. Unlike a
// population optimizer, the line-search engine is fully determined by its
// history sequences, so a checkpoint restores the exact search state: the
// model vector, the per-evaluation history and the caller-owned trial count.
// All fields are serialized to JSON for persistence.
type Checkpoint struct {
	// JobID is the unique identifier for this inversion job.
	JobID string `json:"jobId"`

	// Model is the current velocity-model parameter vector.
	Model []float64 `json:"model"`

	// Misfit is the objective value at Model.
	Misfit float64 `json:"misfit"`

	// InitialMisfit is the starting misfit, kept for improvement tracking.
	InitialMisfit float64 `json:"initialMisfit"`

	// Iteration is the number of completed outer iterations.
	Iteration int `json:"iteration"`

	// TrialCount is the trial counter of the line search in progress, zero
	// when the checkpoint was taken between searches.
	TrialCount int `json:"trialCount"`

	// History is the full line-search history of the run. Restoring it
	// before the next Initialize/Update call is what makes the search
	// resumable; the plain-text logbook is advisory only.
	History search.History `json:"history"`

	// Timestamp records when this checkpoint was created.
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration, needed for validation on resume.
	Config RunConfig `json:"config"`
}

// CheckpointInfo contains metadata about a checkpoint without the model and
// history payload. Used for listing checkpoints efficiently.
type CheckpointInfo struct {
	JobID     string    `json:"jobId"`
	Misfit    float64   `json:"misfit"`
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
	Problem   string    `json:"problem"`
	Strategy  string    `json:"strategy"`
	Dim       int       `json:"dim"`
}

// NewCheckpoint creates a checkpoint from runtime state.
func NewCheckpoint(jobID string, model []float64, misfit, initialMisfit float64,
	iteration, trialCount int, hist search.History, config RunConfig) *Checkpoint {
	return &Checkpoint{
		JobID:         jobID,
		Model:         model,
		Misfit:        misfit,
		InitialMisfit: initialMisfit,
		Iteration:     iteration,
		TrialCount:    trialCount,
		History:       hist,
		Timestamp:     time.Now(),
		Config:        config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:     c.JobID,
		Misfit:    c.Misfit,
		Iteration: c.Iteration,
		Timestamp: c.Timestamp,
		Problem:   c.Config.Problem,
		Strategy:  c.Config.Strategy,
		Dim:       c.Config.Dim,
	}
}

// Validate checks that the checkpoint can be restored without corrupting the
// search engine: the history length invariants must hold and the counters
// must be consistent with the recorded evaluations.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.Model) == 0 {
		return &ValidationError{Field: "Model", Reason: "cannot be empty"}
	}
	if c.Config.Dim > 0 && len(c.Model) != c.Config.Dim {
		return &ValidationError{
			Field:  "Model",
			Reason: fmt.Sprintf("length %d does not match dim %d", len(c.Model), c.Config.Dim),
		}
	}
	if c.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if c.TrialCount < 0 {
		return &ValidationError{Field: "TrialCount", Reason: "cannot be negative"}
	}
	h := c.History
	if len(h.StepLens) != len(h.Misfits) {
		return &ValidationError{
			Field:  "History",
			Reason: fmt.Sprintf("%d step lengths vs %d misfits", len(h.StepLens), len(h.Misfits)),
		}
	}
	if len(h.GtG) != len(h.GtP) {
		return &ValidationError{
			Field:  "History",
			Reason: fmt.Sprintf("%d gtg vs %d gtp entries", len(h.GtG), len(h.GtP)),
		}
	}
	if len(h.StepLens) > 0 && c.TrialCount+1 > len(h.StepLens) {
		return &ValidationError{
			Field:  "TrialCount",
			Reason: fmt.Sprintf("%d trials exceed %d recorded evaluations", c.TrialCount, len(h.StepLens)),
		}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.Problem == "" {
		return &ValidationError{Field: "Config.Problem", Reason: "cannot be empty"}
	}
	if c.Config.Strategy == "" {
		return &ValidationError{Field: "Config.Strategy", Reason: "cannot be empty"}
	}
	if c.Config.MaxTrials < 1 {
		return &ValidationError{Field: "Config.MaxTrials", Reason: "must be at least 1"}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks whether this checkpoint can be resumed with the given
// config. Changing the objective, dimension or strategy mid-run would make
// the restored history meaningless, so those must match. The budgets
// (Iters, MaxTrials, MaxStep) may change between runs; that is exactly the
// reset-and-retry-with-adjusted-parameters path.
func (c *Checkpoint) IsCompatible(config RunConfig) error {
	if c.Config.Problem != config.Problem {
		return &CompatibilityError{
			Field:    "Problem",
			Expected: c.Config.Problem,
			Actual:   config.Problem,
		}
	}
	if c.Config.Dim != config.Dim {
		return &CompatibilityError{
			Field:    "Dim",
			Expected: fmt.Sprintf("%d", c.Config.Dim),
			Actual:   fmt.Sprintf("%d", config.Dim),
		}
	}
	if c.Config.Strategy != config.Strategy {
		return &CompatibilityError{
			Field:    "Strategy",
			Expected: c.Config.Strategy,
			Actual:   config.Strategy,
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
