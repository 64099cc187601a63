package search

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Status reports the outcome of a step calculation.
// Positive values mean the search finished and the returned step is final.
// Zero means the caller must evaluate the returned trial step and feed the
// resulting misfit back through Update. Negative values mean the search
// failed and the caller decides whether to Reset and retry or abandon the
// outer iteration.
type Status int

const (
	StatusFailed    Status = -1
	StatusPending   Status = 0
	StatusConverged Status = 1
)

func (s Status) String() string {
	switch {
	case s > 0:
		return "converged"
	case s < 0:
		return "failed"
	default:
		return "pending"
	}
}

// Finished reports whether the search accepted a step.
func (s Status) Finished() bool { return s > 0 }

// Failed reports whether the search gave up.
func (s Status) Failed() bool { return s < 0 }

var (
	// ErrNoStrategy indicates the engine was built without a step strategy.
	// This is a programmer error and callers should not try to recover.
	ErrNoStrategy = errors.New("search: no step strategy configured")

	// ErrInconsistentHistory indicates the history invariants were violated,
	// e.g. Update called without a prior Initialize or a restored history
	// with mismatched sequence lengths.
	ErrInconsistentHistory = errors.New("search: inconsistent history")
)

// Config bounds a line search.
type Config struct {
	// MaxTrials is the trial evaluation budget per search.
	MaxTrials int

	// MaxStep caps proposed step lengths. Zero or negative means unbounded.
	MaxStep float64
}

func (c Config) maxStep() float64 {
	if c.MaxStep <= 0 {
		return math.Inf(1)
	}
	return c.MaxStep
}

// Strategy selects the next trial step length from the accumulated step
// record. Implementations must not mutate the record.
type Strategy interface {
	Name() string
	CalculateStep(rec Record, cfg Config) (alpha float64, status Status)
}

// NewStrategy builds a step strategy by name.
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case "bracket":
		return Bracketing{}, nil
	case "bounded":
		return &Bounded{}, nil
	default:
		return nil, fmt.Errorf("unknown line search strategy: %s", name)
	}
}

// Recorder receives one entry per misfit evaluation, typically backed by the
// plain-text logbook. Recorders are advisory: the engine logs write failures
// and carries on.
type Recorder interface {
	Record(iter int, stepLen, misfit float64) error
}

// Search is the line search engine shared by all step strategies. It owns
// the evaluation history; the trial counter is owned by the outer
// optimization loop and only incremented through IncrementTrial.
//
// Search is not safe for concurrent use. The expected call pattern is a
// single driver alternating Initialize/Update with solver evaluations.
type Search struct {
	cfg      Config
	strategy Strategy
	hist     History
	trials   int
	recorder Recorder
	logger   *slog.Logger
}

// New creates a search engine using the given step strategy.
func New(strategy Strategy, cfg Config) *Search {
	return &Search{
		cfg:      cfg,
		strategy: strategy,
		logger:   slog.Default(),
	}
}

// SetRecorder attaches a per-evaluation recorder.
func (s *Search) SetRecorder(r Recorder) { s.recorder = r }

// SetLogger replaces the default logger.
func (s *Search) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Config returns the search bounds.
func (s *Search) Config() Config { return s.cfg }

// TrialCount returns the number of trial evaluations performed within the
// current search, as reported by the caller.
func (s *Search) TrialCount() int { return s.trials }

// IncrementTrial bumps the trial counter. The outer loop calls this after
// each solver evaluation; the engine never increments it itself, so retries
// in the driver cannot double-count.
func (s *Search) IncrementTrial() { s.trials++ }

// Initialize starts a new line search from the given base evaluation.
// stepLen is the step at which misfit was measured (zero for the base
// model), gtg and gtp are the gradient-gradient and gradient-direction dot
// products for this outer iteration. It returns the first trial step.
func (s *Search) Initialize(iter int, stepLen, misfit, gtg, gtp float64) (float64, Status, error) {
	if s.strategy == nil {
		return 0, StatusFailed, ErrNoStrategy
	}
	if err := s.hist.check(); err != nil {
		return 0, StatusFailed, err
	}

	s.trials = 0
	s.hist.StepLens = append(s.hist.StepLens, stepLen)
	s.hist.Misfits = append(s.hist.Misfits, misfit)
	s.hist.GtG = append(s.hist.GtG, gtg)
	s.hist.GtP = append(s.hist.GtP, gtp)
	s.record(iter, stepLen, misfit)

	alpha, status := s.strategy.CalculateStep(s.StepRecord(true), s.cfg)
	s.logger.Debug("line search initialized",
		"strategy", s.strategy.Name(),
		"iter", iter,
		"misfit", misfit,
		"alpha", alpha,
		"status", status.String(),
	)
	return alpha, status, nil
}

// Update appends a trial evaluation to the history and recomputes the search
// status and next trial step. The caller must have called Initialize for the
// current outer iteration and must increment the trial counter itself.
func (s *Search) Update(iter int, stepLen, misfit float64) (float64, Status, error) {
	if s.strategy == nil {
		return 0, StatusFailed, ErrNoStrategy
	}
	if len(s.hist.GtG) == 0 {
		return 0, StatusFailed, fmt.Errorf("%w: Update called before Initialize", ErrInconsistentHistory)
	}
	if err := s.hist.check(); err != nil {
		return 0, StatusFailed, err
	}

	s.hist.StepLens = append(s.hist.StepLens, stepLen)
	s.hist.Misfits = append(s.hist.Misfits, misfit)
	s.record(iter, stepLen, misfit)

	alpha, status := s.strategy.CalculateStep(s.StepRecord(true), s.cfg)
	s.logger.Debug("line search updated",
		"strategy", s.strategy.Name(),
		"iter", iter,
		"trial", s.trials,
		"step_len", stepLen,
		"misfit", misfit,
		"alpha", alpha,
		"status", status.String(),
	)
	return alpha, status, nil
}

// Reset undoes the most recent search's contribution to the history so a
// failed or interrupted search can be restarted cleanly. It assumes the
// caller incremented the trial counter for every evaluation of the aborted
// search. A single-entry history is cleared entirely.
func (s *Search) Reset() {
	if len(s.hist.StepLens) <= 1 {
		s.ClearHistory()
		return
	}

	// Wind dot products back by one outer iteration, evaluations by the
	// base entry plus one per trial.
	n := len(s.hist.GtG)
	s.hist.GtG = s.hist.GtG[:n-1]
	s.hist.GtP = s.hist.GtP[:n-1]

	cut := len(s.hist.StepLens) - s.trials - 1
	if cut < 0 {
		cut = 0
	}
	s.hist.StepLens = s.hist.StepLens[:cut]
	s.hist.Misfits = s.hist.Misfits[:cut]
	s.trials = 0
}

// ClearHistory empties all history sequences, for starting a logically new
// problem with the same engine.
func (s *Search) ClearHistory() {
	s.hist = History{}
	s.trials = 0
}

// History returns a copy of the accumulated history, suitable for
// checkpointing.
func (s *Search) History() History { return s.hist.Clone() }

// RestoreHistory replaces the engine state with a previously checkpointed
// history, validating the sequence invariants first. It must be called
// before the next Initialize or Update when resuming from disk.
func (s *Search) RestoreHistory(h History, trials int) error {
	if err := h.check(); err != nil {
		return err
	}
	if trials < 0 {
		return fmt.Errorf("%w: negative trial count %d", ErrInconsistentHistory, trials)
	}
	if len(h.StepLens) > 0 && trials+1 > len(h.StepLens) {
		return fmt.Errorf("%w: trial count %d exceeds %d recorded evaluations",
			ErrInconsistentHistory, trials, len(h.StepLens))
	}
	s.hist = h.Clone()
	s.trials = trials
	return nil
}

// StepRecord extracts the current search's evaluations from the tail of the
// history. When sortBySteps is set, steps and misfits are jointly reordered
// by ascending absolute step length (stable, so ties keep evaluation order).
func (s *Search) StepRecord(sortBySteps bool) Record {
	return s.hist.record(s.trials, sortBySteps)
}

func (s *Search) record(iter int, stepLen, misfit float64) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(iter, stepLen, misfit); err != nil {
		s.logger.Warn("failed to record evaluation", "iter", iter, "error", err)
	}
}
