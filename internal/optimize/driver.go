package optimize

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fwilab/seistep/internal/search"
	"github.com/fwilab/seistep/internal/store"
)

// ErrLineSearchFailed is returned when a line search exhausts its trial
// budget without an acceptable step. The driver has already reset the search
// history, so the caller may retry with adjusted parameters.
var ErrLineSearchFailed = errors.New("optimize: line search failed")

// Result summarizes a driver run.
type Result struct {
	Model         []float64
	Misfit        float64
	InitialMisfit float64
	Iterations    int
	Evaluations   int
	Converged     bool
}

// Driver is the outer steepest-descent loop around the line search engine.
// Per outer iteration it computes the gradient, hands the dot products to
// Search.Initialize, and then alternates solver evaluations with
// Search.Update until the search converges or fails.
//
// The driver owns the trial counter: it calls IncrementTrial after every
// evaluation and the engine never touches the counter itself, so a retried
// evaluation can never be double-counted.
type Driver struct {
	problem Problem
	search  *search.Search
	config  store.RunConfig

	tracker *ConvergenceTracker
	trace   *store.TraceWriter
	ckpts   store.Store
	jobID   string

	model         []float64
	misfit        float64
	initialMisfit float64
	iteration     int
	evaluations   int
	resumed       bool
}

// NewDriver creates a driver for the given problem and search engine.
func NewDriver(problem Problem, s *search.Search, config store.RunConfig) *Driver {
	return &Driver{
		problem: problem,
		search:  s,
		config:  config,
	}
}

// SetModel sets the starting model.
func (d *Driver) SetModel(m []float64) {
	d.model = append([]float64(nil), m...)
}

// SetTracker enables early stopping on stalled misfit.
func (d *Driver) SetTracker(t *ConvergenceTracker) { d.tracker = t }

// SetTrace attaches a per-evaluation trace writer.
func (d *Driver) SetTrace(tw *store.TraceWriter) { d.trace = tw }

// SetStore enables per-iteration checkpointing under the given job ID.
func (d *Driver) SetStore(s store.Store, jobID string) {
	d.ckpts = s
	d.jobID = jobID
}

// ResumeFrom restores driver and search state from a checkpoint. Must be
// called before Run; the search history is rebuilt before the engine sees
// another Initialize or Update.
func (d *Driver) ResumeFrom(ckpt *store.Checkpoint) error {
	if err := ckpt.Validate(); err != nil {
		return fmt.Errorf("invalid checkpoint: %w", err)
	}
	if err := ckpt.IsCompatible(d.config); err != nil {
		return fmt.Errorf("incompatible checkpoint: %w", err)
	}
	if err := d.search.RestoreHistory(ckpt.History, ckpt.TrialCount); err != nil {
		return fmt.Errorf("failed to restore search history: %w", err)
	}

	d.model = append([]float64(nil), ckpt.Model...)
	d.misfit = ckpt.Misfit
	d.initialMisfit = ckpt.InitialMisfit
	d.iteration = ckpt.Iteration
	d.resumed = true

	slog.Info("Resumed from checkpoint",
		"job_id", ckpt.JobID,
		"iteration", ckpt.Iteration,
		"misfit", ckpt.Misfit,
	)
	return nil
}

// Run performs up to iters outer iterations and returns the final state.
// On line search failure the partial result is returned together with
// ErrLineSearchFailed.
func (d *Driver) Run(iters int) (*Result, error) {
	if len(d.model) == 0 {
		return nil, errors.New("optimize: no starting model")
	}
	if len(d.model) != d.problem.Dim() {
		return nil, fmt.Errorf("optimize: model has %d parameters, problem wants %d",
			len(d.model), d.problem.Dim())
	}

	if !d.resumed {
		d.misfit = d.evaluate(d.model)
		d.initialMisfit = d.misfit
	}

	start := time.Now()
	converged := false

	for n := 0; n < iters; n++ {
		iter := d.iteration + 1

		g := d.problem.Gradient(d.model)
		gtg := dot(g, g)
		if gtg == 0 {
			slog.Info("Gradient vanished, model is stationary", "iter", iter)
			converged = true
			break
		}
		p := scale(-1, g) // steepest descent
		gtp := dot(g, p)

		alpha, status, err := d.search.Initialize(iter, 0, d.misfit, gtg, gtp)
		if err != nil {
			return d.result(converged), err
		}
		d.writeTrace(iter, 0, 0, d.misfit)

		for status == search.StatusPending {
			trial := axpy(alpha, p, d.model)
			f := d.evaluate(trial)
			d.search.IncrementTrial()
			d.writeTrace(iter, d.search.TrialCount(), alpha, f)

			alpha, status, err = d.search.Update(iter, alpha, f)
			if err != nil {
				return d.result(converged), err
			}
		}

		if status.Failed() {
			slog.Warn("Line search exhausted its trial budget",
				"iter", iter,
				"trials", d.search.TrialCount(),
				"max_trials", d.search.Config().MaxTrials,
			)
			d.search.Reset()
			d.flushTrace()
			return d.result(false), fmt.Errorf("%w: iteration %d", ErrLineSearchFailed, iter)
		}

		// Accepted: move the model by the final step.
		d.model = axpy(alpha, p, d.model)
		d.misfit = d.evaluate(d.model)
		d.iteration = iter

		slog.Info("Iteration accepted",
			"iter", iter,
			"alpha", alpha,
			"misfit", d.misfit,
			"trials", d.search.TrialCount(),
		)

		d.checkpoint()
		d.flushTrace()

		if d.tracker != nil && d.tracker.Update(d.misfit) {
			converged = true
			break
		}
	}

	slog.Info("Inversion finished",
		"iterations", d.iteration,
		"evaluations", d.evaluations,
		"elapsed", time.Since(start),
		"initial_misfit", d.initialMisfit,
		"final_misfit", d.misfit,
	)
	return d.result(converged), nil
}

func (d *Driver) evaluate(m []float64) float64 {
	d.evaluations++
	return d.problem.Misfit(m)
}

func (d *Driver) result(converged bool) *Result {
	return &Result{
		Model:         append([]float64(nil), d.model...),
		Misfit:        d.misfit,
		InitialMisfit: d.initialMisfit,
		Iterations:    d.iteration,
		Evaluations:   d.evaluations,
		Converged:     converged,
	}
}

func (d *Driver) writeTrace(iter, trial int, stepLen, misfit float64) {
	if d.trace == nil {
		return
	}
	err := d.trace.Write(store.TraceEntry{
		Iteration: iter,
		Trial:     trial,
		StepLen:   stepLen,
		Misfit:    misfit,
		Timestamp: time.Now(),
	})
	if err != nil {
		slog.Warn("Failed to write trace entry", "iter", iter, "error", err)
	}
}

func (d *Driver) flushTrace() {
	if d.trace == nil {
		return
	}
	if err := d.trace.Flush(); err != nil {
		slog.Warn("Failed to flush trace", "error", err)
	}
}

func (d *Driver) checkpoint() {
	if d.ckpts == nil {
		return
	}
	ckpt := store.NewCheckpoint(d.jobID, d.model, d.misfit, d.initialMisfit,
		d.iteration, d.search.TrialCount(), d.search.History(), d.config)
	if err := d.ckpts.SaveCheckpoint(d.jobID, ckpt); err != nil {
		slog.Error("Failed to save checkpoint", "job_id", d.jobID, "error", err)
	}
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func scale(c float64, v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = c * x
	}
	return out
}

// axpy returns alpha*p + m without mutating its inputs.
func axpy(alpha float64, p, m []float64) []float64 {
	out := make([]float64, len(m))
	for i := range m {
		out[i] = m[i] + alpha*p[i]
	}
	return out
}
