package search

import "math"

// defaultFitTol is the relative tolerance used both for "real" misfit
// improvement and for candidate stability between successive fits.
const defaultFitTol = 1e-4

// Bounded fits a quadratic through the evaluated steps and jumps straight
// to its vertex, without an explicit bracketing phase. With fewer than three
// points it falls back to doubling or halving the last trial step.
type Bounded struct {
	// Tol overrides defaultFitTol when positive.
	Tol float64

	prev float64 // previous fit candidate, reset when a new search starts
}

func (*Bounded) Name() string { return "bounded" }

func (b *Bounded) tol() float64 {
	if b.Tol > 0 {
		return b.Tol
	}
	return defaultFitTol
}

func (b *Bounded) CalculateStep(rec Record, cfg Config) (float64, Status) {
	x, f := rec.Steps, rec.Misfits
	tol := b.tol()

	if rec.Trials == 0 {
		b.prev = 0
		return safeguardStep(firstTrialStep(rec), StatusPending, 0, cfg.maxStep())
	}

	base := f[0]
	ibest := argmin(f)
	improved := base-f[ibest] > tol*math.Max(math.Abs(base), 1)

	// Out of budget: keep the best evaluated step if it bought anything.
	if rec.Trials >= cfg.MaxTrials {
		if improved {
			return safeguardStep(x[ibest], StatusConverged, rec.Trials, cfg.maxStep())
		}
		return 0, StatusFailed
	}

	if len(x) < 3 {
		// Too few points for a fit: double on improvement, halve otherwise.
		last := len(rec.AllSteps) - 1
		alpha := rec.AllSteps[last]
		if alpha <= 0 {
			alpha = x[len(x)-1]
		}
		if rec.AllMisfits[last] < base {
			alpha *= 2
		} else {
			alpha /= 2
		}
		return safeguardStep(alpha, StatusPending, rec.Trials, cfg.maxStep())
	}

	alpha, ok := b.fitVertex(x, f, cfg.maxStep())
	if !ok {
		// Concave or degenerate fit, push past the best step instead.
		return safeguardStep(2*x[ibest], StatusPending, rec.Trials, cfg.maxStep())
	}

	stable := b.prev > 0 && math.Abs(alpha-b.prev) <= tol*math.Max(b.prev, 1)
	b.prev = alpha

	if improved && (stable || interpolates(alpha, x)) {
		return safeguardStep(alpha, StatusConverged, rec.Trials, cfg.maxStep())
	}
	return safeguardStep(alpha, StatusPending, rec.Trials, cfg.maxStep())
}

// fitVertex least-squares fits a parabola to the record and returns its
// vertex clipped into (0, maxStep].
func (b *Bounded) fitVertex(x, f []float64, maxStep float64) (float64, bool) {
	a, bb, _, ok := quadFit(x, f)
	if !ok || a <= 0 {
		return 0, false
	}
	v := -bb / (2 * a)
	if v <= 0 || math.IsNaN(v) {
		return 0, false
	}
	if v > maxStep {
		v = maxStep
	}
	return v, true
}

// interpolates reports whether the candidate lies within the span of the
// nonzero evaluated steps, i.e. the fit interpolates rather than
// extrapolates.
func interpolates(alpha float64, x []float64) bool {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, v := range x {
		if v <= 0 {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return alpha >= lo && alpha <= hi
}
