package search

// Step growth and backtrack factors. The golden ratio keeps successive
// expansion intervals self-similar; the backtrack band avoids collapsing the
// step to zero on a single bad trial.
const (
	goldenRatio   = 1.618034
	backtrackLow  = 0.1
	backtrackHigh = 0.5
)

// Bracketing locates a misfit minimum by expanding the trial step while the
// misfit keeps decreasing and interpolating the minimizer once the misfit
// has decreased then increased across the sorted step record.
type Bracketing struct{}

func (Bracketing) Name() string { return "bracket" }

func (Bracketing) CalculateStep(rec Record, cfg Config) (float64, Status) {
	x, f := rec.Steps, rec.Misfits

	var alpha float64
	var status Status
	switch {
	case rec.Trials == 0:
		// No trial evaluated yet, seed from history.
		alpha, status = firstTrialStep(rec), StatusPending

	case bracketClosed(x, f):
		// Misfit decreased then increased: a minimum is pinned between the
		// neighbors of the lowest point.
		alpha, status = bracketMinimum(x, f), StatusConverged

	case rec.Trials >= cfg.MaxTrials:
		return 0, StatusFailed

	case nonIncreasing(f):
		// Still going downhill, expand the interval.
		alpha, status = goldenRatio*x[len(x)-1], StatusPending

	default:
		// First trial overshot, parabolically backtrack between the base
		// and the smallest nonzero step.
		n := len(rec.GtG)
		slope := rec.GtP[n-1] / rec.GtG[n-1]
		alpha, status = backtrack(f[0], slope, x[1], f[1], backtrackLow, backtrackHigh), StatusPending
	}

	return safeguardStep(alpha, status, rec.Trials, cfg.maxStep())
}

// safeguardStep clips proposals into (0, maxStep]. A first-trial proposal
// beyond the bound is scaled into the interior instead so the search still
// has room to move; a later one is clipped to the bound and accepted.
func safeguardStep(alpha float64, status Status, trials int, maxStep float64) (float64, Status) {
	if status.Failed() {
		return 0, status
	}
	if alpha > maxStep {
		if trials == 0 {
			return (goldenRatio - 1) * maxStep, StatusPending
		}
		return maxStep, StatusConverged
	}
	if alpha <= 0 {
		return 0, StatusFailed
	}
	return alpha, status
}

// bracketClosed reports whether the sorted record pins a minimum: some step
// improved on the base misfit and a larger step made things worse again.
func bracketClosed(x, f []float64) bool {
	if len(f) < 3 {
		return false
	}
	i := argmin(f)
	fmin := f[i]
	if fmin >= f[0] {
		return false
	}
	for _, v := range f[i:] {
		if v > fmin {
			return true
		}
	}
	return false
}

func nonIncreasing(f []float64) bool {
	for _, v := range f {
		if v > f[0] {
			return false
		}
	}
	return true
}
