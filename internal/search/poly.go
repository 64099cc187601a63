package search

import "math"

// quadFit fits f ~= a*x^2 + b*x + c to the given points by least squares
// using the normal equations. With exactly three distinct points the fit is
// exact. ok is false when the system is singular (fewer than three points or
// collinear abscissae).
func quadFit(x, f []float64) (a, b, c float64, ok bool) {
	if len(x) < 3 || len(x) != len(f) {
		return 0, 0, 0, false
	}

	var s1, s2, s3, s4 float64
	var t0, t1, t2 float64
	for i, xi := range x {
		xi2 := xi * xi
		s1 += xi
		s2 += xi2
		s3 += xi2 * xi
		s4 += xi2 * xi2
		t0 += f[i]
		t1 += xi * f[i]
		t2 += xi2 * f[i]
	}
	s0 := float64(len(x))

	// Cramer's rule on the 3x3 normal system.
	det := s4*(s2*s0-s1*s1) - s3*(s3*s0-s1*s2) + s2*(s3*s1-s2*s2)
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return 0, 0, 0, false
	}
	a = (t2*(s2*s0-s1*s1) - s3*(t1*s0-t0*s1) + s2*(t1*s1-t0*s2)) / det
	b = (s4*(t1*s0-t0*s1) - t2*(s3*s0-s1*s2) + s2*(s3*t0-t1*s2)) / det
	c = (s4*(s2*t0-t1*s1) - s3*(s3*t0-t1*s2) + t2*(s3*s1-s2*s2)) / det
	return a, b, c, true
}

// bracketMinimum estimates the minimizer from a closed bracket by fitting a
// parabola through the three points surrounding the lowest misfit. Falls
// back to the bracket midpoint when the fit is degenerate or its vertex
// escapes the bracket.
func bracketMinimum(x, f []float64) float64 {
	i := argmin(f)
	lo, hi := i-1, i+1
	if lo < 0 {
		lo = 0
	}
	if hi > len(x)-1 {
		hi = len(x) - 1
	}

	if a, b, _, ok := quadFit(x[lo:hi+1], f[lo:hi+1]); ok && a > 0 {
		if v := -b / (2 * a); v > x[lo] && v < x[hi] && v > 0 {
			return v
		}
	}
	return 0.5 * (x[lo] + x[hi])
}

// backtrack performs a parabolic backtrack from an overshooting first trial:
// f0 and slope describe the objective at zero step, (x1, f1) the failed
// trial. The result is clamped to [b1*x1, b2*x1].
func backtrack(f0, slope, x1, f1, b1, b2 float64) float64 {
	denom := 2 * (f1 - f0 - slope*x1)
	alpha := -slope * x1 * x1 / denom
	if denom == 0 || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		alpha = b2 * x1
	}
	if alpha > b2*x1 {
		alpha = b2 * x1
	} else if alpha < b1*x1 {
		alpha = b1 * x1
	}
	return alpha
}

// firstTrialStep seeds a search that has not evaluated any trial yet. The
// very first search of a run echoes the seed step, or uses the 1/gtg
// curvature estimate of Dennis & Schnabel when only a zero step was
// recorded. Later searches rescale the best previous step by the ratio of
// direction dot products (Nocedal & Wright eq. 3.60).
func firstTrialStep(rec Record) float64 {
	n := len(rec.GtP)
	if rec.Updates <= 0 || n < 2 {
		alpha := rec.Steps[len(rec.Steps)-1]
		if alpha <= 0 {
			gtg := rec.GtG[n-1]
			if gtg > 0 {
				alpha = 1 / gtg
			} else {
				alpha = 1
			}
		}
		return alpha
	}

	prev := bestPreviousStep(rec)
	alpha := prev * rec.GtP[n-2] / rec.GtP[n-1]
	if alpha <= 0 || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		alpha = prev
	}
	return alpha
}

// bestPreviousStep returns the nonzero step length with the lowest misfit
// recorded before the current search began.
func bestPreviousStep(rec Record) float64 {
	k := len(rec.AllSteps) - rec.Trials - 1
	best, bestF := 0.0, math.Inf(1)
	for i := 0; i < k && i < len(rec.AllMisfits); i++ {
		if rec.AllSteps[i] > 0 && rec.AllMisfits[i] < bestF {
			best, bestF = rec.AllSteps[i], rec.AllMisfits[i]
		}
	}
	if best > 0 {
		return best
	}
	return 1
}
