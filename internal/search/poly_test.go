package search

import (
	"math"
	"testing"
)

func TestQuadFitExact(t *testing.T) {
	// Samples of 2x^2 - 3x + 1.
	x := []float64{0, 1, 2, 3}
	f := make([]float64, len(x))
	for i, xi := range x {
		f[i] = 2*xi*xi - 3*xi + 1
	}

	a, b, c, ok := quadFit(x, f)
	if !ok {
		t.Fatal("Expected fit to succeed")
	}
	if math.Abs(a-2) > 1e-9 || math.Abs(b+3) > 1e-9 || math.Abs(c-1) > 1e-9 {
		t.Errorf("Expected coefficients (2, -3, 1), got (%g, %g, %g)", a, b, c)
	}
}

func TestQuadFitDegenerate(t *testing.T) {
	if _, _, _, ok := quadFit([]float64{0, 1}, []float64{1, 2}); ok {
		t.Error("Expected failure with fewer than three points")
	}
	if _, _, _, ok := quadFit([]float64{1, 1, 1}, []float64{1, 2, 3}); ok {
		t.Error("Expected failure with coincident abscissae")
	}
	if _, _, _, ok := quadFit([]float64{0, 1, 2}, []float64{1, 2}); ok {
		t.Error("Expected failure with mismatched lengths")
	}
}

func TestBracketMinimumInterpolates(t *testing.T) {
	x := []float64{0, 1, 2, 4}
	f := []float64{1.0, 0.9, 0.5, 0.8}

	v := bracketMinimum(x, f)
	if v <= 1 || v >= 4 {
		t.Fatalf("Expected minimizer inside the bracket (1, 4), got %g", v)
	}
	if math.Abs(v-2.590909090909) > 1e-6 {
		t.Errorf("Expected vertex near 2.5909, got %g", v)
	}
}

func TestBracketMinimumMidpointFallback(t *testing.T) {
	// Lowest misfit at the record edge leaves only two points for the fit;
	// the midpoint of the remaining interval is used instead.
	x := []float64{0, 1, 2}
	f := []float64{1.0, 0.5, 0.2}

	v := bracketMinimum(x, f)
	if math.Abs(v-1.5) > 1e-12 {
		t.Errorf("Expected midpoint 1.5, got %g", v)
	}
}

func TestBacktrackParabolicStep(t *testing.T) {
	// Objective 1 at zero step with slope -1, trial at 1 came back at 1.4.
	alpha := backtrack(1.0, -1.0, 1.0, 1.4, backtrackLow, backtrackHigh)
	if math.Abs(alpha-1.0/2.8) > 1e-12 {
		t.Errorf("Expected parabolic minimizer %g, got %g", 1.0/2.8, alpha)
	}
}

func TestBacktrackClamps(t *testing.T) {
	// Severe overshoot pushes the raw minimizer below the lower clamp.
	if alpha := backtrack(1.0, -1.0, 1.0, 10.0, backtrackLow, backtrackHigh); alpha != backtrackLow {
		t.Errorf("Expected lower clamp %g, got %g", backtrackLow, alpha)
	}
	// Barely failing trial pushes it above the upper clamp.
	if alpha := backtrack(1.0, -1.0, 1.0, 0.01, backtrackLow, backtrackHigh); alpha != backtrackHigh {
		t.Errorf("Expected upper clamp %g, got %g", backtrackHigh, alpha)
	}
	// Degenerate denominator falls back to the upper clamp.
	if alpha := backtrack(1.0, -1.0, 1.0, 0.0, backtrackLow, backtrackHigh); alpha != backtrackHigh {
		t.Errorf("Expected fallback to upper clamp %g, got %g", backtrackHigh, alpha)
	}
}

func TestFirstTrialStepRestart(t *testing.T) {
	rec := Record{
		Steps:      []float64{0},
		Misfits:    []float64{0.4},
		GtG:        []float64{1.0, 0.8},
		GtP:        []float64{-1.0, -0.4},
		AllSteps:   []float64{0, 1.0, 1.618, 2.618, 0},
		AllMisfits: []float64{1.0, 0.5, 0.4, 0.9, 0.4},
		Trials:     0,
		Updates:    1,
	}

	alpha := firstTrialStep(rec)
	want := 1.618 * (-1.0) / (-0.4)
	if math.Abs(alpha-want) > 1e-9 {
		t.Errorf("Expected rescaled best previous step %g, got %g", want, alpha)
	}
}

func TestBestPreviousStepSkipsZeroSteps(t *testing.T) {
	rec := Record{
		AllSteps:   []float64{0, 1.0, 2.0, 0},
		AllMisfits: []float64{0.3, 0.5, 0.45, 0.45},
		Trials:     0,
	}
	if got := bestPreviousStep(rec); got != 2.0 {
		t.Errorf("Expected best nonzero step 2, got %g", got)
	}

	empty := Record{AllSteps: []float64{0}, AllMisfits: []float64{1.0}}
	if got := bestPreviousStep(empty); got != 1 {
		t.Errorf("Expected unit fallback, got %g", got)
	}
}
