package search

import (
	"math"
	"testing"
)

func newBracketSearch(cfg Config) *Search {
	return New(Bracketing{}, cfg)
}

// feedTrial mirrors the driver: count the evaluation, then report it.
func feedTrial(t *testing.T, s *Search, iter int, step, misfit float64) (float64, Status) {
	t.Helper()

	s.IncrementTrial()
	alpha, status, err := s.Update(iter, step, misfit)
	if err != nil {
		t.Fatalf("Update(%g, %g) failed: %v", step, misfit, err)
	}
	return alpha, status
}

func TestBracketingSeedsFromCurvature(t *testing.T) {
	s := newBracketSearch(Config{MaxTrials: 10})

	alpha, status, err := s.Initialize(1, 0, 1.0, 4.0, -4.0)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if status != StatusPending {
		t.Errorf("Expected pending status, got %v", status)
	}
	if math.Abs(alpha-0.25) > 1e-12 {
		t.Errorf("Expected 1/gtg seed 0.25, got %g", alpha)
	}
}

func TestBracketingEchoesNonzeroSeed(t *testing.T) {
	s := newBracketSearch(Config{MaxTrials: 10})

	alpha, status, err := s.Initialize(1, 0.3, 1.0, 4.0, -4.0)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if status != StatusPending {
		t.Errorf("Expected pending status, got %v", status)
	}
	if math.Abs(alpha-0.3) > 1e-12 {
		t.Errorf("Expected seed step 0.3 echoed, got %g", alpha)
	}
}

func TestBracketingExpandsWhileDecreasing(t *testing.T) {
	s := newBracketSearch(Config{MaxTrials: 10})
	if _, _, err := s.Initialize(1, 0, 1.0, 1.0, -1.0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	alpha, status := feedTrial(t, s, 1, 1.0, 0.9)
	if status != StatusPending {
		t.Fatalf("Expected pending status, got %v", status)
	}
	if math.Abs(alpha-goldenRatio) > 1e-9 {
		t.Errorf("Expected golden expansion %g, got %g", goldenRatio, alpha)
	}
}

func TestBracketingBacktracksOnOvershoot(t *testing.T) {
	s := newBracketSearch(Config{MaxTrials: 10})
	if _, _, err := s.Initialize(1, 0, 1.0, 1.0, -1.0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	alpha, status := feedTrial(t, s, 1, 1.0, 1.4)
	if status != StatusPending {
		t.Fatalf("Expected pending status after overshoot, got %v", status)
	}
	if alpha < backtrackLow*1.0 || alpha > backtrackHigh*1.0 {
		t.Errorf("Backtrack step %g outside [%g, %g]", alpha, backtrackLow, backtrackHigh)
	}
	// Parabolic model through (0, 1, slope -1) and (1, 1.4) has its
	// minimizer at 1/2.8.
	if math.Abs(alpha-1.0/2.8) > 1e-9 {
		t.Errorf("Expected parabolic backtrack %g, got %g", 1.0/2.8, alpha)
	}
}

func TestBracketingConvergesOnClosedBracket(t *testing.T) {
	s := newBracketSearch(Config{MaxTrials: 10})
	if _, _, err := s.Initialize(1, 0, 1.0, 1.0, -1.0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// Misfit decreases through steps 1 and 2, then increases at 4: the
	// minimum is pinned between 2 and 4.
	feedTrial(t, s, 1, 1.0, 0.9)
	feedTrial(t, s, 1, 2.0, 0.5)
	alpha, status := feedTrial(t, s, 1, 4.0, 0.8)

	if !status.Finished() {
		t.Fatalf("Expected converged status, got %v", status)
	}
	if alpha <= 2.0 || alpha >= 4.0 {
		t.Errorf("Expected interpolated step in (2, 4), got %g", alpha)
	}
	// Exact parabola through (1, 0.9), (2, 0.5), (4, 0.8).
	if math.Abs(alpha-2.590909090909) > 1e-6 {
		t.Errorf("Expected vertex near 2.5909, got %g", alpha)
	}
}

func TestBracketingFailsAtBudget(t *testing.T) {
	s := newBracketSearch(Config{MaxTrials: 2})
	if _, _, err := s.Initialize(1, 0, 1.0, 1.0, -1.0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	_, status := feedTrial(t, s, 1, 1.0, 1.5)
	if status != StatusPending {
		t.Fatalf("Expected pending after first bad trial, got %v", status)
	}
	alpha, status := feedTrial(t, s, 1, 1.0/3.0, 1.2)
	if !status.Failed() {
		t.Fatalf("Expected failed status at budget without improvement, got %v", status)
	}
	if alpha != 0 {
		t.Errorf("Expected zero step on failure, got %g", alpha)
	}
}

func TestBracketingRespectsMaxStep(t *testing.T) {
	s := newBracketSearch(Config{MaxTrials: 10, MaxStep: 0.5})

	// The curvature seed 1/gtg = 2 exceeds the bound; the first trial must
	// be scaled inside it, not clipped onto it.
	alpha, status, err := s.Initialize(1, 0, 1.0, 0.5, -0.5)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if status != StatusPending {
		t.Errorf("Expected pending status, got %v", status)
	}
	if alpha <= 0 || alpha >= 0.5 {
		t.Errorf("Expected first trial strictly inside (0, 0.5), got %g", alpha)
	}

	alpha, status = feedTrial(t, s, 1, alpha, 0.9)
	if status.Failed() {
		t.Fatalf("Unexpected failure: %v", status)
	}
	if alpha > 0.5+1e-12 {
		t.Errorf("Expansion escaped the step bound: %g", alpha)
	}
}

func TestBracketingRestartRescalesSeed(t *testing.T) {
	s := newBracketSearch(Config{MaxTrials: 10})

	// First search: expand twice, close the bracket, accept.
	if _, _, err := s.Initialize(1, 0, 1.0, 1.0, -1.0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	feedTrial(t, s, 1, 1.0, 0.5)
	feedTrial(t, s, 1, 1.618, 0.4)
	_, status := feedTrial(t, s, 1, 2.618, 0.9)
	if !status.Finished() {
		t.Fatalf("Expected first search to converge, got %v", status)
	}

	// Second search: seed is the best previous step rescaled by the
	// direction dot-product ratio.
	alpha, status, err := s.Initialize(2, 0, 0.4, 0.8, -0.4)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if status != StatusPending {
		t.Errorf("Expected pending status, got %v", status)
	}
	want := 1.618 * (-1.0) / (-0.4)
	if math.Abs(alpha-want) > 1e-9 {
		t.Errorf("Expected rescaled seed %g, got %g", want, alpha)
	}
}
