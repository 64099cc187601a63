package search

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

// stubStrategy always proposes the same step, letting engine tests exercise
// the history bookkeeping in isolation.
type stubStrategy struct {
	alpha  float64
	status Status
}

func (stubStrategy) Name() string { return "stub" }

func (s stubStrategy) CalculateStep(rec Record, cfg Config) (float64, Status) {
	return s.alpha, s.status
}

func newStubSearch() *Search {
	return New(stubStrategy{alpha: 1, status: StatusPending}, Config{MaxTrials: 10})
}

// runSearch performs one initialize plus a fixed set of trial updates,
// incrementing the trial counter the way the outer driver does.
func runSearch(t *testing.T, s *Search, iter int, base float64, steps, misfits []float64) {
	t.Helper()

	if _, _, err := s.Initialize(iter, 0, base, 1.0, -1.0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	for i := range steps {
		s.IncrementTrial()
		if _, _, err := s.Update(iter, steps[i], misfits[i]); err != nil {
			t.Fatalf("Update %d failed: %v", i, err)
		}
	}
}

func TestHistoryInvariantsHold(t *testing.T) {
	s := newStubSearch()

	if _, _, err := s.Initialize(1, 0, 1.0, 2.0, -2.0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	for i, step := range []float64{0.5, 1.0, 2.0} {
		s.IncrementTrial()
		if _, _, err := s.Update(1, step, 1.0-float64(i)*0.1); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		h := s.History()
		if len(h.StepLens) != len(h.Misfits) {
			t.Fatalf("step/misfit lengths diverged: %d vs %d", len(h.StepLens), len(h.Misfits))
		}
		if len(h.GtG) != len(h.GtP) {
			t.Fatalf("gtg/gtp lengths diverged: %d vs %d", len(h.GtG), len(h.GtP))
		}
	}

	h := s.History()
	if len(h.StepLens) != 4 {
		t.Errorf("Expected 4 evaluations, got %d", len(h.StepLens))
	}
	if len(h.GtG) != 1 {
		t.Errorf("Expected 1 outer iteration, got %d", len(h.GtG))
	}
}

func TestUpdateBeforeInitialize(t *testing.T) {
	s := newStubSearch()

	_, _, err := s.Update(1, 0.5, 1.0)
	if err == nil {
		t.Fatal("Expected error for Update before Initialize")
	}
	if !errors.Is(err, ErrInconsistentHistory) {
		t.Errorf("Expected ErrInconsistentHistory, got %v", err)
	}
}

func TestNoStrategy(t *testing.T) {
	s := New(nil, Config{MaxTrials: 10})

	if _, _, err := s.Initialize(1, 0, 1.0, 1.0, -1.0); !errors.Is(err, ErrNoStrategy) {
		t.Errorf("Expected ErrNoStrategy, got %v", err)
	}
}

func TestResetSingleEntry(t *testing.T) {
	s := newStubSearch()
	runSearch(t, s, 1, 1.0, nil, nil)

	s.Reset()

	h := s.History()
	if len(h.StepLens) != 0 || len(h.Misfits) != 0 || len(h.GtG) != 0 || len(h.GtP) != 0 {
		t.Errorf("Expected empty history after reset, got %+v", h)
	}
}

func TestResetAfterTrials(t *testing.T) {
	s := newStubSearch()
	runSearch(t, s, 1, 1.0, []float64{0.5, 1.0}, []float64{0.8, 0.7})
	runSearch(t, s, 2, 0.7, []float64{0.5, 1.0, 2.0}, []float64{0.9, 0.95, 1.1})

	// Second search failed: rewind to the state before its Initialize.
	s.Reset()

	h := s.History()
	if len(h.GtG) != 1 || len(h.GtP) != 1 {
		t.Errorf("Expected 1 dot-product pair after reset, got %d", len(h.GtG))
	}
	if len(h.StepLens) != 3 || len(h.Misfits) != 3 {
		t.Errorf("Expected 3 evaluations after reset, got %d", len(h.StepLens))
	}
	if s.TrialCount() != 0 {
		t.Errorf("Expected trial count 0 after reset, got %d", s.TrialCount())
	}
}

func TestClearHistory(t *testing.T) {
	s := newStubSearch()
	runSearch(t, s, 1, 1.0, []float64{0.5}, []float64{0.8})

	s.ClearHistory()

	h := s.History()
	if len(h.StepLens) != 0 || len(h.GtG) != 0 {
		t.Errorf("Expected empty history, got %+v", h)
	}
	if s.TrialCount() != 0 {
		t.Errorf("Expected trial count 0, got %d", s.TrialCount())
	}
}

func TestStepRecordSorted(t *testing.T) {
	s := newStubSearch()
	runSearch(t, s, 1, 1.0, []float64{4, 1, 2}, []float64{0.8, 0.9, 0.5})

	rec := s.StepRecord(true)

	wantX := []float64{0, 1, 2, 4}
	wantF := []float64{1.0, 0.9, 0.5, 0.8}
	if !reflect.DeepEqual(rec.Steps, wantX) {
		t.Errorf("Expected sorted steps %v, got %v", wantX, rec.Steps)
	}
	if !reflect.DeepEqual(rec.Misfits, wantF) {
		t.Errorf("Expected matching misfits %v, got %v", wantF, rec.Misfits)
	}
	for i := 1; i < len(rec.Steps); i++ {
		if math.Abs(rec.Steps[i]) < math.Abs(rec.Steps[i-1]) {
			t.Errorf("Steps not sorted by absolute value at %d: %v", i, rec.Steps)
		}
	}
}

func TestStepRecordIdempotent(t *testing.T) {
	s := newStubSearch()
	runSearch(t, s, 1, 1.0, []float64{2, 1}, []float64{0.7, 0.9})

	first := s.StepRecord(true)
	second := s.StepRecord(true)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("StepRecord not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestStepRecordOnlyCurrentSearch(t *testing.T) {
	s := newStubSearch()
	runSearch(t, s, 1, 1.0, []float64{1, 2}, []float64{0.8, 0.7})
	runSearch(t, s, 2, 0.7, []float64{0.5}, []float64{0.6})

	rec := s.StepRecord(true)
	if len(rec.Steps) != 2 {
		t.Fatalf("Expected 2 entries (base + 1 trial), got %d", len(rec.Steps))
	}
	if rec.Updates != 1 {
		t.Errorf("Expected 1 completed update, got %d", rec.Updates)
	}
	if len(rec.AllSteps) != 5 {
		t.Errorf("Expected 5 evaluations in full history, got %d", len(rec.AllSteps))
	}
}

func TestTrialCounterIsCallerOwned(t *testing.T) {
	s := newStubSearch()

	if _, _, err := s.Initialize(1, 0, 1.0, 1.0, -1.0); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, _, err := s.Update(1, 0.5, 0.9); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// The engine must never bump the counter on its own.
	if s.TrialCount() != 0 {
		t.Errorf("Engine incremented trial count itself: %d", s.TrialCount())
	}

	s.IncrementTrial()
	if s.TrialCount() != 1 {
		t.Errorf("Expected trial count 1, got %d", s.TrialCount())
	}
}

func TestRestoreHistory(t *testing.T) {
	h := History{
		StepLens: []float64{0, 0.5, 1.0},
		Misfits:  []float64{1.0, 0.9, 0.8},
		GtG:      []float64{2.0},
		GtP:      []float64{-2.0},
	}

	s := newStubSearch()
	if err := s.RestoreHistory(h, 2); err != nil {
		t.Fatalf("RestoreHistory failed: %v", err)
	}
	if s.TrialCount() != 2 {
		t.Errorf("Expected trial count 2, got %d", s.TrialCount())
	}

	rec := s.StepRecord(true)
	if len(rec.Steps) != 3 {
		t.Errorf("Expected 3 entries in record, got %d", len(rec.Steps))
	}
}

func TestRestoreHistoryRejectsInconsistent(t *testing.T) {
	s := newStubSearch()

	bad := History{
		StepLens: []float64{0, 0.5},
		Misfits:  []float64{1.0},
		GtG:      []float64{2.0},
		GtP:      []float64{-2.0},
	}
	if err := s.RestoreHistory(bad, 1); !errors.Is(err, ErrInconsistentHistory) {
		t.Errorf("Expected ErrInconsistentHistory for length mismatch, got %v", err)
	}

	good := History{
		StepLens: []float64{0},
		Misfits:  []float64{1.0},
		GtG:      []float64{2.0},
		GtP:      []float64{-2.0},
	}
	if err := s.RestoreHistory(good, 3); !errors.Is(err, ErrInconsistentHistory) {
		t.Errorf("Expected ErrInconsistentHistory for excess trial count, got %v", err)
	}
	if err := s.RestoreHistory(good, -1); !errors.Is(err, ErrInconsistentHistory) {
		t.Errorf("Expected ErrInconsistentHistory for negative trial count, got %v", err)
	}
}

func TestStatusString(t *testing.T) {
	cases := []struct {
		status Status
		want   string
	}{
		{StatusConverged, "converged"},
		{Status(2), "converged"},
		{StatusPending, "pending"},
		{StatusFailed, "failed"},
		{Status(-3), "failed"},
	}
	for _, c := range cases {
		if got := c.status.String(); got != c.want {
			t.Errorf("Status(%d).String() = %q, want %q", c.status, got, c.want)
		}
	}
}
