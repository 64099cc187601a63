package search

import (
	"fmt"
	"sort"
)

// History holds every (step length, misfit) evaluation of the optimization
// run, concatenated across line searches, plus one (gtg, gtp) dot-product
// pair per outer iteration. Invariants: StepLens and Misfits have equal
// length, as do GtG and GtP.
type History struct {
	StepLens []float64 `json:"stepLens"`
	Misfits  []float64 `json:"misfits"`
	GtG      []float64 `json:"gtg"`
	GtP      []float64 `json:"gtp"`
}

func (h History) check() error {
	if len(h.StepLens) != len(h.Misfits) {
		return fmt.Errorf("%w: %d step lengths vs %d misfits",
			ErrInconsistentHistory, len(h.StepLens), len(h.Misfits))
	}
	if len(h.GtG) != len(h.GtP) {
		return fmt.Errorf("%w: %d gtg vs %d gtp entries",
			ErrInconsistentHistory, len(h.GtG), len(h.GtP))
	}
	return nil
}

// Clone returns a deep copy.
func (h History) Clone() History {
	return History{
		StepLens: append([]float64(nil), h.StepLens...),
		Misfits:  append([]float64(nil), h.Misfits...),
		GtG:      append([]float64(nil), h.GtG...),
		GtP:      append([]float64(nil), h.GtP...),
	}
}

// Record is the view of the history a strategy reasons about: the current
// search's evaluations plus read-only context from the full run.
type Record struct {
	// Steps and Misfits are the current search's evaluations, the base entry
	// first. Jointly sorted by absolute step length when requested.
	Steps   []float64
	Misfits []float64

	// GtG and GtP hold one dot-product pair per outer iteration of the run.
	GtG []float64
	GtP []float64

	// AllSteps and AllMisfits span the whole run in evaluation order.
	AllSteps   []float64
	AllMisfits []float64

	// Trials is the number of evaluations performed in the current search.
	Trials int

	// Updates is the number of zero-length steps recorded so far minus one.
	// Zero (or less, if the run was seeded with a nonzero step) means the
	// very first outer iteration is still in progress.
	Updates int
}

func (h History) record(trials int, sortBySteps bool) Record {
	k := len(h.StepLens)
	lo := k - trials - 1
	if lo < 0 {
		lo = 0
	}

	x := append([]float64(nil), h.StepLens[lo:]...)
	f := append([]float64(nil), h.Misfits[lo:]...)
	if sortBySteps {
		sortByAbsStep(x, f)
	}

	return Record{
		Steps:      x,
		Misfits:    f,
		GtG:        append([]float64(nil), h.GtG...),
		GtP:        append([]float64(nil), h.GtP...),
		AllSteps:   append([]float64(nil), h.StepLens...),
		AllMisfits: append([]float64(nil), h.Misfits...),
		Trials:     trials,
		Updates:    countZeros(h.StepLens) - 1,
	}
}

// sortByAbsStep reorders x ascending by absolute value and applies the same
// permutation to f. The sort is stable so equal steps keep evaluation order.
func sortByAbsStep(x, f []float64) {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return abs(x[idx[i]]) < abs(x[idx[j]])
	})

	xs := make([]float64, len(x))
	fs := make([]float64, len(f))
	for i, j := range idx {
		xs[i] = x[j]
		fs[i] = f[j]
	}
	copy(x, xs)
	copy(f, fs)
}

func countZeros(v []float64) int {
	n := 0
	for _, x := range v {
		if x == 0 {
			n++
		}
	}
	return n
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func argmin(f []float64) int {
	best := 0
	for i, v := range f {
		if v < f[best] {
			best = i
		}
	}
	return best
}
