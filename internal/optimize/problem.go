package optimize

import (
	"fmt"
	"math/rand"
)

// Problem is the objective the inversion minimizes. It stands in for the
// external solver pipeline: the driver only ever consumes scalar misfits and
// gradient vectors, never the physics behind them.
type Problem interface {
	Name() string
	Dim() int

	// Misfit evaluates the objective at model m.
	Misfit(m []float64) float64

	// Gradient evaluates the objective gradient at model m.
	Gradient(m []float64) []float64
}

// NewProblem builds one of the built-in synthetic objectives by name.
func NewProblem(name string, dim int) (Problem, error) {
	if dim < 1 {
		return nil, fmt.Errorf("problem dimension must be positive, got %d", dim)
	}
	switch name {
	case "quadratic":
		return &quadratic{dim: dim}, nil
	case "rosenbrock":
		if dim < 2 {
			return nil, fmt.Errorf("rosenbrock needs dim >= 2, got %d", dim)
		}
		return &rosenbrock{dim: dim}, nil
	default:
		return nil, fmt.Errorf("unknown problem: %s", name)
	}
}

// InitialModel draws a reproducible starting model away from the optimum.
func InitialModel(p Problem, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	m := make([]float64, p.Dim())
	for i := range m {
		m[i] = 1 + 2*rng.Float64() // [1, 3)
	}
	return m
}

// quadratic is an axis-aligned ellipsoid, f(m) = 1/2 sum w_i m_i^2 with
// w_i = 1 + i. Its unique minimum is the zero vector, which makes accepted
// misfits easy to reason about in tests.
type quadratic struct {
	dim int
}

func (q *quadratic) Name() string { return "quadratic" }
func (q *quadratic) Dim() int     { return q.dim }

func (q *quadratic) Misfit(m []float64) float64 {
	var f float64
	for i, v := range m {
		f += 0.5 * float64(1+i) * v * v
	}
	return f
}

func (q *quadratic) Gradient(m []float64) []float64 {
	g := make([]float64, len(m))
	for i, v := range m {
		g[i] = float64(1+i) * v
	}
	return g
}

// rosenbrock is the classic banana-valley function, a standard stress test
// for line searches because naive steps overshoot the curved valley floor.
type rosenbrock struct {
	dim int
}

func (r *rosenbrock) Name() string { return "rosenbrock" }
func (r *rosenbrock) Dim() int     { return r.dim }

func (r *rosenbrock) Misfit(m []float64) float64 {
	var f float64
	for i := 0; i < len(m)-1; i++ {
		a := m[i+1] - m[i]*m[i]
		b := 1 - m[i]
		f += 100*a*a + b*b
	}
	return f
}

func (r *rosenbrock) Gradient(m []float64) []float64 {
	g := make([]float64, len(m))
	for i := 0; i < len(m)-1; i++ {
		a := m[i+1] - m[i]*m[i]
		g[i] += -400*m[i]*a - 2*(1-m[i])
		g[i+1] += 200 * a
	}
	return g
}
