// Package solver provides game.Solver implementations: an in-process
// support enumeration for small bimatrix games and a runner for external
// gambit command-line solvers.
package solver

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"hypergame/internal/game"
	"hypergame/internal/logging"
)

const tolerance = 1e-9

// SupportEnumeration finds Nash equilibria by enumerating pairs of supports
// and solving the indifference equations on each. Equal-size supports are
// tried first (smallest first, lexicographic within a size), which finds
// every equilibrium of a nondegenerate game. Unequal sizes are only tried
// when that pass finds nothing.
type SupportEnumeration struct {
	// Limit stops the search after this many equilibria. Zero means no limit.
	Limit int
}

// NewSupportEnumeration returns a solver that reports every equilibrium found.
func NewSupportEnumeration() *SupportEnumeration {
	return &SupportEnumeration{}
}

// Solve implements game.Solver.
func (s *SupportEnumeration) Solve(ctx context.Context, g *game.Game) ([]game.Profile, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	timer := logging.StartTimer(logging.CategorySolver, "support enumeration")
	defer timer.Stop()

	e := newEnumerator(g, s.Limit)
	if err := e.run(ctx, true); err != nil {
		return nil, err
	}
	if len(e.found) == 0 {
		if err := e.run(ctx, false); err != nil {
			return nil, err
		}
	}
	if len(e.found) == 0 {
		return nil, fmt.Errorf("%w: game %q", game.ErrNoEquilibriumFound, g.Title)
	}

	logging.Get(logging.CategorySolver).Debug("support enumeration finished",
		zap.String("game", g.Title), zap.Int("equilibria", len(e.found)))
	return e.found, nil
}

type enumerator struct {
	g     *game.Game
	a, b  [][]float64
	m, n  int
	tol   float64
	limit int
	found []game.Profile
}

func newEnumerator(g *game.Game, limit int) *enumerator {
	m, n := g.Shape()
	e := &enumerator{
		g:     g,
		a:     g.Matrix(game.Row),
		b:     g.Matrix(game.Column),
		m:     m,
		n:     n,
		limit: limit,
	}
	// Tolerances scale with the payoff magnitude.
	scale := 1.0
	for r := 0; r < m; r++ {
		for c := 0; c < n; c++ {
			scale = math.Max(scale, math.Max(math.Abs(e.a[r][c]), math.Abs(e.b[r][c])))
		}
	}
	e.tol = tolerance * scale
	return e
}

func (e *enumerator) done() bool {
	return e.limit > 0 && len(e.found) >= e.limit
}

// run visits support size pairs. With equal set, only |I| == |J|.
func (e *enumerator) run(ctx context.Context, equal bool) error {
	for total := 2; total <= e.m+e.n; total++ {
		for ki := 1; ki <= e.m && ki < total; ki++ {
			kj := total - ki
			if kj > e.n || (equal != (ki == kj)) {
				continue
			}
			for _, rows := range subsets(e.m, ki) {
				for _, cols := range subsets(e.n, kj) {
					if err := ctx.Err(); err != nil {
						return err
					}
					e.try(rows, cols)
					if e.done() {
						return nil
					}
				}
			}
		}
	}
	return nil
}

func (e *enumerator) try(rows, cols []int) {
	// Column mix y over cols makes the row player indifferent across rows.
	y, v, ok := indifference(len(rows), len(cols), e.tol, func(i, j int) float64 { return e.a[rows[i]][cols[j]] })
	if !ok {
		return
	}
	// Row mix x over rows makes the column player indifferent across cols.
	x, u, ok := indifference(len(cols), len(rows), e.tol, func(j, i int) float64 { return e.b[rows[i]][cols[j]] })
	if !ok {
		return
	}

	fullX := make([]float64, e.m)
	for k, r := range rows {
		fullX[r] = x[k]
	}
	fullY := make([]float64, e.n)
	for k, c := range cols {
		fullY[c] = y[k]
	}

	// No deviation may beat the supported payoff.
	for r := 0; r < e.m; r++ {
		var payoff float64
		for c := 0; c < e.n; c++ {
			payoff += e.a[r][c] * fullY[c]
		}
		if payoff > v+e.tol {
			return
		}
	}
	for c := 0; c < e.n; c++ {
		var payoff float64
		for r := 0; r < e.m; r++ {
			payoff += e.b[r][c] * fullX[r]
		}
		if payoff > u+e.tol {
			return
		}
	}

	for _, p := range e.found {
		if sameVector(p.Strategies[game.Row], fullX) && sameVector(p.Strategies[game.Column], fullY) {
			return
		}
	}
	e.found = append(e.found, e.g.NewProfile(fullX, fullY))
}

// indifference solves
//
//	sum_j coef(i, j) * w_j - val = 0   for each of eq rows i
//	sum_j w_j = 1
//
// for w (len vars) and val, requiring w >= 0. Non-square systems are solved
// in the least-squares sense and accepted only if the residual vanishes.
func indifference(eq, vars int, tol float64, coef func(i, j int) float64) ([]float64, float64, bool) {
	a := mat.NewDense(eq+1, vars+1, nil)
	b := mat.NewVecDense(eq+1, nil)
	for i := 0; i < eq; i++ {
		for j := 0; j < vars; j++ {
			a.Set(i, j, coef(i, j))
		}
		a.Set(i, vars, -1)
	}
	for j := 0; j < vars; j++ {
		a.Set(eq, j, 1)
	}
	b.SetVec(eq, 1)

	var z mat.VecDense
	if err := z.SolveVec(a, b); err != nil {
		return nil, 0, false
	}

	var check mat.VecDense
	check.MulVec(a, &z)
	for i := 0; i <= eq; i++ {
		if math.Abs(check.AtVec(i)-b.AtVec(i)) > tol {
			return nil, 0, false
		}
	}

	w := make([]float64, vars)
	for j := 0; j < vars; j++ {
		v := z.AtVec(j)
		if v < -tol || math.IsNaN(v) {
			return nil, 0, false
		}
		if v < 0 {
			v = 0
		}
		w[j] = v
	}
	return w, z.AtVec(vars), true
}

// subsets returns the k-element subsets of {0..n-1} in lexicographic order.
func subsets(n, k int) [][]int {
	var out [][]int
	cur := make([]int, 0, k)
	var rec func(start int)
	rec = func(start int) {
		if len(cur) == k {
			out = append(out, append([]int(nil), cur...))
			return
		}
		for i := start; i <= n-(k-len(cur)); i++ {
			cur = append(cur, i)
			rec(i + 1)
			cur = cur[:len(cur)-1]
		}
	}
	rec(0)
	return out
}

func sameVector(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-7 {
			return false
		}
	}
	return true
}
