// Package game models two-player finite (bimatrix) games and the equilibrium
// profiles produced for them by a Solver.
package game

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoEquilibriumFound is returned when a solver produces no profile.
var ErrNoEquilibriumFound = errors.New("no equilibrium found")

// Player indexes.
const (
	Row    = 0
	Column = 1
)

// Player is a labelled participant with an ordered strategy set.
type Player struct {
	Label      string
	Strategies []string
}

// Game is a two-player strategic-form game. Payoffs[r][c] holds the
// (row player, column player) payoff pair for strategy profile (r, c).
type Game struct {
	Title   string
	Players [2]Player
	Payoffs [][][2]float64
}

// New allocates a zero-payoff game for the given strategy labels.
func New(title string, rowLabel string, rows []string, columnLabel string, columns []string) *Game {
	payoffs := make([][][2]float64, len(rows))
	for r := range payoffs {
		payoffs[r] = make([][2]float64, len(columns))
	}
	return &Game{
		Title: title,
		Players: [2]Player{
			{Label: rowLabel, Strategies: append([]string(nil), rows...)},
			{Label: columnLabel, Strategies: append([]string(nil), columns...)},
		},
		Payoffs: payoffs,
	}
}

// Shape returns the number of row and column strategies.
func (g *Game) Shape() (rows, columns int) {
	return len(g.Players[Row].Strategies), len(g.Players[Column].Strategies)
}

// Set stores the payoff pair for a profile.
func (g *Game) Set(r, c int, rowPayoff, columnPayoff float64) {
	g.Payoffs[r][c] = [2]float64{rowPayoff, columnPayoff}
}

// Matrix returns player p's payoff matrix as a fresh [][]float64.
func (g *Game) Matrix(p int) [][]float64 {
	rows, cols := g.Shape()
	m := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		m[r] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			m[r][c] = g.Payoffs[r][c][p]
		}
	}
	return m
}

// Validate checks that payoffs match the declared strategy sets.
func (g *Game) Validate() error {
	rows, cols := g.Shape()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("game %q has an empty strategy set (%dx%d)", g.Title, rows, cols)
	}
	if len(g.Payoffs) != rows {
		return fmt.Errorf("game %q has %d payoff rows, want %d", g.Title, len(g.Payoffs), rows)
	}
	for r := range g.Payoffs {
		if len(g.Payoffs[r]) != cols {
			return fmt.Errorf("game %q payoff row %d has %d cells, want %d", g.Title, r, len(g.Payoffs[r]), cols)
		}
	}
	return nil
}

// Profile is a mixed-strategy assignment for both players.
type Profile struct {
	Strategies [2][]float64
	// Payoffs holds each player's expected payoff under the profile as
	// accounted by the game. Solvers fill it through Game.Payoff.
	Payoffs [2]float64
}

// Payoff returns player p's expected payoff for mixed strategies x (row) and y (column).
func (g *Game) Payoff(p int, x, y []float64) float64 {
	var total float64
	for r := range g.Payoffs {
		if x[r] == 0 {
			continue
		}
		for c := range g.Payoffs[r] {
			total += x[r] * y[c] * g.Payoffs[r][c][p]
		}
	}
	return total
}

// NewProfile builds a profile and fills in both players' payoffs.
func (g *Game) NewProfile(x, y []float64) Profile {
	p := Profile{Strategies: [2][]float64{x, y}}
	p.Payoffs[Row] = g.Payoff(Row, x, y)
	p.Payoffs[Column] = g.Payoff(Column, x, y)
	return p
}

// Solver computes equilibria of a finite bimatrix game. Implementations
// return a non-empty ordered sequence or an error wrapping ErrNoEquilibriumFound.
type Solver interface {
	Solve(ctx context.Context, g *Game) ([]Profile, error)
}

// SolverFunc adapts a function to Solver.
type SolverFunc func(ctx context.Context, g *Game) ([]Profile, error)

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, g *Game) ([]Profile, error) {
	return f(ctx, g)
}
