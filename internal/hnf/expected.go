package hnf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"hypergame/internal/resolve"
)

// ExpectedValue returns, per row action, the expected row cost under the
// summary belief, rounded to five decimals.
func (i *Instance) ExpectedValue() (Vector, error) {
	if err := i.verify(); err != nil {
		return Vector{}, err
	}
	return i.expectedValue(i.summary), nil
}

// SituationExpectedValue returns, per row action, the expected row cost under
// one situation's beliefs. Excluded cells are skipped.
func (i *Instance) SituationExpectedValue(situation string) (Vector, error) {
	s, err := i.lookupKind(situation, kindSituation)
	if err != nil {
		return Vector{}, err
	}
	if err := i.verify(); err != nil {
		return Vector{}, err
	}
	return i.situationExpectedValue(s), nil
}

func (i *Instance) situationExpectedValue(s int) Vector {
	belief := make([]float64, len(i.columns))
	for c, b := range i.situational[s] {
		if p, ok := b.Value(); ok {
			belief[c] = p
		}
	}
	return i.expectedValue(belief)
}

func (i *Instance) expectedValue(belief []float64) Vector {
	ev := newVector(i.RowActions())
	for r := range i.rows {
		ev.Values[r] = resolve.RoundTo(floats.Dot(belief, i.rowCost[r]), precision)
	}
	return ev
}

// WorstCase returns the smallest row cost of a row action over all column
// actions.
func (i *Instance) WorstCase(row string) (float64, error) {
	r, err := i.lookupKind(row, kindRow)
	if err != nil {
		return 0, err
	}
	return floats.Min(i.rowCost[r]), nil
}

func (i *Instance) worstCases() []float64 {
	out := make([]float64, len(i.rows))
	for r := range i.rows {
		out[r] = floats.Min(i.rowCost[r])
	}
	return out
}

// ActionHEU returns, per row action, (1-u)*ev[row] + u*WorstCase(row).
func (i *Instance) ActionHEU(ev Vector, u float64) (Vector, error) {
	if math.IsNaN(u) || u < 0 || u > 1 {
		return Vector{}, fmt.Errorf("%w: got %v", ErrInvalidUncertainty, u)
	}
	worst := i.worstCases()
	out := newVector(i.RowActions())
	for r, name := range i.rows {
		out.Values[r] = HEU(ev.Get(name), worst[r], u)
	}
	return out, nil
}

// ModelingOpponentValues returns, per row action, the largest
// summary-belief weighted cost over all column actions.
func (i *Instance) ModelingOpponentValues() (Vector, error) {
	if err := i.verify(); err != nil {
		return Vector{}, err
	}
	out := newVector(i.RowActions())
	weighted := make([]float64, len(i.columns))
	for r := range i.rows {
		floats.MulTo(weighted, i.summary, i.rowCost[r])
		out.Values[r] = floats.Max(weighted)
	}
	return out, nil
}

// ExpectedUtility returns the strategy-weighted expected value.
func ExpectedUtility(strategy, ev Vector) float64 {
	var eu float64
	for k, name := range strategy.Names {
		eu += strategy.Values[k] * ev.Get(name)
	}
	return eu
}

// StrategyWorstCase returns the smallest strategy-weighted worst case over
// row actions.
func (i *Instance) StrategyWorstCase(strategy Vector) float64 {
	worst := i.worstCases()
	weighted := make([]float64, len(i.rows))
	for r, name := range i.rows {
		weighted[r] = strategy.Get(name) * worst[r]
	}
	return floats.Min(weighted)
}

// HEU blends expected utility and its worst case by uncertainty u.
func HEU(eu, worst, u float64) float64 {
	return (1-u)*eu + u*worst
}
