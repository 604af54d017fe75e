package hnf

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// Actor selects which payoff matrix a cost update writes.
type Actor int

const (
	RowActor Actor = iota
	ColumnActor
)

func (a Actor) String() string {
	switch a {
	case RowActor:
		return "row"
	case ColumnActor:
		return "column"
	default:
		return fmt.Sprintf("Actor(%d)", int(a))
	}
}

// ParseActor resolves "row" or "column".
func ParseActor(s string) (Actor, error) {
	switch s {
	case "row":
		return RowActor, nil
	case "column":
		return ColumnActor, nil
	}
	return 0, fmt.Errorf("%w: unknown actor %q", ErrConfiguration, s)
}

// Belief is a situational belief cell: a probability, or the excluded
// variant marking a column action as impossible under the situation.
type Belief struct {
	p        float64
	excluded bool
}

// Probability returns a probability cell.
func Probability(p float64) Belief { return Belief{p: p} }

// Excluded returns the excluded cell.
func Excluded() Belief { return Belief{excluded: true} }

// IsExcluded reports whether b is the excluded variant.
func (b Belief) IsExcluded() bool { return b.excluded }

// Value returns the probability. ok is false for excluded cells.
func (b Belief) Value() (p float64, ok bool) {
	return b.p, !b.excluded
}

func (b Belief) String() string {
	if b.excluded {
		return "X"
	}
	return strconv.FormatFloat(b.p, 'g', -1, 64)
}

// Vector is an ordered mapping from names to weights, used for strategy
// vectors, expected values and beliefs.
type Vector struct {
	Names  []string
	Values []float64
}

func newVector(names []string) Vector {
	return Vector{Names: names, Values: make([]float64, len(names))}
}

// Get returns the weight for name, or 0 if absent.
func (v Vector) Get(name string) float64 {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i]
		}
	}
	return 0
}

// Sum returns the sum of the weights.
func (v Vector) Sum() float64 {
	return floats.Sum(v.Values)
}

// Map returns the vector as a map.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.Names))
	for i, n := range v.Names {
		m[n] = v.Values[i]
	}
	return m
}

// Argmax returns the first name holding the largest weight.
func (v Vector) Argmax() string {
	if len(v.Values) == 0 {
		return ""
	}
	return v.Names[floats.MaxIdx(v.Values)]
}

func (v Vector) clone() Vector {
	return Vector{
		Names:  append([]string(nil), v.Names...),
		Values: append([]float64(nil), v.Values...),
	}
}
