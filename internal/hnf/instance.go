// Package hnf implements the hypergame normal form: belief and cost stores
// over fixed situation and action sets, expected values, per-situation
// equilibria and the four hyperstrategies combined into hypergame expected
// utility.
package hnf

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"hypergame/internal/game"
	"hypergame/internal/logging"
	"hypergame/internal/resolve"
	"hypergame/internal/solver"
)

var (
	// ErrConfiguration is returned when an instance cannot be constructed.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidBelief is returned when a belief update is rejected.
	ErrInvalidBelief = errors.New("invalid belief")
	// ErrUnnormalizedBelief is returned when a belief invariant does not hold.
	ErrUnnormalizedBelief = errors.New("unnormalized belief")
	// ErrUnknownAction is returned for a name outside the fixed sets.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidUncertainty is returned for an uncertainty outside [0, 1].
	ErrInvalidUncertainty = errors.New("uncertainty must be in [0, 1]")
	// ErrNoEquilibriumFound is returned when the solver yields no profile.
	ErrNoEquilibriumFound = game.ErrNoEquilibriumFound
)

// Tolerances for the belief invariants. epsilon absorbs float error on the
// inclusive upper bounds.
const (
	currentMin     = 0.99
	currentMax     = 1.0
	situationalMin = 0.99999
	situationalMax = 1.00001
	epsilon        = 1e-9

	// Derived beliefs and expected values are rounded to this many decimals.
	precision = 5
)

// Player labels used for built games.
const (
	RowPlayerLabel    = "Row Player"
	ColumnPlayerLabel = "Column Player"
)

type kind int

const (
	kindSituation kind = iota
	kindRow
	kindColumn
)

type ref struct {
	kind  kind
	index int
}

// Instance holds one hypergame: current, situational and summary beliefs,
// both cost matrices and the uncertainty. It is not safe for concurrent use.
type Instance struct {
	name       string
	situations []string
	rows       []string
	columns    []string
	names      map[string]ref

	current     []float64
	situational [][]Belief // [situation][column]
	summary     []float64

	rowCost       [][]float64 // [row][column]
	columnCost    [][]float64
	columnCostSet [][]bool

	uncertainty float64
	solver      game.Solver
}

// Option configures an Instance.
type Option func(*Instance) error

// WithSolver sets the equilibrium solver. The default is in-process support
// enumeration.
func WithSolver(s game.Solver) Option {
	return func(i *Instance) error {
		if s == nil {
			return fmt.Errorf("%w: nil solver", ErrConfiguration)
		}
		i.solver = s
		return nil
	}
}

// WithUncertainty sets the initial uncertainty.
func WithUncertainty(u float64) Option {
	return func(i *Instance) error {
		return i.SetUncertainty(u)
	}
}

// New returns an instance over the given sets. Names must be non-empty and
// unique across all three sets. Current belief starts uniform, situational
// beliefs and costs start at zero.
func New(name string, situations, rows, columns []string, opts ...Option) (*Instance, error) {
	i := &Instance{
		name:       name,
		situations: append([]string(nil), situations...),
		rows:       append([]string(nil), rows...),
		columns:    append([]string(nil), columns...),
		names:      make(map[string]ref),
	}
	sets := []struct {
		label string
		kind  kind
		names []string
	}{
		{"situation", kindSituation, i.situations},
		{"row action", kindRow, i.rows},
		{"column action", kindColumn, i.columns},
	}
	for _, set := range sets {
		if len(set.names) == 0 {
			return nil, fmt.Errorf("%w: no %s names", ErrConfiguration, set.label)
		}
		for idx, n := range set.names {
			if n == "" {
				return nil, fmt.Errorf("%w: empty %s name", ErrConfiguration, set.label)
			}
			if _, dup := i.names[n]; dup {
				return nil, fmt.Errorf("%w: name %q is not unique", ErrConfiguration, n)
			}
			i.names[n] = ref{kind: set.kind, index: idx}
		}
	}

	i.current = make([]float64, len(i.situations))
	for s := range i.current {
		i.current[s] = 1 / float64(len(i.situations))
	}
	i.situational = make([][]Belief, len(i.situations))
	for s := range i.situational {
		i.situational[s] = make([]Belief, len(i.columns))
	}
	i.summary = make([]float64, len(i.columns))
	i.rowCost = matrix[float64](len(i.rows), len(i.columns))
	i.columnCost = matrix[float64](len(i.rows), len(i.columns))
	i.columnCostSet = matrix[bool](len(i.rows), len(i.columns))
	i.solver = solver.NewSupportEnumeration()

	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}

	logging.Get(logging.CategoryEngine).Debug("instance created",
		zap.String("name", name),
		zap.Int("situations", len(i.situations)),
		zap.Int("rows", len(i.rows)),
		zap.Int("columns", len(i.columns)))
	return i, nil
}

func matrix[T any](rows, cols int) [][]T {
	m := make([][]T, rows)
	for r := range m {
		m[r] = make([]T, cols)
	}
	return m
}

// Name returns the instance name.
func (i *Instance) Name() string { return i.name }

// Situations returns the situation names in order.
func (i *Instance) Situations() []string { return append([]string(nil), i.situations...) }

// RowActions returns the row action names in order.
func (i *Instance) RowActions() []string { return append([]string(nil), i.rows...) }

// ColumnActions returns the column action names in order.
func (i *Instance) ColumnActions() []string { return append([]string(nil), i.columns...) }

// Uncertainty returns the current uncertainty.
func (i *Instance) Uncertainty() float64 { return i.uncertainty }

// SetUncertainty sets the uncertainty consumed by hypergame expected utility.
func (i *Instance) SetUncertainty(u float64) error {
	if math.IsNaN(u) || u < 0 || u > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidUncertainty, u)
	}
	i.uncertainty = u
	return nil
}

func (i *Instance) lookup(name string) (ref, error) {
	r, ok := i.names[name]
	if !ok {
		return ref{}, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return r, nil
}

func (i *Instance) lookupKind(name string, k kind) (int, error) {
	r, err := i.lookup(name)
	if err != nil {
		return 0, err
	}
	if r.kind != k {
		return 0, fmt.Errorf("%w: %q is a %s, not a %s", ErrUnknownAction, name, r.kind, k)
	}
	return r.index, nil
}

func (k kind) String() string {
	switch k {
	case kindSituation:
		return "situation"
	case kindRow:
		return "row action"
	default:
		return "column action"
	}
}

// SetCurrentBelief replaces the belief over situations. The keys must be
// exactly the situation names and the values must sum to [0.99, 1.0].
func (i *Instance) SetCurrentBelief(belief map[string]float64) error {
	if len(belief) != len(i.situations) {
		return fmt.Errorf("%w: current belief has %d entries, want one per situation (%d)",
			ErrInvalidBelief, len(belief), len(i.situations))
	}
	next := make([]float64, len(i.situations))
	var sum float64
	for s, name := range i.situations {
		p, ok := belief[name]
		if !ok {
			return fmt.Errorf("%w: current belief is missing situation %q", ErrInvalidBelief, name)
		}
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("%w: current belief for %q is %v", ErrInvalidBelief, name, p)
		}
		next[s] = p
		sum += p
	}
	if !inRange(sum, currentMin, currentMax) {
		return fmt.Errorf("%w: current belief sums to %v, want [%v, %v]", ErrInvalidBelief, sum, currentMin, currentMax)
	}
	i.current = next
	return nil
}

// CurrentBelief returns the belief over situations.
func (i *Instance) CurrentBelief() Vector {
	return Vector{Names: i.Situations(), Values: append([]float64(nil), i.current...)}
}

// SetSituationalBelief updates situational beliefs. If name is a situation,
// values are keyed by column action; if it is a column action, values are
// keyed by situation. Only the given cells change.
func (i *Instance) SetSituationalBelief(name string, values map[string]Belief) error {
	r, err := i.lookup(name)
	if err != nil {
		return err
	}
	for key, b := range values {
		if p, ok := b.Value(); ok && (math.IsNaN(p) || p < 0 || p > 1) {
			return fmt.Errorf("%w: belief %q/%q is %v", ErrInvalidBelief, name, key, p)
		}
	}
	switch r.kind {
	case kindSituation:
		cols, err := indexesOf(i, values, kindColumn)
		if err != nil {
			return err
		}
		for key, c := range cols {
			i.situational[r.index][c] = values[key]
		}
	case kindColumn:
		sits, err := indexesOf(i, values, kindSituation)
		if err != nil {
			return err
		}
		for key, s := range sits {
			i.situational[s][r.index] = values[key]
		}
	default:
		return fmt.Errorf("%w: %q is a row action, beliefs are set by situation or column action", ErrUnknownAction, name)
	}
	return nil
}

// indexesOf resolves every key of m as a name of kind k before anything is written.
func indexesOf[V any](i *Instance, m map[string]V, k kind) (map[string]int, error) {
	out := make(map[string]int, len(m))
	for key := range m {
		idx, err := i.lookupKind(key, k)
		if err != nil {
			return nil, err
		}
		out[key] = idx
	}
	return out, nil
}

// SituationalBelief returns one cell of the situational belief matrix.
func (i *Instance) SituationalBelief(situation, column string) (Belief, error) {
	s, err := i.lookupKind(situation, kindSituation)
	if err != nil {
		return Belief{}, err
	}
	c, err := i.lookupKind(column, kindColumn)
	if err != nil {
		return Belief{}, err
	}
	return i.situational[s][c], nil
}

// DeriveSummaryBelief recomputes the summary belief as the current-belief
// weighted sum of situational beliefs, rounded to five decimals. Excluded
// cells contribute nothing.
func (i *Instance) DeriveSummaryBelief() error {
	if err := i.verifyInputs(); err != nil {
		return err
	}
	summary := make([]float64, len(i.columns))
	for s, weight := range i.current {
		for c, b := range i.situational[s] {
			if p, ok := b.Value(); ok {
				summary[c] += weight * p
			}
		}
	}
	var sum float64
	for c := range summary {
		summary[c] = resolve.RoundTo(summary[c], precision)
		sum += summary[c]
	}
	if !inRange(sum, currentMin, currentMax) {
		return fmt.Errorf("%w: summary belief sums to %v, want [%v, %v]", ErrUnnormalizedBelief, sum, currentMin, currentMax)
	}
	i.summary = summary
	logging.Get(logging.CategoryEngine).Debug("summary belief derived",
		zap.String("name", i.name), zap.Float64s("summary", summary))
	return nil
}

// SummaryBelief returns the last derived summary belief.
func (i *Instance) SummaryBelief() Vector {
	return Vector{Names: i.ColumnActions(), Values: append([]float64(nil), i.summary...)}
}

func (i *Instance) verifyInputs() error {
	if sum := floats.Sum(i.current); !inRange(sum, currentMin, currentMax) {
		return fmt.Errorf("%w: current belief sums to %v, want [%v, %v]", ErrUnnormalizedBelief, sum, currentMin, currentMax)
	}
	for s, name := range i.situations {
		sum := rowSum(i.situational[s])
		if !inRange(sum, situationalMin, situationalMax) {
			return fmt.Errorf("%w: situation %q beliefs sum to %v, want [%v, %v]",
				ErrUnnormalizedBelief, name, sum, situationalMin, situationalMax)
		}
	}
	return nil
}

// verify checks every belief invariant, including the derived summary.
func (i *Instance) verify() error {
	if err := i.verifyInputs(); err != nil {
		return err
	}
	if sum := floats.Sum(i.summary); !inRange(sum, currentMin, currentMax) {
		return fmt.Errorf("%w: summary belief sums to %v, want [%v, %v]; derive it after changing beliefs",
			ErrUnnormalizedBelief, sum, currentMin, currentMax)
	}
	return nil
}

func rowSum(row []Belief) float64 {
	var sum float64
	for _, b := range row {
		if p, ok := b.Value(); ok {
			sum += p
		}
	}
	return sum
}

func inRange(x, lo, hi float64) bool {
	return x >= lo-epsilon && x <= hi+epsilon
}

// SetCost writes costs for one action into the row or column player's
// matrix. For a row action, values are keyed by column action; for a column
// action, by row action.
func (i *Instance) SetCost(action string, values map[string]float64, actor Actor) error {
	if actor != RowActor && actor != ColumnActor {
		return fmt.Errorf("%w: unknown actor %v", ErrConfiguration, actor)
	}
	r, err := i.lookup(action)
	if err != nil {
		return err
	}
	for key, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: cost %q/%q is not finite", ErrConfiguration, action, key)
		}
	}
	var cells map[[2]int]float64
	switch r.kind {
	case kindRow:
		cols, err := indexesOf(i, values, kindColumn)
		if err != nil {
			return err
		}
		cells = make(map[[2]int]float64, len(cols))
		for key, c := range cols {
			cells[[2]int{r.index, c}] = values[key]
		}
	case kindColumn:
		rows, err := indexesOf(i, values, kindRow)
		if err != nil {
			return err
		}
		cells = make(map[[2]int]float64, len(rows))
		for key, row := range rows {
			cells[[2]int{row, r.index}] = values[key]
		}
	default:
		return fmt.Errorf("%w: %q is a situation, costs are set by row or column action", ErrUnknownAction, action)
	}
	for cell, v := range cells {
		if actor == RowActor {
			i.rowCost[cell[0]][cell[1]] = v
		} else {
			i.columnCost[cell[0]][cell[1]] = v
			i.columnCostSet[cell[0]][cell[1]] = true
		}
	}
	return nil
}

// Cost returns one cell of the given actor's matrix. Column player cells
// never set hold the negated row cost.
func (i *Instance) Cost(row, column string, actor Actor) (float64, error) {
	r, err := i.lookupKind(row, kindRow)
	if err != nil {
		return 0, err
	}
	c, err := i.lookupKind(column, kindColumn)
	if err != nil {
		return 0, err
	}
	if actor == RowActor {
		return i.rowCost[r][c], nil
	}
	return i.columnPayoff(r, c), nil
}

func (i *Instance) columnPayoff(r, c int) float64 {
	if i.columnCostSet[r][c] {
		return i.columnCost[r][c]
	}
	return 0 - i.rowCost[r][c]
}
