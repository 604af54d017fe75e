package hnf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScenario(t *testing.T, opts ...Option) *Instance {
	t.Helper()
	inst, err := New("scenario", []string{"A", "B"}, []string{"R1", "R2"}, []string{"C1", "C2"}, opts...)
	require.NoError(t, err)
	require.NoError(t, inst.SetCost("R1", map[string]float64{"C1": -1, "C2": -5}, RowActor))
	require.NoError(t, inst.SetCost("R2", map[string]float64{"C1": -2, "C2": -3}, RowActor))
	require.NoError(t, inst.SetSituationalBelief("A", map[string]Belief{"C1": Probability(1), "C2": Probability(0)}))
	require.NoError(t, inst.SetSituationalBelief("B", map[string]Belief{"C1": Probability(0), "C2": Probability(1)}))
	require.NoError(t, inst.SetCurrentBelief(map[string]float64{"A": 0.6, "B": 0.4}))
	require.NoError(t, inst.DeriveSummaryBelief())
	return inst
}

func TestNew(t *testing.T) {
	inst, err := New("n", []string{"A", "B", "C"}, []string{"R"}, []string{"K"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, inst.CurrentBelief().Sum(), 1e-12)
	assert.InDelta(t, 1.0/3, inst.CurrentBelief().Get("B"), 1e-12)
	assert.Equal(t, 0.0, inst.Uncertainty())
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		situations []string
		rows       []string
		columns    []string
	}{
		{"no situations", nil, []string{"R"}, []string{"C"}},
		{"no rows", []string{"S"}, nil, []string{"C"}},
		{"empty name", []string{"S"}, []string{""}, []string{"C"}},
		{"duplicate within a set", []string{"S"}, []string{"R", "R"}, []string{"C"}},
		{"duplicate across sets", []string{"S"}, []string{"R"}, []string{"S"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("n", tt.situations, tt.rows, tt.columns)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	_, err := New("n", []string{"S"}, []string{"R"}, []string{"C"}, WithSolver(nil))
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = New("n", []string{"S"}, []string{"R"}, []string{"C"}, WithUncertainty(2))
	assert.ErrorIs(t, err, ErrInvalidUncertainty)
}

func TestSetCurrentBelief(t *testing.T) {
	inst := newScenario(t)

	tests := []struct {
		name   string
		belief map[string]float64
	}{
		{"partial update", map[string]float64{"A": 1}},
		{"unknown situation", map[string]float64{"A": 0.5, "Z": 0.5}},
		{"sum too low", map[string]float64{"A": 0.5, "B": 0.4}},
		{"sum too high", map[string]float64{"A": 0.7, "B": 0.4}},
		{"negative", map[string]float64{"A": 1.2, "B": -0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := inst.SetCurrentBelief(tt.belief)
			assert.ErrorIs(t, err, ErrInvalidBelief)
			assert.Equal(t, 0.6, inst.CurrentBelief().Get("A"), "rejected update must not change the belief")
		})
	}

	require.NoError(t, inst.SetCurrentBelief(map[string]float64{"A": 0.5, "B": 0.495}))
	assert.Equal(t, 0.495, inst.CurrentBelief().Get("B"))
}

func TestSetSituationalBelief_ColumnAxis(t *testing.T) {
	inst := newScenario(t)

	require.NoError(t, inst.SetSituationalBelief("C1", map[string]Belief{"A": Probability(0.25), "B": Excluded()}))

	b, err := inst.SituationalBelief("A", "C1")
	require.NoError(t, err)
	p, ok := b.Value()
	assert.True(t, ok)
	assert.Equal(t, 0.25, p)

	b, err = inst.SituationalBelief("B", "C1")
	require.NoError(t, err)
	assert.True(t, b.IsExcluded())

	// Other cells are untouched.
	b, err = inst.SituationalBelief("A", "C2")
	require.NoError(t, err)
	p, _ = b.Value()
	assert.Equal(t, 0.0, p)
}

func TestSetSituationalBelief_Errors(t *testing.T) {
	inst := newScenario(t)

	err := inst.SetSituationalBelief("Z", map[string]Belief{"C1": Probability(1)})
	assert.ErrorIs(t, err, ErrUnknownAction)

	err = inst.SetSituationalBelief("R1", map[string]Belief{"C1": Probability(1)})
	assert.ErrorIs(t, err, ErrUnknownAction)

	err = inst.SetSituationalBelief("A", map[string]Belief{"C1": Probability(0.5), "B": Probability(0.5)})
	assert.ErrorIs(t, err, ErrUnknownAction)

	err = inst.SetSituationalBelief("A", map[string]Belief{"C1": Probability(1.5)})
	assert.ErrorIs(t, err, ErrInvalidBelief)

	b, err := inst.SituationalBelief("A", "C1")
	require.NoError(t, err)
	p, _ := b.Value()
	assert.Equal(t, 1.0, p, "rejected updates must not write any cell")
}

func TestDeriveSummaryBelief(t *testing.T) {
	inst := newScenario(t)

	summary := inst.SummaryBelief()
	assert.Equal(t, []string{"C1", "C2"}, summary.Names)
	assert.Equal(t, []float64{0.6, 0.4}, summary.Values)
	assert.InDelta(t, 1.0, summary.Sum(), 1e-9)
}

func TestDeriveSummaryBelief_Rounded(t *testing.T) {
	inst, err := New("r", []string{"A", "B", "C"}, []string{"R"}, []string{"X1", "X2"})
	require.NoError(t, err)
	require.NoError(t, inst.SetSituationalBelief("X1", map[string]Belief{"A": Probability(1), "B": Probability(0), "C": Probability(0.5)}))
	require.NoError(t, inst.SetSituationalBelief("X2", map[string]Belief{"A": Probability(0), "B": Probability(1), "C": Probability(0.5)}))
	require.NoError(t, inst.DeriveSummaryBelief())

	// Uniform current belief: X1 = 1/3 + 1/6.
	assert.Equal(t, 0.5, inst.SummaryBelief().Get("X1"))
}

func TestDeriveSummaryBelief_Unnormalized(t *testing.T) {
	inst := newScenario(t)
	require.NoError(t, inst.SetSituationalBelief("A", map[string]Belief{"C1": Probability(0.5)}))

	err := inst.DeriveSummaryBelief()
	assert.ErrorIs(t, err, ErrUnnormalizedBelief)
	assert.Equal(t, []float64{0.6, 0.4}, inst.SummaryBelief().Values, "failed derivation keeps the previous summary")

	// Every read that depends on the invariants fails too.
	_, err = inst.ExpectedValue()
	assert.ErrorIs(t, err, ErrUnnormalizedBelief)
}

func TestDeriveSummaryBelief_NotDerived(t *testing.T) {
	inst, err := New("n", []string{"S"}, []string{"R"}, []string{"C"})
	require.NoError(t, err)
	require.NoError(t, inst.SetSituationalBelief("S", map[string]Belief{"C": Probability(1)}))

	_, err = inst.ExpectedValue()
	assert.ErrorIs(t, err, ErrUnnormalizedBelief)

	require.NoError(t, inst.DeriveSummaryBelief())
	_, err = inst.ExpectedValue()
	assert.NoError(t, err)
}

func TestExcludedColumn(t *testing.T) {
	inst, err := New("x", []string{"S"}, []string{"R1", "R2"}, []string{"C1", "C2", "C3"})
	require.NoError(t, err)
	require.NoError(t, inst.SetSituationalBelief("S", map[string]Belief{
		"C1": Probability(0.3), "C2": Excluded(), "C3": Probability(0.7),
	}))
	require.NoError(t, inst.SetCurrentBelief(map[string]float64{"S": 1}))
	require.NoError(t, inst.DeriveSummaryBelief())

	assert.Equal(t, 0.0, inst.SummaryBelief().Get("C2"))

	g, err := inst.BuildGame("S")
	require.NoError(t, err)
	assert.Equal(t, "S", g.Title)
	assert.Equal(t, RowPlayerLabel, g.Players[0].Label)
	assert.Equal(t, ColumnPlayerLabel, g.Players[1].Label)
	assert.Equal(t, []string{"R1", "R2"}, g.Players[0].Strategies)
	assert.Equal(t, []string{"C1", "C3"}, g.Players[1].Strategies)
}

func TestBuildGame_AllExcluded(t *testing.T) {
	inst, err := New("x", []string{"S"}, []string{"R"}, []string{"C"})
	require.NoError(t, err)
	require.NoError(t, inst.SetSituationalBelief("S", map[string]Belief{"C": Excluded()}))

	_, err = inst.BuildGame("S")
	assert.ErrorIs(t, err, ErrInvalidBelief)

	_, err = inst.BuildGame("C")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestSetCost_ColumnPath(t *testing.T) {
	inst := newScenario(t)

	require.NoError(t, inst.SetCost("C1", map[string]float64{"R1": 7, "R2": 8}, RowActor))

	got, err := inst.Cost("R1", "C1", RowActor)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)
	got, err = inst.Cost("R2", "C1", RowActor)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got)

	// Unchanged cells keep their values.
	got, err = inst.Cost("R1", "C2", RowActor)
	require.NoError(t, err)
	assert.Equal(t, -5.0, got)
}

func TestSetCost_ColumnPlayer(t *testing.T) {
	inst := newScenario(t)

	got, err := inst.Cost("R1", "C2", ColumnActor)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got, "unset column player cells mirror the row cost")

	require.NoError(t, inst.SetCost("R1", map[string]float64{"C2": -1}, ColumnActor))
	got, err = inst.Cost("R1", "C2", ColumnActor)
	require.NoError(t, err)
	assert.Equal(t, -1.0, got)

	// The row matrix is independent.
	got, err = inst.Cost("R1", "C2", RowActor)
	require.NoError(t, err)
	assert.Equal(t, -5.0, got)

	g, err := inst.BuildGame("A")
	require.NoError(t, err)
	assert.Equal(t, [2]float64{-5, -1}, g.Payoffs[0][1])
	assert.Equal(t, [2]float64{-2, 2}, g.Payoffs[1][0])
}

func TestSetCost_Errors(t *testing.T) {
	inst := newScenario(t)

	assert.ErrorIs(t, inst.SetCost("Z", map[string]float64{"C1": 1}, RowActor), ErrUnknownAction)
	assert.ErrorIs(t, inst.SetCost("A", map[string]float64{"C1": 1}, RowActor), ErrUnknownAction)
	assert.ErrorIs(t, inst.SetCost("R1", map[string]float64{"R2": 1}, RowActor), ErrUnknownAction)
	assert.ErrorIs(t, inst.SetCost("R1", map[string]float64{"C1": 1}, Actor(9)), ErrConfiguration)

	_, err := inst.Cost("C1", "R1", RowActor)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestExpectedValue(t *testing.T) {
	inst := newScenario(t)

	ev, err := inst.ExpectedValue()
	require.NoError(t, err)
	assert.Equal(t, []string{"R1", "R2"}, ev.Names)
	assert.Equal(t, []float64{-2.6, -2.4}, ev.Values)

	ev, err = inst.SituationExpectedValue("A")
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -2}, ev.Values)

	ev, err = inst.SituationExpectedValue("B")
	require.NoError(t, err)
	assert.Equal(t, []float64{-5, -3}, ev.Values)

	_, err = inst.SituationExpectedValue("C1")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestWorstCase(t *testing.T) {
	inst := newScenario(t)

	w, err := inst.WorstCase("R1")
	require.NoError(t, err)
	assert.Equal(t, -5.0, w)
	w, err = inst.WorstCase("R2")
	require.NoError(t, err)
	assert.Equal(t, -3.0, w)

	_, err = inst.WorstCase("C1")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestActionHEU(t *testing.T) {
	inst := newScenario(t)
	ev, err := inst.ExpectedValue()
	require.NoError(t, err)

	heu, err := inst.ActionHEU(ev, 0)
	require.NoError(t, err)
	assert.Equal(t, ev.Values, heu.Values)

	heu, err = inst.ActionHEU(ev, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{-5, -3}, heu.Values)

	heu, err = inst.ActionHEU(ev, 0.5)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-3.8, -2.7}, heu.Values, 1e-12)

	_, err = inst.ActionHEU(ev, -0.1)
	assert.ErrorIs(t, err, ErrInvalidUncertainty)
	_, err = inst.ActionHEU(ev, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidUncertainty)
}

func TestSetUncertainty(t *testing.T) {
	inst := newScenario(t)
	require.NoError(t, inst.SetUncertainty(0.3))
	assert.Equal(t, 0.3, inst.Uncertainty())

	assert.ErrorIs(t, inst.SetUncertainty(1.01), ErrInvalidUncertainty)
	assert.ErrorIs(t, inst.SetUncertainty(-0.5), ErrInvalidUncertainty)
	assert.Equal(t, 0.3, inst.Uncertainty())
}

func TestParseActor(t *testing.T) {
	a, err := ParseActor("column")
	require.NoError(t, err)
	assert.Equal(t, ColumnActor, a)
	assert.Equal(t, "row", RowActor.String())

	_, err = ParseActor("diagonal")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestVector(t *testing.T) {
	v := Vector{Names: []string{"a", "b", "c"}, Values: []float64{0.2, 0.4, 0.4}}
	assert.Equal(t, "b", v.Argmax())
	assert.Equal(t, 0.4, v.Get("c"))
	assert.Equal(t, 0.0, v.Get("z"))
	assert.Equal(t, map[string]float64{"a": 0.2, "b": 0.4, "c": 0.4}, v.Map())
	assert.Equal(t, "", Vector{}.Argmax())
}
