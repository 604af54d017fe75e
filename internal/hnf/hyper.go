package hnf

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"hypergame/internal/game"
	"hypergame/internal/logging"
	"hypergame/internal/resolve"
)

// Strategy names a hyperstrategy.
type Strategy string

const (
	ModelingOpponent Strategy = "MO"
	PickSubgame      Strategy = "PS"
	WeightedSubgame  Strategy = "WS"
	NashEquilibrium  Strategy = "NEMS"
)

// Strategies lists the hyperstrategies in report order.
var Strategies = []Strategy{ModelingOpponent, PickSubgame, WeightedSubgame, NashEquilibrium}

// Result is one hyperstrategy evaluated at an uncertainty.
type Result struct {
	Strategy        Strategy
	Vector          Vector
	ExpectedUtility float64
	WorstCase       float64
	HEU             float64
	// Situation is the subgame chosen by PS, set for PS and NEMS.
	Situation string
}

// Results is the batch of all hyperstrategies at one uncertainty.
type Results struct {
	Name          string
	Uncertainty   float64
	ExpectedValue Vector
	ByStrategy    map[Strategy]Result
}

// Get returns the result for s.
func (r *Results) Get(s Strategy) Result {
	return r.ByStrategy[s]
}

// Best returns the result with the highest HEU. Ties go to the earlier
// strategy in Strategies.
func (r *Results) Best() Result {
	var best Result
	found := false
	for _, s := range Strategies {
		res, ok := r.ByStrategy[s]
		if !ok {
			continue
		}
		if !found || res.HEU > best.HEU {
			best, found = res, true
		}
	}
	return best
}

// ModelingOpponent returns a pure strategy on the row action with the
// largest modeling-opponent value. Ties go to the first row action.
func (i *Instance) ModelingOpponent() (Vector, error) {
	values, err := i.ModelingOpponentValues()
	if err != nil {
		return Vector{}, err
	}
	out := newVector(i.RowActions())
	best := 0
	for r := range values.Values {
		if values.Values[r] > values.Values[best] {
			best = r
		}
	}
	out.Values[best] = 1
	return out, nil
}

// subgames holds the first equilibrium of every situation's game.
type subgames struct {
	profiles []game.Profile
}

func (i *Instance) solveAll(ctx context.Context) (*subgames, error) {
	sg := &subgames{profiles: make([]game.Profile, len(i.situations))}
	for s := range i.situations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := i.equilibrium(ctx, s)
		if err != nil {
			return nil, err
		}
		sg.profiles[s] = p
	}
	return sg, nil
}

// pick selects the situation whose equilibrium strategy has the greatest
// expected utility under that situation's own beliefs. Ties go to the
// first situation.
func (i *Instance) pick(sg *subgames) int {
	best, bestEU := 0, math.Inf(-1)
	for s := range i.situations {
		eu := ExpectedUtility(i.nemsVector(sg.profiles[s]), i.situationExpectedValue(s))
		if eu > bestEU {
			best, bestEU = s, eu
		}
	}
	return best
}

func (i *Instance) weight(sg *subgames) Vector {
	out := newVector(i.RowActions())
	for s, w := range i.current {
		for r, p := range sg.profiles[s].Strategies[game.Row] {
			out.Values[r] += w * p
		}
	}
	return out
}

// PickSubgame returns the equilibrium strategy of the situation that yields
// the greatest expected utility under its own beliefs, and that situation.
func (i *Instance) PickSubgame(ctx context.Context) (Vector, string, error) {
	if err := i.verify(); err != nil {
		return Vector{}, "", err
	}
	sg, err := i.solveAll(ctx)
	if err != nil {
		return Vector{}, "", err
	}
	s := i.pick(sg)
	return i.nemsVector(sg.profiles[s]), i.situations[s], nil
}

// WeightedSubgame returns the current-belief weighted sum of every
// situation's equilibrium strategy.
func (i *Instance) WeightedSubgame(ctx context.Context) (Vector, error) {
	if err := i.verify(); err != nil {
		return Vector{}, err
	}
	sg, err := i.solveAll(ctx)
	if err != nil {
		return Vector{}, err
	}
	return i.weight(sg), nil
}

// strategies holds the uncertainty-independent part of a results batch.
type strategies struct {
	ev        Vector
	mo        Vector
	ps        Vector
	ws        Vector
	situation int
	nemsValue float64
}

func (i *Instance) strategies(ctx context.Context) (*strategies, error) {
	ev, err := i.ExpectedValue()
	if err != nil {
		return nil, err
	}
	mo, err := i.ModelingOpponent()
	if err != nil {
		return nil, err
	}
	sg, err := i.solveAll(ctx)
	if err != nil {
		return nil, err
	}
	s := i.pick(sg)
	return &strategies{
		ev:        ev,
		mo:        mo,
		ps:        i.nemsVector(sg.profiles[s]),
		ws:        i.weight(sg),
		situation: s,
		nemsValue: sg.profiles[s].Payoffs[game.Row],
	}, nil
}

func (i *Instance) results(st *strategies, u float64) *Results {
	res := &Results{
		Name:          i.name,
		Uncertainty:   u,
		ExpectedValue: st.ev.clone(),
		ByStrategy:    make(map[Strategy]Result, len(Strategies)),
	}
	add := func(s Strategy, v Vector, eu float64, situation string) {
		g := i.StrategyWorstCase(v)
		res.ByStrategy[s] = Result{
			Strategy:        s,
			Vector:          v.clone(),
			ExpectedUtility: eu,
			WorstCase:       g,
			HEU:             HEU(eu, g, u),
			Situation:       situation,
		}
	}
	picked := i.situations[st.situation]
	add(ModelingOpponent, st.mo, ExpectedUtility(st.mo, st.ev), "")
	add(PickSubgame, st.ps, ExpectedUtility(st.ps, st.ev), picked)
	add(WeightedSubgame, st.ws, ExpectedUtility(st.ws, st.ev), "")
	add(NashEquilibrium, st.ps, st.nemsValue, picked)
	return res
}

// CalcAllResults evaluates the four hyperstrategies at the instance's
// uncertainty.
func (i *Instance) CalcAllResults(ctx context.Context) (*Results, error) {
	timer := logging.StartTimer(logging.CategoryEngine, "calc all results")
	defer timer.Stop()

	st, err := i.strategies(ctx)
	if err != nil {
		return nil, err
	}
	res := i.results(st, i.uncertainty)
	best := res.Best()
	logging.Get(logging.CategoryEngine).Debug("results",
		zap.String("name", i.name),
		zap.Float64("uncertainty", i.uncertainty),
		zap.String("best", string(best.Strategy)),
		zap.Float64("heu", best.HEU))
	return res, nil
}

// SweepUncertainty evaluates the hyperstrategies at uncertainty 0, step,
// 2*step and so on up to 1. Equilibria are solved once. The instance's own
// uncertainty is left unchanged.
func (i *Instance) SweepUncertainty(ctx context.Context, step float64) ([]*Results, error) {
	if math.IsNaN(step) || step <= 0 || step > 1 {
		return nil, fmt.Errorf("%w: sweep step must be in (0, 1], got %v", ErrInvalidUncertainty, step)
	}
	st, err := i.strategies(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Results
	for k := 0; ; k++ {
		u := resolve.RoundTo(float64(k)*step, 10)
		if u > 1 {
			break
		}
		out = append(out, i.results(st, u))
	}
	return out, nil
}
