package hnf

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hypergame/internal/game"
	"hypergame/internal/logging"
)

// BuildGame builds the bimatrix game of one situation: every row action
// against the situation's non-excluded column actions, with payoffs taken
// from both cost matrices. The game is rebuilt on every call.
func (i *Instance) BuildGame(situation string) (*game.Game, error) {
	s, err := i.lookupKind(situation, kindSituation)
	if err != nil {
		return nil, err
	}
	return i.buildGame(s)
}

func (i *Instance) buildGame(s int) (*game.Game, error) {
	var cols []int
	for c, b := range i.situational[s] {
		if !b.IsExcluded() {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: situation %q excludes every column action", ErrInvalidBelief, i.situations[s])
	}
	labels := make([]string, len(cols))
	for k, c := range cols {
		labels[k] = i.columns[c]
	}

	g := game.New(i.situations[s], RowPlayerLabel, i.rows, ColumnPlayerLabel, labels)
	for r := range i.rows {
		for k, c := range cols {
			g.Set(r, k, i.rowCost[r][c], i.columnPayoff(r, c))
		}
	}
	return g, nil
}

// Games builds every situation's game in situation order.
func (i *Instance) Games() ([]*game.Game, error) {
	games := make([]*game.Game, len(i.situations))
	for s := range i.situations {
		g, err := i.buildGame(s)
		if err != nil {
			return nil, err
		}
		games[s] = g
	}
	return games, nil
}

// equilibrium solves the situation's game and returns the first profile.
func (i *Instance) equilibrium(ctx context.Context, s int) (game.Profile, error) {
	g, err := i.buildGame(s)
	if err != nil {
		return game.Profile{}, err
	}

	timer := logging.StartTimer(logging.CategoryEngine, "equilibrium")
	profiles, err := i.solver.Solve(ctx, g)
	timer.Stop()
	if err != nil {
		return game.Profile{}, fmt.Errorf("situation %q: %w", i.situations[s], err)
	}
	if len(profiles) == 0 {
		return game.Profile{}, fmt.Errorf("situation %q: %w", i.situations[s], ErrNoEquilibriumFound)
	}
	log := logging.Get(logging.CategoryEngine)
	if len(profiles) > 1 {
		log.Warn("several equilibria found, using the first",
			zap.String("situation", i.situations[s]), zap.Int("profiles", len(profiles)))
	}
	p := profiles[0]
	if len(p.Strategies[game.Row]) != len(i.rows) {
		return game.Profile{}, fmt.Errorf("situation %q: solver returned %d row weights for %d row actions",
			i.situations[s], len(p.Strategies[game.Row]), len(i.rows))
	}
	log.Debug("equilibrium",
		zap.String("situation", i.situations[s]),
		zap.Float64s("row", p.Strategies[game.Row]),
		zap.Float64("value", p.Payoffs[game.Row]))
	return p, nil
}

func (i *Instance) nemsVector(p game.Profile) Vector {
	return Vector{Names: i.RowActions(), Values: append([]float64(nil), p.Strategies[game.Row]...)}
}

// NEMSVector returns the row player's mixed strategy in the first
// equilibrium of the situation's game.
func (i *Instance) NEMSVector(ctx context.Context, situation string) (Vector, error) {
	s, err := i.lookupKind(situation, kindSituation)
	if err != nil {
		return Vector{}, err
	}
	p, err := i.equilibrium(ctx, s)
	if err != nil {
		return Vector{}, err
	}
	return i.nemsVector(p), nil
}

// NEMSValue returns the row player's payoff in the first equilibrium of the
// situation's game.
func (i *Instance) NEMSValue(ctx context.Context, situation string) (float64, error) {
	s, err := i.lookupKind(situation, kindSituation)
	if err != nil {
		return 0, err
	}
	p, err := i.equilibrium(ctx, s)
	if err != nil {
		return 0, err
	}
	return p.Payoffs[game.Row], nil
}
