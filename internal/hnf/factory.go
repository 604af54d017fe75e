package hnf

import (
	"fmt"

	"go.uber.org/zap"

	"hypergame/internal/config"
	"hypergame/internal/logging"
	"hypergame/internal/resolve"
)

// Factory builds Instances from a settings document. Every round of the
// resolver yields a fresh Instance whose costs and beliefs are evaluated
// against that round's pool.
type Factory struct {
	settings     *config.Settings
	resolver     *resolve.Resolver
	resolverOpts []resolve.Option
	instanceOpts []Option

	round    *resolve.Round
	instance *Instance
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithResolverOptions passes options to the resolver, e.g. resolve.WithSeed.
func WithResolverOptions(opts ...resolve.Option) FactoryOption {
	return func(f *Factory) {
		f.resolverOpts = append(f.resolverOpts, opts...)
	}
}

// WithInstanceOptions passes options to every built Instance.
func WithInstanceOptions(opts ...Option) FactoryOption {
	return func(f *Factory) {
		f.instanceOpts = append(f.instanceOpts, opts...)
	}
}

// NewFactory validates settings, resolves round 0 and builds its Instance.
func NewFactory(settings *config.Settings, opts ...FactoryOption) (*Factory, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: nil settings", ErrConfiguration)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	decl, err := settings.Declarations()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	f := &Factory{settings: settings}
	for _, opt := range opts {
		opt(f)
	}
	f.resolver, err = resolve.New(decl, f.resolverOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if _, err := f.Resample(); err != nil {
		return nil, err
	}

	logging.Get(logging.CategoryEngine).Info("factory ready",
		zap.String("name", settings.Name),
		zap.Int("situations", len(settings.SituationNames)),
		zap.Int("row_actions", len(settings.RowActionNames)),
		zap.Int("column_actions", len(settings.ColumnActionNames)),
		zap.Int("resolved", f.round.Pool.Len()))
	return f, nil
}

// Instance returns the Instance of the latest round.
func (f *Factory) Instance() *Instance { return f.instance }

// Round returns the latest resolved round.
func (f *Factory) Round() *resolve.Round { return f.round }

// Settings returns the settings the factory was built from.
func (f *Factory) Settings() *config.Settings { return f.settings }

// Constants returns the current literal constants.
func (f *Factory) Constants() map[string]float64 { return f.resolver.Constants() }

// UpdateConstants replaces literal constants for later rounds.
func (f *Factory) UpdateConstants(values map[string]float64) error {
	return f.resolver.UpdateConstants(values)
}

// Resample resolves the next round and builds its Instance. Earlier
// Instances are not modified.
func (f *Factory) Resample() (*Instance, error) {
	round, err := f.resolver.Resample()
	if err != nil {
		return nil, err
	}
	inst, err := f.build(round)
	if err != nil {
		return nil, fmt.Errorf("round %d: %w", round.Number, err)
	}
	f.round, f.instance = round, inst
	return inst, nil
}

func (f *Factory) build(round *resolve.Round) (*Instance, error) {
	s := f.settings
	inst, err := New(s.Name, s.SituationNames, s.RowActionNames, s.ColumnActionNames, f.instanceOpts...)
	if err != nil {
		return nil, err
	}

	for _, row := range s.RowActionCost {
		costs, err := evalCells(round, row.Costs)
		if err != nil {
			return nil, fmt.Errorf("cost of %q: %w", row.RowAction, err)
		}
		if err := inst.SetCost(row.RowAction, costs, RowActor); err != nil {
			return nil, err
		}
		if len(row.ColumnCosts) == 0 {
			continue
		}
		costs, err = evalCells(round, row.ColumnCosts)
		if err != nil {
			return nil, fmt.Errorf("column player cost of %q: %w", row.RowAction, err)
		}
		if err := inst.SetCost(row.RowAction, costs, ColumnActor); err != nil {
			return nil, err
		}
	}

	current := make(map[string]float64, len(s.RowBelief))
	for _, row := range s.RowBelief {
		beliefs := make(map[string]Belief, len(row.Beliefs))
		for col, v := range row.Beliefs {
			if v.IsExcluded() {
				beliefs[col] = Excluded()
				continue
			}
			p, err := evalCell(round, v)
			if err != nil {
				return nil, fmt.Errorf("belief %q/%q: %w", row.Situation, col, err)
			}
			beliefs[col] = Probability(p)
		}
		if err := inst.SetSituationalBelief(row.Situation, beliefs); err != nil {
			return nil, err
		}
		p, err := evalCell(round, row.Current)
		if err != nil {
			return nil, fmt.Errorf("current belief of %q: %w", row.Situation, err)
		}
		current[row.Situation] = p
	}
	if err := inst.SetCurrentBelief(current); err != nil {
		return nil, err
	}
	if err := inst.DeriveSummaryBelief(); err != nil {
		return nil, err
	}
	return inst, nil
}

func evalCell(round *resolve.Round, v config.Value) (float64, error) {
	if v.IsNumber() {
		return v.Float(), nil
	}
	return round.Eval(v.Expr())
}

func evalCells(round *resolve.Round, cells map[string]config.Value) (map[string]float64, error) {
	out := make(map[string]float64, len(cells))
	for name, v := range cells {
		f, err := evalCell(round, v)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		out[name] = f
	}
	return out, nil
}
