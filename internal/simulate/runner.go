// Package simulate runs Monte-Carlo rounds over an HNF factory, feeding
// statistics of resolved variables back into literal constants between rounds.
package simulate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"hypergame/internal/config"
	"hypergame/internal/hnf"
	"hypergame/internal/logging"
)

// Round is the outcome of one simulated round.
type Round struct {
	Number  int
	Results *hnf.Results
	Best    hnf.Strategy
	// Constants holds the literal constants the round was resolved with.
	Constants map[string]float64
}

// Runner drives a factory through a fixed number of rounds.
type Runner struct {
	factory     *hnf.Factory
	rules       []config.RefitRule
	rounds      int
	uncertainty float64
	progress    func(Round)

	history map[string][]float64
}

// Option configures a Runner.
type Option func(*Runner)

// WithRounds sets the number of rounds.
func WithRounds(n int) Option {
	return func(r *Runner) { r.rounds = n }
}

// WithUncertainty sets the uncertainty every round is evaluated at.
func WithUncertainty(u float64) Option {
	return func(r *Runner) { r.uncertainty = u }
}

// WithRefit replaces the refit rules taken from the settings.
func WithRefit(rules []config.RefitRule) Option {
	return func(r *Runner) { r.rules = rules }
}

// WithProgress calls fn after every round.
func WithProgress(fn func(Round)) Option {
	return func(r *Runner) { r.progress = fn }
}

// NewRunner returns a runner over f. By default it runs 100 rounds at zero
// uncertainty with the settings' refit rules.
func NewRunner(f *hnf.Factory, opts ...Option) (*Runner, error) {
	r := &Runner{
		factory: f,
		rules:   f.Settings().Refit,
		rounds:  100,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rounds < 1 {
		return nil, fmt.Errorf("rounds must be positive, got %d", r.rounds)
	}
	if math.IsNaN(r.uncertainty) || r.uncertainty < 0 || r.uncertainty > 1 {
		return nil, fmt.Errorf("%w: got %v", hnf.ErrInvalidUncertainty, r.uncertainty)
	}
	return r, nil
}

// Run simulates every round. The factory's current instance is round one;
// later rounds resample.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	log := logging.Get(logging.CategorySimulate)
	id := uuid.New()
	start := time.Now()
	r.history = make(map[string][]float64)

	log.Info("simulation started",
		zap.String("run_id", id.String()),
		zap.String("name", r.factory.Settings().Name),
		zap.Int("rounds", r.rounds),
		zap.Float64("uncertainty", r.uncertainty))

	rounds := make([]Round, 0, r.rounds)
	inst := r.factory.Instance()
	for n := 0; n < r.rounds; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n > 0 {
			var err error
			if inst, err = r.factory.Resample(); err != nil {
				return nil, err
			}
		}
		if err := inst.SetUncertainty(r.uncertainty); err != nil {
			return nil, err
		}
		constants := r.factory.Constants()
		res, err := inst.CalcAllResults(ctx)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", r.factory.Round().Number, err)
		}
		round := Round{
			Number:    r.factory.Round().Number,
			Results:   res,
			Best:      res.Best().Strategy,
			Constants: constants,
		}
		rounds = append(rounds, round)

		if err := r.record(); err != nil {
			return nil, err
		}
		if err := r.refit(); err != nil {
			return nil, fmt.Errorf("round %d: refit: %w", round.Number, err)
		}
		if r.progress != nil {
			r.progress(round)
		}
		log.Debug("round complete",
			zap.Int("round", round.Number),
			zap.String("best", string(round.Best)),
			zap.Float64("heu", res.Get(round.Best).HEU))
	}

	sum := summarize(id, r.factory.Settings().Name, rounds)
	sum.Constants = r.factory.Constants()
	sum.Elapsed = time.Since(start)
	log.Info("simulation finished",
		zap.String("run_id", id.String()),
		zap.Duration("elapsed", sum.Elapsed))
	return sum, nil
}

// record appends the current round's values of every refit source.
func (r *Runner) record() error {
	pool := r.factory.Round().Pool
	seen := make(map[string]bool)
	for _, rule := range r.rules {
		if rule.From == "" || seen[rule.From] {
			continue
		}
		seen[rule.From] = true
		values, err := pool.Values(rule.From)
		if err != nil {
			return err
		}
		r.history[rule.From] = append(r.history[rule.From], values...)
	}
	return nil
}

// refit applies every rule in order. Later rules on the same constant see
// earlier updates.
func (r *Runner) refit() error {
	if len(r.rules) == 0 {
		return nil
	}
	constants := r.factory.Constants()
	updates := make(map[string]float64)
	for _, rule := range r.rules {
		current, ok := updates[rule.Constant]
		if !ok {
			current = constants[rule.Constant]
		}
		if next, changed := Refit(rule, current, r.history[rule.From]); changed {
			updates[rule.Constant] = next
		}
	}
	if len(updates) == 0 {
		return nil
	}
	logging.Get(logging.CategorySimulate).Debug("refit", zap.Any("constants", updates))
	return r.factory.UpdateConstants(updates)
}

// Refit returns the next value of a rule's constant given its current value
// and the history of the rule's source. changed is false when the rule
// leaves the constant alone: no history yet, or the limit already reached.
//
// A From rule takes the mean, population standard deviation or last value
// of the history. A Factor rule multiplies the constant, clamping at Limit
// when one is set.
func Refit(rule config.RefitRule, current float64, history []float64) (next float64, changed bool) {
	if rule.From == "" {
		next = current * rule.Factor
		if rule.Limit == nil {
			return next, true
		}
		limit := *rule.Limit
		if rule.Factor >= 1 {
			if current >= limit {
				return current, false
			}
			return math.Min(next, limit), true
		}
		if current <= limit {
			return current, false
		}
		return math.Max(next, limit), true
	}
	if len(history) == 0 {
		return current, false
	}
	switch rule.Statistic {
	case config.RefitStd:
		return stat.PopStdDev(history, nil), true
	case config.RefitLast:
		return history[len(history)-1], true
	default:
		return stat.Mean(history, nil), true
	}
}
