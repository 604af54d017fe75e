package resolve

import (
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"

	"hypergame/internal/logging"
)

// Constant is a literal declared directly.
type Constant struct {
	Name  string
	Value float64
}

// Variable is a derived value. Params are expressions over the pool as it
// stands when the variable is reached. For distribution types the drawn
// samples are bound to x before Expr is evaluated.
type Variable struct {
	Name   string
	Type   string
	Params map[string]string
	Expr   string
}

// ColumnPlayer holds the three dependent sub-stages of a stochastic column player.
type ColumnPlayer struct {
	Random []Variable
	Update []Variable
	Result []Variable
}

// Declarations is everything a Resolver resolves each round, in stage order.
type Declarations struct {
	Constants    []Constant
	Random       []Variable
	ColumnPlayer ColumnPlayer
}

type stage struct {
	name string
	vars []Variable
}

func (d Declarations) stages() []stage {
	return []stage{
		{"random vars", d.Random},
		{"column player random vars", d.ColumnPlayer.Random},
		{"column player update vars", d.ColumnPlayer.Update},
		{"column player result vars", d.ColumnPlayer.Result},
	}
}

// Names lists every declared name in resolution order.
func (d Declarations) Names() []string {
	var names []string
	for _, c := range d.Constants {
		names = append(names, c.Name)
	}
	for _, s := range d.stages() {
		for _, v := range s.vars {
			names = append(names, v.Name)
		}
	}
	return names
}

// Validate checks names and types without evaluating anything. References
// are only checked when a round is resolved.
func (d Declarations) Validate() error {
	seen := make(map[string]bool)
	for _, name := range d.Names() {
		if name == "" {
			return fmt.Errorf("%w: empty name", ErrInvalidVariable)
		}
		if _, ok := functions[name]; ok {
			return fmt.Errorf("%w: %q is a function name", ErrInvalidVariable, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: %q declared more than once", ErrInvalidVariable, name)
		}
		seen[name] = true
	}
	for _, c := range d.Constants {
		if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
			return fmt.Errorf("%w: constant %q is not finite", ErrInvalidVariable, c.Name)
		}
	}
	for _, s := range d.stages() {
		for _, v := range s.vars {
			if err := v.validate(); err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
		}
	}
	return nil
}

func (v Variable) validate() error {
	if v.Type == TypeExpr {
		if v.Expr == "" {
			return fmt.Errorf("%w: %q has type %s but no expression", ErrInvalidVariable, v.Name, TypeExpr)
		}
		return nil
	}
	d, ok := distributions[v.Type]
	if !ok {
		return fmt.Errorf("%w: variable %q has type %q (allowed: %v)", ErrUnsupportedFunction, v.Name, v.Type, Types())
	}
	for name := range v.Params {
		if name != SizeParam && !slices.Contains(d.params, name) {
			return fmt.Errorf("%w: %q: %s takes %v, not %q", ErrInvalidVariable, v.Name, v.Type, d.params, name)
		}
	}
	for _, name := range d.params {
		if _, ok := v.Params[name]; !ok {
			return fmt.Errorf("%w: %q: %s requires parameter %q", ErrInvalidVariable, v.Name, v.Type, name)
		}
	}
	return nil
}

// Round is one resolved pool.
type Round struct {
	Number int
	Pool   *Pool
}

// Eval evaluates a scalar expression against the round's pool.
func (r *Round) Eval(expression string) (float64, error) {
	return r.Pool.Eval(expression)
}

// Resolver produces a new Round on every Resample.
type Resolver struct {
	decl      Declarations
	constants map[string]float64
	src       rand.Source
	round     int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSource draws all samples from src.
func WithSource(src rand.Source) Option {
	return func(r *Resolver) {
		r.src = src
	}
}

// WithSeed draws all samples from a PCG source seeded with seed.
func WithSeed(seed uint64) Option {
	return WithSource(rand.NewPCG(seed, seed))
}

// New validates decl and returns a resolver. Nothing is resolved until Resample.
func New(decl Declarations, opts ...Option) (*Resolver, error) {
	if err := decl.Validate(); err != nil {
		return nil, err
	}
	r := &Resolver{
		decl:      decl,
		constants: make(map[string]float64, len(decl.Constants)),
	}
	for _, c := range decl.Constants {
		r.constants[c.Name] = c.Value
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.src == nil {
		r.src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return r, nil
}

// Resample runs every stage again into a fresh pool and returns it as the
// next round. Pools from earlier rounds are left as they were. A failed
// resample does not use up a round number.
func (r *Resolver) Resample() (*Round, error) {
	n := r.round
	pool := &Pool{values: make(map[string]any)}
	for _, c := range r.decl.Constants {
		pool.set(c.Name, r.constants[c.Name])
	}
	for _, s := range r.decl.stages() {
		for _, v := range s.vars {
			value, err := r.resolve(v, pool)
			if err != nil {
				return nil, fmt.Errorf("round %d: %s: %q: %w", n, s.name, v.Name, err)
			}
			pool.set(v.Name, value)
		}
	}

	r.round++
	logging.Get(logging.CategoryResolver).Debug("round resolved", zap.Int("round", n), zap.Int("names", pool.Len()))
	return &Round{Number: n, Pool: pool}, nil
}

func (r *Resolver) resolve(v Variable, pool *Pool) (any, error) {
	env := pool.Env()
	params := make(map[string]float64, len(v.Params))
	for _, name := range sortedKeys(v.Params) {
		f, err := EvaluateFloat(v.Params[name], env)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		params[name] = f
	}
	for name, f := range params {
		if name != SizeParam {
			env[name] = f
		}
	}

	if v.Type == TypeExpr {
		return Evaluate(v.Expr, env)
	}

	samples, err := draw(v.Type, params, r.src)
	if err != nil {
		return nil, err
	}
	env[SampleVar] = samples
	expression := v.Expr
	if expression == "" {
		expression = DefaultExpr
	}
	return Evaluate(expression, env)
}

// UpdateConstants replaces literal constants for every later round. Only
// declared constants may be updated.
func (r *Resolver) UpdateConstants(values map[string]float64) error {
	for _, name := range sortedKeys(values) {
		if _, ok := r.constants[name]; !ok {
			return fmt.Errorf("%w: %q is not a declared constant", ErrInvalidVariable, name)
		}
		if math.IsNaN(values[name]) || math.IsInf(values[name], 0) {
			return fmt.Errorf("%w: constant %q is not finite", ErrInvalidVariable, name)
		}
	}
	log := logging.Get(logging.CategoryResolver)
	for name, v := range values {
		log.Debug("constant updated", zap.String("name", name),
			zap.Float64("from", r.constants[name]), zap.Float64("to", v))
		r.constants[name] = v
	}
	return nil
}

// Constant returns the current value of a literal constant.
func (r *Resolver) Constant(name string) (float64, bool) {
	v, ok := r.constants[name]
	return v, ok
}

// Constants returns a copy of the current literal constants.
func (r *Resolver) Constants() map[string]float64 {
	return maps.Clone(r.constants)
}

// Rounds returns how many rounds have been resolved.
func (r *Resolver) Rounds() int {
	return r.round
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
