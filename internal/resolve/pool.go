package resolve

import (
	"fmt"
)

// Pool maps resolved names to a float64 or a []float64. A Pool handed out by
// the Resolver is never modified; the next round gets a new Pool.
type Pool struct {
	values map[string]any
	order  []string
}

// NewPool returns a pool holding the given scalars in sorted name order.
func NewPool(values map[string]float64) *Pool {
	p := &Pool{values: make(map[string]any, len(values))}
	for _, name := range sortedKeys(values) {
		p.set(name, values[name])
	}
	return p
}

func (p *Pool) set(name string, v any) {
	if _, ok := p.values[name]; !ok {
		p.order = append(p.order, name)
	}
	p.values[name] = v
}

// Get returns the value bound to name.
func (p *Pool) Get(name string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[name]
	return v, ok
}

// Float returns name as a scalar. Slices are rejected.
func (p *Pool) Float(name string) (float64, error) {
	v, ok := p.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnresolvedReference, name)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%q holds %d values, not a scalar", name, len(v.([]float64)))
	}
	return f, nil
}

// Values returns name as a slice. Scalars become a one-element slice.
func (p *Pool) Values(name string) ([]float64, error) {
	v, ok := p.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnresolvedReference, name)
	}
	switch x := v.(type) {
	case float64:
		return []float64{x}, nil
	default:
		return append([]float64(nil), x.([]float64)...), nil
	}
}

// Names lists bound names in resolution order.
func (p *Pool) Names() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.order...)
}

// Len returns the number of bound names.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.order)
}

// Env returns a copy of the pool suitable as an expression environment.
func (p *Pool) Env() map[string]any {
	env := make(map[string]any, p.Len())
	if p == nil {
		return env
	}
	for name, v := range p.values {
		if xs, ok := v.([]float64); ok {
			v = append([]float64(nil), xs...)
		}
		env[name] = v
	}
	return env
}

// Eval evaluates a scalar expression against the pool.
func (p *Pool) Eval(expression string) (float64, error) {
	return EvaluateFloat(expression, p.Env())
}
