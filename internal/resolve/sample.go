package resolve

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// TypeExpr marks a deterministic variable: no samples are drawn and the
// expression is evaluated against the pool and the variable's parameters.
const TypeExpr = "expr"

// SizeParam sets how many samples a random variable draws. Defaults to 1.
const SizeParam = "size"

// SampleVar is the name the drawn samples are bound to in a variable's expression.
const SampleVar = "x"

// DefaultExpr aggregates the drawn samples when a variable declares no expression.
const DefaultExpr = "mean(x)"

const maxSize = 1_000_000

type distribution struct {
	params []string
	build  func(p map[string]float64, src rand.Source) (distuv.Rander, error)
}

// distributions is the whitelist of variable types that draw samples.
var distributions = map[string]distribution{
	"normal": {
		params: []string{"mu", "sigma"},
		build: func(p map[string]float64, src rand.Source) (distuv.Rander, error) {
			if p["sigma"] <= 0 {
				return nil, fmt.Errorf("sigma must be positive, got %v", p["sigma"])
			}
			return distuv.Normal{Mu: p["mu"], Sigma: p["sigma"], Src: src}, nil
		},
	},
	"lognormal": {
		params: []string{"mu", "sigma"},
		build: func(p map[string]float64, src rand.Source) (distuv.Rander, error) {
			if p["sigma"] <= 0 {
				return nil, fmt.Errorf("sigma must be positive, got %v", p["sigma"])
			}
			return distuv.LogNormal{Mu: p["mu"], Sigma: p["sigma"], Src: src}, nil
		},
	},
	"uniform": {
		params: []string{"low", "high"},
		build: func(p map[string]float64, src rand.Source) (distuv.Rander, error) {
			if p["low"] > p["high"] {
				return nil, fmt.Errorf("low %v exceeds high %v", p["low"], p["high"])
			}
			return distuv.Uniform{Min: p["low"], Max: p["high"], Src: src}, nil
		},
	},
	"exponential": {
		params: []string{"rate"},
		build: func(p map[string]float64, src rand.Source) (distuv.Rander, error) {
			if p["rate"] <= 0 {
				return nil, fmt.Errorf("rate must be positive, got %v", p["rate"])
			}
			return distuv.Exponential{Rate: p["rate"], Src: src}, nil
		},
	},
	"poisson": {
		params: []string{"lambda"},
		build: func(p map[string]float64, src rand.Source) (distuv.Rander, error) {
			if p["lambda"] <= 0 {
				return nil, fmt.Errorf("lambda must be positive, got %v", p["lambda"])
			}
			return distuv.Poisson{Lambda: p["lambda"], Src: src}, nil
		},
	},
	"binomial": {
		params: []string{"n", "p"},
		build: func(p map[string]float64, src rand.Source) (distuv.Rander, error) {
			if p["n"] < 1 || p["n"] != math.Trunc(p["n"]) {
				return nil, fmt.Errorf("n must be a positive integer, got %v", p["n"])
			}
			if p["p"] < 0 || p["p"] > 1 {
				return nil, fmt.Errorf("p must be in [0, 1], got %v", p["p"])
			}
			return distuv.Binomial{N: p["n"], P: p["p"], Src: src}, nil
		},
	},
	"bernoulli": {
		params: []string{"p"},
		build: func(p map[string]float64, src rand.Source) (distuv.Rander, error) {
			if p["p"] < 0 || p["p"] > 1 {
				return nil, fmt.Errorf("p must be in [0, 1], got %v", p["p"])
			}
			return distuv.Bernoulli{P: p["p"], Src: src}, nil
		},
	},
	"beta": {
		params: []string{"alpha", "beta"},
		build: func(p map[string]float64, src rand.Source) (distuv.Rander, error) {
			if p["alpha"] <= 0 || p["beta"] <= 0 {
				return nil, fmt.Errorf("alpha and beta must be positive, got %v and %v", p["alpha"], p["beta"])
			}
			return distuv.Beta{Alpha: p["alpha"], Beta: p["beta"], Src: src}, nil
		},
	},
	"gamma": {
		params: []string{"alpha", "beta"},
		build: func(p map[string]float64, src rand.Source) (distuv.Rander, error) {
			if p["alpha"] <= 0 || p["beta"] <= 0 {
				return nil, fmt.Errorf("alpha and beta must be positive, got %v and %v", p["alpha"], p["beta"])
			}
			return distuv.Gamma{Alpha: p["alpha"], Beta: p["beta"], Src: src}, nil
		},
	},
	"triangular": {
		params: []string{"low", "high", "mode"},
		build: func(p map[string]float64, src rand.Source) (distuv.Rander, error) {
			a, b, c := p["low"], p["high"], p["mode"]
			if !(a < b) || c < a || c > b {
				return nil, fmt.Errorf("need low < high and low <= mode <= high, got %v, %v, %v", a, b, c)
			}
			return distuv.NewTriangle(a, b, c, src), nil
		},
	},
}

// Types lists the supported variable types in sorted order.
func Types() []string {
	names := []string{TypeExpr}
	for name := range distributions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// draw samples size values of the named distribution.
func draw(kind string, params map[string]float64, src rand.Source) ([]float64, error) {
	d, ok := distributions[kind]
	if !ok {
		return nil, fmt.Errorf("%w: variable type %q (allowed: %v)", ErrUnsupportedFunction, kind, Types())
	}
	for _, name := range d.params {
		if _, ok := params[name]; !ok {
			return nil, fmt.Errorf("%w: %s requires parameter %q", ErrInvalidVariable, kind, name)
		}
	}

	size := 1
	if s, ok := params[SizeParam]; ok {
		if s < 1 || s > maxSize || s != math.Trunc(s) {
			return nil, fmt.Errorf("%w: size must be an integer in [1, %d], got %v", ErrInvalidVariable, maxSize, s)
		}
		size = int(s)
	}

	r, err := d.build(params, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidVariable, kind, err)
	}
	out := make([]float64, size)
	for i := range out {
		out[i] = r.Rand()
	}
	return out, nil
}
