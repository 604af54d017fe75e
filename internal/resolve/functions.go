package resolve

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type function = func(params ...any) (any, error)

// functions is the whitelist available to every expression.
var functions = map[string]function{
	"abs":      elementwise("abs", math.Abs),
	"sqrt":     elementwise("sqrt", math.Sqrt),
	"exp":      elementwise("exp", math.Exp),
	"log":      elementwise("log", math.Log),
	"floor":    elementwise("floor", math.Floor),
	"ceil":     elementwise("ceil", math.Ceil),
	"round":    roundFn,
	"pow":      powFn,
	"min":      reduce("min", floats.Min),
	"max":      reduce("max", floats.Max),
	"sum":      reduce("sum", floats.Sum),
	"mean":     reduce("mean", func(x []float64) float64 { return stat.Mean(x, nil) }),
	"std":      reduce("std", stdDev),
	"var":      reduce("var", variance),
	"median":   reduce("median", func(x []float64) float64 { return quantile(0.5, x) }),
	"len":      lenFn,
	"quantile": quantileFn,
	"clip":     clipFn,
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

// toSlice flattens scalars and numeric slices into one []float64.
func toSlice(params ...any) ([]float64, error) {
	var out []float64
	for _, p := range params {
		switch x := p.(type) {
		case []float64:
			out = append(out, x...)
		case []any:
			for _, e := range x {
				f, err := toFloat(e)
				if err != nil {
					return nil, err
				}
				out = append(out, f)
			}
		case []int:
			for _, e := range x {
				out = append(out, float64(e))
			}
		default:
			f, err := toFloat(p)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
	}
	return out, nil
}

func elementwise(name string, fn func(float64) float64) function {
	return func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument, got %d", name, len(params))
		}
		if f, err := toFloat(params[0]); err == nil {
			return fn(f), nil
		}
		xs, err := toSlice(params[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out := make([]float64, len(xs))
		for i, x := range xs {
			out[i] = fn(x)
		}
		return out, nil
	}
}

func reduce(name string, fn func([]float64) float64) function {
	return func(params ...any) (any, error) {
		xs, err := toSlice(params...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(xs) == 0 {
			return nil, fmt.Errorf("%s of no values", name)
		}
		return fn(xs), nil
	}
}

func stdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.StdDev(x, nil)
}

func variance(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.Variance(x, nil)
}

// quantile interpolates linearly between the closest ranks, so the median of
// an even-length sample is the midpoint of the two central values.
func quantile(p float64, x []float64) float64 {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	h := p * float64(len(sorted)-1)
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

func roundFn(params ...any) (any, error) {
	if len(params) == 0 || len(params) > 2 {
		return nil, fmt.Errorf("round expects 1 or 2 arguments, got %d", len(params))
	}
	x, err := toFloat(params[0])
	if err != nil {
		return nil, fmt.Errorf("round: %w", err)
	}
	if len(params) == 1 {
		return math.Round(x), nil
	}
	digits, err := toFloat(params[1])
	if err != nil {
		return nil, fmt.Errorf("round: %w", err)
	}
	return RoundTo(x, int(digits)), nil
}

func powFn(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("pow expects 2 arguments, got %d", len(params))
	}
	base, err := toFloat(params[0])
	if err != nil {
		return nil, fmt.Errorf("pow: %w", err)
	}
	exp, err := toFloat(params[1])
	if err != nil {
		return nil, fmt.Errorf("pow: %w", err)
	}
	return math.Pow(base, exp), nil
}

func lenFn(params ...any) (any, error) {
	xs, err := toSlice(params...)
	if err != nil {
		return nil, fmt.Errorf("len: %w", err)
	}
	return float64(len(xs)), nil
}

func quantileFn(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("quantile expects 2 arguments, got %d", len(params))
	}
	xs, err := toSlice(params[0])
	if err != nil {
		return nil, fmt.Errorf("quantile: %w", err)
	}
	p, err := toFloat(params[1])
	if err != nil {
		return nil, fmt.Errorf("quantile: %w", err)
	}
	if len(xs) == 0 {
		return nil, fmt.Errorf("quantile of no values")
	}
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("quantile %v outside [0, 1]", p)
	}
	return quantile(p, xs), nil
}

func clipFn(params ...any) (any, error) {
	if len(params) != 3 {
		return nil, fmt.Errorf("clip expects 3 arguments, got %d", len(params))
	}
	var v [3]float64
	for i, p := range params {
		f, err := toFloat(p)
		if err != nil {
			return nil, fmt.Errorf("clip: %w", err)
		}
		v[i] = f
	}
	if v[1] > v[2] {
		return nil, fmt.Errorf("clip bounds [%v, %v] are inverted", v[1], v[2])
	}
	return math.Min(math.Max(v[0], v[1]), v[2]), nil
}

// RoundTo rounds x half away from zero to the given number of decimal digits.
func RoundTo(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}
