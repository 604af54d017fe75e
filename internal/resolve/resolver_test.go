package resolve

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func creditCard() Declarations {
	return Declarations{
		Constants: []Constant{
			{Name: "exfil_rate", Value: 0.5},
			{Name: "cost_exfil", Value: 100},
		},
		Random: []Variable{
			// low == high draws the bound itself.
			{Name: "loss", Type: "uniform", Params: map[string]string{"low": "cost_exfil", "high": "cost_exfil"}},
		},
		ColumnPlayer: ColumnPlayer{
			Random: []Variable{{Name: "attempts", Type: TypeExpr, Expr: "loss * exfil_rate"}},
			Update: []Variable{{Name: "next_attempts", Type: TypeExpr, Expr: "attempts + 1"}},
			Result: []Variable{{Name: "total_cost", Type: TypeExpr, Params: map[string]string{"k": "2"}, Expr: "next_attempts * k"}},
		},
	}
}

func TestResolver_StagesInOrder(t *testing.T) {
	r, err := New(creditCard(), WithSeed(1))
	require.NoError(t, err)

	round, err := r.Resample()
	require.NoError(t, err)
	assert.Equal(t, 0, round.Number)

	for name, want := range map[string]float64{
		"exfil_rate":    0.5,
		"cost_exfil":    100,
		"loss":          100,
		"attempts":      50,
		"next_attempts": 51,
		"total_cost":    102,
	} {
		got, err := round.Pool.Float(name)
		require.NoError(t, err, name)
		assert.InDelta(t, want, got, 1e-9, name)
	}
	assert.Equal(t, []string{"exfil_rate", "cost_exfil", "loss", "attempts", "next_attempts", "total_cost"}, round.Pool.Names())

	// Parameters are local to their variable.
	_, ok := round.Pool.Get("k")
	assert.False(t, ok)

	got, err := round.Eval("total_cost - loss")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 1e-9)
}

func TestResolver_LiteralsSurviveResample(t *testing.T) {
	decl := Declarations{
		Constants: []Constant{{Name: "mu", Value: 3}},
		Random:    []Variable{{Name: "draw", Type: "normal", Params: map[string]string{"mu": "mu", "sigma": "1"}}},
	}
	r, err := New(decl, WithSeed(42))
	require.NoError(t, err)

	first, err := r.Resample()
	require.NoError(t, err)
	second, err := r.Resample()
	require.NoError(t, err)

	assert.Equal(t, 1, second.Number)
	assert.Equal(t, 2, r.Rounds())

	a, _ := first.Pool.Float("mu")
	b, _ := second.Pool.Float("mu")
	assert.Equal(t, a, b)

	x, _ := first.Pool.Float("draw")
	y, _ := second.Pool.Float("draw")
	assert.NotEqual(t, x, y, "random stage redraws every round")
}

func TestResolver_SameSeedSameRounds(t *testing.T) {
	decl := Declarations{
		Random: []Variable{
			{Name: "a", Type: "normal", Params: map[string]string{"mu": "0", "sigma": "1"}},
			{Name: "b", Type: "gamma", Params: map[string]string{"alpha": "2", "beta": "1", "size": "5"}, Expr: "max(x)"},
		},
	}
	r1, err := New(decl, WithSeed(7))
	require.NoError(t, err)
	r2, err := New(decl, WithSeed(7))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		p1, err := r1.Resample()
		require.NoError(t, err)
		p2, err := r2.Resample()
		require.NoError(t, err)
		assert.Equal(t, p1.Pool.Env(), p2.Pool.Env())
	}
}

func TestResolver_ForwardReference(t *testing.T) {
	decl := Declarations{
		Random: []Variable{
			{Name: "a", Type: TypeExpr, Expr: "b + 1"},
			{Name: "b", Type: TypeExpr, Expr: "1"},
		},
	}
	r, err := New(decl)
	require.NoError(t, err)

	_, err = r.Resample()
	assert.ErrorIs(t, err, ErrUnresolvedReference)
	assert.Contains(t, err.Error(), `"a"`)
}

func TestResolver_ColumnPlayerCannotSeeLaterStage(t *testing.T) {
	decl := Declarations{
		ColumnPlayer: ColumnPlayer{
			Random: []Variable{{Name: "r", Type: TypeExpr, Expr: "u * 2"}},
			Update: []Variable{{Name: "u", Type: TypeExpr, Expr: "1"}},
		},
	}
	r, err := New(decl)
	require.NoError(t, err)

	_, err = r.Resample()
	assert.ErrorIs(t, err, ErrUnresolvedReference)
}

func TestResolver_UnsupportedFunctionInParam(t *testing.T) {
	decl := Declarations{
		Random: []Variable{{Name: "a", Type: "normal", Params: map[string]string{"mu": "now()", "sigma": "1"}}},
	}
	r, err := New(decl)
	require.NoError(t, err)

	_, err = r.Resample()
	assert.ErrorIs(t, err, ErrUnsupportedFunction)
}

func TestDeclarations_Validate(t *testing.T) {
	tests := []struct {
		name string
		decl Declarations
		want error
	}{
		{
			name: "unknown type",
			decl: Declarations{Random: []Variable{{Name: "a", Type: "cauchy"}}},
			want: ErrUnsupportedFunction,
		},
		{
			name: "duplicate across stages",
			decl: Declarations{
				Constants: []Constant{{Name: "a", Value: 1}},
				Random:    []Variable{{Name: "a", Type: TypeExpr, Expr: "1"}},
			},
			want: ErrInvalidVariable,
		},
		{
			name: "function name",
			decl: Declarations{Constants: []Constant{{Name: "mean", Value: 1}}},
			want: ErrInvalidVariable,
		},
		{
			name: "missing parameter",
			decl: Declarations{Random: []Variable{{Name: "a", Type: "normal", Params: map[string]string{"mu": "0"}}}},
			want: ErrInvalidVariable,
		},
		{
			name: "unknown parameter",
			decl: Declarations{Random: []Variable{{Name: "a", Type: "exponential", Params: map[string]string{"rate": "1", "scale": "2"}}}},
			want: ErrInvalidVariable,
		},
		{
			name: "expr without expression",
			decl: Declarations{Random: []Variable{{Name: "a", Type: TypeExpr}}},
			want: ErrInvalidVariable,
		},
		{
			name: "empty name",
			decl: Declarations{Constants: []Constant{{Value: 1}}},
			want: ErrInvalidVariable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.decl)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolver_UpdateConstants(t *testing.T) {
	r, err := New(creditCard(), WithSeed(1))
	require.NoError(t, err)

	before, err := r.Resample()
	require.NoError(t, err)

	require.NoError(t, r.UpdateConstants(map[string]float64{"exfil_rate": 0.25}))
	v, ok := r.Constant("exfil_rate")
	assert.True(t, ok)
	assert.Equal(t, 0.25, v)

	after, err := r.Resample()
	require.NoError(t, err)

	got, _ := after.Pool.Float("attempts")
	assert.InDelta(t, 25.0, got, 1e-9)

	old, _ := before.Pool.Float("attempts")
	assert.InDelta(t, 50.0, old, 1e-9, "earlier rounds keep their pool")

	assert.ErrorIs(t, r.UpdateConstants(map[string]float64{"loss": 1}), ErrInvalidVariable)
	assert.Equal(t, map[string]float64{"exfil_rate": 0.25, "cost_exfil": 100}, r.Constants())
}

func TestResolver_FailedResampleKeepsNumbering(t *testing.T) {
	decl := Declarations{
		Constants: []Constant{{Name: "arrival", Value: 1}},
		Random:    []Variable{{Name: "wait", Type: "exponential", Params: map[string]string{"rate": "arrival"}}},
	}
	r, err := New(decl, WithSeed(2))
	require.NoError(t, err)

	first, err := r.Resample()
	require.NoError(t, err)
	assert.Equal(t, 0, first.Number)

	require.NoError(t, r.UpdateConstants(map[string]float64{"arrival": -1}))
	_, err = r.Resample()
	require.Error(t, err)
	assert.Equal(t, 1, r.Rounds())

	require.NoError(t, r.UpdateConstants(map[string]float64{"arrival": 2}))
	next, err := r.Resample()
	require.NoError(t, err)
	assert.Equal(t, 1, next.Number)
	assert.Equal(t, 2, r.Rounds())
}

func TestResolver_SampleVector(t *testing.T) {
	decl := Declarations{
		Random: []Variable{
			{Name: "samples", Type: "normal", Params: map[string]string{"mu": "10", "sigma": "1", "size": "2000"}, Expr: "x"},
			{Name: "avg", Type: "normal", Params: map[string]string{"mu": "10", "sigma": "1", "size": "2000"}},
		},
	}
	r, err := New(decl, WithSeed(3))
	require.NoError(t, err)

	round, err := r.Resample()
	require.NoError(t, err)

	xs, err := round.Pool.Values("samples")
	require.NoError(t, err)
	assert.Len(t, xs, 2000)
	assert.InDelta(t, 10.0, stat.Mean(xs, nil), 0.15)

	_, err = round.Pool.Float("samples")
	assert.Error(t, err)

	avg, err := round.Pool.Float("avg")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, avg, 0.15)
}

func TestDraw_Domains(t *testing.T) {
	src := rand.NewPCG(11, 11)

	tests := []struct {
		kind   string
		params map[string]float64
		check  func(t *testing.T, v float64)
	}{
		{"uniform", map[string]float64{"low": 2, "high": 3}, func(t *testing.T, v float64) {
			assert.True(t, v >= 2 && v <= 3, "%v", v)
		}},
		{"bernoulli", map[string]float64{"p": 0.3}, func(t *testing.T, v float64) {
			assert.True(t, v == 0 || v == 1, "%v", v)
		}},
		{"triangular", map[string]float64{"low": 0, "high": 4, "mode": 1}, func(t *testing.T, v float64) {
			assert.True(t, v >= 0 && v <= 4, "%v", v)
		}},
		{"poisson", map[string]float64{"lambda": 3}, func(t *testing.T, v float64) {
			assert.Equal(t, v, float64(int(v)))
			assert.GreaterOrEqual(t, v, 0.0)
		}},
		{"beta", map[string]float64{"alpha": 2, "beta": 5}, func(t *testing.T, v float64) {
			assert.True(t, v >= 0 && v <= 1, "%v", v)
		}},
		{"binomial", map[string]float64{"n": 10, "p": 0.5}, func(t *testing.T, v float64) {
			assert.True(t, v >= 0 && v <= 10, "%v", v)
		}},
		{"exponential", map[string]float64{"rate": 2}, func(t *testing.T, v float64) {
			assert.GreaterOrEqual(t, v, 0.0)
		}},
		{"lognormal", map[string]float64{"mu": 0, "sigma": 0.5}, func(t *testing.T, v float64) {
			assert.Greater(t, v, 0.0)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			params := map[string]float64{SizeParam: 200}
			for k, v := range tt.params {
				params[k] = v
			}
			out, err := draw(tt.kind, params, src)
			require.NoError(t, err)
			require.Len(t, out, 200)
			for _, v := range out {
				tt.check(t, v)
			}
		})
	}
}

func TestDraw_InvalidParameters(t *testing.T) {
	src := rand.NewPCG(1, 1)

	tests := []struct {
		name   string
		kind   string
		params map[string]float64
	}{
		{"zero sigma", "normal", map[string]float64{"mu": 0, "sigma": 0}},
		{"inverted bounds", "uniform", map[string]float64{"low": 2, "high": 1}},
		{"probability above one", "bernoulli", map[string]float64{"p": 1.5}},
		{"fractional trials", "binomial", map[string]float64{"n": 2.5, "p": 0.5}},
		{"mode outside", "triangular", map[string]float64{"low": 0, "high": 1, "mode": 2}},
		{"zero size", "exponential", map[string]float64{"rate": 1, SizeParam: 0}},
		{"fractional size", "exponential", map[string]float64{"rate": 1, SizeParam: 1.5}},
		{"missing", "gamma", map[string]float64{"alpha": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := draw(tt.kind, tt.params, src)
			assert.ErrorIs(t, err, ErrInvalidVariable)
		})
	}

	_, err := draw("cauchy", nil, src)
	assert.ErrorIs(t, err, ErrUnsupportedFunction)
}

func TestPool(t *testing.T) {
	p := NewPool(map[string]float64{"b": 2, "a": 1})
	assert.Equal(t, []string{"a", "b"}, p.Names())
	assert.Equal(t, 2, p.Len())

	v, err := p.Values("a")
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, v)

	_, err = p.Float("missing")
	assert.ErrorIs(t, err, ErrUnresolvedReference)

	env := p.Env()
	env["a"] = 100.0
	got, _ := p.Float("a")
	assert.Equal(t, 1.0, got, "Env returns a copy")

	sum, err := p.Eval("a + b")
	require.NoError(t, err)
	assert.Equal(t, 3.0, sum)

	var empty *Pool
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Env())
}
