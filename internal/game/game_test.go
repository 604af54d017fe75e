package game

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pennies() *Game {
	g := New("pennies", "Row Player", []string{"H", "T"}, "Column Player", []string{"h", "t"})
	g.Set(0, 0, 1, -1)
	g.Set(0, 1, -1, 1)
	g.Set(1, 0, -1, 1)
	g.Set(1, 1, 1, -1)
	return g
}

func TestGame_Payoff(t *testing.T) {
	g := pennies()

	assert.InDelta(t, 0.0, g.Payoff(Row, []float64{0.5, 0.5}, []float64{0.5, 0.5}), 1e-12)
	assert.InDelta(t, 1.0, g.Payoff(Row, []float64{1, 0}, []float64{1, 0}), 1e-12)
	assert.InDelta(t, -1.0, g.Payoff(Column, []float64{1, 0}, []float64{1, 0}), 1e-12)

	p := g.NewProfile([]float64{0, 1}, []float64{1, 0})
	assert.Equal(t, [2]float64{-1, 1}, p.Payoffs)
}

func TestGame_Matrix(t *testing.T) {
	g := pennies()
	assert.Equal(t, [][]float64{{-1, 1}, {1, -1}}, g.Matrix(Column))
}

func TestGame_Validate(t *testing.T) {
	assert.NoError(t, pennies().Validate())

	empty := New("empty", "Row Player", []string{"a"}, "Column Player", nil)
	assert.Error(t, empty.Validate())

	ragged := pennies()
	ragged.Payoffs[1] = ragged.Payoffs[1][:1]
	assert.Error(t, ragged.Validate())
}

func TestGame_WriteNFG(t *testing.T) {
	g := New("Lone Actor", "Row Player", []string{"R1", "R2"}, "Column Player", []string{"C1"})
	g.Set(0, 0, -1, 1)
	g.Set(1, 0, -2.5, 2.5)

	var buf bytes.Buffer
	require.NoError(t, g.WriteNFG(&buf))

	want := `NFG 1 R "Lone Actor" { "Row Player" "Column Player" }
{ { "R1" "R2" }
{ "C1" }
}
""

-1 1 -2.5 2.5
`
	assert.Equal(t, want, buf.String())
}

func TestParseProfiles(t *testing.T) {
	g := pennies()
	out := strings.Join([]string{
		"Compute Nash equilibria by solving polynomial systems",
		"NE,1/2,1/2,0.5,0.5",
		"NE,1,0,1,0",
	}, "\n")

	profiles, err := ParseProfiles(strings.NewReader(out), g)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, []float64{0.5, 0.5}, profiles[0].Strategies[Row])
	assert.Equal(t, []float64{0.5, 0.5}, profiles[0].Strategies[Column])
	assert.InDelta(t, 0.0, profiles[0].Payoffs[Row], 1e-12)
	assert.InDelta(t, 1.0, profiles[1].Payoffs[Row], 1e-12)
}

func TestParseProfiles_Errors(t *testing.T) {
	g := pennies()

	_, err := ParseProfiles(strings.NewReader("NE,1,0,1"), g)
	assert.Error(t, err, "wrong arity")

	_, err = ParseProfiles(strings.NewReader("NE,1,0,x,1"), g)
	assert.Error(t, err, "bad number")

	profiles, err := ParseProfiles(strings.NewReader("nothing here\n"), g)
	require.NoError(t, err)
	assert.Empty(t, profiles)
}
