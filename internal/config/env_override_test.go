package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("HYPERGAME_LOG_LEVEL sets the level", func(t *testing.T) {
		t.Setenv("HYPERGAME_LOG_LEVEL", "debug")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("HYPERGAME_SOLVER and HYPERGAME_GAMBIT_PATH select gambit", func(t *testing.T) {
		t.Setenv("HYPERGAME_SOLVER", SolverGambit)
		t.Setenv("HYPERGAME_GAMBIT_PATH", "/usr/local/bin/gambit-lcp")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, SolverGambit, cfg.Solver.Kind)
		assert.Equal(t, "/usr/local/bin/gambit-lcp", cfg.Solver.Command)
		require.NoError(t, cfg.Validate())
	})

	t.Run("HYPERGAME_SOLVER_TIMEOUT is parsed lazily", func(t *testing.T) {
		t.Setenv("HYPERGAME_SOLVER_TIMEOUT", "5s")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 5*time.Second, cfg.GetSolverTimeout())
	})

	t.Run("HYPERGAME_SEED overrides the seed", func(t *testing.T) {
		t.Setenv("HYPERGAME_SEED", "1234")

		cfg := &Config{Simulation: SimulationConfig{Seed: 7}}
		cfg.applyEnvOverrides()

		assert.Equal(t, uint64(1234), cfg.Simulation.Seed)
	})

	t.Run("unparseable HYPERGAME_SEED keeps the file value", func(t *testing.T) {
		t.Setenv("HYPERGAME_SEED", "not-a-number")

		cfg := &Config{Simulation: SimulationConfig{Seed: 7}}
		cfg.applyEnvOverrides()

		assert.Equal(t, uint64(7), cfg.Simulation.Seed)
	})

	t.Run("empty variables change nothing", func(t *testing.T) {
		for _, name := range []string{
			"HYPERGAME_LOG_LEVEL",
			"HYPERGAME_SOLVER",
			"HYPERGAME_GAMBIT_PATH",
			"HYPERGAME_SOLVER_TIMEOUT",
			"HYPERGAME_SEED",
		} {
			t.Setenv(name, "")
		}

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, DefaultConfig(), cfg)
	})
}
