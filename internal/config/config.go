package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Solver kinds.
const (
	SolverEnumeration = "enumeration"
	SolverGambit      = "gambit"
)

// ValidSolvers lists the accepted solver kinds.
var ValidSolvers = []string{SolverEnumeration, SolverGambit}

// Config holds the hypergame tool configuration.
type Config struct {
	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Equilibrium solver
	Solver SolverConfig `yaml:"solver"`

	// Analysis defaults
	Analysis AnalysisConfig `yaml:"analysis"`

	// Monte-Carlo simulation defaults
	Simulation SimulationConfig `yaml:"simulation"`
}

// SolverConfig selects the equilibrium solver.
type SolverConfig struct {
	Kind    string   `yaml:"kind"`    // enumeration, gambit
	Command string   `yaml:"command"` // gambit binary, e.g. gambit-logit
	Args    []string `yaml:"args"`
	Timeout string   `yaml:"timeout"`
}

// AnalysisConfig holds defaults for single-shot analysis.
type AnalysisConfig struct {
	Uncertainty float64 `yaml:"uncertainty"`
	SweepStep   float64 `yaml:"sweep_step"`
}

// SimulationConfig holds defaults for Monte-Carlo runs.
type SimulationConfig struct {
	Rounds int `yaml:"rounds"`
	// Seed of zero draws a random seed.
	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Solver: SolverConfig{
			Kind:    SolverEnumeration,
			Command: "gambit-logit",
			Args:    []string{"-e", "-d", "10"},
			Timeout: "30s",
		},
		Analysis: AnalysisConfig{
			Uncertainty: 0,
			SweepStep:   0.1,
		},
		Simulation: SimulationConfig{
			Rounds: 100,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("HYPERGAME_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if kind := os.Getenv("HYPERGAME_SOLVER"); kind != "" {
		c.Solver.Kind = kind
	}
	if path := os.Getenv("HYPERGAME_GAMBIT_PATH"); path != "" {
		c.Solver.Command = path
	}
	if timeout := os.Getenv("HYPERGAME_SOLVER_TIMEOUT"); timeout != "" {
		c.Solver.Timeout = timeout
	}
	if seed := os.Getenv("HYPERGAME_SEED"); seed != "" {
		// Unparseable seeds keep the file value.
		if v, err := strconv.ParseUint(seed, 10, 64); err == nil {
			c.Simulation.Seed = v
		}
	}
}

// GetSolverTimeout returns the solver timeout, falling back to 30s.
func (c *Config) GetSolverTimeout() time.Duration {
	d, err := time.ParseDuration(c.Solver.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	validSolver := false
	for _, k := range ValidSolvers {
		if c.Solver.Kind == k {
			validSolver = true
			break
		}
	}
	if !validSolver {
		return fmt.Errorf("invalid solver kind: %s (valid: %v)", c.Solver.Kind, ValidSolvers)
	}
	if c.Solver.Kind == SolverGambit && c.Solver.Command == "" {
		return fmt.Errorf("solver.command is required for the gambit solver")
	}
	if c.Solver.Timeout != "" {
		if _, err := time.ParseDuration(c.Solver.Timeout); err != nil {
			return fmt.Errorf("invalid solver timeout %q: %w", c.Solver.Timeout, err)
		}
	}
	if math.IsNaN(c.Analysis.Uncertainty) || c.Analysis.Uncertainty < 0 || c.Analysis.Uncertainty > 1 {
		return fmt.Errorf("analysis.uncertainty must be in [0, 1], got %v", c.Analysis.Uncertainty)
	}
	if c.Analysis.SweepStep <= 0 || c.Analysis.SweepStep > 1 {
		return fmt.Errorf("analysis.sweep_step must be in (0, 1], got %v", c.Analysis.SweepStep)
	}
	if c.Simulation.Rounds < 1 {
		return fmt.Errorf("simulation.rounds must be positive, got %d", c.Simulation.Rounds)
	}
	return nil
}
