package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Solver.Kind != SolverEnumeration {
		t.Errorf("expected Solver.Kind=%s, got %s", SolverEnumeration, cfg.Solver.Kind)
	}
	if cfg.Analysis.SweepStep != 0.1 {
		t.Errorf("expected SweepStep=0.1, got %v", cfg.Analysis.SweepStep)
	}
	if cfg.Simulation.Rounds != 100 {
		t.Errorf("expected Rounds=100, got %d", cfg.Simulation.Rounds)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("HYPERGAME_SOLVER", "")
	t.Setenv("HYPERGAME_GAMBIT_PATH", "")
	t.Setenv("HYPERGAME_SEED", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "hypergame.yaml")

	cfg := DefaultConfig()
	cfg.Solver.Kind = SolverGambit
	cfg.Solver.Command = "/opt/gambit/bin/gambit-enummixed"
	cfg.Simulation.Seed = 42
	cfg.Analysis.Uncertainty = 0.25

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Solver.Kind != SolverGambit {
		t.Errorf("expected Kind=gambit, got %s", loaded.Solver.Kind)
	}
	if loaded.Solver.Command != "/opt/gambit/bin/gambit-enummixed" {
		t.Errorf("expected Command to round trip, got %s", loaded.Solver.Command)
	}
	if loaded.Simulation.Seed != 42 {
		t.Errorf("expected Seed=42, got %d", loaded.Simulation.Seed)
	}
	if loaded.Analysis.Uncertainty != 0.25 {
		t.Errorf("expected Uncertainty=0.25, got %v", loaded.Analysis.Uncertainty)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("HYPERGAME_LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load of a missing file should return defaults: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level, got %s", cfg.Logging.Level)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hypergame.yaml")
	if err := os.WriteFile(path, []byte("simulation:\n  rounds: 7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Simulation.Rounds != 7 {
		t.Errorf("expected Rounds=7, got %d", cfg.Simulation.Rounds)
	}
	if cfg.Solver.Kind != SolverEnumeration {
		t.Errorf("expected default solver to survive, got %s", cfg.Solver.Kind)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hypergame.yaml")
	if err := os.WriteFile(path, []byte("solver: [unterminated\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown solver", func(c *Config) { c.Solver.Kind = "lemke" }},
		{"gambit without command", func(c *Config) { c.Solver.Kind = SolverGambit; c.Solver.Command = "" }},
		{"bad timeout", func(c *Config) { c.Solver.Timeout = "soon" }},
		{"negative uncertainty", func(c *Config) { c.Analysis.Uncertainty = -0.1 }},
		{"uncertainty above one", func(c *Config) { c.Analysis.Uncertainty = 1.5 }},
		{"NaN uncertainty", func(c *Config) { c.Analysis.Uncertainty = math.NaN() }},
		{"zero sweep step", func(c *Config) { c.Analysis.SweepStep = 0 }},
		{"zero rounds", func(c *Config) { c.Simulation.Rounds = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestGetSolverTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Solver.Timeout = "2m"
	if got := cfg.GetSolverTimeout(); got != 2*time.Minute {
		t.Errorf("expected 2m, got %v", got)
	}
	cfg.Solver.Timeout = "garbage"
	if got := cfg.GetSolverTimeout(); got != 30*time.Second {
		t.Errorf("expected fallback of 30s, got %v", got)
	}
}

func TestLoggingConfig(t *testing.T) {
	lc := LoggingConfig{Categories: map[string]bool{"solver": false}}
	if lc.IsCategoryEnabled("solver") {
		t.Error("solver should be disabled")
	}
	if !lc.IsCategoryEnabled("engine") {
		t.Error("unlisted categories should be enabled")
	}

	lc.File = "/tmp/hypergame.log"
	paths := lc.OutputPaths()
	if len(paths) != 2 || paths[0] != "stderr" || paths[1] != "/tmp/hypergame.log" {
		t.Errorf("unexpected output paths %v", paths)
	}
}
