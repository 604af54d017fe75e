package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"hypergame/internal/game"
	"hypergame/internal/logging"
)

// DefaultGambitCommand is the gambit logit tracer, matching the solver the
// hypergame normal form analysis has historically used.
const DefaultGambitCommand = "gambit-logit"

// DefaultGambitArgs prints only the terminal equilibrium with 10 decimals.
var DefaultGambitArgs = []string{"-e", "-d", "10"}

// Gambit runs an external gambit command-line solver. The game is written to
// the process's stdin in NFG format and "NE,..." lines are parsed from stdout.
type Gambit struct {
	Binary    string
	Arguments []string
	// Timeout bounds a single invocation. Zero means only the caller's context applies.
	Timeout time.Duration
	// Env is passed to the process when non-nil.
	Env []string
}

// NewGambit creates a gambit runner with the default logit command.
func NewGambit() *Gambit {
	return &Gambit{
		Binary:    DefaultGambitCommand,
		Arguments: append([]string(nil), DefaultGambitArgs...),
		Timeout:   30 * time.Second,
	}
}

// CommandString returns the full command line for logging.
func (s *Gambit) CommandString() string {
	if len(s.Arguments) == 0 {
		return s.Binary
	}
	return s.Binary + " " + strings.Join(s.Arguments, " ")
}

// Solve implements game.Solver.
func (s *Gambit) Solve(ctx context.Context, g *game.Game) ([]game.Profile, error) {
	if s.Binary == "" {
		return nil, fmt.Errorf("gambit binary is required")
	}
	timer := logging.StartTimer(logging.CategorySolver, "gambit "+s.Binary)
	defer timer.Stop()

	var input bytes.Buffer
	if err := g.WriteNFG(&input); err != nil {
		return nil, fmt.Errorf("failed to encode game %q: %w", g.Title, err)
	}

	execCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	logging.Get(logging.CategorySolver).Debug("running external solver",
		zap.String("command", s.CommandString()), zap.String("game", g.Title))

	cmd := exec.CommandContext(execCtx, s.Binary, s.Arguments...)
	cmd.Stdin = &input
	if s.Env != nil {
		cmd.Env = s.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := execCtx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("solver %s killed: %w", s.Binary, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("solver %s exited with code %d: %s",
				s.Binary, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("solver %s failed: %w", s.Binary, err)
	}

	profiles, err := game.ParseProfiles(&stdout, g)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: %s printed no profile for game %q",
			game.ErrNoEquilibriumFound, s.Binary, g.Title)
	}
	return profiles, nil
}

// WithTimeout bounds every Solve call of s by d.
func WithTimeout(s game.Solver, d time.Duration) game.Solver {
	if d <= 0 {
		return s
	}
	return game.SolverFunc(func(ctx context.Context, g *game.Game) ([]game.Profile, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return s.Solve(ctx, g)
	})
}
