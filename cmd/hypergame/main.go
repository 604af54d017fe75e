// Command hypergame analyses hypergame normal form settings files: it prints
// the HNF table and every hyperstrategy's HEU, sweeps uncertainty, runs
// Monte-Carlo simulations and exports the per-situation games.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hypergame/internal/config"
	"hypergame/internal/game"
	"hypergame/internal/hnf"
	"hypergame/internal/logging"
	"hypergame/internal/report"
	"hypergame/internal/resolve"
	"hypergame/internal/solver"
)

// app holds the global flags and the configuration they resolve to.
type app struct {
	configPath  string
	verbose     bool
	solverKind  string
	uncertainty float64

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "hypergame",
		Short: "Hypergame decision engine",
		Long: `hypergame evaluates a hypergame normal form (HNF): a row player's costs
against a column player whose intent is uncertain, described as weighted
situations with their own beliefs about the column player's actions.

For each settings file it reports the modeling-opponent, pick-subgame,
weighted-subgame and Nash equilibrium mixed strategies and ranks them by
hypergame expected utility (HEU) at the configured uncertainty.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "hypergame.yaml", "Config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.solverKind, "solver", "", "Equilibrium solver (enumeration, gambit)")
	root.PersistentFlags().Float64VarP(&a.uncertainty, "uncertainty", "u", 0, "Uncertainty in [0, 1]")

	root.AddCommand(
		newAnalyzeCmd(a),
		newSweepCmd(a),
		newSimulateCmd(a),
		newGamesCmd(a),
		newValidateCmd(a),
		newWatchCmd(a),
	)
	return root
}

// setup loads the config, applies flag overrides and initialises logging.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("solver") {
		cfg.Solver.Kind = a.solverKind
	}
	if cmd.Flags().Changed("uncertainty") {
		cfg.Analysis.Uncertainty = a.uncertainty
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := logging.Initialize(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPaths(),
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	logging.Get(logging.CategoryCLI).Debug("config loaded",
		zap.String("path", a.configPath),
		zap.String("solver", cfg.Solver.Kind),
		zap.Float64("uncertainty", cfg.Analysis.Uncertainty))
	return nil
}

func (a *app) newSolver() (game.Solver, error) {
	return solver.New(solver.Options{
		Kind:      a.cfg.Solver.Kind,
		Binary:    a.cfg.Solver.Command,
		Arguments: a.cfg.Solver.Args,
		Timeout:   a.cfg.GetSolverTimeout(),
	})
}

// factory loads a settings file and builds its round 0 instance. A non-zero
// seed makes the random draws reproducible.
func (a *app) factory(path string, seed uint64) (*hnf.Factory, error) {
	settings, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	s, err := a.newSolver()
	if err != nil {
		return nil, err
	}
	opts := []hnf.FactoryOption{
		hnf.WithInstanceOptions(hnf.WithSolver(s), hnf.WithUncertainty(a.cfg.Analysis.Uncertainty)),
	}
	if seed != 0 {
		opts = append(opts, hnf.WithResolverOptions(resolve.WithSeed(seed)))
	}
	f, err := hnf.NewFactory(settings, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func (a *app) renderer() *report.Renderer {
	return report.New(report.DefaultStyles())
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
