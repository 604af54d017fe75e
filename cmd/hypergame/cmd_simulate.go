package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hypergame/internal/logging"
	"hypergame/internal/simulate"
)

func newSimulateCmd(a *app) *cobra.Command {
	var (
		rounds  int
		seed    uint64
		noRefit bool
	)
	cmd := &cobra.Command{
		Use:   "simulate [settings]",
		Short: "Run Monte-Carlo rounds and aggregate hyperstrategy HEU",
		Long: `Resamples the settings file's random variables once per round, evaluates
every hyperstrategy and refits the declared constants from the resolved
history before the next round.

Example:
  hypergame simulate credit_card.yaml --rounds 500 --seed 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("rounds") {
				rounds = a.cfg.Simulation.Rounds
			}
			if seed == 0 {
				seed = a.cfg.Simulation.Seed
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			f, err := a.factory(args[0], seed)
			if err != nil {
				return err
			}
			log := logging.Get(logging.CategoryCLI)
			opts := []simulate.Option{
				simulate.WithRounds(rounds),
				simulate.WithUncertainty(a.cfg.Analysis.Uncertainty),
				simulate.WithProgress(func(rd simulate.Round) {
					log.Debug("round done", zap.Int("round", rd.Number), zap.String("best", string(rd.Best)))
				}),
			}
			if noRefit {
				opts = append(opts, simulate.WithRefit(nil))
			}
			runner, err := simulate.NewRunner(f, opts...)
			if err != nil {
				return err
			}
			sum, err := runner.Run(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.renderer().SimulationTable(sum))
			return nil
		},
	}
	cmd.Flags().IntVarP(&rounds, "rounds", "n", 100, "Number of rounds")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 uses the configured seed)")
	cmd.Flags().BoolVar(&noRefit, "no-refit", false, "Keep constants fixed between rounds")
	return cmd
}
