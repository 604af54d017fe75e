package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hypergame/internal/hnf"
	"hypergame/internal/logging"
	"hypergame/internal/report"
)

// Output formats.
const (
	formatTable    = "table"
	formatMarkdown = "markdown"
)

type analyzeOptions struct {
	format string
	raw    bool
	width  int
	seed   uint64
	jobs   int
}

func (o *analyzeOptions) validate() error {
	if o.format != formatTable && o.format != formatMarkdown {
		return fmt.Errorf("unknown format %q (valid: %s, %s)", o.format, formatTable, formatMarkdown)
	}
	return nil
}

// analysis is one settings file's instance and results.
type analysis struct {
	path string
	inst *hnf.Instance
	res  *hnf.Results
}

func newAnalyzeCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [settings...]",
		Short: "Evaluate every hyperstrategy for one or more settings files",
		Long: `Builds each settings file's HNF instance, solves its situation games and
prints the HNF table, the per-action HEU and the hyperstrategy results.

Files are analysed concurrently and printed in argument order.

Example:
  hypergame analyze credit_card.yaml -u 0.3
  hypergame analyze a.yaml b.yaml --format markdown`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return a.analyze(ctx, cmd.OutOrStdout(), args, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTable, "Output format (table, markdown)")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print markdown without terminal rendering")
	cmd.Flags().IntVar(&opts.width, "width", 100, "Markdown wrap width")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Random seed (0 uses the configured seed)")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 4, "Settings files analysed concurrently")
	return cmd
}

func (a *app) analyze(ctx context.Context, w io.Writer, paths []string, opts *analyzeOptions) error {
	seed := opts.seed
	if seed == 0 {
		seed = a.cfg.Simulation.Seed
	}

	results := make([]analysis, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if opts.jobs > 0 {
		g.SetLimit(opts.jobs)
	}
	for k, path := range paths {
		g.Go(func() error {
			f, err := a.factory(path, seed)
			if err != nil {
				return err
			}
			inst := f.Instance()
			res, err := inst.CalcAllResults(gctx)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[k] = analysis{path: path, inst: inst, res: res}
			logging.Get(logging.CategoryCLI).Info("analysed",
				zap.String("path", path),
				zap.String("best", string(res.Best().Strategy)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r := a.renderer()
	for k, an := range results {
		if k > 0 {
			fmt.Fprintln(w)
		}
		var (
			out string
			err error
		)
		if opts.format == formatMarkdown {
			out, err = markdown(an, opts)
		} else {
			out, err = tables(r, an)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", an.path, err)
		}
		fmt.Fprintln(w, out)
	}
	return nil
}

func tables(r *report.Renderer, an analysis) (string, error) {
	hnfTable, err := r.HNFTable(an.inst)
	if err != nil {
		return "", err
	}
	actions, err := r.ActionTable(an.inst, an.res.Uncertainty)
	if err != nil {
		return "", err
	}
	return hnfTable + "\n" + actions + "\n" + r.ResultsTable(an.res), nil
}

func markdown(an analysis, opts *analyzeOptions) (string, error) {
	md, err := report.Markdown(an.inst, an.res)
	if err != nil || opts.raw {
		return md, err
	}
	return report.RenderMarkdown(md, opts.width)
}

func newSweepCmd(a *app) *cobra.Command {
	var (
		step float64
		seed uint64
	)
	cmd := &cobra.Command{
		Use:   "sweep [settings]",
		Short: "Tabulate hyperstrategy HEU over uncertainty from 0 to 1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("step") {
				step = a.cfg.Analysis.SweepStep
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
			sweep, err := f.Instance().SweepUncertainty(ctx, step)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.renderer().SweepTable(sweep))
			return nil
		},
	}
	cmd.Flags().Float64Var(&step, "step", 0.1, "Uncertainty step in (0, 1]")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 uses the configured seed)")
	return cmd
}
