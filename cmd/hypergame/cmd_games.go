package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hypergame/internal/config"
	"hypergame/internal/game"
	"hypergame/internal/logging"
)

func newGamesCmd(a *app) *cobra.Command {
	var (
		out  string
		seed uint64
	)
	cmd := &cobra.Command{
		Use:   "games [settings]",
		Short: "Export each situation's game in Gambit NFG format",
		Long: `Writes one <situation>.nfg file per situation. Excluded column actions
are left out of that situation's game.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if seed == 0 {
				seed = a.cfg.Simulation.Seed
			}
			f, err := a.factory(args[0], seed)
			if err != nil {
				return err
			}
			games, err := f.Instance().Games()
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err := os.MkdirAll(out, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			for _, g := range games {
				path := filepath.Join(out, fileName(g.Title)+".nfg")
				if err := writeGame(path, g); err != nil {
					return err
				}
				logging.Get(logging.CategoryCLI).Debug("game written", zap.String("path", path))
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", ".", "Output directory")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 uses the configured seed)")
	return cmd
}

func writeGame(path string, g *game.Game) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := g.WriteNFG(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// fileName maps a situation name to a safe file name.
func fileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, strings.TrimSpace(name))
	if name == "" {
		return "game"
	}
	return name
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [settings...]",
		Short: "Check settings files without solving any game",
		Long: `Parses each settings file, resolves its round 0 variables and checks the
belief invariants of the built instance.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				f, err := a.factory(path, a.cfg.Simulation.Seed)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s: %s\n", path, describe(f.Settings()))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d settings files invalid", failed, len(args))
			}
			return nil
		},
	}
}

func describe(s *config.Settings) string {
	return fmt.Sprintf("%q, %d situations, %d row actions, %d column actions",
		s.Name, len(s.SituationNames), len(s.RowActionNames), len(s.ColumnActionNames))
}
