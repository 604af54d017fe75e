package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hypergame/internal/logging"
)

// settingsWatcher calls onChange after the watched file settles.
// The parent directory is watched so editors that save by rename are seen.
type settingsWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func(ctx context.Context) error
}

func newSettingsWatcher(path string, debounce time.Duration, onChange func(ctx context.Context) error) (*settingsWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &settingsWatcher{
		watcher:  watcher,
		path:     abs,
		debounce: debounce,
		onChange: onChange,
	}, nil
}

// Run blocks until ctx is done. Errors from onChange are logged, not returned.
func (w *settingsWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	log := logging.Get(logging.CategoryCLI)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debug("settings event", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			if err := w.onChange(ctx); err != nil {
				log.Error("re-analysis failed", zap.String("path", w.path), zap.Error(err))
			}
		}
	}
}

func newWatchCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [settings]",
		Short: "Re-analyse a settings file whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			path := args[0]
			w := cmd.OutOrStdout()
			analyze := func(ctx context.Context) error {
				err := a.analyze(ctx, w, []string{path}, opts)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
				}
				return err
			}

			watcher, err := newSettingsWatcher(path, debounce, func(ctx context.Context) error {
				fmt.Fprintf(w, "\n%s changed at %s\n", path, time.Now().Format(time.TimeOnly))
				return analyze(ctx)
			})
			if err != nil {
				return err
			}
			_ = analyze(ctx)
			logging.Get(logging.CategoryCLI).Info("watching", zap.String("path", path))
			return watcher.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTable, "Output format (table, markdown)")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print markdown without terminal rendering")
	cmd.Flags().IntVar(&opts.width, "width", 100, "Markdown wrap width")
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "Quiet period before re-analysing")
	return cmd
}
