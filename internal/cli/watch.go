package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/tui"
)

// watchDebounce coalesces bursts of filesystem events into one refresh.
// Editors save via rename+write, so a single keystroke can emit several
// events for the same artifact.
const watchDebounce = 500 * time.Millisecond

// AddWatchCommand adds the watch command to the root command.
func AddWatchCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "watch [spec-id]",
		Short: "Watch a bundle and re-recommend on change",
		Long: `Watch the spec bundle's governed artifacts and print a fresh workflow
recommendation whenever spec.md, plan.md, or tasks.md changes. Runs until
interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ec, err := ResolveExecutionContext(ctx, flags)
			if err != nil {
				return err
			}
			o, err := system(ctx, ec, nil)
			if err != nil {
				return err
			}
			defer closeSystem(o)

			id, err := targetSpec(args, o.Layout())
			if err != nil {
				return err
			}
			dir, err := o.Layout().FindSpec(id)
			if err != nil {
				return err
			}

			return runWatch(ctx, os.Stdout, flags, id, dir, o)
		},
	}

	parent.AddCommand(cmd)
}

// runWatch recommends once, then refreshes on every debounced change to the
// bundle directory.
func runWatch(ctx context.Context, w io.Writer, flags *GlobalFlags, id domain.SpecID, dir string, rec Recommender) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating filesystem watcher")
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "watching %s", dir)
	}

	if err := watchRecommend(ctx, w, flags, id, rec); err != nil {
		return err
	}

	var debounce *time.Timer
	refresh := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, open := <-watcher.Events:
			if !open {
				return nil
			}
			if !governedArtifact(event.Name) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case refresh <- struct{}{}:
				default:
				}
			})

		case <-refresh:
			if err := watchRecommend(ctx, w, flags, id, rec); err != nil {
				return err
			}

		case werr, open := <-watcher.Errors:
			if !open {
				return nil
			}
			logger := GetLogger()
			logger.Warn().Err(werr).Str("dir", dir).Msg("watch error")
		}
	}
}

// watchRecommend prints one timestamped recommendation refresh.
func watchRecommend(ctx context.Context, w io.Writer, flags *GlobalFlags, id domain.SpecID, rec Recommender) error {
	recommendation, err := rec.Recommend(ctx, id)
	if err != nil {
		// The bundle may be mid-edit; report and keep watching.
		if errors.CodeOf(err) == errors.CodeNotFound {
			tui.NewTTYOutput(w).Warning(err.Error())
			return nil
		}
		return err
	}

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(recommendation)
	}

	fmt.Fprintln(w, tui.StyleDim.Render(time.Now().Format("15:04:05")+"  "+id.String()))
	renderRecommendation(w, recommendation)
	fmt.Fprintln(w)
	return nil
}

// governedArtifact reports whether a changed path is one of the bundle
// documents a recommendation depends on.
func governedArtifact(path string) bool {
	switch filepath.Base(path) {
	case constants.SpecFileName, constants.PlanFileName, constants.TasksFileName:
		return true
	default:
		return false
	}
}
