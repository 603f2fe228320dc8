package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/jsphweid/melodyscore/constants"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	watchInterval time.Duration
	watchSettle   time.Duration
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 250*time.Millisecond, "how often to check the score for changes")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 500*time.Millisecond, "quiet period before re-rendering")
	watchCmd.Flags().StringVar(&renderOutDir, "out-dir", "", "output directory (default $SCORE_OUT_DIR or ./out)")
	watchCmd.Flags().BoolVar(&renderTies, "ties", false, "split unrepresentable durations into tied notes")
	watchCmd.Flags().BoolVar(&renderSnap, "snap", false, "move notes back onto the 1/16 beat grid first")
}

var watchCmd = &cobra.Command{
	Use:   "watch <score.json>",
	Short: "Re-renders a score whenever it changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir := renderOutDir
		if outDir == "" {
			outDir = constants.GetOutDir()
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		opts := renderOptions()
		return watch(ctx, args[0], watchInterval, watchSettle, func() {
			if _, err := renderFile(args[0], outDir, opts); err != nil {
				logrus.WithError(err).Warn("render failed")
			}
		})
	},
}

// watch polls path's modification time and calls onChange once a burst of
// writes has settled. It renders once up front and returns when ctx ends.
// Renders never overlap, and none starts after watch has returned.
func watch(ctx context.Context, path string, interval, settle time.Duration, onChange func()) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "could not watch score")
	}
	last := info.ModTime()

	var mu sync.Mutex
	done := false
	run := func() {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return
		}
		onChange()
	}
	run()

	debounced := debounce.New(settle)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log := logrus.WithField("score", path)
	for {
		select {
		case <-ctx.Done():
			// swap any pending render for a no-op, then wait out one in flight
			debounced(func() {})
			mu.Lock()
			done = true
			mu.Unlock()
			return nil
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				log.WithError(err).Debug("stat failed")
				continue
			}
			if info.ModTime().Equal(last) {
				continue
			}
			last = info.ModTime()
			log.Debug("score changed")
			debounced(run)
		}
	}
}
