package cmd

import (
	"os"
	"path/filepath"

	"github.com/jsphweid/melodyscore/constants"
	"github.com/jsphweid/melodyscore/musicxml"
	"github.com/jsphweid/melodyscore/render"
	"github.com/jsphweid/melodyscore/score"
	"github.com/jsphweid/melodyscore/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	renderOutDir string
	renderTies   bool
	renderSnap   bool
)

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVar(&renderOutDir, "out-dir", "", "output directory (default $SCORE_OUT_DIR or ./out)")
	renderCmd.Flags().BoolVar(&renderTies, "ties", false, "split unrepresentable durations into tied notes")
	renderCmd.Flags().BoolVar(&renderSnap, "snap", false, "move notes back onto the 1/16 beat grid first")
}

func renderOptions() render.Options {
	return render.Options{Notation: musicxml.Options{AllowTies: renderTies}, Snap: renderSnap}
}

var renderCmd = &cobra.Command{
	Use:   "render <score.json>",
	Short: "Renders a score to MusicXML and MIDI",
	Long:  `Renders a score to <name>.musicxml and <name>.mid. Nothing is written unless both render.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir := renderOutDir
		if outDir == "" {
			outDir = constants.GetOutDir()
		}
		_, err := renderFile(args[0], outDir, renderOptions())
		return err
	},
}

// renderFile returns the paths it wrote.
func renderFile(path string, outDir string, opts render.Options) ([]string, error) {
	s, err := score.Load(path)
	if err != nil {
		return nil, err
	}
	res, err := render.Render(s, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "could not render %v", path)
	}
	if err := util.EnsureDir(outDir); err != nil {
		return nil, err
	}

	name := util.BaseName(path)
	xmlPath := filepath.Join(outDir, name+".musicxml")
	midPath := filepath.Join(outDir, name+".mid")
	if err := writeAll(map[string][]byte{xmlPath: res.MusicXML, midPath: res.Midi}); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"notes":    len(s.Notes),
		"measures": len(res.Measures),
		"events":   len(res.Events.Events),
		"musicxml": xmlPath,
		"midi":     midPath,
	}).Info("rendered score")
	return []string{xmlPath, midPath}, nil
}

// writeAll stages every file next to its destination and only renames once
// all of them are written. A failed rename removes whatever already landed.
func writeAll(files map[string][]byte) error {
	staged := make(map[string]string)
	defer func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}()
	for _, dest := range util.GetKeys(files) {
		f, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
		if err != nil {
			return errors.Wrapf(err, "could not stage %v", dest)
		}
		staged[dest] = f.Name()
		_, err = f.Write(files[dest])
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return errors.Wrapf(err, "write failed for %v", dest)
		}
		if err := os.Chmod(f.Name(), 0644); err != nil {
			return errors.Wrapf(err, "could not chmod %v", dest)
		}
	}

	var landed []string
	for _, dest := range util.GetKeys(files) {
		if err := os.Rename(staged[dest], dest); err != nil {
			for _, done := range landed {
				os.Remove(done)
			}
			return errors.Wrapf(err, "could not move %v into place", dest)
		}
		delete(staged, dest)
		landed = append(landed, dest)
	}
	return nil
}
