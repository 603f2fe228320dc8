package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jsphweid/melodyscore/analysis"
	"github.com/jsphweid/melodyscore/model"
	"github.com/jsphweid/melodyscore/quantize"
	"github.com/jsphweid/melodyscore/score"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type quantizeFlags struct {
	out            string
	tempo          float64
	beats          int
	beatType       int
	fifths         int
	title          string
	resolver       string
	minVoiced      float64
	minConfidence  float64
	minPitch       int
	maxPitch       int
	fromCandidates bool
}

var qf quantizeFlags

func init() {
	rootCmd.AddCommand(quantizeCmd)
	f := quantizeCmd.Flags()
	f.StringVarP(&qf.out, "out", "o", "", "output score path (default score.json next to the input)")
	f.Float64Var(&qf.tempo, "tempo", 0, "override the analysed tempo in BPM")
	f.IntVar(&qf.beats, "beats", 4, "beats per measure")
	f.IntVar(&qf.beatType, "beat-type", 4, "beat unit (power of two)")
	f.IntVar(&qf.fifths, "fifths", 0, "key signature in fifths")
	f.StringVar(&qf.title, "title", "", "score title")
	f.StringVar(&qf.resolver, "resolver", "median", "pitch resolver (median, mode)")
	f.Float64Var(&qf.minVoiced, "min-voiced", analysis.DefaultOptions().MinVoicedRatio, "minimum voiced frame ratio per segment")
	f.Float64Var(&qf.minConfidence, "min-confidence", 0, "minimum candidate confidence")
	f.IntVar(&qf.minPitch, "min-pitch", 1, "lowest accepted MIDI pitch")
	f.IntVar(&qf.maxPitch, "max-pitch", 127, "highest accepted MIDI pitch")
	f.BoolVar(&qf.fromCandidates, "candidates", false, "input is a candidate list rather than a frame analysis")
}

var quantizeCmd = &cobra.Command{
	Use:   "quantize <analysis.json>",
	Short: "Quantizes an audio analysis into a score",
	Long: `Segments a frame-level audio analysis at its onsets, snaps every segment
onto the 1/16 beat grid and writes the resulting score as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuantize(args[0], qf)
	},
}

func loadCandidates(path string, fromCandidates bool, opts analysis.Options) ([]model.Candidate, float64, error) {
	if fromCandidates {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, 0, errors.Wrap(err, "could not read candidates")
		}
		var body model.QuantizeRequestBody
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, 0, errors.Wrap(err, "could not decode candidates")
		}
		return body.Candidates, body.TempoBPM, nil
	}
	a, err := analysis.Load(path)
	if err != nil {
		return nil, 0, err
	}
	return a.Candidates(opts), a.Tempo(), nil
}

func quantizeConfig(f quantizeFlags, tempo float64) (quantize.Config, error) {
	if f.tempo > 0 {
		tempo = f.tempo
	}
	cfg := quantize.DefaultConfig(tempo)
	resolver, ok := quantize.ResolverByName(f.resolver)
	if !ok {
		return cfg, errors.Errorf("unknown resolver %q", f.resolver)
	}
	cfg.Resolver = resolver
	cfg.TimeSignature = model.TimeSignature{Beats: f.beats, BeatType: f.beatType}
	cfg.KeySignature.Fifths = f.fifths
	if f.title != "" {
		cfg.Title = f.title
	}
	cfg.MinConfidence = f.minConfidence
	cfg.MinPitch = f.minPitch
	cfg.MaxPitch = f.maxPitch
	cfg.Log = logrus.StandardLogger()
	return cfg, nil
}

func runQuantize(path string, f quantizeFlags) error {
	opts := analysis.DefaultOptions()
	opts.MinVoicedRatio = f.minVoiced
	candidates, tempo, err := loadCandidates(path, f.fromCandidates, opts)
	if err != nil {
		return err
	}
	cfg, err := quantizeConfig(f, tempo)
	if err != nil {
		return err
	}
	s := quantize.New(cfg).Score(candidates)
	if err := score.Validate(s); err != nil {
		return err
	}

	out := f.out
	if out == "" {
		out = filepath.Join(filepath.Dir(path), "score.json")
	}
	if err := score.Save(out, s); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"notes":      len(s.Notes),
		"tempo":      s.TempoBPM,
		"out":        out,
	}).Info("wrote score")
	return nil
}
