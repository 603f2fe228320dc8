// Package analysis turns frame-level audio analysis into note candidates.
//
// The analysis document is produced by an external pitch/onset tracker.
// Onsets (plus the start and end of the audio) bound the candidate
// segments; pitch frames falling inside a segment become its pitch samples.
package analysis

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/jsphweid/melodyscore/constants"
	"github.com/jsphweid/melodyscore/model"
	"github.com/jsphweid/melodyscore/util"
	"github.com/pkg/errors"
)

type Analysis struct {
	AudioPath       string    `json:"audio_path,omitempty"`
	SampleRate      int       `json:"sr,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	TempoBPM        float64   `json:"tempo_bpm"`
	BeatTimes       []float64 `json:"beat_times_seconds,omitempty"`
	OnsetTimes      []float64 `json:"onset_times_seconds"`
	PitchMidi       []float64 `json:"pyin_midi_float"`
	Voiced          []bool    `json:"pyin_voiced_flag"`
	VoicedProbs     []float64 `json:"pyin_voiced_probs,omitempty"`
	RMS             []float64 `json:"rms"`
	RMSTimes        []float64 `json:"rms_times_seconds,omitempty"`
}

type Options struct {
	// segments with fewer voiced frames than this are treated as rests
	MinVoicedRatio float64
}

func DefaultOptions() Options {
	return Options{MinVoicedRatio: 0.3}
}

func Load(path string) (Analysis, error) {
	var a Analysis
	data, err := os.ReadFile(path)
	if err != nil {
		return a, errors.Wrap(err, "could not read analysis")
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return a, errors.Wrap(err, "could not decode analysis")
	}
	return a, nil
}

// Tempo falls back to the default when the tracker found no beat.
func (a Analysis) Tempo() float64 {
	if a.TempoBPM > 0 {
		return a.TempoBPM
	}
	return constants.DefaultTempoBPM
}

func linspace(end float64, n int) []float64 {
	res := make([]float64, n)
	if n < 2 {
		return res
	}
	for i := range res {
		res[i] = end * float64(i) / float64(n-1)
	}
	return res
}

// interp linearly interpolates (xs, ys) at x, holding the end values
// outside the range. xs must be ascending.
func interp(x float64, xs, ys []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	i := sort.SearchFloat64s(xs, x)
	x0, x1 := xs[i-1], xs[i]
	if x1 == x0 {
		return ys[i]
	}
	return ys[i-1] + (ys[i]-ys[i-1])*(x-x0)/(x1-x0)
}

func (a Analysis) boundaries() []float64 {
	seen := map[float64]bool{0: true, a.DurationSeconds: true}
	for _, t := range a.OnsetTimes {
		if t >= 0 && t <= a.DurationSeconds {
			seen[t] = true
		}
	}
	return util.GetKeys(seen)
}

func (a Analysis) loudness(frameTimes []float64) []float64 {
	rmsTimes := a.RMSTimes
	if len(rmsTimes) != len(a.RMS) {
		rmsTimes = linspace(a.DurationSeconds, len(a.RMS))
	}
	res := make([]float64, len(frameTimes))
	for i, t := range frameTimes {
		res[i] = interp(t, rmsTimes, a.RMS)
	}
	return res
}

// Candidates segments the analysis at onsets.
func (a Analysis) Candidates(opts Options) []model.Candidate {
	n := len(a.PitchMidi)
	if n == 0 || a.DurationSeconds <= 0 {
		return nil
	}
	frameTimes := linspace(a.DurationSeconds, n)
	loudness := a.loudness(frameTimes)
	hasProbs := len(a.VoicedProbs) == n

	var res []model.Candidate
	bounds := a.boundaries()
	for i := 0; i+1 < len(bounds); i++ {
		start, end := bounds[i], bounds[i+1]
		c := model.Candidate{StartSeconds: start, EndSeconds: end}
		var frames, voiced int
		var rms, probs []float64
		for f, t := range frameTimes {
			if t < start || t >= end {
				continue
			}
			frames++
			isVoiced := f < len(a.Voiced) && a.Voiced[f]
			if isVoiced {
				voiced++
			}
			c.Pitches = append(c.Pitches, model.PitchSample{Midi: a.PitchMidi[f], Voiced: isVoiced})
			rms = append(rms, loudness[f])
			if hasProbs {
				probs = append(probs, a.VoicedProbs[f])
			}
		}
		if frames == 0 {
			continue
		}
		ratio := float64(voiced) / float64(frames)
		if ratio < opts.MinVoicedRatio {
			continue
		}
		c.Loudness = util.Mean(rms)
		c.Confidence = ratio
		if hasProbs {
			c.Confidence = util.Mean(probs)
		}
		res = append(res, c)
	}
	return res
}
