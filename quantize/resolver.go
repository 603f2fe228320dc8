package quantize

import (
	"math"
	"sort"

	"github.com/jsphweid/melodyscore/model"
)

// PitchResolver picks one representative MIDI pitch for a candidate.
// ok is false when the candidate has no usable voiced samples.
type PitchResolver interface {
	Resolve(c model.Candidate) (pitch int, ok bool)
}

func voicedPitches(c model.Candidate) []float64 {
	var res []float64
	for _, p := range c.Pitches {
		if p.Voiced && p.Midi > 0 {
			res = append(res, p.Midi)
		}
	}
	return res
}

// MedianPitch rounds the median of the voiced samples.
type MedianPitch struct{}

func (MedianPitch) Resolve(c model.Candidate) (int, bool) {
	pitches := voicedPitches(c)
	if len(pitches) == 0 {
		return 0, false
	}
	sort.Float64s(pitches)
	mid := len(pitches) / 2
	median := pitches[mid]
	if len(pitches)%2 == 0 {
		median = (pitches[mid-1] + pitches[mid]) / 2
	}
	return int(math.Round(median)), true
}

// ModePitch takes the most frequent rounded pitch, lowest pitch on ties.
type ModePitch struct{}

func (ModePitch) Resolve(c model.Candidate) (int, bool) {
	pitches := voicedPitches(c)
	if len(pitches) == 0 {
		return 0, false
	}
	counts := make(map[int]int)
	for _, p := range pitches {
		counts[int(math.Round(p))]++
	}
	best, bestCount := 0, 0
	for pitch, count := range counts {
		if count > bestCount || (count == bestCount && pitch < best) {
			best, bestCount = pitch, count
		}
	}
	return best, true
}

// ResolverByName maps a CLI/API name to a resolver.
func ResolverByName(name string) (PitchResolver, bool) {
	switch name {
	case "", "median":
		return MedianPitch{}, true
	case "mode":
		return ModePitch{}, true
	}
	return nil, false
}
