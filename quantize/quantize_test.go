package quantize

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/jsphweid/melodyscore/model"
	"github.com/jsphweid/melodyscore/score"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(start, end, midi, loudness float64) model.Candidate {
	return model.Candidate{
		StartSeconds: start,
		EndSeconds:   end,
		Pitches: []model.PitchSample{
			{Midi: midi, Voiced: true},
			{Midi: midi, Voiced: true},
			{Midi: midi + 0.2, Voiced: true},
		},
		Confidence: 1,
		Loudness:   loudness,
	}
}

// at 60 BPM one second is one beat
func newQuantizer() *Quantizer {
	logger, _ := test.NewNullLogger()
	cfg := DefaultConfig(60)
	cfg.Log = logger
	return New(cfg)
}

func beats(r *big.Rat) string {
	return r.RatString()
}

func TestEmptyCandidatesGiveValidEmptyScore(t *testing.T) {
	s := newQuantizer().Score(nil)
	assert := assert.New(t)
	assert.Empty(s.Notes)
	assert.Equal(480, s.TicksPerBeat)
	assert.Equal(60.0, s.TempoBPM)
	assert.NoError(score.Validate(s))
}

func TestSnapTiesGoToEarlierGridLine(t *testing.T) {
	notes := newQuantizer().Quantize([]model.Candidate{
		cand(1.0/32, 1, 60, 0),
		cand(2+3.0/32, 3+1.0/32, 62, 0),
	})
	require.Len(t, notes, 2)
	assert := assert.New(t)
	assert.Equal("0", beats(notes[0].StartBeat))
	assert.Equal("1", beats(notes[0].DurationBeats))
	assert.Equal("33/16", beats(notes[1].StartBeat))
	assert.Equal("15/16", beats(notes[1].DurationBeats))
}

func TestSnapRoundsToNearest(t *testing.T) {
	notes := newQuantizer().Quantize([]model.Candidate{cand(0.04, 1.03, 60, 0)})
	require.Len(t, notes, 1)
	assert.Equal(t, "1/16", beats(notes[0].StartBeat))
	assert.Equal(t, "15/16", beats(notes[0].DurationBeats))
}

func TestTempoConvertsSecondsToBeats(t *testing.T) {
	cfg := DefaultConfig(120)
	cfg.Log, _ = test.NewNullLogger()
	notes := New(cfg).Quantize([]model.Candidate{cand(0.5, 1.25, 60, 0)})
	require.Len(t, notes, 1)
	assert.Equal(t, "1", beats(notes[0].StartBeat))
	assert.Equal(t, "3/2", beats(notes[0].DurationBeats))
}

func TestDropsShortAndUnvoicedCandidates(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	cfg := DefaultConfig(60)
	cfg.Log = logger
	unvoiced := cand(3, 4, 60, 0)
	for i := range unvoiced.Pitches {
		unvoiced.Pitches[i].Voiced = false
	}

	notes := New(cfg).Quantize([]model.Candidate{
		cand(0, 0.05, 60, 0),   // one grid step, below 0.10s
		cand(0.5, 0.52, 60, 0), // snaps to nothing
		cand(1, 1.125, 62, 0),  // two grid steps, kept
		unvoiced,               // no pitch
		cand(5, 6, 0.2, 0),     // rounds to pitch 0
	})
	require.Len(t, notes, 1)
	assert.Equal(t, 62, notes[0].Pitch)
	assert.Equal(t, "1/8", beats(notes[0].DurationBeats))

	var reasons []string
	for _, e := range hook.AllEntries() {
		reasons = append(reasons, e.Data["reason"].(string))
	}
	assert.Equal(t, []string{"below-audibility", "non-positive", "no-voiced-pitch", "pitch-out-of-range"}, reasons)
}

func TestLowConfidenceDropped(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := DefaultConfig(60)
	cfg.Log = logger
	cfg.MinConfidence = 0.5
	weak := cand(0, 1, 60, 0)
	weak.Confidence = 0.4
	notes := New(cfg).Quantize([]model.Candidate{weak, cand(1, 2, 62, 0)})
	require.Len(t, notes, 1)
	assert.Equal(t, 62, notes[0].Pitch)
}

func TestVelocityNormalization(t *testing.T) {
	notes := newQuantizer().Quantize([]model.Candidate{
		cand(0, 1, 60, 0),
		cand(1, 2, 60, 0.1),
		cand(2, 3, 60, 1.0),
		cand(3, 4, 60, -5),
	})
	require.Len(t, notes, 4)
	assert := assert.New(t)
	assert.Equal(55, notes[0].Velocity)
	assert.Equal(75, notes[1].Velocity)
	assert.Equal(105, notes[2].Velocity)
	assert.Equal(55, notes[3].Velocity)
}

func TestOverlapTrimsEarlierNote(t *testing.T) {
	notes := newQuantizer().Quantize([]model.Candidate{
		cand(0, 2, 60, 0),
		cand(1, 2, 62, 0),
	})
	require.Len(t, notes, 2)
	assert := assert.New(t)
	assert.Equal("1", beats(notes[0].DurationBeats))
	assert.Equal(62, notes[1].Pitch)
}

func TestSameStartLaterCandidateWins(t *testing.T) {
	notes := newQuantizer().Quantize([]model.Candidate{
		cand(0, 1, 60, 0),
		cand(0, 1, 64, 0),
	})
	require.Len(t, notes, 1)
	assert.Equal(t, 64, notes[0].Pitch)
}

func TestUnsortedCandidatesComeOutSorted(t *testing.T) {
	notes := newQuantizer().Quantize([]model.Candidate{
		cand(2, 3, 64, 0),
		cand(0, 1, 60, 0),
	})
	require.Len(t, notes, 2)
	assert.Equal(t, 60, notes[0].Pitch)
	assert.Equal(t, 64, notes[1].Pitch)
}

func TestQuantizedNotesNeverOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	q := newQuantizer()
	for round := 0; round < 50; round++ {
		var candidates []model.Candidate
		for i := 0; i < 40; i++ {
			start := rng.Float64() * 30
			candidates = append(candidates, cand(start, start+rng.Float64()*3, 40+float64(rng.Intn(40)), rng.Float64()))
		}
		s := q.Score(candidates)
		require.NoError(t, score.Validate(s))
		for i := 1; i < len(s.Notes); i++ {
			assert.True(t, s.Notes[i-1].EndBeat().Cmp(s.Notes[i].StartBeat) <= 0)
		}
	}
}

func TestRequantizeIsANoOpOnAlignedNotes(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	q := newQuantizer()
	var candidates []model.Candidate
	for i := 0; i < 60; i++ {
		start := rng.Float64() * 40
		candidates = append(candidates, cand(start, start+0.1+rng.Float64()*2, 60, rng.Float64()))
	}
	notes := q.Quantize(candidates)
	require.NotEmpty(t, notes)

	again := q.Requantize(notes)
	require.Len(t, again, len(notes))
	for i := range notes {
		assert.Equal(t, beats(notes[i].StartBeat), beats(again[i].StartBeat))
		assert.Equal(t, beats(notes[i].DurationBeats), beats(again[i].DurationBeats))
		assert.Equal(t, notes[i].Pitch, again[i].Pitch)
		assert.Equal(t, notes[i].Velocity, again[i].Velocity)
	}
}

func TestSnap(t *testing.T) {
	cases := []struct {
		in   *big.Rat
		want int64
	}{
		{big.NewRat(0, 1), 0},
		{big.NewRat(1, 32), 0},
		{big.NewRat(3, 64), 1},
		{big.NewRat(3, 32), 1},
		{big.NewRat(5, 32), 2},
		{big.NewRat(7, 2), 56},
		{big.NewRat(-1, 64), 0},
		{big.NewRat(-3, 64), -1},
	}
	for _, c := range cases {
		t.Run(c.in.RatString(), func(t *testing.T) {
			assert.Equal(t, c.want, snap(c.in))
		})
	}
}

func TestRequantizeSnapsAndDropsBrokenNotes(t *testing.T) {
	notes := newQuantizer().Requantize([]model.Note{
		{StartBeat: big.NewRat(1, 100), DurationBeats: big.NewRat(1, 1), Pitch: 60, Velocity: 70},
		{Pitch: 61, Velocity: 70},
		{StartBeat: big.NewRat(3, 1), DurationBeats: big.NewRat(1, 100), Pitch: 62, Velocity: 70},
	})
	require.Len(t, notes, 1)
	assert.Equal(t, "0", beats(notes[0].StartBeat))
	assert.Equal(t, "1", beats(notes[0].DurationBeats))
}
