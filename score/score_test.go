package score

import (
	"encoding/json"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/jsphweid/melodyscore/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func note(start, dur string, pitch int) model.Note {
	s, _ := new(big.Rat).SetString(start)
	d, _ := new(big.Rat).SetString(dur)
	return model.Note{StartBeat: s, DurationBeats: d, Pitch: pitch, Velocity: 80}
}

func TestValidateAcceptsGridAlignedTouchingNotes(t *testing.T) {
	s := New(120)
	s.Notes = []model.Note{note("0", "1", 60), note("1", "1/16", 62), note("17/16", "3/2", 0)}
	assert.NoError(t, Validate(s))
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(s *model.Score)
		field string
		index int
	}{
		{"zero tempo", func(s *model.Score) { s.TempoBPM = 0 }, "tempo_bpm", -1},
		{"beat type not power of two", func(s *model.Score) { s.TimeSignature.BeatType = 3 }, "time_signature.beat_type", -1},
		{"zero beats", func(s *model.Score) { s.TimeSignature.Beats = 0 }, "time_signature.beats", -1},
		{"tempo below MIDI range", func(s *model.Score) { s.TempoBPM = 2 }, "tempo_bpm", -1},
		{"beats past one byte", func(s *model.Score) { s.TimeSignature.Beats = 256 }, "time_signature.beats", -1},
		{"beat type past one byte", func(s *model.Score) { s.TimeSignature.BeatType = 256 }, "time_signature.beat_type", -1},
		{"ticks per beat", func(s *model.Score) { s.TicksPerBeat = 96 }, "ticks_per_beat", -1},
		{"fifths", func(s *model.Score) { s.KeySignature.Fifths = 8 }, "key_signature.fifths", -1},
		{"overlap", func(s *model.Score) {
			s.Notes = []model.Note{note("0", "2", 60), note("1", "1", 62)}
		}, "start_beat", 1},
		{"off grid start", func(s *model.Score) {
			s.Notes = []model.Note{note("1/3", "1", 60)}
		}, "start_beat", 0},
		{"off grid duration", func(s *model.Score) {
			s.Notes = []model.Note{note("0", "1/10", 60)}
		}, "duration_beats", 0},
		{"zero duration", func(s *model.Score) {
			s.Notes = []model.Note{note("0", "0", 60)}
		}, "duration_beats", 0},
		{"negative start", func(s *model.Score) {
			s.Notes = []model.Note{note("-1", "1", 60)}
		}, "start_beat", 0},
		{"pitch", func(s *model.Score) {
			s.Notes = []model.Note{note("0", "1", 128)}
		}, "midi_note", 0},
		{"velocity", func(s *model.Score) {
			n := note("0", "1", 60)
			n.Velocity = 0
			s.Notes = []model.Note{n}
		}, "velocity", 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := New(120)
			c.edit(&s)
			err := Validate(s)

			var invalid *InvalidScoreError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert := assert.New(t)
			assert.Equal(c.field, invalid.Field)
			assert.Equal(c.index, invalid.Index)
		})
	}
}

func TestValidateAcceptsSlowestMIDITempo(t *testing.T) {
	s := New(3.6)
	s.TimeSignature = model.TimeSignature{Beats: 255, BeatType: 128}
	assert.NoError(t, Validate(s))
	assert.Equal(t, 16666667.0, MicrosPerBeat(3.6))
}

func TestBeatsToTicks(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(int64(1680), BeatsToTicks(big.NewRat(7, 2), 480))
	assert.Equal(int64(30), BeatsToTicks(big.NewRat(1, 16), 480))
	assert.Equal(int64(0), BeatsToTicks(big.NewRat(1, 1000), 480))
	assert.Equal(int64(1), BeatsToTicks(big.NewRat(1, 960), 480))
	assert.Equal(int64(-1), BeatsToTicks(big.NewRat(-1, 960), 480))
}

func TestMeasureTicks(t *testing.T) {
	s := New(120)
	s.TimeSignature = model.TimeSignature{Beats: 3, BeatType: 4}
	assert.Equal(t, int64(1440), MeasureTicks(s))
}

func TestNoteJSONUsesPlainNumbers(t *testing.T) {
	data, err := json.Marshal(note("7/2", "1/16", 60))
	require.NoError(t, err)
	assert.JSONEq(t, `{"start_beat":3.5,"duration_beats":0.0625,"midi_note":60,"velocity":80}`, string(data))

	var back model.Note
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "7/2", back.StartBeat.RatString())
	assert.Equal(t, "1/16", back.DurationBeats.RatString())
}

func TestNoteJSONRequiresTiming(t *testing.T) {
	var n model.Note
	err := json.Unmarshal([]byte(`{"duration_beats":1,"midi_note":60,"velocity":80}`), &n)
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	s := New(96.5)
	s.Title = "Hotline"
	s.Notes = []model.Note{note("0", "3/2", 64), note("2", "1/4", 67)}
	path := filepath.Join(t.TempDir(), "score.json")
	require.NoError(t, Save(path, s))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert := assert.New(t)
	assert.Equal("Hotline", loaded.Title)
	assert.Equal(96.5, loaded.TempoBPM)
	assert.Equal(480, loaded.TicksPerBeat)
	assert.Len(loaded.Notes, 2)
	assert.Equal(0, loaded.Notes[1].StartBeat.Cmp(big.NewRat(2, 1)))
	assert.NoError(Validate(loaded))
}
