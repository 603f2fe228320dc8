package score

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"os"

	"github.com/jsphweid/melodyscore/constants"
	"github.com/jsphweid/melodyscore/model"
	"github.com/pkg/errors"
)

// InvalidScoreError reports the first broken invariant. Index is the
// offending note, or -1 when the metadata itself is wrong.
type InvalidScoreError struct {
	Index  int
	Field  string
	Reason string
}

func (e *InvalidScoreError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid score: %v: %v", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid score: note %v: %v: %v", e.Index, e.Field, e.Reason)
}

func invalid(index int, field string, format string, args ...any) error {
	return &InvalidScoreError{Index: index, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// New returns an empty score with default metadata.
func New(tempoBPM float64) model.Score {
	return model.Score{
		Version:  constants.ScoreVersion,
		Title:    constants.DefaultTitle,
		TempoBPM: tempoBPM,
		TimeSignature: model.TimeSignature{
			Beats:    constants.DefaultBeatsPerMeasure,
			BeatType: constants.DefaultBeatType,
		},
		TicksPerBeat: constants.TicksPerBeat,
		Quantization: &model.Quantization{Grid: fmt.Sprintf("1/%d", constants.GridDivisions)},
		KeySignature: model.KeySignature{Fifths: 0, Mode: "major"},
		Notes:        []model.Note{},
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// OnGrid reports whether r is an exact multiple of 1/GridDivisions.
func OnGrid(r *big.Rat) bool {
	scaled := new(big.Rat).Mul(r, big.NewRat(constants.GridDivisions, 1))
	return scaled.IsInt()
}

// Validate checks every structural invariant a renderer relies on.
func Validate(s model.Score) error {
	if !(s.TempoBPM > 0) {
		return invalid(-1, "tempo_bpm", "must be positive, got %v", s.TempoBPM)
	}
	if micros := MicrosPerBeat(s.TempoBPM); micros < 1 || micros > constants.MaxMicrosPerBeat {
		return invalid(-1, "tempo_bpm", "%v is outside the MIDI tempo range", s.TempoBPM)
	}
	if s.TimeSignature.Beats <= 0 || s.TimeSignature.Beats > constants.MaxTimeSignatureValue {
		return invalid(-1, "time_signature.beats", "must be in [1,%v], got %v", constants.MaxTimeSignatureValue, s.TimeSignature.Beats)
	}
	if !isPowerOfTwo(s.TimeSignature.BeatType) || s.TimeSignature.BeatType > constants.MaxTimeSignatureValue {
		return invalid(-1, "time_signature.beat_type", "must be a power of two up to %v, got %v", constants.MaxTimeSignatureValue, s.TimeSignature.BeatType)
	}
	if s.TicksPerBeat != constants.TicksPerBeat {
		return invalid(-1, "ticks_per_beat", "must be %v, got %v", constants.TicksPerBeat, s.TicksPerBeat)
	}
	if s.KeySignature.Fifths < -7 || s.KeySignature.Fifths > 7 {
		return invalid(-1, "key_signature.fifths", "must be in [-7,7], got %v", s.KeySignature.Fifths)
	}

	var prevEnd *big.Rat
	for i, n := range s.Notes {
		if n.StartBeat == nil || n.DurationBeats == nil {
			return invalid(i, "start_beat", "missing timing")
		}
		if n.StartBeat.Sign() < 0 {
			return invalid(i, "start_beat", "negative start %v", n.StartBeat.RatString())
		}
		if n.DurationBeats.Sign() <= 0 {
			return invalid(i, "duration_beats", "must be positive, got %v", n.DurationBeats.RatString())
		}
		if !OnGrid(n.StartBeat) {
			return invalid(i, "start_beat", "%v is not on the 1/%d grid", n.StartBeat.RatString(), constants.GridDivisions)
		}
		if !OnGrid(n.DurationBeats) {
			return invalid(i, "duration_beats", "%v is not on the 1/%d grid", n.DurationBeats.RatString(), constants.GridDivisions)
		}
		if n.Pitch < 0 || n.Pitch > 127 {
			return invalid(i, "midi_note", "out of range: %v", n.Pitch)
		}
		if n.Velocity < 1 || n.Velocity > 127 {
			return invalid(i, "velocity", "out of range: %v", n.Velocity)
		}
		if prevEnd != nil && prevEnd.Cmp(n.StartBeat) > 0 {
			return invalid(i, "start_beat", "overlaps previous note ending at %v", prevEnd.RatString())
		}
		prevEnd = n.EndBeat()
	}
	return nil
}

// MicrosPerBeat is the MIDI tempo for a BPM value, rounded to the nearest
// microsecond.
func MicrosPerBeat(tempoBPM float64) float64 {
	return math.Round(60_000_000 / tempoBPM)
}

// BeatsToTicks converts beats to ticks, rounding half away from zero.
func BeatsToTicks(beats *big.Rat, ticksPerBeat int) int64 {
	scaled := new(big.Rat).Mul(beats, big.NewRat(int64(ticksPerBeat), 1))
	num := new(big.Int).Set(scaled.Num())
	den := scaled.Denom()
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	// |r|*2 >= den rounds away from zero
	r.Abs(r).Lsh(r, 1)
	if r.Cmp(den) >= 0 {
		if num.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return q.Int64()
}

// MeasureTicks is the fixed length of one measure.
func MeasureTicks(s model.Score) int64 {
	return int64(s.TimeSignature.Beats) * int64(s.TicksPerBeat)
}

// Span returns a note's absolute start and end tick.
func Span(s model.Score, n model.Note) (int64, int64) {
	start := BeatsToTicks(n.StartBeat, s.TicksPerBeat)
	return start, start + BeatsToTicks(n.DurationBeats, s.TicksPerBeat)
}

func Decode(r io.Reader) (model.Score, error) {
	var s model.Score
	dec := json.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		return s, errors.Wrap(err, "could not decode score")
	}
	return s, nil
}

func Load(path string) (model.Score, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Score{}, errors.Wrap(err, "could not open score")
	}
	defer f.Close()
	return Decode(f)
}

func Encode(s model.Score) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, errors.Wrap(err, "could not encode score")
	}
	return buf.Bytes(), nil
}

func Save(path string, s model.Score) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "could not write %v", path)
}
