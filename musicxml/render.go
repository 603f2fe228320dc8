package musicxml

import (
	"fmt"

	"github.com/jsphweid/melodyscore/constants"
	"github.com/jsphweid/melodyscore/duration"
	"github.com/jsphweid/melodyscore/model"
	"github.com/jsphweid/melodyscore/score"
	"github.com/pkg/errors"
)

const (
	PartId   = "P1"
	PartName = "Piano"
)

// Spelling is sharps-only. Key-aware spelling would need the key
// signature to choose between enharmonics.
var pitchClasses = [12]struct {
	step  string
	alter int
}{
	{"C", 0}, {"C", 1}, {"D", 0}, {"D", 1}, {"E", 0}, {"F", 0},
	{"F", 1}, {"G", 0}, {"G", 1}, {"A", 0}, {"A", 1}, {"B", 0},
}

var stepOffsets = map[string]int{"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11}

func SpellPitch(midiNote int) Pitch {
	pc := pitchClasses[midiNote%12]
	return Pitch{Step: pc.step, Alter: pc.alter, Octave: midiNote/12 - 1}
}

type Options struct {
	// AllowTies splits durations outside the vocabulary into tied pieces
	// instead of failing.
	AllowTies bool
}

// UnrepresentableDurationError locates a segment whose length has no
// notated value. Measure is 1-based; ticks are absolute.
type UnrepresentableDurationError struct {
	Measure   int
	StartTick int64
	EndTick   int64
	Ticks     int64
	err       error
}

func (e *UnrepresentableDurationError) Error() string {
	return fmt.Sprintf("measure %v, ticks %v-%v: %v", e.Measure, e.StartTick, e.EndTick, e.err)
}

func (e *UnrepresentableDurationError) Unwrap() error {
	return e.err
}

// MeasureLengthError means the measure splitter produced an incomplete
// measure.
type MeasureLengthError struct {
	Measure int
	Want    int64
	Got     int64
}

func (e *MeasureLengthError) Error() string {
	return fmt.Sprintf("measure %v renders %v ticks, want %v", e.Measure, e.Got, e.Want)
}

func attributes(s model.Score) *Attributes {
	return &Attributes{
		Divisions: s.TicksPerBeat,
		Key:       Key{Fifths: s.KeySignature.Fifths, Mode: s.KeySignature.Mode},
		Time:      Time{Beats: s.TimeSignature.Beats, BeatType: s.TimeSignature.BeatType},
		Clef:      Clef{Sign: "G", Line: 2},
	}
}

func (r *renderer) pieces(m model.Measure, seg model.Segment) ([]duration.Notated, error) {
	var pieces []duration.Notated
	var err error
	// long rests become consecutive rests, never tied
	if r.opts.AllowTies || seg.Kind == model.SegmentRest {
		pieces, err = duration.DecomposeTied(seg.DurationTicks, r.ticksPerBeat)
	} else {
		var n duration.Notated
		n, err = duration.Decompose(seg.DurationTicks, r.ticksPerBeat)
		pieces = []duration.Notated{n}
	}
	if err != nil {
		return nil, &UnrepresentableDurationError{
			Measure:   m.Number,
			StartTick: seg.StartTick,
			EndTick:   seg.EndTick(),
			Ticks:     seg.DurationTicks,
			err:       err,
		}
	}
	return pieces, nil
}

type renderer struct {
	opts         Options
	ticksPerBeat int
}

func tieMarks(start, stop bool) ([]Tie, *Notations) {
	var ties []Tie
	if stop {
		ties = append(ties, Tie{Type: "stop"})
	}
	if start {
		ties = append(ties, Tie{Type: "start"})
	}
	if len(ties) == 0 {
		return nil, nil
	}
	return ties, &Notations{Tied: ties}
}

func (r *renderer) notes(m model.Measure, seg model.Segment) ([]Note, error) {
	pieces, err := r.pieces(m, seg)
	if err != nil {
		return nil, err
	}
	var res []Note
	for i, p := range pieces {
		n := Note{Duration: p.Ticks, Type: p.Type}
		for d := 0; d < p.Dots; d++ {
			n.Dots = append(n.Dots, Empty{})
		}
		if seg.Kind == model.SegmentRest {
			n.Rest = &Empty{}
		} else {
			pitch := SpellPitch(seg.Pitch)
			n.Pitch = &pitch
			stop := seg.TieStop || i > 0
			start := seg.TieStart || i < len(pieces)-1
			n.Ties, n.Notations = tieMarks(start, stop)
		}
		res = append(res, n)
	}
	return res, nil
}

// Render builds the notation document from measures produced by
// measure.Split for the same score.
func Render(s model.Score, measures []model.Measure, opts Options) (*Document, error) {
	r := &renderer{opts: opts, ticksPerBeat: s.TicksPerBeat}
	want := score.MeasureTicks(s)
	title := s.Title
	if title == "" {
		title = constants.DefaultTitle
	}
	doc := &Document{
		Version:  "4.0",
		Title:    title,
		PartList: PartList{ScoreParts: []ScorePart{{Id: PartId, Name: PartName}}},
	}
	part := Part{Id: PartId}
	for i, m := range measures {
		out := Measure{Number: m.Number}
		if i == 0 {
			out.Attributes = attributes(s)
		}
		for _, seg := range m.Segments {
			notes, err := r.notes(m, seg)
			if err != nil {
				return nil, err
			}
			out.Notes = append(out.Notes, notes...)
		}
		if got := out.TotalDuration(); got != want {
			return nil, errors.WithStack(&MeasureLengthError{Measure: m.Number, Want: want, Got: got})
		}
		part.Measures = append(part.Measures, out)
	}
	doc.Parts = []Part{part}
	return doc, nil
}
