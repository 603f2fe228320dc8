package model

type SegmentKind uint8

const (
	SegmentRest SegmentKind = iota
	SegmentNote
)

func (k SegmentKind) String() string {
	if k == SegmentNote {
		return "note"
	}
	return "rest"
}

// Segment is a rest or a (possibly split) note inside one measure.
// StartTick is absolute, from the beginning of the score.
type Segment struct {
	Kind          SegmentKind
	StartTick     int64
	DurationTicks int64
	Pitch         int

	// NoteIndex points back into Score.Notes, -1 for rests.
	NoteIndex int
	TieStart  bool
	TieStop   bool
}

func (s Segment) EndTick() int64 {
	return s.StartTick + s.DurationTicks
}

type Measure struct {
	Number    int
	StartTick int64
	Segments  []Segment
}

func (m Measure) TotalTicks() int64 {
	var total int64
	for _, s := range m.Segments {
		total += s.DurationTicks
	}
	return total
}
