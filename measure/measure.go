package measure

import (
	"github.com/jsphweid/melodyscore/model"
	"github.com/jsphweid/melodyscore/score"
)

type cursor struct {
	measures []model.Measure
	length   int64
	pos      int64
}

func (c *cursor) current() *model.Measure {
	return &c.measures[len(c.measures)-1]
}

func (c *cursor) boundary() int64 {
	return c.current().StartTick + c.length
}

func (c *cursor) nextMeasure() {
	start := int64(len(c.measures)) * c.length
	c.measures = append(c.measures, model.Measure{Number: len(c.measures) + 1, StartTick: start})
}

// fill emits segments up to tick, opening new measures at each boundary.
// A note crossing a boundary is split with tie flags on both sides.
func (c *cursor) fill(until int64, kind model.SegmentKind, pitch int, noteIndex int) {
	first := true
	for c.pos < until {
		if c.pos == c.boundary() {
			c.nextMeasure()
		}
		end := until
		if end > c.boundary() {
			end = c.boundary()
		}
		seg := model.Segment{
			Kind:          kind,
			StartTick:     c.pos,
			DurationTicks: end - c.pos,
			Pitch:         pitch,
			NoteIndex:     noteIndex,
		}
		if kind == model.SegmentNote {
			seg.TieStop = !first
			seg.TieStart = end < until
		}
		m := c.current()
		m.Segments = append(m.Segments, seg)
		c.pos = end
		first = false
	}
}

// Split partitions a validated score into complete measures. Gaps and
// explicit rest notes become rest segments; every measure sums to exactly
// beats_per_measure * ticks_per_beat ticks.
func Split(s model.Score) []model.Measure {
	length := score.MeasureTicks(s)
	c := &cursor{length: length}
	c.nextMeasure()

	for i, n := range s.Notes {
		start, end := score.Span(s, n)
		c.fill(start, model.SegmentRest, 0, -1)
		if n.IsRest() {
			c.fill(end, model.SegmentRest, 0, -1)
			continue
		}
		c.fill(end, model.SegmentNote, n.Pitch, i)
	}

	// pad out the last measure
	c.fill(c.boundary(), model.SegmentRest, 0, -1)
	return c.measures
}

// NoteTicks sums every segment back per source note. Used to check that
// splitting conserves duration.
func NoteTicks(measures []model.Measure) map[int]int64 {
	res := make(map[int]int64)
	for _, m := range measures {
		for _, seg := range m.Segments {
			if seg.Kind == model.SegmentNote {
				res[seg.NoteIndex] += seg.DurationTicks
			}
		}
	}
	return res
}
