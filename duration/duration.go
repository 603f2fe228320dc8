package duration

import (
	"github.com/pkg/errors"
)

var ErrUnrepresentableDuration = errors.New("unrepresentable duration")

// Notated is a note value from the closed vocabulary.
type Notated struct {
	Type  string
	Dots  int
	Ticks int64
}

// entry lengths are num/den of a beat
type entry struct {
	num, den int64
	typ      string
	dots     int
}

// vocabulary is ordered longest first; DecomposeTied depends on that.
var vocabulary = []entry{
	{6, 1, "whole", 1},
	{4, 1, "whole", 0},
	{3, 1, "half", 1},
	{2, 1, "half", 0},
	{3, 2, "quarter", 1},
	{1, 1, "quarter", 0},
	{3, 4, "eighth", 1},
	{1, 2, "eighth", 0},
	{3, 8, "16th", 1},
	{1, 4, "16th", 0},
}

func (e entry) ticks(ticksPerBeat int) (int64, bool) {
	t := e.num * int64(ticksPerBeat)
	if t%e.den != 0 {
		return 0, false
	}
	return t / e.den, true
}

// Vocabulary lists every representable value at the given resolution,
// longest first.
func Vocabulary(ticksPerBeat int) []Notated {
	var res []Notated
	for _, e := range vocabulary {
		if t, ok := e.ticks(ticksPerBeat); ok {
			res = append(res, Notated{Type: e.typ, Dots: e.dots, Ticks: t})
		}
	}
	return res
}

// Decompose maps an exact tick length to one notated value.
func Decompose(ticks int64, ticksPerBeat int) (Notated, error) {
	if ticks > 0 {
		for _, n := range Vocabulary(ticksPerBeat) {
			if n.Ticks == ticks {
				return n, nil
			}
		}
	}
	return Notated{}, errors.Wrapf(ErrUnrepresentableDuration, "%v ticks at %v per beat", ticks, ticksPerBeat)
}

// DecomposeTied splits ticks into vocabulary pieces meant to be joined
// with ties. Longer pieces are tried first, backing off to shorter ones
// when a remainder would be left that no combination can fill.
func DecomposeTied(ticks int64, ticksPerBeat int) ([]Notated, error) {
	n, err := Decompose(ticks, ticksPerBeat)
	if err == nil {
		return []Notated{n}, nil
	}
	if ticks <= 0 {
		return nil, err
	}
	res, ok := fillTied(ticks, Vocabulary(ticksPerBeat), make(map[int64]bool))
	if !ok {
		return nil, errors.Wrapf(ErrUnrepresentableDuration, "%v ticks cannot be tied from %v per beat values", ticks, ticksPerBeat)
	}
	return res, nil
}

// fillTied searches vocab (longest first) depth first. dead remembers
// remainders already known to have no fill.
func fillTied(remaining int64, vocab []Notated, dead map[int64]bool) ([]Notated, bool) {
	if remaining == 0 {
		return nil, true
	}
	if dead[remaining] {
		return nil, false
	}
	for _, n := range vocab {
		if n.Ticks > remaining {
			continue
		}
		if rest, ok := fillTied(remaining-n.Ticks, vocab, dead); ok {
			return append([]Notated{n}, rest...), true
		}
	}
	dead[remaining] = true
	return nil, false
}
