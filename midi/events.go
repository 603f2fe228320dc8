package midi

import (
	"sort"

	"github.com/jsphweid/melodyscore/model"
	"github.com/jsphweid/melodyscore/score"
	"github.com/jsphweid/melodyscore/util"
)

// Program is the General MIDI voice selected at tick zero (acoustic piano).
const Program = 0

func MicrosPerBeat(tempoBPM float64) uint32 {
	return uint32(score.MicrosPerBeat(tempoBPM))
}

func headerEvents(s model.Score) []model.Event {
	return []model.Event{
		{Kind: model.EventTempo, MicrosPerBeat: MicrosPerBeat(s.TempoBPM), NoteIndex: -1},
		{
			Kind:        model.EventTimeSignature,
			Numerator:   s.TimeSignature.Beats,
			Denominator: s.TimeSignature.BeatType,
			NoteIndex:   -1,
		},
		{Kind: model.EventProgram, Program: Program, NoteIndex: -1},
	}
}

// Events renders the score as a flat, chronologically ordered event list.
// Header events sit at tick zero ahead of every note event.
func Events(s model.Score) model.EventStream {
	var notes []model.Event
	for i, n := range s.Notes {
		if n.IsRest() {
			continue
		}
		start := score.BeatsToTicks(n.StartBeat, s.TicksPerBeat)
		length := util.Max(1, score.BeatsToTicks(n.DurationBeats, s.TicksPerBeat))
		notes = append(notes,
			model.Event{Kind: model.EventNoteStart, Tick: start, Pitch: n.Pitch, Velocity: n.Velocity, NoteIndex: i},
			model.Event{Kind: model.EventNoteEnd, Tick: start + length, Pitch: n.Pitch, NoteIndex: i},
		)
	}

	// stable: a note-end keeps its place ahead of a note-start on the same tick
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Tick < notes[j].Tick
	})

	events := append(headerEvents(s), notes...)
	var prev int64
	for i := range events {
		events[i].Delta = events[i].Tick - prev
		prev = events[i].Tick
	}
	return model.EventStream{TicksPerBeat: s.TicksPerBeat, Events: events}
}

// NoteTicks pairs starts and ends back up per source note.
func NoteTicks(stream model.EventStream) map[int]int64 {
	starts := make(map[int]int64)
	res := make(map[int]int64)
	for _, e := range stream.Events {
		switch e.Kind {
		case model.EventNoteStart:
			starts[e.NoteIndex] = e.Tick
		case model.EventNoteEnd:
			res[e.NoteIndex] = e.Tick - starts[e.NoteIndex]
		}
	}
	return res
}
