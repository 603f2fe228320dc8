package model

import "github.com/pkg/errors"

type EventKind uint8

const (
	EventTempo EventKind = iota
	EventTimeSignature
	EventProgram
	EventNoteStart
	EventNoteEnd
)

var eventKindNames = map[EventKind]string{
	EventTempo:         "tempo",
	EventTimeSignature: "time-signature",
	EventProgram:       "program",
	EventNoteStart:     "note-start",
	EventNoteEnd:       "note-end",
}

func (k EventKind) String() string {
	return eventKindNames[k]
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(text []byte) error {
	for kind, name := range eventKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return errors.Errorf("unknown event kind %q", text)
}

// Event is one entry of the flat playback stream.
type Event struct {
	Kind  EventKind `json:"kind"`
	Tick  int64     `json:"tick"`
	Delta int64     `json:"delta"`

	Pitch    int `json:"pitch,omitempty"`
	Velocity int `json:"velocity,omitempty"`

	MicrosPerBeat uint32 `json:"micros_per_beat,omitempty"`
	Numerator     int    `json:"numerator,omitempty"`
	Denominator   int    `json:"denominator,omitempty"`
	Program       int    `json:"program,omitempty"`

	// NoteIndex points back into Score.Notes for note events, -1 otherwise.
	NoteIndex int `json:"-"`
}

type EventStream struct {
	TicksPerBeat int     `json:"ticks_per_beat"`
	Events       []Event `json:"events"`
}
