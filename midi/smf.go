package midi

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/jsphweid/melodyscore/model"
	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const channel = 0

func tempoMessage(micros uint32) smf.Message {
	return smf.Message{0xFF, 0x51, 0x03, byte(micros >> 16), byte(micros >> 8), byte(micros)}
}

func message(e model.Event) ([]byte, error) {
	switch e.Kind {
	case model.EventTempo:
		return tempoMessage(e.MicrosPerBeat), nil
	case model.EventTimeSignature:
		return smf.MetaTimeSig(uint8(e.Numerator), uint8(e.Denominator), 24, 8), nil
	case model.EventProgram:
		return midi.ProgramChange(channel, uint8(e.Program)), nil
	case model.EventNoteStart:
		return midi.NoteOn(channel, uint8(e.Pitch), uint8(e.Velocity)), nil
	case model.EventNoteEnd:
		return midi.NoteOff(channel, uint8(e.Pitch)), nil
	}
	return nil, errors.Errorf("unknown event kind %v", e.Kind)
}

// ToSMF lays the stream out as a single-track file.
func ToSMF(stream model.EventStream) (*smf.SMF, error) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(stream.TicksPerBeat)

	var track smf.Track
	for _, e := range stream.Events {
		msg, err := message(e)
		if err != nil {
			return nil, err
		}
		track.Add(uint32(e.Delta), msg)
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, errors.Wrap(err, "could not add track")
	}
	return s, nil
}

func WriteSMF(w io.Writer, stream model.EventStream) error {
	s, err := ToSMF(stream)
	if err != nil {
		return err
	}
	_, err = s.WriteTo(w)
	return errors.Wrap(err, "could not write midi")
}

func Bytes(stream model.EventStream) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := WriteSMF(buf, stream); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ReadSMF(r io.Reader) (s *smf.SMF, e error) {
	// the reader can panic on malformed input
	// https://github.com/gomidi/midi/issues/20
	defer func() {
		if rec := recover(); rec != nil {
			e = errors.New(fmt.Sprint(rec))
		}
	}()

	res, err := smf.ReadFrom(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse midi")
	}
	return res, nil
}

func ReadMidiFile(path string) (*smf.SMF, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read midi file")
	}
	return ReadSMF(bytes.NewReader(dat))
}

// AbsoluteEvents flattens every track of a file back into an event stream,
// recomputing absolute ticks from the deltas.
func AbsoluteEvents(s *smf.SMF) model.EventStream {
	var stream model.EventStream
	if tf, ok := s.TimeFormat.(smf.MetricTicks); ok {
		stream.TicksPerBeat = int(tf)
	}

	var prev int64
	for _, events := range s.Tracks {
		var absTicks int64
		for _, event := range events {
			absTicks += int64(event.Delta)
			e := model.Event{Tick: absTicks, NoteIndex: -1}
			var ch, key, vel, num, denom, cpt, dsqpq, prog uint8
			var bpm float64
			switch {
			case event.Message.GetNoteStart(&ch, &key, &vel):
				e.Kind = model.EventNoteStart
				e.Pitch = int(key)
				e.Velocity = int(vel)
			case event.Message.GetNoteEnd(&ch, &key):
				e.Kind = model.EventNoteEnd
				e.Pitch = int(key)
			case event.Message.GetMetaTempo(&bpm):
				e.Kind = model.EventTempo
				e.MicrosPerBeat = uint32(math.Round(60_000_000 / bpm))
			case event.Message.GetMetaTimeSig(&num, &denom, &cpt, &dsqpq):
				e.Kind = model.EventTimeSignature
				e.Numerator = int(num)
				e.Denominator = int(denom)
			case event.Message.GetProgramChange(&ch, &prog):
				e.Kind = model.EventProgram
				e.Program = int(prog)
			default:
				continue
			}
			e.Delta = e.Tick - prev
			prev = e.Tick
			stream.Events = append(stream.Events, e)
		}
	}
	return stream
}
