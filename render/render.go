// Package render runs both output encodings off one validated score.
package render

import (
	"github.com/jsphweid/melodyscore/measure"
	"github.com/jsphweid/melodyscore/midi"
	"github.com/jsphweid/melodyscore/model"
	"github.com/jsphweid/melodyscore/musicxml"
	"github.com/jsphweid/melodyscore/quantize"
	"github.com/jsphweid/melodyscore/score"
)

type Options struct {
	Notation musicxml.Options
	// Snap moves hand-edited notes back onto the grid before rendering.
	Snap bool
}

// Result holds both encodings of the same score. It is only ever returned
// complete.
type Result struct {
	Measures []model.Measure
	MusicXML []byte
	Events   model.EventStream
	Midi     []byte
}

func Notation(s model.Score, opts musicxml.Options) ([]model.Measure, []byte, error) {
	if err := score.Validate(s); err != nil {
		return nil, nil, err
	}
	measures := measure.Split(s)
	doc, err := musicxml.Render(s, measures, opts)
	if err != nil {
		return nil, nil, err
	}
	data, err := musicxml.Marshal(doc)
	if err != nil {
		return nil, nil, err
	}
	return measures, data, nil
}

func Events(s model.Score) (model.EventStream, []byte, error) {
	if err := score.Validate(s); err != nil {
		return model.EventStream{}, nil, err
	}
	stream := midi.Events(s)
	data, err := midi.Bytes(stream)
	if err != nil {
		return model.EventStream{}, nil, err
	}
	return stream, data, nil
}

// Snap requantizes the score's notes at its own tempo.
func Snap(s model.Score) model.Score {
	out := s
	out.Notes = quantize.New(quantize.DefaultConfig(s.TempoBPM)).Requantize(s.Notes)
	return out
}

// Render produces both documents or neither.
func Render(s model.Score, opts Options) (*Result, error) {
	if opts.Snap {
		s = Snap(s)
	}
	measures, xmlData, err := Notation(s, opts.Notation)
	if err != nil {
		return nil, err
	}
	stream, midiData, err := Events(s)
	if err != nil {
		return nil, err
	}
	return &Result{
		Measures: measures,
		MusicXML: xmlData,
		Events:   stream,
		Midi:     midiData,
	}, nil
}
