package model

import (
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
)

type TimeSignature struct {
	Beats    int `json:"beats"`
	BeatType int `json:"beat_type"`
}

type KeySignature struct {
	Fifths int    `json:"fifths"`
	Mode   string `json:"mode,omitempty"`
}

type Quantization struct {
	Grid  string  `json:"grid"`
	Swing float64 `json:"swing"`
}

// Score is a quantized monophonic melody. Once built it is treated as
// read-only by every renderer.
type Score struct {
	Version       string        `json:"version,omitempty"`
	Title         string        `json:"title,omitempty"`
	TempoBPM      float64       `json:"tempo_bpm"`
	TimeSignature TimeSignature `json:"time_signature"`
	TicksPerBeat  int           `json:"ticks_per_beat"`
	Quantization  *Quantization `json:"quantization,omitempty"`
	KeySignature  KeySignature  `json:"key_signature"`
	Notes         []Note        `json:"melody"`
}

// Note positions are exact rationals in beats. Pitch 0 marks an explicit rest.
type Note struct {
	StartBeat     *big.Rat
	DurationBeats *big.Rat
	Pitch         int
	Velocity      int
}

type jsonNote struct {
	StartBeat     json.Number `json:"start_beat"`
	DurationBeats json.Number `json:"duration_beats"`
	Pitch         int         `json:"midi_note"`
	Velocity      int         `json:"velocity"`
}

func (n Note) EndBeat() *big.Rat {
	return new(big.Rat).Add(n.StartBeat, n.DurationBeats)
}

func (n Note) IsRest() bool {
	return n.Pitch == 0
}

func (n Note) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonNote{
		StartBeat:     beatsNumber(n.StartBeat),
		DurationBeats: beatsNumber(n.DurationBeats),
		Pitch:         n.Pitch,
		Velocity:      n.Velocity,
	})
}

func (n *Note) UnmarshalJSON(data []byte) error {
	var raw jsonNote
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := parseBeats(raw.StartBeat)
	if err != nil {
		return errors.Wrap(err, "start_beat")
	}
	dur, err := parseBeats(raw.DurationBeats)
	if err != nil {
		return errors.Wrap(err, "duration_beats")
	}
	n.StartBeat = start
	n.DurationBeats = dur
	n.Pitch = raw.Pitch
	n.Velocity = raw.Velocity
	return nil
}

// NewBeats returns num/den beats.
func NewBeats(num, den int64) *big.Rat {
	return big.NewRat(num, den)
}

// beatsNumber writes grid positions as plain decimals. Multiples of 1/16
// are dyadic so the float64 form is exact.
func beatsNumber(r *big.Rat) json.Number {
	if r == nil {
		return "0"
	}
	if r.IsInt() {
		return json.Number(r.Num().String())
	}
	f, _ := r.Float64()
	return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
}

func parseBeats(n json.Number) (*big.Rat, error) {
	if n == "" {
		return nil, errors.New("missing value")
	}
	r, ok := new(big.Rat).SetString(string(n))
	if !ok {
		return nil, errors.Errorf("not a number: %q", n)
	}
	return r, nil
}
