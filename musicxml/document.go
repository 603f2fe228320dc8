package musicxml

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
)

const doctype = `<!DOCTYPE score-partwise PUBLIC "-//Recordare//DTD MusicXML 4.0 Partwise//EN" "http://www.musicxml.org/dtds/partwise.dtd">`

// Document is a partwise MusicXML score.
type Document struct {
	XMLName  xml.Name `xml:"score-partwise"`
	Version  string   `xml:"version,attr"`
	Title    string   `xml:"movement-title,omitempty"`
	PartList PartList `xml:"part-list"`
	Parts    []Part   `xml:"part"`
}

type PartList struct {
	ScoreParts []ScorePart `xml:"score-part"`
}

type ScorePart struct {
	Id   string `xml:"id,attr"`
	Name string `xml:"part-name"`
}

type Part struct {
	Id       string    `xml:"id,attr"`
	Measures []Measure `xml:"measure"`
}

type Measure struct {
	Number     int         `xml:"number,attr"`
	Attributes *Attributes `xml:"attributes,omitempty"`
	Notes      []Note      `xml:"note"`
}

// Attributes appear on the first measure only and carry over implicitly.
type Attributes struct {
	Divisions int  `xml:"divisions"`
	Key       Key  `xml:"key"`
	Time      Time `xml:"time"`
	Clef      Clef `xml:"clef"`
}

type Key struct {
	Fifths int    `xml:"fifths"`
	Mode   string `xml:"mode,omitempty"`
}

type Time struct {
	Beats    int `xml:"beats"`
	BeatType int `xml:"beat-type"`
}

type Clef struct {
	Sign string `xml:"sign"`
	Line int    `xml:"line"`
}

type Empty struct{}

type Note struct {
	Pitch     *Pitch     `xml:"pitch,omitempty"`
	Rest      *Empty     `xml:"rest,omitempty"`
	Duration  int64      `xml:"duration"`
	Ties      []Tie      `xml:"tie,omitempty"`
	Type      string     `xml:"type,omitempty"`
	Dots      []Empty    `xml:"dot,omitempty"`
	Notations *Notations `xml:"notations,omitempty"`
}

type Pitch struct {
	Step   string `xml:"step"`
	Alter  int    `xml:"alter,omitempty"`
	Octave int    `xml:"octave"`
}

type Tie struct {
	Type string `xml:"type,attr"`
}

type Notations struct {
	Tied []Tie `xml:"tied"`
}

func (n Note) IsRest() bool {
	return n.Rest != nil
}

// Key returns the MIDI number of a pitched note.
func (p Pitch) Key() int {
	return stepOffsets[p.Step] + (p.Octave+1)*12 + p.Alter
}

func (m Measure) TotalDuration() int64 {
	var total int64
	for _, n := range m.Notes {
		total += n.Duration
	}
	return total
}

func Marshal(doc *Document) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal musicxml")
	}
	buf := new(bytes.Buffer)
	buf.WriteString(xml.Header)
	buf.WriteString(doctype)
	buf.WriteString("\n")
	buf.Write(body)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

func Decode(r io.Reader) (*Document, error) {
	var doc Document
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "could not decode musicxml")
	}
	return &doc, nil
}
