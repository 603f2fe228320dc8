package model

type QuantizeRequestBody struct {
	Title         string         `json:"title,omitempty"`
	TempoBPM      float64        `json:"tempo_bpm"`
	TimeSignature *TimeSignature `json:"time_signature,omitempty"`
	KeySignature  *KeySignature  `json:"key_signature,omitempty"`
	Candidates    []Candidate    `json:"candidates"`
}

type RenderResponse struct {
	Id         string      `json:"id"`
	MusicXML   string      `json:"musicxml"`
	MidiBase64 string      `json:"midi_base64"`
	Events     EventStream `json:"events"`
	Measures   int         `json:"measures"`
}

type ErrorResponse struct {
	Error     string `json:"detail"`
	Measure   int    `json:"measure,omitempty"`
	StartTick int64  `json:"start_tick,omitempty"`
	EndTick   int64  `json:"end_tick,omitempty"`
}
