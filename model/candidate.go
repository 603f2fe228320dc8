package model

// PitchSample is one pitch-tracker frame inside a candidate segment.
type PitchSample struct {
	Midi   float64 `json:"midi"`
	Voiced bool    `json:"voiced"`
}

// Candidate is a raw, continuous-time note guess produced by audio analysis.
type Candidate struct {
	StartSeconds float64       `json:"start_seconds"`
	EndSeconds   float64       `json:"end_seconds"`
	Pitches      []PitchSample `json:"pitches"`
	Confidence   float64       `json:"confidence"`
	Loudness     float64       `json:"loudness"`
}
