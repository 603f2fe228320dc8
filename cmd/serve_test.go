package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jsphweid/melodyscore/db"
	"github.com/jsphweid/melodyscore/midi"
	"github.com/jsphweid/melodyscore/model"
	"github.com/jsphweid/melodyscore/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scoreJSON = `{
	"version": "0.1",
	"title": "Test",
	"tempo_bpm": 120,
	"time_signature": {"beats": 4, "beat_type": 4},
	"ticks_per_beat": 480,
	"key_signature": {"fifths": 0, "mode": "major"},
	"melody": [
		{"start_beat": 0, "duration_beats": 1, "midi_note": 60, "velocity": 80},
		{"start_beat": 3.5, "duration_beats": 1, "midi_note": 66, "velocity": 90}
	]
}`

// 1.25 beats is 600 ticks
const unrepresentableJSON = `{
	"version": "0.1",
	"tempo_bpm": 120,
	"time_signature": {"beats": 4, "beat_type": 4},
	"ticks_per_beat": 480,
	"melody": [{"start_beat": 4, "duration_beats": 1.25, "midi_note": 60, "velocity": 80}]
}`

func do(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func newTestRouter() http.Handler {
	return NewServer(db.NewMemoryStore()).Router()
}

func TestRenderThenFetch(t *testing.T) {
	router := newTestRouter()
	rec := do(t, router, http.MethodPost, "/render", scoreJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res model.RenderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.Id)
	assert.Equal(t, 2, res.Measures)
	assert.Contains(t, res.MusicXML, "<score-partwise")
	assert.Contains(t, res.MusicXML, `<tie type="start"`)

	data, err := base64.StdEncoding.DecodeString(res.MidiBase64)
	require.NoError(t, err)
	parsed, err := midi.ReadSMF(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, midi.AbsoluteEvents(parsed).Events, 3+4)

	rec = do(t, router, http.MethodGet, "/scores/"+res.Id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := score.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "Test", stored.Title)
	require.Len(t, stored.Notes, 2)
	assert.Equal(t, "7/2", stored.Notes[1].StartBeat.RatString())
}

func TestGetUnknownScore(t *testing.T) {
	rec := do(t, newTestRouter(), http.MethodGet, "/scores/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenderErrors(t *testing.T) {
	router := newTestRouter()

	rec := do(t, router, http.MethodPost, "/render", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	overlapping := `{"tempo_bpm": 120, "time_signature": {"beats": 4, "beat_type": 4}, "ticks_per_beat": 480,
		"melody": [
			{"start_beat": 0, "duration_beats": 2, "midi_note": 60, "velocity": 80},
			{"start_beat": 1, "duration_beats": 1, "midi_note": 62, "velocity": 80}
		]}`
	rec = do(t, router, http.MethodPost, "/render", overlapping)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, router, http.MethodPost, "/render", unrepresentableJSON)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var errRes model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errRes))
	assert.Equal(t, 2, errRes.Measure)
	assert.Equal(t, int64(1920), errRes.StartTick)
	assert.Equal(t, int64(2520), errRes.EndTick)

	rec = do(t, router, http.MethodPost, "/render?ties=true", unrepresentableJSON)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRenderSingleEncodings(t *testing.T) {
	router := newTestRouter()

	rec := do(t, router, http.MethodPost, "/render/midi", unrepresentableJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/midi", rec.Header().Get("Content-Type"))
	assert.Equal(t, "MThd", rec.Body.String()[:4])

	rec = do(t, router, http.MethodPost, "/render/musicxml", unrepresentableJSON)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, router, http.MethodPost, "/render/musicxml", scoreJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<movement-title>Test</movement-title>")
}

func TestQuantizeEndpoint(t *testing.T) {
	body := `{
		"title": "Hummed",
		"tempo_bpm": 60,
		"candidates": [
			{"start_seconds": 0, "end_seconds": 1, "pitches": [{"midi": 60.1, "voiced": true}], "confidence": 1, "loudness": 0.1},
			{"start_seconds": 1.02, "end_seconds": 1.5, "pitches": [{"midi": 64, "voiced": true}], "confidence": 1, "loudness": 0.1},
			{"start_seconds": 2, "end_seconds": 2.01, "pitches": [{"midi": 67, "voiced": true}], "confidence": 1, "loudness": 0.1}
		]
	}`
	rec := do(t, newTestRouter(), http.MethodPost, "/quantize", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s, err := score.Decode(rec.Body)
	require.NoError(t, err)
	require.NoError(t, score.Validate(s))
	assert.Equal(t, "Hummed", s.Title)
	assert.Equal(t, 60.0, s.TempoBPM)
	require.Len(t, s.Notes, 2)
	assert.Equal(t, 60, s.Notes[0].Pitch)
	assert.Equal(t, "0", s.Notes[0].StartBeat.RatString())
	assert.Equal(t, "1", s.Notes[0].DurationBeats.RatString())
	assert.Equal(t, 64, s.Notes[1].Pitch)
	assert.Equal(t, "1", s.Notes[1].StartBeat.RatString())
	assert.Equal(t, "1/2", s.Notes[1].DurationBeats.RatString())
}

func TestRenderSnapsOnRequest(t *testing.T) {
	offGrid := `{"tempo_bpm": 120, "time_signature": {"beats": 4, "beat_type": 4}, "ticks_per_beat": 480,
		"melody": [{"start_beat": 0.01, "duration_beats": 0.98, "midi_note": 60, "velocity": 80}]}`
	router := newTestRouter()

	rec := do(t, router, http.MethodPost, "/render/midi", offGrid)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, router, http.MethodPost, "/render/midi?snap=true", offGrid)
	require.Equal(t, http.StatusOK, rec.Code)
	parsed, err := midi.ReadSMF(rec.Body)
	require.NoError(t, err)
	events := midi.AbsoluteEvents(parsed).Events
	require.Len(t, events, 5)
	assert.Equal(t, int64(480), events[4].Tick)
}
