package quantize

import (
	"math"
	"math/big"
	"sort"

	"github.com/jsphweid/melodyscore/constants"
	"github.com/jsphweid/melodyscore/model"
	"github.com/jsphweid/melodyscore/score"
	"github.com/jsphweid/melodyscore/util"
	"github.com/sirupsen/logrus"
)

type Config struct {
	TempoBPM      float64
	TimeSignature model.TimeSignature
	KeySignature  model.KeySignature
	Title         string

	// a candidate shorter than the larger of these two is dropped
	MinDurationBeats   float64
	MinDurationSeconds float64

	MinConfidence float64
	MinPitch      int
	MaxPitch      int

	VelocityFloor int
	VelocityCeil  int
	LoudnessScale float64

	Resolver PitchResolver
	Log      logrus.FieldLogger
}

func DefaultConfig(tempoBPM float64) Config {
	return Config{
		TempoBPM: tempoBPM,
		TimeSignature: model.TimeSignature{
			Beats:    constants.DefaultBeatsPerMeasure,
			BeatType: constants.DefaultBeatType,
		},
		KeySignature:       model.KeySignature{Fifths: 0, Mode: "major"},
		Title:              constants.DefaultTitle,
		MinDurationBeats:   1.0 / constants.GridDivisions,
		MinDurationSeconds: 0.10,
		MinConfidence:      0,
		MinPitch:           1,
		MaxPitch:           127,
		VelocityFloor:      55,
		VelocityCeil:       105,
		LoudnessScale:      200,
		Resolver:           MedianPitch{},
	}
}

type Quantizer struct {
	cfg Config
	log logrus.FieldLogger
}

func New(cfg Config) *Quantizer {
	if cfg.Resolver == nil {
		cfg.Resolver = MedianPitch{}
	}
	if !(cfg.TempoBPM > 0) {
		cfg.TempoBPM = constants.DefaultTempoBPM
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Quantizer{cfg: cfg, log: log.WithField("component", "quantize")}
}

// gridNote holds positions in grid units (1/GridDivisions of a beat).
type gridNote struct {
	start    int64
	end      int64
	pitch    int
	velocity int
	source   int
}

// snap returns the nearest grid line to r; exact ties go to the earlier line.
func snap(r *big.Rat) int64 {
	x := new(big.Rat).Mul(r, big.NewRat(constants.GridDivisions, 1))
	x.Sub(x, big.NewRat(1, 2))
	// ceil(a/b) == -floor(-a/b) for b > 0
	neg := new(big.Int).Neg(x.Num())
	floor := new(big.Int).Div(neg, x.Denom())
	return -floor.Int64()
}

func (q *Quantizer) secondsToBeats(seconds float64) *big.Rat {
	r := new(big.Rat)
	if r.SetFloat64(seconds*q.cfg.TempoBPM/60) == nil {
		return nil
	}
	return r
}

func (q *Quantizer) minDurationGrid() float64 {
	beats := util.Max(q.cfg.MinDurationBeats, q.cfg.MinDurationSeconds*q.cfg.TempoBPM/60)
	return beats * constants.GridDivisions
}

func (q *Quantizer) velocity(loudness float64) int {
	v := int(math.Round(float64(q.cfg.VelocityFloor) + loudness*q.cfg.LoudnessScale))
	v = util.Clamp(v, q.cfg.VelocityFloor, q.cfg.VelocityCeil)
	return util.Clamp(v, 1, 127)
}

func (q *Quantizer) drop(index int, reason string) {
	q.log.WithFields(logrus.Fields{"candidate": index, "reason": reason}).Debug("dropped candidate")
}

// Quantize snaps candidates onto the grid and returns non-overlapping notes
// sorted by start. Candidates that cannot become audible notes are dropped.
func (q *Quantizer) Quantize(candidates []model.Candidate) []model.Note {
	minGrid := q.minDurationGrid()
	var notes []gridNote
	for i, c := range candidates {
		startBeats := q.secondsToBeats(c.StartSeconds)
		endBeats := q.secondsToBeats(c.EndSeconds)
		if startBeats == nil || endBeats == nil {
			q.drop(i, "non-finite")
			continue
		}
		start := util.Max(snap(startBeats), 0)
		end := snap(endBeats)
		if end-start <= 0 {
			q.drop(i, "non-positive")
			continue
		}
		if float64(end-start) < minGrid {
			q.drop(i, "below-audibility")
			continue
		}
		if c.Confidence < q.cfg.MinConfidence {
			q.drop(i, "low-confidence")
			continue
		}
		pitch, ok := q.cfg.Resolver.Resolve(c)
		if !ok {
			q.drop(i, "no-voiced-pitch")
			continue
		}
		if pitch < q.cfg.MinPitch || pitch > q.cfg.MaxPitch || pitch < 1 {
			q.drop(i, "pitch-out-of-range")
			continue
		}
		notes = append(notes, gridNote{
			start:    start,
			end:      end,
			pitch:    pitch,
			velocity: q.velocity(c.Loudness),
			source:   i,
		})
	}
	return toNotes(q.resolveOverlaps(notes))
}

// Score quantizes candidates into a complete score.
func (q *Quantizer) Score(candidates []model.Candidate) model.Score {
	s := score.New(q.cfg.TempoBPM)
	s.TimeSignature = q.cfg.TimeSignature
	s.KeySignature = q.cfg.KeySignature
	if q.cfg.Title != "" {
		s.Title = q.cfg.Title
	}
	s.Notes = q.Quantize(candidates)
	return s
}

// Requantize runs already-placed notes through snapping and overlap
// resolution. Grid-aligned, non-overlapping input comes back unchanged.
func (q *Quantizer) Requantize(in []model.Note) []model.Note {
	var notes []gridNote
	for i, n := range in {
		if n.StartBeat == nil || n.DurationBeats == nil {
			q.drop(i, "missing-timing")
			continue
		}
		start := util.Max(snap(n.StartBeat), 0)
		end := snap(n.EndBeat())
		if end-start <= 0 {
			q.drop(i, "non-positive")
			continue
		}
		notes = append(notes, gridNote{start: start, end: end, pitch: n.Pitch, velocity: n.Velocity, source: i})
	}
	return toNotes(q.resolveOverlaps(notes))
}

// resolveOverlaps trims each note at the next note's start. A note trimmed
// to nothing is dropped, so at equal starts the later candidate wins.
func (q *Quantizer) resolveOverlaps(notes []gridNote) []gridNote {
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].start < notes[j].start
	})
	res := make([]gridNote, 0, len(notes))
	for _, n := range notes {
		for len(res) > 0 {
			last := &res[len(res)-1]
			if last.end <= n.start {
				break
			}
			last.end = n.start
			if last.end > last.start {
				break
			}
			q.drop(last.source, "overlap-yield")
			res = res[:len(res)-1]
		}
		res = append(res, n)
	}
	return res
}

func toNotes(notes []gridNote) []model.Note {
	res := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		res = append(res, model.Note{
			StartBeat:     model.NewBeats(n.start, constants.GridDivisions),
			DurationBeats: model.NewBeats(n.end-n.start, constants.GridDivisions),
			Pitch:         n.pitch,
			Velocity:      n.velocity,
		})
	}
	return res
}
