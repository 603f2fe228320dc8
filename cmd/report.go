package cmd

import (
	"fmt"
	"io"

	"github.com/jsphweid/melodyscore/duration"
	"github.com/jsphweid/melodyscore/measure"
	"github.com/jsphweid/melodyscore/midi"
	"github.com/jsphweid/melodyscore/model"
	"github.com/jsphweid/melodyscore/score"
	"github.com/jsphweid/melodyscore/util"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report <score.json>",
	Short: "Creates a report",
	Long:  `Reports how a score splits into measures and which segments have no notated duration.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := score.Load(args[0])
		if err != nil {
			return err
		}
		if err := score.Validate(s); err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), analyzeScore(s))
		return nil
	},
}

type scoreReport struct {
	numNotes        int
	numRests        int
	numMeasures     int
	numSplitNotes   int
	numEvents       int
	totalTicks      int64
	unrepresentable []model.Segment
	mismatched      []int
}

func analyzeScore(s model.Score) scoreReport {
	var report scoreReport
	for _, n := range s.Notes {
		if n.IsRest() {
			report.numRests += 1
		} else {
			report.numNotes += 1
		}
	}

	measures := measure.Split(s)
	report.numMeasures = len(measures)
	var lengths []int64
	for _, m := range measures {
		lengths = append(lengths, m.TotalTicks())
		for _, seg := range m.Segments {
			if seg.TieStart {
				report.numSplitNotes += 1
			}
			if seg.Kind != model.SegmentNote {
				continue
			}
			if _, err := duration.Decompose(seg.DurationTicks, s.TicksPerBeat); err != nil {
				report.unrepresentable = append(report.unrepresentable, seg)
			}
		}
	}

	report.totalTicks = util.Sum(lengths)

	// both encodings must agree on each note's length
	stream := midi.Events(s)
	report.numEvents = len(stream.Events)
	notated := measure.NoteTicks(measures)
	played := midi.NoteTicks(stream)
	for _, i := range util.GetKeys(notated) {
		if util.Abs(notated[i]-played[i]) > 1 {
			report.mismatched = append(report.mismatched, i)
		}
	}
	return report
}

func printReport(w io.Writer, report scoreReport) {
	fmt.Fprintf(w, "notes: %v\n", report.numNotes)
	fmt.Fprintf(w, "explicit rests: %v\n", report.numRests)
	fmt.Fprintf(w, "measures: %v (%v ticks)\n", report.numMeasures, report.totalTicks)
	fmt.Fprintf(w, "splits at measure boundaries: %v\n", report.numSplitNotes)
	fmt.Fprintf(w, "events: %v\n", report.numEvents)
	fmt.Fprintf(w, "unrepresentable note segments: %v\n", len(report.unrepresentable))
	for _, seg := range report.unrepresentable {
		fmt.Fprintf(w, "  note %v ticks %v-%v (%v ticks)\n", seg.NoteIndex, seg.StartTick, seg.EndTick(), seg.DurationTicks)
	}
	fmt.Fprintf(w, "notation/playback mismatches: %v\n", report.mismatched)
}
