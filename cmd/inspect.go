package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jsphweid/melodyscore/midi"
	"github.com/jsphweid/melodyscore/model"
	"github.com/jsphweid/melodyscore/musicxml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid|file.musicxml>",
	Short: "Inspects a rendered file",
	Long:  `Prints the events of a MIDI file or the measures of a MusicXML file.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(cmd.OutOrStdout(), args[0])
	},
}

func inspect(w io.Writer, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		return inspectMidi(w, path)
	case ".musicxml", ".xml":
		return inspectMusicXML(w, path)
	}
	return errors.Errorf("don't know how to inspect %v", path)
}

func inspectMidi(w io.Writer, path string) error {
	parsed, err := midi.ReadMidiFile(path)
	if err != nil {
		return err
	}
	stream := midi.AbsoluteEvents(parsed)
	fmt.Fprintf(w, "ticks per beat: %v\n", stream.TicksPerBeat)
	for _, e := range stream.Events {
		fmt.Fprintf(w, "%8d +%-6d %-15v", e.Tick, e.Delta, e.Kind)
		switch e.Kind {
		case model.EventNoteStart:
			fmt.Fprintf(w, " pitch=%v velocity=%v", e.Pitch, e.Velocity)
		case model.EventNoteEnd:
			fmt.Fprintf(w, " pitch=%v", e.Pitch)
		case model.EventTempo:
			fmt.Fprintf(w, " micros_per_beat=%v", e.MicrosPerBeat)
		case model.EventTimeSignature:
			fmt.Fprintf(w, " %v/%v", e.Numerator, e.Denominator)
		case model.EventProgram:
			fmt.Fprintf(w, " program=%v", e.Program)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func inspectMusicXML(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "could not open musicxml")
	}
	defer f.Close()
	doc, err := musicxml.Decode(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "title: %v\n", doc.Title)
	for _, part := range doc.Parts {
		fmt.Fprintf(w, "part %v: %v measures\n", part.Id, len(part.Measures))
		for _, m := range part.Measures {
			var items []string
			for _, n := range m.Notes {
				label := "rest"
				if !n.IsRest() {
					label = fmt.Sprintf("%v", n.Pitch.Key())
				}
				items = append(items, fmt.Sprintf("%v:%v%v", label, n.Type, strings.Repeat(".", len(n.Dots))))
			}
			fmt.Fprintf(w, "  measure %3d (%v ticks): %v\n", m.Number, m.TotalDuration(), strings.Join(items, " "))
		}
	}
	return nil
}
