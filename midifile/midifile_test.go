package midifile

import (
	"bytes"
	"math"
	"reflect"
	"testing"

	"github.com/JeanRibes/beatseq/sequence"
)

func TestRoundTrip(t *testing.T) {
	lead := sequence.New()
	lead.Add(60, 0, 0.5)
	lead.Add(72, 1, 0.5, sequence.WithVelocity(90))
	lead.Add(84, 2, 0.25, sequence.WithChannel(1))
	lead.AddEvent(sequence.ControlChange(0, 64, 127, 0), 0.5)

	bass := sequence.New()
	bass.Add(36, 0, 2)
	bass.Add(36, 2, 2)

	var buf bytes.Buffer
	if err := Write(&buf, 90, lead, bass); err != nil {
		t.Fatal(err)
	}
	f, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	// tempo is stored as microseconds per quarter, so not exactly
	if want, got := 90.0, f.Tempo; math.Abs(want-got) > 0.01 {
		t.Errorf("tempo: want %v, got %v", want, got)
	}
	if want, got := 2, len(f.Tracks); want != got {
		t.Fatalf("want %d tracks, got %d", want, got)
	}
	for i, seq := range []*sequence.EventSequence{lead, bass} {
		if want, got := seq.OrderedEvents(), f.Tracks[i].OrderedEvents(); !reflect.DeepEqual(want, got) {
			t.Errorf("track %d:\nwant: %v\ngot:  %v", i, want, got)
		}
	}
	if want, got := 3, len(f.Tracks[0].Notes); want != got {
		t.Errorf("want %d notes paired, got %d", want, got)
	}
}

func TestReadPairsRepeatedNotes(t *testing.T) {
	// same key struck twice before either release: first on pairs with first off
	seq := sequence.New()
	seq.AddEvent(sequence.NoteOn(0, 60, 100, 0), 0)
	seq.AddEvent(sequence.NoteOn(0, 60, 80, 0), 1)
	seq.AddEvent(sequence.NoteOff(0, 60, 0, 0), 2)
	seq.AddEvent(sequence.NoteOff(0, 60, 0, 0), 3)
	seq.AddEvent(sequence.NoteOn(0, 62, 100, 0), 3)

	var buf bytes.Buffer
	if err := Write(&buf, DefaultTempo, seq); err != nil {
		t.Fatal(err)
	}
	f, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	notes := f.Tracks[0].Notes
	if want, got := 2, len(notes); want != got {
		t.Fatalf("want %d notes, got %d", want, got)
	}
	if notes[0].Position() != 0 || notes[0].End() != 2 || notes[0].On.Data2 != 100 {
		t.Errorf("first note: %+v", notes[0])
	}
	if notes[1].Position() != 1 || notes[1].End() != 3 {
		t.Errorf("second note: %+v", notes[1])
	}
	// the unreleased note-on survives as a raw event
	if want, got := []sequence.Event{sequence.NoteOn(0, 62, 100, 3)}, f.Tracks[0].Events; !reflect.DeepEqual(want, got) {
		t.Errorf("raw events: want %v, got %v", want, got)
	}
}

func TestReadGarbage(t *testing.T) {
	if _, err := Read(bytes.NewBufferString("not a midi file")); err == nil {
		t.Error("expected an error")
	}
}
