// Package midifile moves event sequences in and out of Standard MIDI Files.
package midifile

import (
	"bytes"
	stderrors "errors"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"gitlab.com/gomidi/quantizer/lib/quantizer"

	"github.com/JeanRibes/beatseq/sequence"
)

const (
	DefaultTempo = 120.0
	Resolution   = smf.MetricTicks(960)
)

// File is the decoded content of a MIDI file: one sequence per track that
// holds channel messages, and the first tempo found.
type File struct {
	Tempo  float64
	Tracks []*sequence.EventSequence
}

type pending struct {
	ch, key uint8
	on      sequence.Event
}

func Read(r io.Reader) (*File, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading SMF")
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, errors.Errorf("unsupported time format %v", s.TimeFormat)
	}
	res := float64(ticks.Resolution())

	f := &File{Tempo: DefaultTempo}
	tempoFound := false
	for _, tr := range s.Tracks {
		seq := sequence.New()
		var open []pending
		var abs uint64
		for _, ev := range tr {
			abs += uint64(ev.Delta)
			beat := float64(abs) / res

			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				if !tempoFound {
					f.Tempo = bpm
					tempoFound = true
				}
				continue
			}
			msg := midi.Message(ev.Message)
			var ch, key, vel uint8
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				open = append(open, pending{ch: ch, key: key, on: sequence.NoteOn(ch, key, vel, beat)})
			case msg.GetNoteEnd(&ch, &key):
				i := 0
				for ; i < len(open); i++ {
					if open[i].ch == ch && open[i].key == key {
						break
					}
				}
				if i == len(open) {
					// orphan note-off
					seq.AddEvent(sequence.NoteOff(ch, key, 0, beat), beat)
					continue
				}
				on := open[i].on
				open = append(open[:i], open[i+1:]...)
				seq.AddNote(sequence.Note{On: on, Off: sequence.NoteOff(ch, key, on.Data2, beat)})
			default:
				if e, ok := sequence.FromMessage(msg, beat); ok {
					seq.AddEvent(e, beat)
				}
			}
		}
		// notes never released stay as bare note-ons
		for _, p := range open {
			seq.AddEvent(p.on, p.on.Beat)
		}
		if seq.Len() > 0 {
			f.Tracks = append(f.Tracks, seq)
		}
	}
	return f, nil
}

func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer fh.Close()
	f, err := Read(fh)
	return f, errors.Wrap(err, path)
}

// Quantize snaps the notes of an SMF stream to the grid found by the
// quantizer and returns the rewritten stream.
func Quantize(r io.Reader) (io.Reader, error) {
	var out bytes.Buffer
	if err := quantizer.Quantize(r, &out); err != nil {
		return nil, errors.Wrap(err, "quantizing")
	}
	return &out, nil
}

func ReadFileQuantized(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer fh.Close()
	q, err := Quantize(fh)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	f, err := Read(q)
	return f, errors.Wrap(err, path)
}

// Encode builds an SMF: a tempo track followed by one track per sequence.
func Encode(tempo float64, seqs ...*sequence.EventSequence) (*smf.SMF, error) {
	s := smf.New()
	s.TimeFormat = Resolution
	res := float64(Resolution.Resolution())

	var errs error
	var conductor smf.Track
	conductor.Add(0, smf.MetaTempo(tempo))
	conductor.Close(0)
	errs = stderrors.Join(errs, s.Add(conductor))

	for _, seq := range seqs {
		var tr smf.Track
		var last uint32
		for _, ev := range seq.OrderedEvents() {
			tick := uint32(math.Round(max(ev.Beat, 0) * res))
			tr.Add(tick-last, ev.Message())
			last = tick
		}
		tr.Close(0)
		errs = stderrors.Join(errs, s.Add(tr))
	}
	return s, errs
}

func Write(w io.Writer, tempo float64, seqs ...*sequence.EventSequence) error {
	s, err := Encode(tempo, seqs...)
	if err != nil {
		return err
	}
	_, err = s.WriteTo(w)
	return errors.Wrap(err, "writing SMF")
}

func WriteFile(path string, tempo float64, seqs ...*sequence.EventSequence) error {
	s, err := Encode(tempo, seqs...)
	if err != nil {
		return err
	}
	return errors.Wrapf(s.WriteFile(path), "writing %s", path)
}
