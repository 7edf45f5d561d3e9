package midiout

import (
	"bytes"
	"io"
	"reflect"
	"sync"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"

	"github.com/JeanRibes/beatseq/sequence"
)

var quiet = charmlog.New(io.Discard)

type nopCloser struct {
	bytes.Buffer
	closed bool
}

func (c *nopCloser) Close() error {
	c.closed = true
	return nil
}

func TestPortOrder(t *testing.T) {
	var mu sync.Mutex
	var got []midi.Message
	p := New(func(msg midi.Message) error {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
		return nil
	}, nil, quiet)

	p.Schedule(sequence.NoteOn(0, 60, 100, 0), 0)
	p.Schedule(sequence.ControlChange(1, 7, 90, 0), 10)
	p.Schedule(sequence.NoteOff(0, 60, 0, 1), 20)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	want := []midi.Message{
		midi.NoteOn(0, 60, 100),
		midi.ControlChange(1, 7, 90),
		midi.NoteOffVelocity(0, 60, 0),
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}

	p.Schedule(sequence.NoteOn(0, 61, 100, 0), 0)
	if err := p.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if len(got) != 3 {
		t.Error("message sent after close")
	}
}

func TestPortDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	p := New(func(midi.Message) error {
		<-block
		return nil
	}, nil, quiet)

	for i := 0; i < QueueSize+10; i++ {
		p.Schedule(sequence.NoteOn(0, 60, 100, 0), 0)
	}
	// one message may be held by the writer
	if n := p.Dropped(); n < 9 || n > 10 {
		t.Errorf("dropped %d messages", n)
	}
	close(block)
	p.Close()
}

func TestWriter(t *testing.T) {
	w := &nopCloser{}
	p := NewWriter(w, quiet)
	p.Schedule(sequence.NoteOn(2, 64, 127, 0), 0)
	p.Schedule(sequence.Event{Status: 0xC2, Data1: 5}, 0)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if want, got := []byte{0x92, 64, 127, 0xC2, 5}, w.Bytes(); !bytes.Equal(want, got) {
		t.Errorf("want % x, got % x", want, got)
	}
	if !w.closed {
		t.Error("writer not closed")
	}
}
