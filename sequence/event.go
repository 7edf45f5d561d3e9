package sequence

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

const (
	noteOffByte = 0x80
	noteOnByte  = 0x90
)

// Event is one raw 3-byte MIDI message positioned at an absolute beat
// from the start of the sequence.
type Event struct {
	Status byte
	Data1  byte
	Data2  byte
	Beat   float64
}

func NoteOn(ch, key, vel uint8, beat float64) Event {
	ev, _ := FromMessage(midi.NoteOn(ch, key, vel), beat)
	return ev
}

// NoteOff keeps the velocity byte, the way the note pairs are stored.
func NoteOff(ch, key, vel uint8, beat float64) Event {
	ev, _ := FromMessage(midi.NoteOffVelocity(ch, key, vel), beat)
	return ev
}

func ControlChange(ch, ctl, val uint8, beat float64) Event {
	ev, _ := FromMessage(midi.ControlChange(ch, ctl, val), beat)
	return ev
}

// FromMessage copies a channel message of up to three bytes.
// Sysex and meta messages do not fit and are refused.
func FromMessage(msg midi.Message, beat float64) (Event, bool) {
	if len(msg) == 0 || len(msg) > 3 || msg[0] < 0x80 || msg[0] >= 0xF0 {
		return Event{}, false
	}
	ev := Event{Status: msg[0], Beat: beat}
	if len(msg) > 1 {
		ev.Data1 = msg[1]
	}
	if len(msg) > 2 {
		ev.Data2 = msg[2]
	}
	return ev, true
}

// Message returns the wire bytes, trimmed to the length the status implies.
func (e Event) Message() midi.Message {
	switch e.Status & 0xF0 {
	case 0xC0, 0xD0:
		return midi.Message{e.Status, e.Data1}
	}
	return midi.Message{e.Status, e.Data1, e.Data2}
}

// IsNoteOff only looks at the status nibble: a note-on with velocity 0
// still sorts as a note-on.
func (e Event) IsNoteOff() bool { return e.Status&0xF0 == noteOffByte }

func (e Event) IsNoteOn() bool { return e.Status&0xF0 == noteOnByte }

func (e Event) Channel() uint8 { return e.Status & 0x0F }

func (e Event) At(beat float64) Event {
	e.Beat = beat
	return e
}

func (e Event) String() string {
	return fmt.Sprintf("%s @%.3f", e.Message().String(), e.Beat)
}
