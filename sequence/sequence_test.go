package sequence

import (
	"reflect"
	"testing"
)

func index(evs []Event, ev Event) int {
	for i, e := range evs {
		if e == ev {
			return i
		}
	}
	return -1
}

func TestAdd(t *testing.T) {
	seq := New()
	seq.Add(60, 1.0, 1.0)

	want := &EventSequence{
		Notes: []Note{{
			On:  Event{Status: 0x90, Data1: 60, Data2: 127, Beat: 1.0},
			Off: Event{Status: 0x80, Data1: 60, Data2: 127, Beat: 2.0},
		}},
		TotalDuration: 2.0,
	}
	if !reflect.DeepEqual(want, seq) {
		t.Errorf("wrong sequence:\nwant: %+v\ngot:  %+v", want, seq)
	}
}

func TestNoteOptions(t *testing.T) {
	n := NewNote(64, 0.5, 0.25, WithVelocity(90), WithChannel(3))
	if want, got := (Event{Status: 0x93, Data1: 64, Data2: 90, Beat: 0.5}), n.On; want != got {
		t.Errorf("on: want %v, got %v", want, got)
	}
	if want, got := (Event{Status: 0x83, Data1: 64, Data2: 90, Beat: 0.75}), n.Off; want != got {
		t.Errorf("off: want %v, got %v", want, got)
	}
	if n.Duration() != 0.25 || n.Number() != 64 || n.Position() != 0.5 {
		t.Errorf("accessors disagree with note %+v", n)
	}
}

func TestRemoveNote(t *testing.T) {
	seq := New()
	seq.Add(60, 0, 0.1)
	seq.Add(62, 0.1, 0.1)
	seq.Add(63, 0.2, 0.1)
	if !seq.RemoveNote(0.1) {
		t.Fatal("expected a note at 0.1")
	}
	if want, got := 2, len(seq.Notes); want != got {
		t.Errorf("want %d notes, got %d", want, got)
	}
	if seq.RemoveNote(5) {
		t.Error("removal with no match reported a removal")
	}
	if want, got := 2, len(seq.Notes); want != got {
		t.Errorf("no-match removal changed note count to %d", got)
	}
}

func TestAddRemoveRoundTrip(t *testing.T) {
	seq := New()
	seq.Add(48, 0, 1)
	before := len(seq.Notes)
	seq.Add(60, 1.0, 1.0)
	seq.RemoveNote(1.0)
	if want, got := before, len(seq.Notes); want != got {
		t.Errorf("want %d notes, got %d", want, got)
	}
}

func TestRemoveInstances(t *testing.T) {
	seq := New()
	seq.Add(60, 0, 0.1)
	seq.Add(62, 0.1, 0.1)
	seq.Add(63, 0.2, 0.1)
	seq.Add(63, 0.3, 0.1)
	if want, got := 2, seq.RemoveAllInstancesOf(63); want != got {
		t.Errorf("want %d removed, got %d", want, got)
	}
	if want, got := 2, len(seq.Notes); want != got {
		t.Fatalf("want %d notes, got %d", want, got)
	}
	if seq.Notes[0].Number() != 60 || seq.Notes[1].Number() != 62 {
		t.Errorf("wrong notes left: %+v", seq.Notes)
	}
}

func TestClear(t *testing.T) {
	seq := New()
	seq.Add(60, 0, 8)
	seq.AddEvent(ControlChange(0, 7, 100, 0), 1)
	seq.Clear()
	if seq.Len() != 0 || seq.TotalDuration != 0 {
		t.Errorf("clear left %d events, duration %v", seq.Len(), seq.TotalDuration)
	}
}

func TestNoteOffAlwaysBeforeNoteOn(t *testing.T) {
	noteOn := Event{Status: 0x90, Data1: 60, Beat: 0}
	noteOff := Event{Status: 0x80, Data1: 60, Beat: 0}
	otherNoteOn := Event{Status: 0x90, Data1: 61, Beat: 0}

	perms := [][]Event{
		{noteOn, noteOff, otherNoteOn},
		{noteOn, otherNoteOn, noteOff},
		{noteOff, noteOn, otherNoteOn},
		{noteOff, otherNoteOn, noteOn},
		{otherNoteOn, noteOn, noteOff},
		{otherNoteOn, noteOff, noteOn},
	}
	for _, perm := range perms {
		ordered := Order(perm)
		if index(ordered, noteOff) > index(ordered, noteOn) {
			t.Errorf("%v: note-off after note-on in %v", perm, ordered)
		}
		if index(ordered, noteOff) > index(ordered, otherNoteOn) {
			t.Errorf("%v: note-off after other note-on in %v", perm, ordered)
		}
	}
}

func TestEarlierBeatFirst(t *testing.T) {
	for _, status := range []byte{0x90, 0x80} {
		earlier := Event{Status: 0x90, Data1: 60, Beat: 0}
		later := Event{Status: status, Data1: 60, Beat: 1}
		for _, perm := range [][]Event{{earlier, later}, {later, earlier}} {
			ordered := Order(perm)
			if index(ordered, earlier) > index(ordered, later) {
				t.Errorf("status %#x: beat 1 before beat 0 in %v", status, ordered)
			}
		}
	}
}

func TestOrderIsStable(t *testing.T) {
	// enough equal elements that an unstable sort would shuffle them
	var evs []Event
	for i := 0; i < 64; i++ {
		evs = append(evs, ControlChange(0, 1, uint8(i), 2))
		evs = append(evs, NoteOn(0, uint8(i), 100, 2))
		evs = append(evs, NoteOff(0, uint8(i), 0, 2))
	}
	ordered := Order(evs)

	var offs, ons, ccs []uint8
	for i, ev := range ordered {
		switch {
		case ev.IsNoteOff():
			if i >= 64 {
				t.Fatalf("note-off at index %d after a note-on", i)
			}
			offs = append(offs, ev.Data1)
		case ev.IsNoteOn():
			ons = append(ons, ev.Data1)
		default:
			ccs = append(ccs, ev.Data2)
		}
	}
	for _, got := range [][]uint8{offs, ons, ccs} {
		for i, v := range got {
			if int(v) != i {
				t.Fatalf("insertion order lost: %v", got)
			}
		}
	}
}

func TestOrderLeavesInputAlone(t *testing.T) {
	in := []Event{NoteOn(0, 60, 1, 1), NoteOff(0, 60, 0, 0)}
	cp := append([]Event(nil), in...)
	Order(in)
	if !reflect.DeepEqual(in, cp) {
		t.Errorf("input modified: %v", in)
	}
}

func TestDegenerateNote(t *testing.T) {
	seq := New()
	seq.Add(60, 1, 0)
	seq.Add(62, 1, -0.5)
	ordered := seq.OrderedEvents()
	// at beat 1 the off comes first, then both ons in insertion order
	want := []Event{
		NoteOff(0, 62, 127, 0.5),
		NoteOff(0, 60, 127, 1),
		NoteOn(0, 60, 127, 1),
		NoteOn(0, 62, 127, 1),
	}
	if !reflect.DeepEqual(want, ordered) {
		t.Errorf("wrong order:\nwant: %v\ngot:  %v", want, ordered)
	}
}

func TestOrderedEventsDeterministic(t *testing.T) {
	build := func(order []int) *EventSequence {
		notes := []Note{
			NewNote(60, 0, 1),
			NewNote(62, 1, 1),
			NewNote(64, 0.5, 2),
		}
		seq := New()
		for _, i := range order {
			seq.AddNote(notes[i])
		}
		seq.AddEvent(ControlChange(0, 64, 127, 0), 0)
		seq.AddEvent(ControlChange(0, 64, 0, 0), 0)
		return seq
	}
	first := build([]int{0, 1, 2}).OrderedEvents()
	for _, order := range [][]int{{2, 1, 0}, {1, 0, 2}, {2, 0, 1}} {
		if got := build(order).OrderedEvents(); !reflect.DeepEqual(first, got) {
			t.Errorf("insertion order %v changed result:\nwant: %v\ngot:  %v", order, first, got)
		}
	}
	seq := build([]int{0, 1, 2})
	if !reflect.DeepEqual(seq.OrderedEvents(), seq.OrderedEvents()) {
		t.Error("repeated query differs")
	}
	// raw events at the same beat keep the caller's interleaving
	var ccs []uint8
	for _, ev := range first {
		if ev.Status == 0xB0 {
			ccs = append(ccs, ev.Data2)
		}
	}
	if !reflect.DeepEqual([]uint8{127, 0}, ccs) {
		t.Errorf("raw events reordered: %v", ccs)
	}
}

func TestByBeat(t *testing.T) {
	got := ByBeat(map[float64][]Event{
		1: {NoteOn(0, 61, 100, 0), NoteOff(0, 60, 0, 0)},
		0: {NoteOn(0, 60, 100, 0)},
	})
	want := []Event{
		NoteOn(0, 60, 100, 0),
		NoteOff(0, 60, 0, 1),
		NoteOn(0, 61, 100, 1),
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestFromMessage(t *testing.T) {
	ev, ok := FromMessage([]byte{0xC2, 5}, 3)
	if !ok {
		t.Fatal("program change refused")
	}
	if want, got := []byte{0xC2, 5}, []byte(ev.Message()); !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
	if _, ok := FromMessage([]byte{0xF0, 1, 2, 3, 0xF7}, 0); ok {
		t.Error("sysex accepted")
	}
}

func TestSetChannel(t *testing.T) {
	seq := New()
	seq.Add(60, 0, 1, WithChannel(3))
	seq.AddEvent(ControlChange(0, 7, 100, 0), 0.5)
	seq.SetChannel(9)
	for _, ev := range seq.OrderedEvents() {
		if want, got := uint8(9), ev.Channel(); want != got {
			t.Errorf("%v: want channel %d, got %d", ev, want, got)
		}
	}
	if want, got := uint8(0xB9), seq.Events[0].Status; want != got {
		t.Errorf("status: want %x, got %x", want, got)
	}
}
