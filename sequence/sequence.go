package sequence

import "slices"

// EventSequence holds the notes and raw events of one track.
// TotalDuration is an advisory bound in beats: it only ever grows to cover
// the content, removals do not shrink it.
type EventSequence struct {
	Notes         []Note
	Events        []Event
	TotalDuration float64
}

func New() *EventSequence {
	return &EventSequence{}
}

// AddNote stores the note and returns the beat where it ends.
func (s *EventSequence) AddNote(n Note) float64 {
	s.Notes = append(s.Notes, n)
	end := max(n.On.Beat, n.Off.Beat)
	s.TotalDuration = max(s.TotalDuration, end)
	return end
}

func (s *EventSequence) Add(number uint8, position, duration float64, opts ...NoteOption) float64 {
	return s.AddNote(NewNote(number, position, duration, opts...))
}

// AddEvent stores ev at position, overriding the event's own beat.
func (s *EventSequence) AddEvent(ev Event, position float64) float64 {
	s.Events = append(s.Events, ev.At(position))
	s.TotalDuration = max(s.TotalDuration, position)
	return position
}

// RemoveNote drops the first note starting exactly at beat.
// It reports whether a note was removed.
func (s *EventSequence) RemoveNote(beat float64) bool {
	i := slices.IndexFunc(s.Notes, func(n Note) bool { return n.On.Beat == beat })
	if i < 0 {
		return false
	}
	s.Notes = slices.Delete(s.Notes, i, i+1)
	return true
}

// RemoveAllInstancesOf drops every note with this pitch and returns how many went.
func (s *EventSequence) RemoveAllInstancesOf(number uint8) int {
	before := len(s.Notes)
	s.Notes = slices.DeleteFunc(s.Notes, func(n Note) bool { return n.On.Data1 == number })
	return before - len(s.Notes)
}

func (s *EventSequence) Clear() {
	s.Notes = nil
	s.Events = nil
	s.TotalDuration = 0
}

// Len is the number of events OrderedEvents will return.
func (s *EventSequence) Len() int {
	return 2*len(s.Notes) + len(s.Events)
}

// OrderedEvents flattens notes into on/off pairs, appends the raw events and
// orders the whole set by beat. Same content always gives the same slice.
func (s *EventSequence) OrderedEvents() []Event {
	flat := make([]Event, 0, s.Len())
	for _, n := range s.Notes {
		flat = append(flat, n.On, n.Off)
	}
	flat = append(flat, s.Events...)
	return Order(flat)
}

func (s *EventSequence) Clone() *EventSequence {
	if s == nil {
		return New()
	}
	return &EventSequence{
		Notes:         slices.Clone(s.Notes),
		Events:        slices.Clone(s.Events),
		TotalDuration: s.TotalDuration,
	}
}

func (s *EventSequence) Equal(o *EventSequence) bool {
	return s.TotalDuration == o.TotalDuration &&
		slices.Equal(s.Notes, o.Notes) &&
		slices.Equal(s.Events, o.Events)
}

// SetChannel moves every channel message to ch.
func (s *EventSequence) SetChannel(ch uint8) {
	ch &= 0x0F
	for i := range s.Notes {
		s.Notes[i].On.Status = s.Notes[i].On.Status&0xF0 | ch
		s.Notes[i].Off.Status = s.Notes[i].Off.Status&0xF0 | ch
	}
	for i := range s.Events {
		s.Events[i].Status = s.Events[i].Status&0xF0 | ch
	}
}
