package sequencer

import (
	"sync"

	"github.com/JeanRibes/beatseq/sequence"
)

// Sink is the instrument side of a track: it receives each event with its
// sample offset inside the buffer being rendered. Schedule is called from
// the render goroutine, and from the control goroutine for the note-offs
// sent by Stop, so implementations must tolerate both.
type Sink interface {
	Schedule(ev sequence.Event, offset int)
}

type SinkFunc func(ev sequence.Event, offset int)

func (f SinkFunc) Schedule(ev sequence.Event, offset int) { f(ev, offset) }

// Renderer is called once per audio buffer.
type Renderer interface {
	Render(frames int, sampleRate float64)
}

// Observable sinks drive their observers from their own render cycle,
// the way an audio unit calls its render observers.
type Observable interface {
	AddRenderObserver(r Renderer) Subscription
}

// Subscription is released when a track is rebound or closed.
type Subscription interface {
	Cancel()
}

// Dispatch is one Schedule call seen by a Recorder.
type Dispatch struct {
	Event  sequence.Event
	Offset int
}

// Recorder captures every scheduled event. Used by tests and dry runs.
type Recorder struct {
	mu     sync.Mutex
	events []Dispatch
}

func (r *Recorder) Schedule(ev sequence.Event, offset int) {
	r.mu.Lock()
	r.events = append(r.events, Dispatch{Event: ev, Offset: offset})
	r.mu.Unlock()
}

func (r *Recorder) Events() []Dispatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Dispatch(nil), r.events...)
}

// Flush returns the captured events and forgets them.
func (r *Recorder) Flush() []Dispatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	evs := r.events
	r.events = nil
	return evs
}
