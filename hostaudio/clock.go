// Package hostaudio drives tracks from the audio device: the speaker pulls
// silent buffers from a Clock, and every pull renders the subscribed tracks.
package hostaudio

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/pkg/errors"

	"github.com/JeanRibes/beatseq/sequence"
	"github.com/JeanRibes/beatseq/sequencer"
)

const DefaultSampleRate = beep.SampleRate(48000)

type observer struct {
	r sequencer.Renderer
}

// Clock is a beep.Streamer that never ends. It outputs silence and calls
// its render observers with the size of each buffer the speaker asks for.
type Clock struct {
	rate beep.SampleRate

	mu        sync.Mutex
	observers []*observer
	published atomic.Pointer[[]*observer]
}

func NewClock(rate beep.SampleRate) *Clock {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	c := &Clock{rate: rate}
	c.publishLocked()
	return c
}

func (c *Clock) SampleRate() beep.SampleRate { return c.rate }

func (c *Clock) Stream(samples [][2]float64) (int, bool) {
	clear(samples)
	for _, o := range *c.published.Load() {
		o.r.Render(len(samples), float64(c.rate))
	}
	return len(samples), true
}

func (c *Clock) Err() error { return nil }

type subscription struct {
	c *Clock
	o *observer
}

func (s subscription) Cancel() {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.observers = slices.DeleteFunc(s.c.observers, func(o *observer) bool { return o == s.o })
	s.c.publishLocked()
}

func (c *Clock) AddRenderObserver(r sequencer.Renderer) sequencer.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	o := &observer{r: r}
	c.observers = append(c.observers, o)
	c.publishLocked()
	return subscription{c: c, o: o}
}

func (c *Clock) publishLocked() {
	obs := slices.Clone(c.observers)
	c.published.Store(&obs)
}

// Start opens the speaker with buffers of the given duration and starts
// pulling from the clock.
func (c *Clock) Start(buffer time.Duration) error {
	if err := speaker.Init(c.rate, c.rate.N(buffer)); err != nil {
		return errors.Wrap(err, "opening speaker")
	}
	speaker.Play(c)
	return nil
}

func (c *Clock) Stop() {
	speaker.Clear()
}

// Node is a sink that lives on a clock: tracks bound to it are rendered by
// the clock, and their events go to out.
type Node struct {
	*Clock
	out sequencer.Sink
}

func NewNode(c *Clock, out sequencer.Sink) *Node {
	return &Node{Clock: c, out: out}
}

func (n *Node) Schedule(ev sequence.Event, offset int) {
	n.out.Schedule(ev, offset)
}
