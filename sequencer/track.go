package sequencer

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"

	"github.com/JeanRibes/beatseq/sequence"
)

type TrackID uint64

// snapshot is everything Render needs for one buffer. It is never modified
// once published.
type snapshot struct {
	events       []sequence.Event
	tempo        float64
	length       float64
	loop         bool
	maxPlayCount int
}

type seekRequest struct {
	position float64
}

type sinkRef struct {
	sink Sink
}

// Track plays one EventSequence into one Sink.
//
// Two goroutines use a track. The control goroutine calls everything except
// Render; those calls are serialized by mu and publish an immutable snapshot.
// The render goroutine calls Render once per buffer and never locks: it reads
// one snapshot, owns the play position and loop counter, and publishes them
// back through atomics for display.
type Track struct {
	id     TrackID
	logger *charmlog.Logger

	mu           sync.Mutex
	seq          *sequence.EventSequence
	tempo        float64
	length       float64
	loop         bool
	maxPlayCount int
	sub          Subscription

	snap      atomic.Pointer[snapshot]
	target    atomic.Pointer[sinkRef]
	seek      atomic.Pointer[seekRequest]
	playing   atomic.Bool
	position  atomic.Uint64 // float64 bits
	iteration atomic.Int64

	// 16 channels x 128 keys
	sounding [16 * 128]atomic.Bool
	nSound   atomic.Int32

	// render goroutine only
	pos  float64
	iter int
}

// NewTrack binds a fresh track to target. target may be nil, the track then
// stays silent until SetTarget is called.
func NewTrack(target Sink, opts ...Option) *Track {
	return newTrack(0, target, newOptions(opts))
}

func newTrack(id TrackID, target Sink, o options) *Track {
	t := &Track{
		id:     id,
		logger: o.logger.With("track", id),
		seq:    sequence.New(),
		tempo:  o.tempo,
		length: o.length,
		loop:   o.loop,

		maxPlayCount: max(o.maxPlayCount, 0),
	}
	if !positive(t.tempo) {
		t.tempo = DefaultTempo
	}
	if !positive(t.length) {
		t.length = DefaultLength
	}
	t.publishLocked()
	t.SetTarget(target)
	return t
}

func (t *Track) ID() TrackID { return t.id }

// ---- transport

// Play resumes from the current position.
func (t *Track) Play() {
	t.playing.Store(true)
	t.logger.Debug("play", "position", t.Position())
}

func (t *Track) PlayFromStart() {
	t.Seek(0)
	t.Play()
}

// PlayAfterDelay starts beats before the beginning of the sequence.
func (t *Track) PlayAfterDelay(beats float64) {
	if !finite(beats) {
		t.logger.Warn("ignoring delay", "beats", beats)
		return
	}
	t.Seek(-beats)
	t.Play()
}

// Stop halts playback and sends a note-off for every note still sounding
// before returning.
func (t *Track) Stop() {
	t.playing.Store(false)
	t.StopPlayingNotes()
	t.logger.Debug("stop", "position", t.Position())
}

// StopPlayingNotes sends a note-off for every note still sounding.
func (t *Track) StopPlayingNotes() {
	if ref := t.target.Load(); ref != nil {
		t.releaseNotes(ref.sink, 0, t.Position())
	}
}

// Seek moves the play head. It does not silence sounding notes, and it
// starts a new pass: the loop counter goes back to zero.
func (t *Track) Seek(position float64) {
	if !finite(position) {
		t.logger.Warn("ignoring seek", "position", position)
		return
	}
	t.seek.Store(&seekRequest{position: position})
}

func (t *Track) Rewind() { t.Seek(0) }

func (t *Track) IsPlaying() bool { return t.playing.Load() }

// Position is the play head in beats. It lags the render goroutine by at
// most one buffer.
func (t *Track) Position() float64 {
	if req := t.seek.Load(); req != nil {
		return req.position
	}
	return math.Float64frombits(t.position.Load())
}

func (t *Track) LoopIteration() int {
	if t.seek.Load() != nil {
		return 0
	}
	return int(t.iteration.Load())
}

// ---- settings

func (t *Track) SetTempo(bpm float64) {
	if !positive(bpm) {
		t.logger.Warn("ignoring tempo", "bpm", bpm)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tempo = bpm
	t.publishLocked()
}

func (t *Track) Tempo() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tempo
}

// SetLength sets the loop length in beats. Shorter than the content is
// allowed here, only added content grows the track.
func (t *Track) SetLength(beats float64) {
	if !positive(beats) {
		t.logger.Warn("ignoring track length", "beats", beats)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.length = beats
	t.publishLocked()
}

func (t *Track) Length() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.length
}

func (t *Track) SetLoopEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loop = enabled
	t.publishLocked()
}

func (t *Track) LoopEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loop
}

// SetMaxPlayCount limits how many passes a looping track plays.
// 0 or less loops forever.
func (t *Track) SetMaxPlayCount(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxPlayCount = max(n, 0)
	t.publishLocked()
}

func (t *Track) MaxPlayCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxPlayCount
}

// ---- content

// SetSequence replaces the whole content with a copy of seq.
// Notes sounding from the previous content are not released: call Stop
// first if they must be cut cleanly.
func (t *Track) SetSequence(seq *sequence.EventSequence) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq = seq.Clone()
	t.fitLocked()
	t.publishLocked()
}

// Sequence returns a copy of the content.
func (t *Track) Sequence() *sequence.EventSequence {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq.Clone()
}

func (t *Track) AddNote(n sequence.Note) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq.AddNote(n)
	t.fitLocked()
	t.publishLocked()
}

func (t *Track) Add(number uint8, position, duration float64, opts ...sequence.NoteOption) {
	t.AddNote(sequence.NewNote(number, position, duration, opts...))
}

func (t *Track) AddEvent(ev sequence.Event, position float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq.AddEvent(ev, position)
	t.fitLocked()
	t.publishLocked()
}

func (t *Track) RemoveNote(at float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.seq.RemoveNote(at) {
		return false
	}
	t.publishLocked()
	return true
}

func (t *Track) RemoveAllInstancesOf(number uint8) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.seq.RemoveAllInstancesOf(number)
	if n > 0 {
		t.publishLocked()
	}
	return n
}

func (t *Track) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq.Clear()
	t.publishLocked()
}

// fitLocked grows the track when the content reaches its end.
func (t *Track) fitLocked() {
	if d := t.seq.TotalDuration; d >= t.length {
		t.logger.Warn("note event sequence duration exceeds the bounds of the track", "duration", d, "length", t.length)
		t.length = d + LengthMargin
		t.logger.Info("track length extended", "length", t.length)
	}
}

func (t *Track) publishLocked() {
	t.snap.Store(&snapshot{
		events:       t.seq.OrderedEvents(),
		tempo:        t.tempo,
		length:       t.length,
		loop:         t.loop,
		maxPlayCount: t.maxPlayCount,
	})
}

// ---- binding

// SetTarget rebinds the track. Notes sounding on the previous sink are
// released there, and the render subscription follows the new sink when it
// is Observable.
func (t *Track) SetTarget(target Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old := t.target.Load(); old != nil {
		t.releaseNotes(old.sink, 0, t.Position())
	}
	if t.sub != nil {
		t.sub.Cancel()
		t.sub = nil
	}
	if target == nil {
		t.target.Store(nil)
		return
	}
	t.target.Store(&sinkRef{sink: target})
	if obs, ok := target.(Observable); ok {
		t.sub = obs.AddRenderObserver(t)
	}
}

// Close stops the track and releases its sink.
func (t *Track) Close() {
	t.Stop()
	t.SetTarget(nil)
}

// ---- render

// Render advances the track by one buffer of frames at sampleRate and
// schedules every event falling inside it. It never blocks or allocates.
func (t *Track) Render(frames int, sampleRate float64) {
	if req := t.seek.Swap(nil); req != nil {
		t.pos = req.position
		t.iter = 0
		t.publishPosition()
	}
	ref := t.target.Load()
	if ref == nil {
		return
	}
	sink := ref.sink
	if !t.playing.Load() {
		if t.nSound.Load() > 0 {
			t.releaseNotes(sink, 0, t.pos)
		}
		return
	}
	snap := t.snap.Load()
	if frames <= 0 || !positive(sampleRate) {
		return
	}
	samplesPerBeat := sampleRate * 60 / snap.tempo
	if snap.length <= 0 {
		t.finish(sink, 0)
		return
	}

	start := t.pos
	if snap.loop && start >= snap.length {
		// the length shrank under the play head: fold it back in without
		// counting a pass
		start = math.Mod(start, snap.length)
	}
	end := start + float64(frames)/samplesPerBeat
	// beat found at frame 0, in the coordinates of the current pass
	origin := start
	for wraps := 1; ; wraps++ {
		if end < snap.length {
			t.dispatch(snap.events, sink, start, end, origin, samplesPerBeat, frames)
			t.pos = end
			break
		}
		t.dispatch(snap.events, sink, start, snap.length, origin, samplesPerBeat, frames)
		if !snap.loop {
			t.pos = snap.length
			t.finish(sink, offsetOf(snap.length, origin, samplesPerBeat, frames))
			break
		}
		t.iter++
		if snap.maxPlayCount > 0 && t.iter >= snap.maxPlayCount {
			t.pos = snap.length
			t.finish(sink, offsetOf(snap.length, origin, samplesPerBeat, frames))
			break
		}
		origin -= snap.length
		end -= snap.length
		start = 0
		if wraps >= frames {
			// passes shorter than a sample cannot be heard, skip the rest
			end = math.Mod(end, snap.length)
		}
	}
	t.publishPosition()
}

func (t *Track) publishPosition() {
	t.position.Store(math.Float64bits(t.pos))
	t.iteration.Store(int64(t.iter))
}

// dispatch schedules the events in [from, to).
func (t *Track) dispatch(events []sequence.Event, sink Sink, from, to, origin, samplesPerBeat float64, frames int) {
	i := sort.Search(len(events), func(i int) bool { return events[i].Beat >= from })
	for ; i < len(events) && events[i].Beat < to; i++ {
		ev := events[i]
		off := offsetOf(ev.Beat, origin, samplesPerBeat, frames)
		// a note is only marked sounding once its note-on is out, so a Stop
		// landing in between leaves the flag for the next sweep
		if ev.IsNoteOn() && ev.Data2 > 0 {
			sink.Schedule(ev, off)
			t.follow(ev)
			continue
		}
		t.follow(ev)
		sink.Schedule(ev, off)
	}
}

func offsetOf(beat, origin, samplesPerBeat float64, frames int) int {
	off := int(math.Round((beat - origin) * samplesPerBeat))
	return min(max(off, 0), frames-1)
}

// follow keeps the sounding-note flags in sync with what has been sent.
func (t *Track) follow(ev sequence.Event) {
	if !ev.IsNoteOn() && !ev.IsNoteOff() {
		return
	}
	k := int(ev.Channel())*128 + int(ev.Data1&0x7F)
	if ev.IsNoteOn() && ev.Data2 > 0 {
		if t.sounding[k].CompareAndSwap(false, true) {
			t.nSound.Add(1)
		}
		return
	}
	if t.sounding[k].CompareAndSwap(true, false) {
		t.nSound.Add(-1)
	}
}

// finish is the render-side transition to stopped.
func (t *Track) finish(sink Sink, offset int) {
	t.playing.CompareAndSwap(true, false)
	t.releaseNotes(sink, offset, t.pos)
}

// releaseNotes sends one note-off per sounding note. Both goroutines may run
// it at once; the compare-and-swap hands each note to exactly one of them.
func (t *Track) releaseNotes(sink Sink, offset int, beat float64) {
	if t.nSound.Load() == 0 {
		return
	}
	for k := range t.sounding {
		if t.sounding[k].CompareAndSwap(true, false) {
			t.nSound.Add(-1)
			sink.Schedule(sequence.Event{
				Status: 0x80 | byte(k/128),
				Data1:  byte(k % 128),
				Beat:   beat,
			}, offset)
		}
	}
}
