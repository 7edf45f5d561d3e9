package sequencer

import (
	"slices"
	"sync"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"
)

// Sequencer drives several tracks from one transport. Every command is
// forwarded to each track in insertion order; tracks are not otherwise
// locked together and may drift if handled one by one.
type Sequencer struct {
	logger *charmlog.Logger
	opts   options

	mu     sync.Mutex
	nextID TrackID
	tracks []*Track

	// read by Render
	published atomic.Pointer[[]*Track]
}

func New(opts ...Option) *Sequencer {
	o := newOptions(opts)
	s := &Sequencer{
		logger: o.logger,
		opts:   o,
		nextID: 1,
	}
	s.publishLocked()
	return s
}

// AddTrack creates a track bound to target, using the sequencer's current
// tempo, length and loop settings.
func (s *Sequencer) AddTrack(target Sink) *Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := newTrack(s.nextID, target, s.opts)
	s.nextID++
	s.tracks = append(s.tracks, t)
	s.publishLocked()
	s.logger.Debug("track added", "track", t.id, "count", len(s.tracks))
	return t
}

func (s *Sequencer) Track(id TrackID) (*Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		if t.id == id {
			return t, true
		}
	}
	return nil, false
}

// Tracks lists the tracks in the order they were added.
func (s *Sequencer) Tracks() []*Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tracks)
}

// RemoveTrack stops the track, releases its sink and forgets it.
func (s *Sequencer) RemoveTrack(id TrackID) bool {
	s.mu.Lock()
	i := slices.IndexFunc(s.tracks, func(t *Track) bool { return t.id == id })
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	t := s.tracks[i]
	s.tracks = slices.Delete(s.tracks, i, i+1)
	s.publishLocked()
	s.mu.Unlock()

	t.Close()
	s.logger.Debug("track removed", "track", id)
	return true
}

func (s *Sequencer) publishLocked() {
	tracks := slices.Clone(s.tracks)
	s.published.Store(&tracks)
}

func (s *Sequencer) each(fn func(t *Track)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		fn(t)
	}
}

func (s *Sequencer) Play()                 { s.each((*Track).Play) }
func (s *Sequencer) PlayFromStart()        { s.each((*Track).PlayFromStart) }
func (s *Sequencer) Stop()                 { s.each((*Track).Stop) }
func (s *Sequencer) Rewind()               { s.each((*Track).Rewind) }
func (s *Sequencer) StopPlayingNotes()     { s.each((*Track).StopPlayingNotes) }
func (s *Sequencer) Seek(position float64) { s.each(func(t *Track) { t.Seek(position) }) }
func (s *Sequencer) PlayAfterDelay(beats float64) {
	s.each(func(t *Track) { t.PlayAfterDelay(beats) })
}

// SetTempo also becomes the tempo of tracks added later.
func (s *Sequencer) SetTempo(bpm float64) {
	if !positive(bpm) {
		s.logger.Warn("ignoring tempo", "bpm", bpm)
		return
	}
	s.mu.Lock()
	s.opts.tempo = bpm
	s.mu.Unlock()
	s.each(func(t *Track) { t.SetTempo(bpm) })
}

func (s *Sequencer) Tempo() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.tempo
}

func (s *Sequencer) SetLength(beats float64) {
	if !positive(beats) {
		s.logger.Warn("ignoring length", "beats", beats)
		return
	}
	s.mu.Lock()
	s.opts.length = beats
	s.mu.Unlock()
	s.each(func(t *Track) { t.SetLength(beats) })
}

func (s *Sequencer) Length() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.length
}

func (s *Sequencer) SetLoopEnabled(enabled bool) {
	s.mu.Lock()
	s.opts.loop = enabled
	s.mu.Unlock()
	s.each(func(t *Track) { t.SetLoopEnabled(enabled) })
}

func (s *Sequencer) LoopEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.loop
}

// SetMaxPlayCount also becomes the limit of tracks added later.
func (s *Sequencer) SetMaxPlayCount(n int) {
	s.mu.Lock()
	s.opts.maxPlayCount = max(n, 0)
	s.mu.Unlock()
	s.each(func(t *Track) { t.SetMaxPlayCount(n) })
}

// IsPlaying reports whether any track is playing.
func (s *Sequencer) IsPlaying() bool {
	playing := false
	s.each(func(t *Track) { playing = playing || t.IsPlaying() })
	return playing
}

// Position is the position of the first track, 0 without tracks.
func (s *Sequencer) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tracks) == 0 {
		return 0
	}
	return s.tracks[0].Position()
}

// Render advances every track by one buffer. Only use it for tracks whose
// sink is not Observable, otherwise those tracks advance twice.
func (s *Sequencer) Render(frames int, sampleRate float64) {
	for _, t := range *s.published.Load() {
		t.Render(frames, sampleRate)
	}
}

// Close removes every track.
func (s *Sequencer) Close() {
	for _, t := range s.Tracks() {
		s.RemoveTrack(t.id)
	}
}
