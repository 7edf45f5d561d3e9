package hostaudio

import (
	"io"
	"reflect"
	"testing"

	charmlog "github.com/charmbracelet/log"

	"github.com/JeanRibes/beatseq/sequencer"
)

type counter struct {
	frames int
	rate   float64
}

func (c *counter) Render(frames int, sampleRate float64) {
	c.frames += frames
	c.rate = sampleRate
}

func TestClockStream(t *testing.T) {
	c := NewClock(0)
	if want, got := DefaultSampleRate, c.SampleRate(); want != got {
		t.Errorf("sample rate: want %v, got %v", want, got)
	}
	a, b := &counter{}, &counter{}
	c.AddRenderObserver(a)
	sub := c.AddRenderObserver(b)

	samples := make([][2]float64, 512)
	samples[3] = [2]float64{1, 1}
	if n, ok := c.Stream(samples); n != 512 || !ok {
		t.Fatalf("stream: %d %v", n, ok)
	}
	if samples[3] != [2]float64{} {
		t.Error("clock is not silent")
	}

	sub.Cancel()
	c.Stream(samples[:256])
	if want, got := (counter{768, 48000}), *a; want != got {
		t.Errorf("a: want %+v, got %+v", want, got)
	}
	if want, got := (counter{512, 48000}), *b; want != got {
		t.Errorf("b: want %+v, got %+v", want, got)
	}
}

func TestNodeDrivesTrack(t *testing.T) {
	c := NewClock(DefaultSampleRate)
	rec := &sequencer.Recorder{}
	track := sequencer.NewTrack(NewNode(c, rec), sequencer.WithLogger(charmlog.New(io.Discard)))
	track.Add(60, 0.5, 0.5)
	track.PlayFromStart()

	// one beat at 120 bpm
	c.Stream(make([][2]float64, 24000))
	var got []int
	for _, d := range rec.Flush() {
		got = append(got, d.Offset)
	}
	if want := []int{12000}; !reflect.DeepEqual(want, got) {
		t.Errorf("offsets: want %v, got %v", want, got)
	}

	track.Close()
	if evs := rec.Flush(); len(evs) != 1 || !evs[0].Event.IsNoteOff() {
		t.Errorf("close did not release the note: %+v", evs)
	}
	c.Stream(make([][2]float64, 24000))
	if evs := rec.Flush(); len(evs) != 0 {
		t.Errorf("closed track still rendered: %+v", evs)
	}
}
