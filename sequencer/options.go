package sequencer

import (
	"math"
	"os"

	charmlog "github.com/charmbracelet/log"
)

const (
	DefaultLength = 4.0
	DefaultTempo  = 120.0
)

// LengthMargin is added past the content when a track grows to fit it.
var LengthMargin = 0.01

type options struct {
	logger       *charmlog.Logger
	tempo        float64
	length       float64
	loop         bool
	maxPlayCount int
}

// positive holds for usable tempos and lengths.
func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type Option func(*options)

func WithLogger(l *charmlog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func WithTempo(bpm float64) Option {
	return func(o *options) {
		if positive(bpm) {
			o.tempo = bpm
		}
	}
}

func WithLength(beats float64) Option {
	return func(o *options) {
		if positive(beats) {
			o.length = beats
		}
	}
}

func WithLoop(enabled bool) Option {
	return func(o *options) {
		o.loop = enabled
	}
}

// WithMaxPlayCount limits the passes of looping tracks, 0 loops forever.
func WithMaxPlayCount(n int) Option {
	return func(o *options) {
		o.maxPlayCount = max(n, 0)
	}
}

func newOptions(opts []Option) options {
	o := options{
		tempo:  DefaultTempo,
		length: DefaultLength,
		loop:   true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			Level:           charmlog.InfoLevel,
			ReportTimestamp: false,
			Prefix:          "sequencer",
		})
	}
	return o
}
