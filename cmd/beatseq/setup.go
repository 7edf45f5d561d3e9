package main

import (
	stderrors "errors"

	charmlog "github.com/charmbracelet/log"
	"github.com/faiface/beep"

	"github.com/JeanRibes/beatseq/config"
	"github.com/JeanRibes/beatseq/hostaudio"
	"github.com/JeanRibes/beatseq/midifile"
	"github.com/JeanRibes/beatseq/midiout"
	"github.com/JeanRibes/beatseq/sequence"
	"github.com/JeanRibes/beatseq/sequencer"
)

type app struct {
	logger *charmlog.Logger
	out    *midiout.Port
	clock  *hostaudio.Clock
	node   *hostaudio.Node
	seq    *sequencer.Sequencer
}

func setup(cfg config.Config, bpm float64, logger *charmlog.Logger) (*app, error) {
	var out *midiout.Port
	var err error
	if cfg.Output.Serial != "" {
		out, err = midiout.OpenSerial(cfg.Output.Serial, cfg.Output.Baud, logger.WithPrefix("serial"))
	} else {
		out, err = midiout.Open(cfg.Output.Port, logger.WithPrefix("midiout"))
	}
	if err != nil {
		return nil, err
	}

	clock := hostaudio.NewClock(beep.SampleRate(cfg.SampleRate))
	a := &app{
		logger: logger,
		out:    out,
		clock:  clock,
		node:   hostaudio.NewNode(clock, out),
		seq: sequencer.New(
			sequencer.WithLogger(logger),
			sequencer.WithTempo(cfg.Tempo),
			sequencer.WithLength(cfg.Length),
			sequencer.WithLoop(cfg.Loop),
			sequencer.WithMaxPlayCount(cfg.MaxPlayCount),
		),
	}

	f, err := readTracks(cfg.Tracks, cfg.Tempo)
	if err != nil {
		out.Close()
		return nil, err
	}
	if bpm > 0 {
		f.Tempo = bpm
	}
	a.load(f)

	if err := clock.Start(cfg.Buffer); err != nil {
		a.seq.Close()
		out.Close()
		return nil, err
	}
	logger.Info("audio clock", "rate", int(clock.SampleRate()), "buffer", cfg.Buffer)
	return a, nil
}

// readTracks merges the tracks of every file, the first file giving the
// tempo.
func readTracks(tracks []config.Track, tempo float64) (*midifile.File, error) {
	merged := &midifile.File{Tempo: tempo}
	var errs error
	for i, t := range tracks {
		read := midifile.ReadFile
		if t.Quantize {
			read = midifile.ReadFileQuantized
		}
		f, err := read(t.File)
		if err != nil {
			errs = stderrors.Join(errs, err)
			continue
		}
		if i == 0 {
			merged.Tempo = f.Tempo
		}
		if t.Channel >= 0 {
			for _, s := range f.Tracks {
				s.SetChannel(uint8(t.Channel))
			}
		}
		merged.Tracks = append(merged.Tracks, f.Tracks...)
	}
	return merged, errs
}

// load replaces the tracks, every one of them driven by the audio clock.
func (a *app) load(f *midifile.File) {
	sequencer.Load(a.seq, f, func(int) sequencer.Sink { return a.node })
	if len(f.Tracks) == 0 {
		// an empty track to edit from the shell
		a.seq.AddTrack(a.node).SetSequence(sequence.New())
	}
	a.seq.SetLength(max(a.seq.Length(), longest(a.seq)))
}

func longest(seq *sequencer.Sequencer) float64 {
	var l float64
	for _, t := range seq.Tracks() {
		l = max(l, t.Length())
	}
	return l
}

func (a *app) Close() {
	a.seq.Close()
	a.clock.Stop()
	if err := a.out.Close(); err != nil {
		a.logger.Warn(err)
	}
}
