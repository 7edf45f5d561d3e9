package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"

	. "github.com/JeanRibes/beatseq/shared"

	"github.com/JeanRibes/beatseq/config"
	"github.com/JeanRibes/beatseq/midiout"
	"github.com/JeanRibes/beatseq/sequencer"
	"github.com/JeanRibes/beatseq/ui"
)

type trackFlags []string

func (f *trackFlags) String() string     { return strings.Join(*f, ",") }
func (f *trackFlags) Set(v string) error { *f = append(*f, v); return nil }

func main() {
	configFile := flag.String("config", "", "yaml config file")
	outPort := flag.String("output", "", "MIDI output port name, overrides the config")
	serialPort := flag.String("serial", "", "serial device for DIN MIDI, overrides the output port")
	bpm := flag.Float64("bpm", 0, "tempo, overrides the config and the files")
	quantize := flag.Bool("quantize", false, "quantize the files given with -file")
	recentFile := flag.String("recent", "", "file remembering recent exports")
	logFile := flag.String("log", "beatseq.log", "log file while the interface runs")
	shell := flag.Bool("shell", false, "line-based shell instead of the full-screen interface")
	headless := flag.Bool("headless", false, "no interface: play until interrupted")
	list := flag.Bool("list", false, "list MIDI and serial outputs and exit")
	debug := flag.Bool("debug", false, "debug logging")
	var files trackFlags
	flag.Var(&files, "file", "MIDI file to play, repeatable")
	flag.Parse()

	if *list {
		listOutputs()
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *outPort != "" {
		cfg.Output.Port = *outPort
	}
	if *serialPort != "" {
		cfg.Output.Serial = *serialPort
	}
	for _, f := range files {
		cfg.Tracks = append(cfg.Tracks, config.Track{File: f, Quantize: *quantize, Channel: -1})
	}
	level := cfg.Level()
	if *debug {
		level = charmlog.DebugLevel
	}

	logOut := os.Stderr
	if !*headless && !*shell {
		// the interface owns the terminal
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := charmlog.NewWithOptions(logOut, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "beatseq",
	})

	defer midi.CloseDriver()
	a, err := setup(cfg, *bpm, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer a.Close()

	recent, err := ui.LoadRecent(*recentFile)
	if err != nil {
		logger.Warn(err)
	}
	for _, t := range cfg.Tracks {
		recent.AddLoaded(t.File)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	toLoop, fromLoop := NewBus(), NewBus()
	done := make(chan struct{})
	go func() {
		sequencer.Run(ctx, a.seq, toLoop, fromLoop)
		close(done)
		cancel()
	}()

	switch {
	case *headless:
		toLoop <- Message{Type: PlayFromStart}
		go drain(ctx, fromLoop, logger)
		<-ctx.Done()
	case *shell:
		go drain(ctx, fromLoop, logger)
		if err := runShell(ctx, a, toLoop, recent, logger); err != nil {
			logger.Error(err)
		}
		toLoop <- Message{Type: Quit}
	default:
		m := ui.NewModel(toLoop, fromLoop, recent, logger).WithLoop(cfg.Loop)
		if err := ui.Run(ctx, m); err != nil {
			logger.Error(err)
		}
	}
	cancel()
	<-done

	if err := recent.Save(); err != nil {
		logger.Warn(err)
	}
}

// drain logs the notifications nobody displays.
func drain(ctx context.Context, fromLoop <-chan Message, logger *charmlog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-fromLoop:
			if msg.Type == Error {
				logger.Error(msg.String)
			}
		}
	}
}

func listOutputs() {
	fmt.Println("MIDI outputs:")
	for _, name := range midiout.Outputs() {
		fmt.Println("  ", name)
	}
	ports, err := midiout.SerialPorts()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println("serial ports:")
	for _, p := range ports {
		fmt.Println("  ", p)
	}
}
