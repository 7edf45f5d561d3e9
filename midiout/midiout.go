// Package midiout sends scheduled events to MIDI hardware: a system MIDI port
// through gomidi drivers, or a raw serial line at the DIN MIDI baud rate.
package midiout

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	serial "github.com/albenik/go-serial/v2"
	charmlog "github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/JeanRibes/beatseq/sequence"
)

const (
	QueueSize = 256
	BaudRate  = 31250
)

// Port is a sequencer sink writing to a MIDI output. Schedule only queues
// the message, a goroutine does the (possibly slow) write. When the queue is
// full the message is dropped and counted. Sample offsets are not honored:
// messages leave as soon as the buffer that carries them is rendered.
type Port struct {
	logger *charmlog.Logger
	send   func(midi.Message) error
	closer io.Closer

	queue   chan midi.Message
	quit    chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
	once    sync.Once
}

// New starts the writer goroutine around send. closer, when not nil, is
// closed with the port.
func New(send func(midi.Message) error, closer io.Closer, logger *charmlog.Logger) *Port {
	if logger == nil {
		logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{Prefix: "midiout"})
	}
	p := &Port{
		logger: logger,
		send:   send,
		closer: closer,
		queue:  make(chan midi.Message, QueueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Port) run() {
	defer close(p.done)
	for {
		select {
		case msg := <-p.queue:
			p.write(msg)
		case <-p.quit:
			// flush what is left, note-offs from Stop included
			for {
				select {
				case msg := <-p.queue:
					p.write(msg)
				default:
					return
				}
			}
		}
	}
}

func (p *Port) write(msg midi.Message) {
	if err := p.send(msg); err != nil {
		p.logger.Warn("send failed", "msg", msg, "err", err)
	}
}

func (p *Port) Schedule(ev sequence.Event, offset int) {
	if p.closed.Load() {
		return
	}
	select {
	case p.queue <- ev.Message():
	default:
		if p.dropped.Add(1) == 1 {
			p.logger.Warn("output queue full, dropping messages")
		}
	}
}

// Dropped counts the messages lost to a full queue.
func (p *Port) Dropped() uint64 { return p.dropped.Load() }

// Close flushes the queue and closes the underlying output.
func (p *Port) Close() error {
	var err error
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.quit)
		<-p.done
		if p.closer != nil {
			err = p.closer.Close()
		}
		if n := p.dropped.Load(); n > 0 {
			p.logger.Warn("messages dropped", "count", n)
		}
	})
	return err
}

type outCloser struct{ out drivers.Out }

func (c outCloser) Close() error { return c.out.Close() }

// Open finds the MIDI output named name, or opens a virtual output with that
// name when none exists.
func Open(name string, logger *charmlog.Logger) (*Port, error) {
	if logger == nil {
		logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{Prefix: "midiout"})
	}
	out, err := midi.FindOutPort(name)
	if err != nil {
		logger.Info("can't find output, opening a virtual one", "name", name)
		drv, ok := drivers.Get().(*rtmididrv.Driver)
		if !ok {
			return nil, errors.Errorf("no output %q and no rtmidi driver for a virtual one", name)
		}
		out, err = drv.OpenVirtualOut(name)
		if err != nil {
			return nil, errors.Wrapf(err, "opening virtual output %s", name)
		}
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", out.String())
	}
	logger.Info("output", "port", out.String())
	return New(send, outCloser{out}, logger), nil
}

// OpenSerial writes raw MIDI bytes to a serial device, for boards wired to a
// DIN socket. baud <= 0 selects the MIDI rate.
func OpenSerial(name string, baud int, logger *charmlog.Logger) (*Port, error) {
	if baud <= 0 {
		baud = BaudRate
	}
	port, err := serial.Open(name,
		serial.WithBaudrate(baud),
		serial.WithDataBits(8),
		serial.WithParity(serial.NoParity),
		serial.WithStopBits(serial.OneStopBit),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "opening serial port %s", name)
	}
	return NewWriter(port, logger), nil
}

// NewWriter sends the wire bytes of each message to w.
func NewWriter(w io.WriteCloser, logger *charmlog.Logger) *Port {
	return New(func(msg midi.Message) error {
		_, err := w.Write(msg)
		return err
	}, w, logger)
}

// Outputs lists the system MIDI outputs.
func Outputs() []string {
	var names []string
	for _, out := range midi.GetOutPorts() {
		names = append(names, out.String())
	}
	return names
}

// SerialPorts lists the serial devices.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	return ports, errors.Wrap(err, "listing serial ports")
}
