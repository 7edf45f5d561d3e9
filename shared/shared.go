package shared

import "fmt"

// Command is what travels on the transport bus between front-ends and the
// control loop.
type Command int

const (
	Quit Command = iota
	PlayPause
	PlayFromStart
	PlayAfterDelay
	Stop
	Rewind
	Seek
	Tempo
	LoopToggle
	Length
	MaxPlayCount
	Export
	Error
	StateNotify
)

var commandNames = [...]string{
	Quit:           "quit",
	PlayPause:      "play-pause",
	PlayFromStart:  "play-from-start",
	PlayAfterDelay: "play-after-delay",
	Stop:           "stop",
	Rewind:         "rewind",
	Seek:           "seek",
	Tempo:          "tempo",
	LoopToggle:     "loop",
	Length:         "length",
	MaxPlayCount:   "max-play-count",
	Export:         "export",
	Error:          "error",
	StateNotify:    "state",
}

func (c Command) String() string {
	if c >= 0 && int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// Message carries one command. Which fields matter depends on Type:
// Value for beats and bpm, Number for counts, String for file names.
// StateNotify sets Boolean (playing), Value (position), Value2 (tempo),
// Number (tracks) and Number2 (loop iteration).
type Message struct {
	Type    Command
	Number  int
	Number2 int
	Value   float64
	Value2  float64
	Boolean bool
	String  string
}

const BusSize = 16

func NewBus() chan Message {
	return make(chan Message, BusSize)
}
