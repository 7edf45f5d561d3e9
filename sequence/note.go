package sequence

const DefaultVelocity = 127

// Note is a note-on / note-off pair sharing pitch, channel and velocity.
type Note struct {
	On  Event
	Off Event
}

type noteOptions struct {
	velocity uint8
	channel  uint8
}

type NoteOption func(*noteOptions)

func WithVelocity(vel uint8) NoteOption {
	return func(o *noteOptions) {
		o.velocity = vel
	}
}

func WithChannel(ch uint8) NoteOption {
	return func(o *noteOptions) {
		o.channel = ch
	}
}

// NewNote builds the on/off pair for a note starting at position and lasting
// duration beats. A duration <= 0 is accepted: the off event then lands on
// (or before) the on event and ordering puts it first.
func NewNote(number uint8, position, duration float64, opts ...NoteOption) Note {
	o := noteOptions{velocity: DefaultVelocity}
	for _, opt := range opts {
		opt(&o)
	}
	return Note{
		On:  NoteOn(o.channel, number, o.velocity, position),
		Off: NoteOff(o.channel, number, o.velocity, position+duration),
	}
}

func (n Note) Number() uint8     { return n.On.Data1 }
func (n Note) Position() float64 { return n.On.Beat }
func (n Note) End() float64      { return n.Off.Beat }
func (n Note) Duration() float64 { return n.Off.Beat - n.On.Beat }
