package sequencer

import (
	"context"
	"strings"

	. "github.com/JeanRibes/beatseq/shared"

	"github.com/JeanRibes/beatseq/midifile"
	"github.com/JeanRibes/beatseq/sequence"
)

// Run is the control loop: it applies the commands read from in to seq until
// ctx is done or a Quit arrives, and answers each command with a StateNotify
// (or an Error) on out. Sends on out never block the loop.
func Run(ctx context.Context, seq *Sequencer, in <-chan Message, out chan<- Message) {
	logger := seq.logger.WithPrefix("transport")
	logger.Info("start")
	defer logger.Info("stop")

	notify := func(msg Message) {
		select {
		case out <- msg:
		default:
			logger.Debug("notification dropped", "type", msg.Type)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug("context done")
			seq.Stop()
			return
		case msg := <-in:
			switch msg.Type {
			case Quit:
				seq.Stop()
				return
			case PlayPause:
				if seq.IsPlaying() {
					seq.Stop()
					logger.Info("stop playing")
				} else {
					seq.Play()
					logger.Info("start playing")
				}
			case PlayFromStart:
				seq.PlayFromStart()
				logger.Info("play from start")
			case PlayAfterDelay:
				seq.PlayAfterDelay(msg.Value)
				logger.Info("play after delay", "beats", msg.Value)
			case Stop:
				seq.Stop()
				logger.Info("stop playing")
			case Rewind:
				seq.Rewind()
			case Seek:
				seq.Seek(msg.Value)
				logger.Debug("seek", "position", msg.Value)
			case Tempo:
				seq.SetTempo(msg.Value)
				logger.Info("tempo", "bpm", msg.Value)
			case LoopToggle:
				seq.SetLoopEnabled(!seq.LoopEnabled())
				logger.Info("loop", "enabled", seq.LoopEnabled())
			case Length:
				seq.SetLength(msg.Value)
				logger.Info("length", "beats", msg.Value)
			case MaxPlayCount:
				seq.SetMaxPlayCount(msg.Number)
				logger.Info("max play count", "count", msg.Number)
			case StateNotify:
				// a front-end asking for a refresh
			case Export:
				fileName := msg.String
				if !strings.HasSuffix(fileName, ".mid") {
					fileName += ".mid"
				}
				logger.Info("saving to", "filename", fileName)
				if err := ExportFile(seq, fileName); err != nil {
					logger.Error(err)
					notify(Message{Type: Error, String: err.Error()})
					continue
				}
			default:
				logger.Warnf("unknown message type: %v", msg.Type)
				continue
			}
			notify(State(seq))
		}
	}
}

// State snapshots the transport for front-ends.
func State(seq *Sequencer) Message {
	msg := Message{
		Type:    StateNotify,
		Boolean: seq.IsPlaying(),
		Value:   seq.Position(),
		Value2:  seq.Tempo(),
	}
	tracks := seq.Tracks()
	msg.Number = len(tracks)
	if len(tracks) > 0 {
		msg.Number2 = tracks[0].LoopIteration()
	}
	return msg
}

// ExportFile writes every track of seq to one MIDI file.
func ExportFile(seq *Sequencer, fileName string) error {
	tracks := seq.Tracks()
	seqs := make([]*sequence.EventSequence, 0, len(tracks))
	for _, t := range tracks {
		seqs = append(seqs, t.Sequence())
	}
	return midifile.WriteFile(fileName, seq.Tempo(), seqs...)
}

// Load replaces the content of seq with the tracks of a MIDI file, one track
// per file track, every track bound to target. The file tempo becomes the
// sequencer tempo.
func Load(seq *Sequencer, f *midifile.File, target func(i int) Sink) {
	seq.Stop()
	seq.Close()
	seq.SetTempo(f.Tempo)
	for i, s := range f.Tracks {
		t := seq.AddTrack(target(i))
		t.SetSequence(s)
	}
	seq.logger.Info("loaded", "tracks", len(f.Tracks), "bpm", f.Tempo)
}
