package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	. "github.com/JeanRibes/beatseq/shared"

	"github.com/JeanRibes/beatseq/midifile"
	"github.com/JeanRibes/beatseq/sequence"
	"github.com/JeanRibes/beatseq/sequencer"
	"github.com/JeanRibes/beatseq/ui"
)

const shellHelp = `transport:
  play | start | delay <beats> | stop | rewind | seek <beat>
  tempo <bpm> | length <beats> | loop | count <passes>
content (track defaults to 1):
  add <key> <beat> <duration> [velocity] [track]
  remove <beat> [track] | removeall <key> [track] | clear [track]
files:
  load <file.mid> [quantize] | export <file.mid>
  tracks | status | help | quit`

var errQuit = errors.New("quit")

func runShell(ctx context.Context, a *app, toLoop chan<- Message, recent *ui.Recent, logger *charmlog.Logger) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "beatseq> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("play"), readline.PcItem("start"), readline.PcItem("delay"),
			readline.PcItem("stop"), readline.PcItem("rewind"), readline.PcItem("seek"),
			readline.PcItem("tempo"), readline.PcItem("length"), readline.PcItem("loop"),
			readline.PcItem("count"), readline.PcItem("add"), readline.PcItem("remove"),
			readline.PcItem("removeall"), readline.PcItem("clear"),
			readline.PcItem("load", readline.PcItemDynamic(listMidiFiles)),
			readline.PcItem("export", readline.PcItemDynamic(listMidiFiles)),
			readline.PcItem("tracks"), readline.PcItem("status"),
			readline.PcItem("help"), readline.PcItem("quit"),
		),
	})
	if err != nil {
		return errors.Wrap(err, "starting shell")
	}
	defer rl.Close()
	fmt.Fprintln(rl.Stdout(), shellHelp)

	sh := &shell{app: a, toLoop: toLoop, recent: recent, w: rl.Stdout()}
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading line")
		}
		switch err := sh.exec(line); {
		case err == errQuit:
			return nil
		case err != nil:
			logger.Error(err)
		}
	}
	return nil
}

type shell struct {
	app    *app
	toLoop chan<- Message
	recent *ui.Recent
	w      io.Writer
}

func (sh *shell) send(msg Message) {
	sh.toLoop <- msg
}

func (sh *shell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Fprintln(sh.w, shellHelp)
	case "play":
		sh.send(Message{Type: PlayPause})
	case "start":
		sh.send(Message{Type: PlayFromStart})
	case "stop":
		sh.send(Message{Type: Stop})
	case "rewind":
		sh.send(Message{Type: Rewind})
	case "loop":
		sh.send(Message{Type: LoopToggle})
	case "delay", "seek", "tempo", "length":
		v, err := floatArg(args, 0)
		if err != nil {
			return err
		}
		typ := map[string]Command{"delay": PlayAfterDelay, "seek": Seek, "tempo": Tempo, "length": Length}[cmd]
		sh.send(Message{Type: typ, Value: v})
	case "count":
		n, err := intArg(args, 0, 0)
		if err != nil {
			return err
		}
		sh.send(Message{Type: MaxPlayCount, Number: n})
	case "export":
		if len(args) == 0 {
			return errors.New("export: file name missing")
		}
		sh.send(Message{Type: Export, String: args[0]})
		if sh.recent != nil {
			sh.recent.Add(args[0])
		}
	case "load":
		if len(args) == 0 {
			return errors.New("load: file name missing")
		}
		read := midifile.ReadFile
		if len(args) > 1 && args[1] == "quantize" {
			read = midifile.ReadFileQuantized
		}
		f, err := read(args[0])
		if err != nil {
			return err
		}
		sh.app.load(f)
		if sh.recent != nil {
			sh.recent.AddLoaded(args[0])
		}
		fmt.Fprintf(sh.w, "%d tracks at %.1f bpm\n", len(f.Tracks), f.Tempo)
	case "add":
		if len(args) < 3 {
			return errors.New("add: want <key> <beat> <duration>")
		}
		key, err := intArg(args, 0, 0)
		if err != nil || key < 0 || key > 127 {
			return errors.Errorf("add: bad key %q", args[0])
		}
		pos, err := floatArg(args, 1)
		if err != nil {
			return err
		}
		dur, err := floatArg(args, 2)
		if err != nil {
			return err
		}
		vel, err := intArg(args, 3, sequence.DefaultVelocity)
		if err != nil || vel < 0 || vel > 127 {
			return errors.Errorf("add: bad velocity")
		}
		t, err := sh.track(args, 4)
		if err != nil {
			return err
		}
		t.Add(uint8(key), pos, dur, sequence.WithVelocity(uint8(vel)))
	case "remove":
		pos, err := floatArg(args, 0)
		if err != nil {
			return err
		}
		t, err := sh.track(args, 1)
		if err != nil {
			return err
		}
		if !t.RemoveNote(pos) {
			fmt.Fprintf(sh.w, "no note at %v\n", pos)
		}
	case "removeall":
		key, err := intArg(args, 0, 0)
		if err != nil || key < 0 || key > 127 {
			return errors.Errorf("removeall: bad key")
		}
		t, err := sh.track(args, 1)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.w, "%d notes removed\n", t.RemoveAllInstancesOf(uint8(key)))
	case "clear":
		t, err := sh.track(args, 0)
		if err != nil {
			return err
		}
		t.Clear()
	case "tracks":
		for i, t := range sh.app.seq.Tracks() {
			seq := t.Sequence()
			fmt.Fprintf(sh.w, "%d: %d notes, %d events, %.2f beats, playing %t\n",
				i+1, len(seq.Notes), len(seq.Events), t.Length(), t.IsPlaying())
		}
	case "status":
		st := sequencer.State(sh.app.seq)
		fmt.Fprintf(sh.w, "playing %t, beat %.2f, pass %d, %.1f bpm, %d tracks\n",
			st.Boolean, st.Value, st.Number2+1, st.Value2, st.Number)
	default:
		return errors.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

// track picks the track numbered by args[i], the first one by default.
func (sh *shell) track(args []string, i int) (*sequencer.Track, error) {
	n, err := intArg(args, i, 1)
	if err != nil {
		return nil, err
	}
	tracks := sh.app.seq.Tracks()
	if n < 1 || n > len(tracks) {
		return nil, errors.Errorf("no track %d", n)
	}
	return tracks[n-1], nil
}

func floatArg(args []string, i int) (float64, error) {
	if i >= len(args) {
		return 0, errors.Errorf("argument %d missing", i+1)
	}
	v, err := strconv.ParseFloat(args[i], 64)
	return v, errors.Wrapf(err, "argument %d", i+1)
}

func intArg(args []string, i, def int) (int, error) {
	if i >= len(args) {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	return v, errors.Wrapf(err, "argument %d", i+1)
}

func listMidiFiles(line string) []string {
	parts := strings.Fields(line)
	prefix := ""
	if len(parts) > 1 {
		prefix = parts[len(parts)-1]
	}
	dir := filepath.Dir(prefix)
	entries, _ := os.ReadDir(dir)
	var names []string
	for _, e := range entries {
		name := filepath.Join(dir, e.Name())
		if e.IsDir() || strings.HasSuffix(name, ".mid") {
			names = append(names, name)
		}
	}
	return names
}
