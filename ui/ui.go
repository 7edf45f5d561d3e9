// Package ui is the terminal front-end: it turns key presses into transport
// commands on the bus and shows the state the control loop sends back.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	. "github.com/JeanRibes/beatseq/shared"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

const (
	TempoStep    = 5.0
	DelayBeats   = 4.0
	RefreshEvery = 100 * time.Millisecond
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	playingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type Model struct {
	toLoop   chan<- Message
	fromLoop <-chan Message
	logger   *charmlog.Logger
	recent   *Recent

	state    Message
	length   float64
	loop     bool
	errors   []string
	quitting bool
}

func NewModel(toLoop chan<- Message, fromLoop <-chan Message, recent *Recent, logger *charmlog.Logger) Model {
	return Model{
		toLoop:   toLoop,
		fromLoop: fromLoop,
		logger:   logger.WithPrefix("UI"),
		recent:   recent,
		loop:     true,
	}
}

// WithLoop sets the loop flag shown before the first toggle.
func (m Model) WithLoop(on bool) Model {
	m.loop = on
	return m
}

// send never blocks the interface: a full bus drops the key press.
func (m Model) send(msg Message) {
	select {
	case m.toLoop <- msg:
	default:
		m.logger.Warn("bus full, dropping", "type", msg.Type)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(listen(m.fromLoop), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.send(Message{Type: Quit})
			return m, tea.Quit
		case " ", "p":
			m.send(Message{Type: PlayPause})
		case "enter":
			m.send(Message{Type: PlayFromStart})
		case "d":
			m.send(Message{Type: PlayAfterDelay, Value: DelayBeats})
		case "s":
			m.send(Message{Type: Stop})
		case "r":
			m.send(Message{Type: Rewind})
		case "+", "=":
			m.send(Message{Type: Tempo, Value: m.state.Value2 + TempoStep})
		case "-", "_":
			if m.state.Value2 > TempoStep {
				m.send(Message{Type: Tempo, Value: m.state.Value2 - TempoStep})
			}
		case "l":
			m.loop = !m.loop
			m.send(Message{Type: LoopToggle})
		case "e":
			name := "beatseq-" + time.Now().Format("20060102-150405") + ".mid"
			m.send(Message{Type: Export, String: name})
			if m.recent != nil {
				m.recent.Add(name)
			}
		case "c":
			m.errors = nil
		}
	case busMsg:
		switch msg.Type {
		case StateNotify:
			m.state = Message(msg)
		case Error:
			m.errors = append(m.errors, msg.String)
		}
		return m, listen(m.fromLoop)
	case busClosed:
		return m, tea.Quit
	case tickMsg:
		m.send(Message{Type: StateNotify})
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("beatseq"))
	b.WriteString("\n\n")
	status := stoppedStyle.Render("■ stopped")
	if m.state.Boolean {
		status = playingStyle.Render("▶ playing")
	}
	loop := "off"
	if m.loop {
		loop = "on"
	}
	fmt.Fprintf(&b, "%s\n", status)
	fmt.Fprintf(&b, "position  %7.2f beats\n", m.state.Value)
	fmt.Fprintf(&b, "tempo     %7.1f bpm\n", m.state.Value2)
	fmt.Fprintf(&b, "pass      %7d\n", m.state.Number2+1)
	fmt.Fprintf(&b, "tracks    %7d\n", m.state.Number)
	fmt.Fprintf(&b, "loop      %7s\n", loop)
	if m.recent != nil {
		if last, ok := m.recent.Last(); ok {
			fmt.Fprintf(&b, "exported  %s\n", last)
		}
	}
	for _, err := range m.errors {
		b.WriteString(errorStyle.Render(err))
		b.WriteString("\n")
	}
	out := boxStyle.Render(b.String())
	help := helpStyle.Render("space play/pause · enter from start · d delayed start · s stop · r rewind · +/- tempo · l loop · e export · c clear errors · q quit")
	return out + "\n" + help + "\n"
}

// Run shows the interface until the user quits or ctx is done.
func Run(ctx context.Context, m Model) error {
	m.logger.Info("start")
	defer m.logger.Info("stop")
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
