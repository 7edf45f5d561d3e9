package ui

import (
	"time"

	. "github.com/JeanRibes/beatseq/shared"

	tea "github.com/charmbracelet/bubbletea"
)

type busMsg Message

type busClosed struct{}

type tickMsg time.Time

func listen(fromLoop <-chan Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-fromLoop
		if !ok {
			return busClosed{}
		}
		return busMsg(msg)
	}
}

func tick() tea.Cmd {
	return tea.Tick(RefreshEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
