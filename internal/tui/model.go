// Package tui is the interactive terminal screen: a search line on top and
// the rendering of the latest published state below it.
package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fakhrymubarak/weather-lookup/internal/model"
	"github.com/fakhrymubarak/weather-lookup/internal/service"
	"github.com/fakhrymubarak/weather-lookup/internal/view"
)

const (
	searchLabel  = "Search for any location"
	helpLine     = "[enter] search  [esc] quit"
	spinnerEvery = 120 * time.Millisecond
)

// StateMsg carries a state published by the controller into the update loop.
type StateMsg model.WeatherState

type tickMsg time.Time

type Model struct {
	svc     service.WeatherServiceInterface
	input   []rune
	state   model.WeatherState
	frame   int
	ticking bool
}

func New(svc service.WeatherServiceInterface) Model {
	return Model{svc: svc, state: svc.State()}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case StateMsg:
		m.state = model.WeatherState(msg)
		if m.state.Status == model.StatusLoading && !m.ticking {
			m.ticking = true
			return m, tick()
		}
		return m, nil

	case tickMsg:
		if m.state.Status != model.StatusLoading {
			m.ticking = false
			return m, nil
		}
		m.frame++
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyEnter:
		return m, submit(m.svc, string(m.input))
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(searchLabel + ": " + string(m.input) + "_\n")
	b.WriteString(helpLine + "\n\n")
	b.WriteString(view.RenderFrame(m.state, m.frame))
	return b.String()
}

// submit runs Submit off the update loop; the controller's observers call
// back into the program, which would block if the loop itself published.
func submit(svc service.WeatherServiceInterface, query string) tea.Cmd {
	return func() tea.Msg {
		svc.Submit(query)
		return nil
	}
}

func tick() tea.Cmd {
	return tea.Tick(spinnerEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Run shows the screen until the user quits. Every state the controller
// publishes is forwarded to the program in order.
func Run(svc service.WeatherServiceInterface, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(New(svc), opts...)
	unsubscribe := svc.Subscribe(func(st model.WeatherState) {
		p.Send(StateMsg(st))
	})
	defer unsubscribe()

	_, err := p.Run()
	return err
}
