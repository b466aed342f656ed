// Package tui implements the interactive patch preview: a scrollable view of
// the colorized diff and its validation report with an apply/cancel prompt.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const headerHeight = 2

// Decision is the outcome of a preview session.
type Decision int

const (
	// DecisionCancel leaves the target untouched.
	DecisionCancel Decision = iota
	// DecisionApply confirms the patch should be applied.
	DecisionApply
)

type model struct {
	vp       viewport.Model
	title    string
	content  string
	ready    bool
	decision Decision

	titleStyle  lipgloss.Style
	footerStyle lipgloss.Style
}

func newModel(title, content string) model {
	return model{
		title:       title,
		content:     content,
		titleStyle:  lipgloss.NewStyle().Bold(true),
		footerStyle: lipgloss.NewStyle().Faint(true),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		footer := 1
		height := msg.Height - headerHeight - footer
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, height)
			m.vp.SetContent(m.content)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = height
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y":
			m.decision = DecisionApply
			return m, tea.Quit
		case "n", "N", "q", "esc", "ctrl+c":
			m.decision = DecisionCancel
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "loading preview..."
	}
	header := m.titleStyle.Render(m.title) + "\n\n"
	footer := "\n" + m.footerStyle.Render("y: apply   n/q/esc: cancel   ↑/↓: scroll")
	return header + m.vp.View() + footer
}

// Preview shows content full-screen and blocks until the user decides.
func Preview(title, content string) (Decision, error) {
	if strings.TrimSpace(content) == "" {
		return DecisionCancel, fmt.Errorf("nothing to preview")
	}
	program := tea.NewProgram(newModel(title, content), tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return DecisionCancel, fmt.Errorf("preview failed: %w", err)
	}
	m, ok := final.(model)
	if !ok {
		return DecisionCancel, fmt.Errorf("unexpected preview model type %T", final)
	}
	return m.decision, nil
}
