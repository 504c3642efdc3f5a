// Package tui holds the interactive pieces of the CLI: a bubbletea list
// picker and line-based prompts.
package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
)

// ErrAborted is returned when the user leaves a picker without choosing.
var ErrAborted = errors.New("selection aborted")

const defaultHeight = 15

var (
	titleStyle  = color.New(color.FgCyan, color.Bold)
	cursorStyle = color.New(color.FgGreen, color.Bold)
	hintStyle   = color.New(color.FgHiBlack)
)

// Picker is a single-choice list model.
type Picker struct {
	title  string
	items  []string
	cursor int
	offset int
	height int
	chosen int
	done   bool
}

// NewPicker returns a model listing items under title.
func NewPicker(title string, items []string) Picker {
	return Picker{title: title, items: items, height: defaultHeight, chosen: -1}
}

// Chosen returns the selected index, or -1 when the picker was aborted.
func (m Picker) Chosen() int {
	return m.chosen
}

// Cursor returns the highlighted index.
func (m Picker) Cursor() int {
	return m.cursor
}

func (m Picker) Init() tea.Cmd {
	return nil
}

func (m Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Height > 4 {
			m.height = msg.Height - 4
		}
		m.ensureCursorVisible()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.done = true
			m.chosen = -1
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			if len(m.items) > 0 {
				m.cursor = len(m.items) - 1
			}
		case "enter":
			if len(m.items) == 0 {
				return m, nil
			}
			m.done = true
			m.chosen = m.cursor
			return m, tea.Quit
		}
		m.ensureCursorVisible()
	}
	return m, nil
}

func (m *Picker) ensureCursorVisible() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
}

func (m Picker) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Sprint(m.title))
	b.WriteString("\n\n")

	end := m.offset + m.height
	if end > len(m.items) {
		end = len(m.items)
	}
	for i := m.offset; i < end; i++ {
		if i == m.cursor {
			b.WriteString(cursorStyle.Sprintf("> %s", m.items[i]))
		} else {
			fmt.Fprintf(&b, "  %s", m.items[i])
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(hintStyle.Sprint("↑/↓ move • enter select • q quit"))
	b.WriteString("\n")
	return b.String()
}

// Select runs a picker on the terminal and returns the chosen index.
func Select(title string, items []string, in io.Reader, out io.Writer) (int, error) {
	if len(items) == 0 {
		return -1, fmt.Errorf("nothing to choose from")
	}
	p := tea.NewProgram(NewPicker(title, items), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return -1, fmt.Errorf("picker failed: %w", err)
	}
	chosen := final.(Picker).Chosen()
	if chosen < 0 {
		return -1, ErrAborted
	}
	return chosen, nil
}
