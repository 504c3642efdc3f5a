package tui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func press(t *testing.T, m Picker, keys ...string) (Picker, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		var model tea.Model
		model, cmd = m.Update(msg)
		m = model.(Picker)
	}
	return m, cmd
}

func TestPickerNavigateAndSelect(t *testing.T) {
	m := NewPicker("Apps", []string{"Chrome", "Firefox", "VLC"})

	m, _ = press(t, m, "down", "j", "down")
	assert.Equal(t, 2, m.Cursor())

	m, _ = press(t, m, "up", "k", "k")
	assert.Equal(t, 0, m.Cursor())

	m, cmd := press(t, m, "j", "enter")
	assert.Equal(t, 1, m.Chosen())
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestPickerQuit(t *testing.T) {
	for _, key := range []string{"q", "esc"} {
		m := NewPicker("Apps", []string{"Chrome"})
		m, cmd := press(t, m, key)
		assert.Equal(t, -1, m.Chosen(), key)
		require.NotNil(t, cmd)
	}
}

func TestPickerEmptyIgnoresEnter(t *testing.T) {
	m := NewPicker("Apps", nil)
	m, cmd := press(t, m, "enter")
	assert.Nil(t, cmd)
	assert.Equal(t, -1, m.Chosen())
}

func TestPickerViewScrolls(t *testing.T) {
	items := make([]string, 40)
	for i := range items {
		items[i] = strings.Repeat("x", i+1)
	}
	m := NewPicker("Apps", items)
	model, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	m = model.(Picker)

	m, _ = press(t, m, "G")
	view := m.View()
	assert.Contains(t, view, items[39])
	assert.NotContains(t, view, "  x\n")
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		def   bool
		want  bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
		{"maybe\ny\n", false, true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := NewPrompter(strings.NewReader(tt.input), &out)
		got, err := p.Confirm(context.Background(), "Reinstall?", tt.def)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
		assert.Contains(t, out.String(), "Reinstall?")
	}
}

func TestAskEOF(t *testing.T) {
	p := NewPrompter(strings.NewReader(""), io.Discard)
	_, err := p.Ask(context.Background(), "? ")
	require.ErrorIs(t, err, io.EOF)
	_, err = p.Ask(context.Background(), "? ")
	require.ErrorIs(t, err, io.EOF)

	p = NewPrompter(strings.NewReader("firefox"), io.Discard)
	answer, err := p.Ask(context.Background(), "? ")
	require.NoError(t, err)
	assert.Equal(t, "firefox", answer)
	_, err = p.Ask(context.Background(), "? ")
	require.ErrorIs(t, err, io.EOF)
}

func TestAskCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPrompter(r, io.Discard)
	_, err := p.Ask(ctx, "? ")
	require.ErrorIs(t, err, context.Canceled)
}

func TestAskAfterCancelReceivesNextLine(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := NewPrompter(r, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Ask(ctx, "? ")
	require.ErrorIs(t, err, context.Canceled)

	go func() {
		_, _ = io.WriteString(w, "first\nsecond\n")
	}()
	answer, err := p.Ask(context.Background(), "? ")
	require.NoError(t, err)
	assert.Equal(t, "first", answer)
	answer, err = p.Ask(context.Background(), "? ")
	require.NoError(t, err)
	assert.Equal(t, "second", answer)
}
