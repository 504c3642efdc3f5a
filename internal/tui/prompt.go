package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

type line struct {
	text string
	err  error
}

// Prompter asks line-based questions. A single goroutine owns the input, so
// a line typed after a cancelled question goes to the next one.
// It is not safe for concurrent use.
type Prompter struct {
	in    *bufio.Reader
	out   io.Writer
	once  sync.Once
	lines chan line
	err   error
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

func (p *Prompter) readLines() {
	defer close(p.lines)
	for {
		text, err := p.in.ReadString('\n')
		if text != "" {
			p.lines <- line{text: text}
		}
		if err != nil {
			p.lines <- line{err: err}
			return
		}
	}
}

// Ask prints question and returns the trimmed answer line.
// End of input with no text returns io.EOF.
func (p *Prompter) Ask(ctx context.Context, question string) (string, error) {
	fmt.Fprint(p.out, question)
	if p.err != nil {
		return "", p.err
	}
	p.once.Do(func() {
		p.lines = make(chan line)
		go p.readLines()
	})

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	case l, ok := <-p.lines:
		if !ok {
			return "", p.err
		}
		if l.err != nil {
			p.err = l.err
			return "", l.err
		}
		return strings.TrimSpace(l.text), nil
	}
}

// Confirm asks a yes/no question. An empty answer picks def.
func (p *Prompter) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		answer, err := p.Ask(ctx, fmt.Sprintf("%s %s ", question, hint))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}
