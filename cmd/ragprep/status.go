package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// printer writes converter status lines, coloured by outcome.
type printer struct {
	mu    sync.Mutex
	w     io.Writer
	ok    func(a ...any) string
	bad   func(a ...any) string
	faint func(a ...any) string
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:     w,
		ok:    color.New(color.FgGreen).SprintFunc(),
		bad:   color.New(color.FgRed).SprintFunc(),
		faint: color.New(color.FgCyan).SprintFunc(),
	}
}

// Status prints one message from the converter.
func (p *printer) Status(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case strings.HasPrefix(msg, "Successfully"):
		fmt.Fprintln(p.w, p.ok(msg))
	case strings.HasPrefix(msg, "Failed"):
		fmt.Fprintln(p.w, p.bad(msg))
	default:
		fmt.Fprintln(p.w, msg)
	}
}

// Progress prints the batch completion percentage.
func (p *printer) Progress(pct float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.faint(fmt.Sprintf("[%3.0f%%]", pct)))
}

func (p *printer) Summary(processed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := fmt.Sprintf("%d processed, %d failed", processed, failed)
	if failed > 0 {
		fmt.Fprintln(p.w, p.bad(line))
		return
	}
	fmt.Fprintln(p.w, p.ok(line))
}
