package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"
)

// printer writes human-readable or JSON command output.
// It is safe for concurrent use.
type printer struct {
	mu      sync.Mutex
	w       io.Writer
	jsonOut bool

	bold   *color.Color
	green  *color.Color
	yellow *color.Color
	red    *color.Color
	gray   *color.Color
}

func newPrinter(w io.Writer, jsonOut, noColor bool) *printer {
	p := &printer{
		w:       w,
		jsonOut: jsonOut,
		bold:    color.New(color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow),
		red:     color.New(color.FgRed),
		gray:    color.New(color.FgHiBlack),
	}
	if noColor || jsonOut {
		for _, c := range []*color.Color{p.bold, p.green, p.yellow, p.red, p.gray} {
			c.DisableColor()
		}
	}
	return p
}

// emitJSON writes v as indented JSON.
func (p *printer) emitJSON(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) heading(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.bold.Sprint(s))
}

func (p *printer) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

// table writes tab-aligned rows under a bold header.
func (p *printer) table(header []string, rows [][]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	for i, h := range header {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, p.bold.Sprint(h))
	}
	fmt.Fprintln(tw)
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	tw.Flush() //nolint:errcheck // writes to the command's output
}
