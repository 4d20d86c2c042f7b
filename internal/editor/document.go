// Package editor provides a line-based document model that applies range
// edits the way a browser editor reports them. The replay engine and the line
// tracker both operate against this model, which keeps reconstruction
// verifiable byte for byte.
package editor

import (
	"fmt"
	"strings"

	"edlog/internal/event"
)

// Document is a mutable text buffer addressed by 1-based lines and columns.
// A column of N sits before the Nth character; range ends are exclusive.
type Document struct {
	lines []string
}

// New creates a document from initial code. Empty code yields a single empty
// line, matching editor behavior.
func New(initial string) *Document {
	return &Document{lines: strings.Split(initial, "\n")}
}

// Reset replaces the entire content. Used by replay before a rebuild.
func (d *Document) Reset(content string) {
	d.lines = strings.Split(content, "\n")
}

// Apply replaces the change's range with its inserted text. The inserted text
// may span lines. Returns an error for out-of-range coordinates; the document
// is left unmodified on error.
func (d *Document) Apply(c event.Change) error {
	r := c.Range
	if err := d.validate(r); err != nil {
		return err
	}

	prefix := d.lines[r.StartLine-1][:r.StartCol-1]
	suffix := d.lines[r.EndLine-1][r.EndCol-1:]
	replaced := strings.Split(prefix+c.InsertedText+suffix, "\n")

	merged := make([]string, 0, len(d.lines)-(r.EndLine-r.StartLine+1)+len(replaced))
	merged = append(merged, d.lines[:r.StartLine-1]...)
	merged = append(merged, replaced...)
	merged = append(merged, d.lines[r.EndLine:]...)
	d.lines = merged

	return nil
}

// ApplyEvent applies every change of an EDIT event in order. Non-edit events
// are ignored. Stops at the first failing change.
func (d *Document) ApplyEvent(ev event.Event) error {
	if ev.Type != event.TypeEdit {
		return nil
	}
	for i, c := range ev.Changes {
		if err := d.Apply(c); err != nil {
			return fmt.Errorf("change %d: %w", i, err)
		}
	}
	return nil
}

// Line returns the content of a 1-based line number.
func (d *Document) Line(n int) (string, bool) {
	if n < 1 || n > len(d.lines) {
		return "", false
	}
	return d.lines[n-1], true
}

// LineCount returns the number of lines.
func (d *Document) LineCount() int {
	return len(d.lines)
}

// Text returns the full content.
func (d *Document) Text() string {
	return strings.Join(d.lines, "\n")
}

func (d *Document) validate(r event.Range) error {
	if r.StartLine < 1 || r.EndLine < r.StartLine || r.EndLine > len(d.lines) {
		return fmt.Errorf("line range %d-%d out of bounds (document has %d lines)",
			r.StartLine, r.EndLine, len(d.lines))
	}
	if r.StartCol < 1 || r.StartCol > len(d.lines[r.StartLine-1])+1 {
		return fmt.Errorf("start column %d out of bounds on line %d", r.StartCol, r.StartLine)
	}
	if r.EndCol < 1 || r.EndCol > len(d.lines[r.EndLine-1])+1 {
		return fmt.Errorf("end column %d out of bounds on line %d", r.EndCol, r.EndLine)
	}
	if r.StartLine == r.EndLine && r.EndCol < r.StartCol {
		return fmt.Errorf("inverted range on line %d: end column %d before start column %d",
			r.StartLine, r.EndCol, r.StartCol)
	}
	return nil
}
