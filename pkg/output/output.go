// Package output renders command results for humans (colored messages and
// aligned tables) or for scripts (JSON and YAML).
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Formats accepted by --output.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var (
	// Out receives results and Err receives failures. Tests swap them.
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr

	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	headerColor  = color.New(color.FgWhite, color.Bold)
)

// SetWriters redirects output and returns a function restoring the previous
// writers.
func SetWriters(out, errOut io.Writer) (restore func()) {
	prevOut, prevErr := Out, Err
	Out, Err = out, errOut
	return func() { Out, Err = prevOut, prevErr }
}

// DisableColor turns off ANSI escapes, e.g. for --no-color.
func DisableColor() {
	color.NoColor = true
}

func Success(format string, a ...any) {
	successColor.Fprintf(Out, "✓ "+format+"\n", a...)
}

func Error(format string, a ...any) {
	errorColor.Fprintf(Err, "✗ "+format+"\n", a...)
}

func Info(format string, a ...any) {
	infoColor.Fprintf(Out, format+"\n", a...)
}

func Warn(format string, a ...any) {
	warnColor.Fprintf(Out, "⚠ "+format+"\n", a...)
}

// Field prints an aligned "label: value" line.
func Field(label string, value any) {
	fmt.Fprintf(Out, "%-16s %v\n", label+":", value)
}

func JSON(v any) error {
	enc := json.NewEncoder(Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML encodes v through its JSON form so field names match the API.
func YAML(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(Out)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

// Structured writes v as JSON or YAML and reports whether format was one
// of them. Table rendering is left to the caller.
func Structured(format string, v any) (bool, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return true, JSON(v)
	case FormatYAML:
		return true, YAML(v)
	default:
		return false, nil
	}
}

// ValidFormat reports whether format is accepted by --output.
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case FormatTable, FormatJSON, FormatYAML:
		return true
	}
	return false
}

type Table struct {
	headers []string
	rows    [][]string
}

func NewTable(headers []string) *Table {
	return &Table{
		headers: headers,
		rows:    [][]string{},
	}
}

// AddRow appends row, padding or cutting it to the header count.
func (t *Table) AddRow(row []string) {
	cells := make([]string, len(t.headers))
	copy(cells, row)
	t.rows = append(t.rows, cells)
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Render() {
	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = utf8.RuneCountInString(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i, header := range t.headers {
		headerColor.Fprint(Out, pad(header, widths[i])+"  ")
	}
	fmt.Fprintln(Out)

	for i := range t.headers {
		fmt.Fprint(Out, strings.Repeat("-", widths[i])+"  ")
	}
	fmt.Fprintln(Out)

	for _, row := range t.rows {
		for i, cell := range row {
			fmt.Fprint(Out, pad(cell, widths[i])+"  ")
		}
		fmt.Fprintln(Out)
	}
}

// pad counts runes so accented Portuguese labels stay aligned.
func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// Truncate shortens s to max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max == 1 {
		return string(r[:1])
	}
	return string(r[:max-1]) + "…"
}
