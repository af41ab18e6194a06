package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	if !cc.Flags.Quiet {
		fmt.Fprintf(cc.Stderr, format, args...)
	}
}

// formatTime returns a compact timestamp for display.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	now := time.Now()

	// Same calendar year: show "Jan  2 15:04"
	if t.Year() == now.Year() {
		return t.Local().Format("Jan _2 15:04")
	}

	// Different year: show "Jan  2  2006"
	return t.Local().Format("Jan _2  2006")
}

// maxCellWidth caps free-text columns (titles, comment bodies).
const maxCellWidth = 60

// displayWidth is the number of terminal columns s occupies. Wide and
// fullwidth East Asian runes take two columns.
func displayWidth(s string) int {
	n := 0

	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}

	return n
}

// cleanCell normalizes s to NFC, flattens whitespace and truncates it to
// limit display columns, marking the cut with an ellipsis.
func cleanCell(s string, limit int) string {
	s = strings.Join(strings.Fields(norm.NFC.String(s)), " ")
	if displayWidth(s) <= limit {
		return s
	}

	var b strings.Builder

	used := 0

	for _, r := range s {
		w := displayWidth(string(r))
		if used+w > limit-1 {
			break
		}

		b.WriteRune(r)
		used += w
	}

	b.WriteString("…")

	return b.String()
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = displayWidth(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], displayWidth(cell))
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row. The last column is not padded.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		if i == len(cells)-1 {
			parts[i] = cell
			continue
		}

		parts[i] = cell + strings.Repeat(" ", widths[i]-displayWidth(cell))
	}

	fmt.Fprintln(w, strings.Join(parts, "  "))
}
