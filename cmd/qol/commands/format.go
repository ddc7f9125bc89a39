package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// every command prints through these so the output looks the same
// ═══════════════════════════════════════════════════════════

const (
	doubleLine = "═══════════════════════════════════════════════════════════"
	singleLine = "───────────────────────────────────────────────────────────"
)

// PrintHeader prints a titled block with key/value lines
func PrintHeader(w io.Writer, title string, pairs [][2]string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, doubleLine)
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, singleLine)
	for _, kv := range pairs {
		fmt.Fprintf(w, "  %-10s: %s\n", kv[0], kv[1])
	}
	fmt.Fprintln(w, singleLine)
}

// PrintSeparator prints a visual separator
func PrintSeparator(w io.Writer) {
	fmt.Fprintln(w, singleLine)
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(w io.Writer, message string) {
	fmt.Fprintf(w, "❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(w io.Writer, message string) {
	fmt.Fprintf(w, "ℹ️  %s\n", message)
}

// NewTable returns a rounded table that renders to w
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}
