package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	blue   = color.New(color.FgBlue)
	bold   = color.New(color.Bold)
	faint  = color.New(color.Faint)
)

// Success displays a success message.
func Success(format string, args ...interface{}) {
	if jsonMode {
		return
	}
	green.Fprintf(out, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Error displays an error message to stderr. It is shown in JSON mode too.
func Error(format string, args ...interface{}) {
	red.Fprintf(errOut, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Warning displays a warning message.
func Warning(format string, args ...interface{}) {
	if jsonMode {
		return
	}
	yellow.Fprintf(out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// Info displays an informational message.
func Info(format string, args ...interface{}) {
	if jsonMode {
		return
	}
	cyan.Fprintf(out, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Step displays a step indicator message.
func Step(format string, args ...interface{}) {
	if jsonMode {
		return
	}
	blue.Fprintf(out, "→ %s\n", fmt.Sprintf(format, args...))
}

// Section displays a section header.
func Section(title string) {
	if jsonMode {
		return
	}
	fmt.Fprintln(out)
	bold.Fprintln(out, title)
	fmt.Fprintf(out, "%s\n\n", strings.Repeat("=", len([]rune(title))))
}

// KeyValue displays a key-value pair.
func KeyValue(key, value string) {
	if jsonMode {
		return
	}
	fmt.Fprintf(out, "  %s: %s\n", faint.Sprint(key), value)
}

// Table displays rows under headers.
func Table(headers []string, rows [][]string) {
	if jsonMode {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(headers, "\t"))

	separator := make([]string, len(headers))
	for i := range separator {
		separator[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(w, strings.Join(separator, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	_ = w.Flush()
}
