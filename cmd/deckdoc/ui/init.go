// Package ui provides terminal output for the deckdoc CLI.
package ui

import (
	"encoding/json"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	jsonMode bool
	out      io.Writer = os.Stdout
	errOut   io.Writer = os.Stderr
)

// InitUI applies the global output flags. In JSON mode human-oriented output
// (messages, spinners, bars) is suppressed and only JSON documents are written.
func InitUI(noColor, asJSON bool) {
	jsonMode = asJSON
	if noColor || asJSON {
		color.NoColor = true
	}
}

// JSONMode reports whether --json is active.
func JSONMode() bool {
	return jsonMode
}

// SetOutput redirects stdout and stderr writers. Used by tests.
func SetOutput(stdout, stderr io.Writer) {
	out = stdout
	errOut = stderr
}

// IsTerminal checks if output is going to a terminal.
func IsTerminal() bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// JSON writes v as one indented JSON document to stdout.
func JSON(v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
