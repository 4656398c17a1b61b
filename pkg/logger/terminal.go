package logger

import (
	"io"
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// ForCLI returns the logger used by copilotsse commands: colorized output
// when stderr is a terminal, JSON records otherwise.
func ForCLI(debug bool) Option {
	return func(c *config) {
		WithDebug(debug)(c)
		WithWriter(os.Stderr)(c)

		tty := IsTerminal(os.Stderr)
		c.pretty = tty
		c.json = !tty
	}
}
