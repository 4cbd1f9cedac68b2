package world

import (
	"strings"
	"time"

	"github.com/leighmacdonald/tf-world/internal/tf/events"
)

// LineParser turns a raw console line into a typed event. Satisfied by
// events.Parser.
type LineParser interface {
	Parse(line string, now time.Time) (events.Event, error)
}

// AddConsoleOutputChunk splits an arbitrary chunk of console output on
// newlines and dispatches every complete line. A trailing partial line is
// dropped; callers that need reassembly across chunks must buffer upstream.
func (w *World) AddConsoleOutputChunk(chunk string) {
	for {
		idx := strings.IndexByte(chunk, '\n')
		if idx < 0 {
			return
		}

		w.AddConsoleOutputLine(strings.TrimSuffix(chunk[:idx], "\r"))
		chunk = chunk[idx+1:]
	}
}

// AddConsoleOutputLine parses a single console line and broadcasts the
// result to every registered console line listener.
func (w *World) AddConsoleOutputLine(line string) {
	event, errParse := w.parser.Parse(line, w.now())
	if errParse != nil {
		for _, listener := range w.consoleListeners.snapshot() {
			listener.OnConsoleLineUnparsed(w, line)
		}

		return
	}

	for _, listener := range w.consoleListeners.snapshot() {
		listener.OnConsoleLineParsed(w, event)
	}
}
