// Package monitoring provides the package-level diagnostic logger used by the
// analysis packages. Filtering, teleport detection and quality scans narrate
// progress through Logf; the structured reports those routines return carry
// the same counts as data, so nothing downstream ever needs to parse these
// lines.
package monitoring

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or embedding code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Capture redirects Logf into an in-memory buffer and returns the buffer along
// with a restore function. Intended for tests asserting on diagnostic output.
func Capture() (*Buffer, func()) {
	prev := Logf
	buf := &Buffer{}
	Logf = buf.logf
	return buf, func() { Logf = prev }
}

// Buffer accumulates formatted log lines. Safe for concurrent use.
type Buffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *Buffer) logf(format string, v ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, fmt.Sprintf(format, v...))
}

// Lines returns a copy of the captured log lines.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Contains reports whether any captured line contains substr.
func (b *Buffer) Contains(substr string) bool {
	for _, line := range b.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
