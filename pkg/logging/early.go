package logging

import (
	"fmt"
	"io"
	"os"
)

// EarlyLog prints plain lines before the structured logger is built, i.e.
// while the config that selects its level and format is still loading.
type EarlyLog struct {
	out io.Writer
}

func NewEarlyLog() *EarlyLog {
	return NewEarlyLogTo(os.Stderr)
}

func NewEarlyLogTo(out io.Writer) *EarlyLog {
	return &EarlyLog{out: out}
}

func (l *EarlyLog) Error(format string, args ...interface{}) {
	l.printf("ERROR", format, args...)
}

func (l *EarlyLog) Info(format string, args ...interface{}) {
	l.printf("INFO", format, args...)
}

func (l *EarlyLog) printf(level, format string, args ...interface{}) {
	fmt.Fprintf(l.out, "%s: %s\n", level, fmt.Sprintf(format, args...))
}
