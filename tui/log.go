package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Logger writes styled, timestamped lines. It is safe for concurrent use.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	debug bool
	now   func() time.Time
}

// NewLogger creates a logger writing to out (stdout when nil)
func NewLogger(out io.Writer, debug bool) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{out: out, debug: debug, now: time.Now}
}

// Debug reports whether debug lines are written
func (l *Logger) Debug() bool {
	return l.debug
}

func (l *Logger) Infof(format string, args ...any) {
	l.write(InfoStyle, "i", format, args...)
}

func (l *Logger) Successf(format string, args ...any) {
	l.write(SuccessStyle, "+", format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.write(WarningStyle, "!", format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.write(ErrorStyle, "x", format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	if !l.debug {
		return
	}
	l.write(DebugStyle, "[DEBUG]", format, args...)
}

// Println writes a pre-rendered line without a prefix
func (l *Logger) Println(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, s)
}

func (l *Logger) write(style lipgloss.Style, tag, format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	stamp := MutedStyle.Render(l.now().Format("15:04:05"))

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s %s\n", stamp, style.Render(tag), style.Render(msg))
}
