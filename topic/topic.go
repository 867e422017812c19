// Package topic tracks the current question topic across pages and
// translates Bengali topic labels to English.
package topic

import (
	"context"
	"strings"
)

const (
	// DefaultSource is the generic Bengali label ("General")
	DefaultSource = "সাধারণ"
	// DefaultTranslated is the English label paired with DefaultSource
	DefaultTranslated = "General"
	// Continue is the marker for "keep the previous topic"
	Continue = "CONTINUE"
	// SelfTest is a topic label used as-is in both languages
	SelfTest = "Self Test"
)

// State is the topic in effect: the label as printed (Source) and its
// English form (Translated). The zero value means no topic is set yet.
type State struct {
	Source     string
	Translated string
}

// Default returns the generic topic pair
func Default() State {
	return State{Source: DefaultSource, Translated: DefaultTranslated}
}

// IsSet reports whether a source label is present
func (s State) IsSet() bool {
	return s.Source != ""
}

// Labeler translates a source label. *Translator implements it.
type Labeler interface {
	Translate(ctx context.Context, label string) string
}

// Event describes what a Resolve call did, for logging
type Event int

const (
	Unchanged Event = iota
	SwitchedSelfTest
	SwitchedNew
	SetDefault
)

// IsGeneric reports whether label is one of the generic topic labels
func IsGeneric(label string) bool {
	return label == DefaultSource || label == DefaultTranslated
}

// Resolve applies one block's topic marker to s and returns the new state.
// Rules are checked in order:
//
//   - empty marker or Continue: unchanged
//   - SelfTest: both labels become SelfTest unless already there
//   - any non-generic label different from the current source: it becomes
//     the source label and is translated through tr
//   - a generic label while nothing is set: the default pair
//
// When no source label is set afterwards the default pair is applied.
func Resolve(ctx context.Context, s State, marker string, tr Labeler) (State, Event) {
	marker = strings.TrimSpace(marker)
	event := Unchanged

	switch {
	case marker == "" || marker == Continue:
	case marker == SelfTest:
		if s.Source != SelfTest {
			s = State{Source: SelfTest, Translated: SelfTest}
			event = SwitchedSelfTest
		}
	case !IsGeneric(marker):
		if s.Source != marker {
			s = State{Source: marker, Translated: tr.Translate(ctx, marker)}
			event = SwitchedNew
		}
	case !s.IsSet():
		s = Default()
		event = SetDefault
	}

	if !s.IsSet() {
		s = Default()
		event = SetDefault
	}
	return s, event
}
