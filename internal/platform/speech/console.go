// Package speech provides speech-output collaborators. The console speaker
// writes spoken text to a terminal; real TTS backends implement the same
// interface.
package speech

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ConsoleSpeaker renders speech as terminal output. Speak returns as soon as
// the text is written; Stop is a no-op beyond marking the utterance done.
type ConsoleSpeaker struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

// NewConsoleSpeaker creates a speaker writing to out.
func NewConsoleSpeaker(out io.Writer) *ConsoleSpeaker {
	return &ConsoleSpeaker{out: out}
}

// Speak writes the text and records it as the last utterance.
func (s *ConsoleSpeaker) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = text
	_, err := fmt.Fprintf(s.out, "🔊 %s\n", text)
	return err
}

// Stop is a no-op: console output completes synchronously.
func (s *ConsoleSpeaker) Stop() {}

// LastSpokenText returns the most recently spoken text.
func (s *ConsoleSpeaker) LastSpokenText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
