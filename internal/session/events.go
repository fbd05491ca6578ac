package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recite/internal/command"
	"github.com/phrazzld/recite/internal/domain"
)

// Event is a typed notification emitted by the engine for presentation and
// audio layers. Events arrive on a single ordered channel; consumers switch
// on the concrete type.
type Event interface {
	isEvent()
}

// PhaseChanged reports a phase transition.
type PhaseChanged struct {
	Phase domain.SessionPhase
}

// CardPresented reports that a new card is being shown.
type CardPresented struct {
	Index      int
	Front      string
	Back       string
	IsLearning bool
}

// DeckInfo carries the deck name at session start.
type DeckInfo struct {
	Name string
}

// Speaking reports that speech output has started.
type Speaking struct {
	Text string
}

// Listening reports that the engine is idle and the microphone is live.
type Listening struct{}

// Idle reports that the engine is idle with the microphone off.
type Idle struct{}

// CommandReceived reports a resolved command before it executes.
type CommandReceived struct {
	Command command.Command
}

// TranscriptReceived mirrors the transcript stream for display.
type TranscriptReceived struct {
	Text    string
	IsFinal bool
}

// Explaining reports that an explanation has been requested.
type Explaining struct{}

// UndoAvailable reports whether an undo window is currently open.
type UndoAvailable struct {
	Available bool
}

// MicChanged reports a microphone toggle.
type MicChanged struct {
	On bool
}

// AudioChanged reports a speech-output toggle.
type AudioChanged struct {
	On bool
}

// LearningWait reports that both queues are drained except for a learning
// card due within the wait threshold; the engine will present it after Wait.
type LearningWait struct {
	Wait time.Duration
}

// CardSuspended reports that a card was suspended, either explicitly or by
// the leech detector.
type CardSuspended struct {
	CardID uuid.UUID
}

// SessionError surfaces a non-fatal failure; the session continues.
type SessionError struct {
	Message string
}

// SessionEnded carries the final statistics.
type SessionEnded struct {
	Stats Stats
}

func (PhaseChanged) isEvent()       {}
func (CardPresented) isEvent()      {}
func (DeckInfo) isEvent()           {}
func (Speaking) isEvent()           {}
func (Listening) isEvent()          {}
func (Idle) isEvent()               {}
func (CommandReceived) isEvent()    {}
func (TranscriptReceived) isEvent() {}
func (Explaining) isEvent()         {}
func (UndoAvailable) isEvent()      {}
func (MicChanged) isEvent()         {}
func (AudioChanged) isEvent()       {}
func (LearningWait) isEvent()       {}
func (CardSuspended) isEvent()      {}
func (SessionError) isEvent()       {}
func (SessionEnded) isEvent()       {}

// Stats are the session counters reported at end of session.
type Stats struct {
	CardsReviewed int                  `json:"cards_reviewed"`
	Ratings       map[domain.Grade]int `json:"ratings"`
	Duration      time.Duration        `json:"duration"`
}

func newStats() Stats {
	return Stats{
		Ratings: map[domain.Grade]int{
			domain.GradeAgain: 0,
			domain.GradeHard:  0,
			domain.GradeGood:  0,
			domain.GradeEasy:  0,
		},
	}
}
