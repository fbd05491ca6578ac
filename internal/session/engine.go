// Package session implements the live review session engine: dual-queue card
// selection, the question/rating phase machine, command dispatch, single-level
// undo, leech-driven suspension, and timed re-presentation of cards due again
// within the session.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recite/internal/command"
	"github.com/phrazzld/recite/internal/domain"
	"github.com/phrazzld/recite/internal/domain/srs"
)

// Engine defaults.
const (
	// DefaultLearningHorizon bounds learning-queue re-entry: a graded card
	// re-enters the live session only if due again within this window.
	DefaultLearningHorizon = 30 * time.Minute

	// DefaultWaitThreshold is how close the next learning card must be for
	// the engine to wait for it instead of ending the session.
	DefaultWaitThreshold = 30 * time.Second

	// DefaultStoreTimeout bounds every collaborator call.
	DefaultStoreTimeout = 3 * time.Second

	// DefaultUndoWindow is how long a grade can be undone.
	DefaultUndoWindow = 5 * time.Second

	// DefaultEventBuffer sizes the outbound event channel.
	DefaultEventBuffer = 256
)

// Options tunes an Engine. Zero values select the defaults above.
type Options struct {
	LearningHorizon time.Duration
	WaitThreshold   time.Duration
	StoreTimeout    time.Duration
	UndoWindow      time.Duration
	EventBuffer     int

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

func (o *Options) normalize() {
	if o.LearningHorizon <= 0 {
		o.LearningHorizon = DefaultLearningHorizon
	}
	if o.WaitThreshold <= 0 {
		o.WaitThreshold = DefaultWaitThreshold
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	if o.UndoWindow <= 0 {
		o.UndoWindow = DefaultUndoWindow
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = DefaultEventBuffer
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// undoSnapshot captures everything needed to revert the last grading action.
// At most one snapshot is live at a time.
type undoSnapshot struct {
	card            domain.CardSnapshot // pre-grade memory state
	grade           domain.Grade
	addedToLearning bool
	suspendedCard   bool // the grade tripped the leech threshold
}

// Engine is the stateful controller for one live review session. It is not
// internally parallel: a single mutex serializes commands, timer callbacks,
// and speech completions, per the single-logical-thread model.
type Engine struct {
	store     CardStore
	scheduler srs.Service
	speaker   Speaker
	explainer Explainer
	opts      Options
	logger    *slog.Logger

	mu             sync.Mutex
	events         chan Event
	closed         bool
	ended          bool
	endPending     bool
	phase          domain.SessionPhase
	review         reviewQueue
	learning       learningQueue
	studiedNoteIDs map[uuid.UUID]struct{}
	current        *domain.CardSnapshot
	cram           bool

	stats       Stats
	startedAt   time.Time
	cardShownAt time.Time
	presented   int

	micOn   bool
	audioOn bool

	// Generation counters make every cancellable operation race-free: a
	// stale timer or speech completion observes a bumped generation and
	// no-ops.
	speakGen uint64
	waitGen  uint64
	undoGen  uint64

	undo      *undoSnapshot
	undoTimer *time.Timer
	waitTimer *time.Timer
}

// NewEngine creates a session engine. The explainer may be nil; the Explain
// command then surfaces a non-fatal error event.
func NewEngine(store CardStore, scheduler srs.Service, speaker Speaker, explainer Explainer, logger *slog.Logger, opts Options) *Engine {
	opts.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:          store,
		scheduler:      scheduler,
		speaker:        speaker,
		explainer:      explainer,
		opts:           opts,
		logger:         logger.With(slog.String("component", "session_engine")),
		events:         make(chan Event, opts.EventBuffer),
		phase:          domain.PhaseQuestion,
		studiedNoteIDs: make(map[uuid.UUID]struct{}),
		stats:          newStats(),
		micOn:          true,
		audioOn:        true,
	}
}

// Events returns the outbound event channel. It is closed when the session
// ends.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Start fetches the due-card batch and presents the first card.
// An empty batch ends the session immediately with zeroed stats.
func (e *Engine) Start(ctx context.Context, scope FetchScope) error {
	fetchCtx, cancel := context.WithTimeout(ctx, e.opts.StoreTimeout)
	defer cancel()
	batch, err := e.store.FetchDue(fetchCtx, scope)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.logger.Error("failed to fetch due cards", "error", err)
		e.emitLocked(SessionError{Message: "failed to fetch cards"})
		e.endSessionLocked()
		return err
	}

	e.cram = scope.Cram
	e.startedAt = e.opts.Clock()

	if batch.DeckName != "" {
		e.emitLocked(DeckInfo{Name: batch.DeckName})
	}

	cards := batch.Cards
	for i := range cards {
		if cards[i].Front == "" && cards[i].Back == "" {
			cards[i].Front, cards[i].Back = domain.RenderCard(cards[i].Fields, cards[i].CardType)
		}
	}
	e.review.push(cards...)

	e.logger.Info("session started",
		"deck", batch.DeckName,
		"cards", len(cards),
		"cram", e.cram)

	e.presentLocked()
	return nil
}

// HandleTranscript feeds one transcript event into the engine. Only final
// transcripts are matched against commands, and only while the microphone
// is on. An unmatched utterance is silently ignored.
func (e *Engine) HandleTranscript(text string, isFinal bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return
	}

	e.emitLocked(TranscriptReceived{Text: text, IsFinal: isFinal})
	if !isFinal || !e.micOn {
		return
	}

	cmd, ok := command.Match(text, e.phase)
	if !ok {
		return
	}
	e.executeLocked(cmd)
}

// Execute runs a command directly, bypassing the matcher. UI buttons use
// this path.
func (e *Engine) Execute(cmd command.Command) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return
	}
	e.executeLocked(cmd)
}

// Undo reverts the last grading action, if the undo window is still open.
// Undoing with no snapshot is a no-op.
func (e *Engine) Undo() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.undoLocked()
}

// ToggleMic flips transcript handling on or off.
func (e *Engine) ToggleMic() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return
	}
	e.micOn = !e.micOn
	e.emitLocked(MicChanged{On: e.micOn})
}

// ToggleAudio flips speech output on or off. Turning audio off interrupts
// any in-flight speech.
func (e *Engine) ToggleAudio() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return
	}
	e.audioOn = !e.audioOn
	if !e.audioOn {
		e.interruptLocked()
	}
	e.emitLocked(AudioChanged{On: e.audioOn})
}

// Close tears the session down without emitting final statistics. Safe to
// call more than once and after a normal end.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return
	}
	e.ended = true
	e.interruptLocked()
	e.clearWaitTimerLocked()
	e.clearUndoLocked()
	e.closeEventsLocked()
}

// executeLocked dispatches one resolved command. Every command interrupts
// in-flight speech, closes the undo window, and cancels a pending wait
// timer before branching.
func (e *Engine) executeLocked(cmd command.Command) {
	e.interruptLocked()
	e.clearUndoLocked()
	e.clearWaitTimerLocked()

	e.emitLocked(CommandReceived{Command: cmd})

	// Once the queues have drained the session is only being held open for
	// the last grade's undo window; any command other than undo ends it.
	if e.endPending {
		e.endSessionLocked()
		return
	}

	if cmd == command.Stop {
		e.endSessionLocked()
		return
	}
	if e.current == nil {
		// Grading or speaking with no current card is a defensive no-op.
		return
	}

	switch cmd {
	case command.Answer:
		e.phase = domain.PhaseRating
		e.emitLocked(PhaseChanged{Phase: domain.PhaseRating})
		e.speakLocked(e.current.Back)

	case command.Hint:
		e.speakLocked(hintText(e.current.Back))

	case command.Repeat:
		if last := e.speaker.LastSpokenText(); last != "" {
			e.speakLocked(last)
		}

	case command.Again, command.Hard, command.Good, command.Easy:
		grade, _ := gradeForCommand(cmd)
		if e.phase == domain.PhaseQuestion {
			e.phase = domain.PhaseRating
			e.emitLocked(PhaseChanged{Phase: domain.PhaseRating})
		}
		e.submitRatingLocked(grade)

	case command.Explain:
		e.explainLocked()

	case command.Suspend:
		e.suspendLocked()
	}
}

// submitRatingLocked performs the grading flow for the current card.
func (e *Engine) submitRatingLocked(grade domain.Grade) {
	card := *e.current
	now := e.opts.Clock()
	duration := now.Sub(e.cardShownAt)

	e.stats.CardsReviewed++
	e.stats.Ratings[grade]++
	e.studiedNoteIDs[card.NoteID] = struct{}{}

	newMemory, err := e.scheduler.Schedule(card.Memory, grade, now)
	if err != nil {
		// Cannot happen for the four defined grades; keep the session alive.
		e.logger.Error("scheduling failed", "error", err, "card_id", card.ID)
		e.emitLocked(SessionError{Message: "failed to schedule card"})
		e.presentLocked()
		return
	}

	leeched := grade == domain.GradeAgain && e.scheduler.IsLeech(newMemory.Lapses)

	addedToLearning := false
	if leeched {
		e.setSuspendedLocked(card.ID, true)
		e.emitLocked(CardSuspended{CardID: card.ID})
	} else if !e.cram && newMemory.State.InSteps() && newMemory.DueAt.Sub(now) < e.opts.LearningHorizon {
		updated := card
		updated.Memory = newMemory
		e.learning.insert(learningEntry{card: updated, dueAt: newMemory.DueAt})
		addedToLearning = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.StoreTimeout)
	err = e.store.PersistGrade(ctx, card.ID, newMemory, grade, duration)
	cancel()
	if err != nil {
		// Best-effort: the session continues as if no learning-queue
		// insertion had occurred.
		e.logger.Warn("failed to persist grade", "error", err, "card_id", card.ID)
		e.emitLocked(SessionError{Message: "failed to save review"})
		if addedToLearning {
			e.learning.remove(card.ID)
			addedToLearning = false
		}
	}

	e.openUndoWindowLocked(&undoSnapshot{
		card:            card,
		grade:           grade,
		addedToLearning: addedToLearning,
		suspendedCard:   leeched,
	})

	e.presentLocked()
}

// undoLocked reverts the last grade: stats, learning-queue insertion, and
// persisted memory state, then re-presents the same card directly in the
// rating phase since the learner already saw the answer.
func (e *Engine) undoLocked() {
	if e.undo == nil || e.ended {
		return
	}

	e.interruptLocked()
	e.clearWaitTimerLocked()

	snap := *e.undo

	e.stats.CardsReviewed--
	e.stats.Ratings[snap.grade]--
	e.presented--

	if snap.addedToLearning {
		e.learning.remove(snap.card.ID)
	}
	if snap.suspendedCard {
		// The grade tripped the leech threshold; undoing it lifts the
		// suspension along with the lapse count.
		e.setSuspendedLocked(snap.card.ID, false)
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.StoreTimeout)
	err := e.store.RevertGrade(ctx, snap.card.ID, snap.card.Memory)
	cancel()
	if err != nil {
		e.logger.Warn("failed to revert grade", "error", err, "card_id", snap.card.ID)
		e.emitLocked(SessionError{Message: "failed to undo review"})
	}

	e.clearUndoLocked()
	e.endPending = false

	card := snap.card
	e.current = &card
	e.phase = domain.PhaseRating
	e.cardShownAt = e.opts.Clock()
	e.presented++

	e.emitLocked(CardPresented{
		Index:      e.presented - 1,
		Front:      card.Front,
		Back:       card.Back,
		IsLearning: card.InSteps(),
	})
	e.emitLocked(PhaseChanged{Phase: domain.PhaseRating})
	e.emitIdleLocked()
}

// suspendLocked suspends the current card and advances. Suspension never
// blocks session flow.
func (e *Engine) suspendLocked() {
	card := e.current
	e.setSuspendedLocked(card.ID, true)
	e.emitLocked(CardSuspended{CardID: card.ID})
	e.learning.remove(card.ID)
	e.presentLocked()
}

func (e *Engine) setSuspendedLocked(cardID uuid.UUID, suspended bool) {
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.StoreTimeout)
	defer cancel()
	if err := e.store.SetSuspended(ctx, cardID, suspended); err != nil {
		e.logger.Warn("failed to set suspended flag", "error", err, "card_id", cardID)
		e.emitLocked(SessionError{Message: "failed to suspend card"})
	}
}

// explainLocked asks the explanation collaborator for the current card and
// speaks the result. The phase does not change.
func (e *Engine) explainLocked() {
	e.emitLocked(Explaining{})

	if e.explainer == nil {
		e.emitLocked(SessionError{Message: "no explanation service configured"})
		e.emitIdleLocked()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.StoreTimeout)
	text, err := e.explainer.Explain(ctx, e.current.Front, e.current.Back)
	cancel()
	if err != nil {
		e.logger.Warn("failed to get explanation", "error", err)
		e.emitLocked(SessionError{Message: "failed to get explanation"})
		e.emitIdleLocked()
		return
	}

	e.speakLocked(text)
}

// presentLocked picks and presents the next card, waits for a near-due
// learning card, or ends the session. With the queues drained but the last
// grade still undoable, the session is held open until the undo window
// resolves.
func (e *Engine) presentLocked() {
	now := e.opts.Clock()

	// Learning-queue cards due now take absolute priority: they represent
	// short-term memory consolidation already in progress.
	if entry, ok := e.learning.peek(); ok && !entry.dueAt.After(now) {
		entry, _ = e.learning.pop()
		e.showCardLocked(entry.card)
		return
	}

	if card, ok := e.review.popSkipping(e.studiedNoteIDs); ok {
		e.showCardLocked(card)
		return
	}

	if entry, ok := e.learning.peek(); ok {
		wait := entry.dueAt.Sub(now)
		if wait <= e.opts.WaitThreshold {
			e.scheduleWaitLocked(wait)
			return
		}
	}

	if e.undo != nil {
		e.endPending = true
		e.current = nil
		return
	}

	e.endSessionLocked()
}

func (e *Engine) showCardLocked(card domain.CardSnapshot) {
	e.current = &card
	e.phase = domain.PhaseQuestion
	e.cardShownAt = e.opts.Clock()
	e.presented++

	e.emitLocked(CardPresented{
		Index:      e.presented - 1,
		Front:      card.Front,
		Back:       card.Back,
		IsLearning: card.InSteps(),
	})
	e.emitLocked(PhaseChanged{Phase: domain.PhaseQuestion})

	e.speakLocked(card.Front)
}

// scheduleWaitLocked arms the single-shot re-presentation timer for the
// next learning card. Any command or undo before it fires cancels it.
func (e *Engine) scheduleWaitLocked(wait time.Duration) {
	e.clearWaitTimerLocked()
	e.emitLocked(LearningWait{Wait: wait})

	e.waitGen++
	gen := e.waitGen
	e.waitTimer = time.AfterFunc(wait, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.waitGen || e.ended {
			return
		}
		e.waitTimer = nil
		e.presentLocked()
	})
}

func (e *Engine) clearWaitTimerLocked() {
	e.waitGen++
	if e.waitTimer != nil {
		e.waitTimer.Stop()
		e.waitTimer = nil
	}
}

// openUndoWindowLocked stores the snapshot and arms the expiry timer.
// Starting a new window always cancels the previous one.
func (e *Engine) openUndoWindowLocked(snap *undoSnapshot) {
	e.clearUndoLocked()
	e.undo = snap
	e.emitLocked(UndoAvailable{Available: true})

	e.undoGen++
	gen := e.undoGen
	e.undoTimer = time.AfterFunc(e.opts.UndoWindow, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.undoGen || e.ended {
			return
		}
		e.undoTimer = nil
		if e.undo != nil {
			e.undo = nil
			e.emitLocked(UndoAvailable{Available: false})
		}
		if e.endPending {
			e.endPending = false
			e.endSessionLocked()
		}
	})
}

func (e *Engine) clearUndoLocked() {
	e.undoGen++
	if e.undoTimer != nil {
		e.undoTimer.Stop()
		e.undoTimer = nil
	}
	if e.undo != nil {
		e.undo = nil
		e.emitLocked(UndoAvailable{Available: false})
	}
}

// speakLocked fires speech in the background. The completion callback
// checks the speech generation so an interrupted utterance cannot flip the
// engine back to listening out of turn.
func (e *Engine) speakLocked(text string) {
	e.speakGen++
	gen := e.speakGen

	if !e.audioOn {
		e.emitIdleLocked()
		return
	}

	e.emitLocked(Speaking{Text: text})

	go func() {
		if err := e.speaker.Speak(context.Background(), text); err != nil {
			e.logger.Debug("speech interrupted or failed", "error", err)
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.speakGen || e.ended {
			return
		}
		e.emitIdleLocked()
	}()
}

// interruptLocked cancels any in-flight speech.
func (e *Engine) interruptLocked() {
	e.speakGen++
	e.speaker.Stop()
}

func (e *Engine) emitIdleLocked() {
	if e.micOn {
		e.emitLocked(Listening{})
	} else {
		e.emitLocked(Idle{})
	}
}

// endSessionLocked flushes final statistics and closes the event channel.
func (e *Engine) endSessionLocked() {
	if e.ended {
		return
	}
	e.ended = true
	e.endPending = false

	e.interruptLocked()
	e.clearWaitTimerLocked()
	e.clearUndoLocked()

	if !e.startedAt.IsZero() {
		e.stats.Duration = e.opts.Clock().Sub(e.startedAt)
	}

	e.logger.Info("session ended",
		"cards_reviewed", e.stats.CardsReviewed,
		"duration", e.stats.Duration)

	e.emitLocked(SessionEnded{Stats: e.stats})
	e.closeEventsLocked()
}

func (e *Engine) closeEventsLocked() {
	if e.closed {
		return
	}
	e.closed = true
	close(e.events)
}

// emitLocked sends an event without blocking the control loop. A full
// buffer drops the event with a warning; consumers that care about every
// event must keep draining.
func (e *Engine) emitLocked(ev Event) {
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("event buffer full, dropping event")
	}
}

// gradeForCommand maps a rating command to its grade.
func gradeForCommand(cmd command.Command) (domain.Grade, bool) {
	switch cmd {
	case command.Again:
		return domain.GradeAgain, true
	case command.Hard:
		return domain.GradeHard, true
	case command.Good:
		return domain.GradeGood, true
	case command.Easy:
		return domain.GradeEasy, true
	default:
		return "", false
	}
}

// hintText returns the first three words of the answer.
func hintText(back string) string {
	words := strings.Fields(back)
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " ") + "..."
}
