package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recite/internal/domain"
)

// learningEntry is a card mid-step whose next delay is short enough to
// revisit within the same live session.
type learningEntry struct {
	card  domain.CardSnapshot
	dueAt time.Time
}

// learningQueue keeps entries sorted ascending by due time.
type learningQueue struct {
	entries []learningEntry
}

func (q *learningQueue) len() int {
	return len(q.entries)
}

// peek returns the earliest entry without removing it.
func (q *learningQueue) peek() (learningEntry, bool) {
	if len(q.entries) == 0 {
		return learningEntry{}, false
	}
	return q.entries[0], true
}

// pop removes and returns the earliest entry.
func (q *learningQueue) pop() (learningEntry, bool) {
	if len(q.entries) == 0 {
		return learningEntry{}, false
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e, true
}

// insert places the entry in due-time order.
func (q *learningQueue) insert(e learningEntry) {
	at := len(q.entries)
	for i, existing := range q.entries {
		if existing.dueAt.After(e.dueAt) {
			at = i
			break
		}
	}
	q.entries = append(q.entries, learningEntry{})
	copy(q.entries[at+1:], q.entries[at:])
	q.entries[at] = e
}

// remove deletes the entry for the given card, if present.
// Returns true when an entry was removed.
func (q *learningQueue) remove(cardID uuid.UUID) bool {
	for i, e := range q.entries {
		if e.card.ID == cardID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// reviewQueue is a FIFO of due cards not yet shown this session.
type reviewQueue struct {
	cards []domain.CardSnapshot
}

func (q *reviewQueue) len() int {
	return len(q.cards)
}

func (q *reviewQueue) push(cards ...domain.CardSnapshot) {
	q.cards = append(q.cards, cards...)
}

// popSkipping drains from the front, removing and discarding cards whose
// note ID is in studied (sibling suppression), and returns the first
// remaining card.
func (q *reviewQueue) popSkipping(studied map[uuid.UUID]struct{}) (domain.CardSnapshot, bool) {
	for len(q.cards) > 0 {
		card := q.cards[0]
		q.cards = q.cards[1:]
		if _, seen := studied[card.NoteID]; seen {
			continue
		}
		return card, true
	}
	return domain.CardSnapshot{}, false
}
