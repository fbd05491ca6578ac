package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/recite/internal/domain"
)

func entry(due time.Time) learningEntry {
	return learningEntry{
		card:  domain.CardSnapshot{ID: uuid.New(), NoteID: uuid.New()},
		dueAt: due,
	}
}

func TestLearningQueueOrdering(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var q learningQueue

	late := entry(now.Add(3 * time.Minute))
	early := entry(now.Add(time.Minute))
	middle := entry(now.Add(2 * time.Minute))

	q.insert(late)
	q.insert(early)
	q.insert(middle)

	first, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, early.card.ID, first.card.ID)

	second, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, middle.card.ID, second.card.ID)

	third, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, late.card.ID, third.card.ID)

	_, ok = q.pop()
	assert.False(t, ok)
}

func TestLearningQueuePeekDoesNotRemove(t *testing.T) {
	t.Parallel()

	var q learningQueue
	e := entry(time.Now())
	q.insert(e)

	peeked, ok := q.peek()
	require.True(t, ok)
	assert.Equal(t, e.card.ID, peeked.card.ID)
	assert.Equal(t, 1, q.len())
}

func TestLearningQueueRemove(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var q learningQueue
	a := entry(now.Add(time.Minute))
	b := entry(now.Add(2 * time.Minute))
	q.insert(a)
	q.insert(b)

	assert.True(t, q.remove(a.card.ID))
	assert.False(t, q.remove(a.card.ID), "second removal finds nothing")
	assert.Equal(t, 1, q.len())

	remaining, ok := q.peek()
	require.True(t, ok)
	assert.Equal(t, b.card.ID, remaining.card.ID)
}

func TestReviewQueueSkipsStudiedSiblings(t *testing.T) {
	t.Parallel()

	studiedNote := uuid.New()
	var q reviewQueue
	sibling := domain.CardSnapshot{ID: uuid.New(), NoteID: studiedNote}
	fresh := domain.CardSnapshot{ID: uuid.New(), NoteID: uuid.New()}
	q.push(sibling, fresh)

	studied := map[uuid.UUID]struct{}{studiedNote: {}}
	card, ok := q.popSkipping(studied)
	require.True(t, ok)
	assert.Equal(t, fresh.ID, card.ID)
	assert.Zero(t, q.len(), "skipped siblings are discarded, not re-queued")
}

func TestReviewQueueEmpty(t *testing.T) {
	t.Parallel()

	var q reviewQueue
	_, ok := q.popSkipping(nil)
	assert.False(t, ok)
}
