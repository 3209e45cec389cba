// Package history keeps the linear undo/redo list of edit sequences.
package history

import (
	"sync"

	"github.com/ds124wfegd/imagestudio/internal/entity"
)

// History is a list of snapshots with a cursor. Index is -1 while empty.
// Snapshots are copied on the way in and on the way out, so callers never
// share a backing array with the stored state.
type History struct {
	mu        sync.RWMutex
	snapshots []entity.EditSequence
	index     int
}

func New() *History {
	return &History{index: -1}
}

// Push drops every snapshot after the cursor, appends seq and moves the
// cursor onto it.
func (h *History) Push(seq entity.EditSequence) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.snapshots = append(h.snapshots[:h.index+1], seq.Clone())
	h.index = len(h.snapshots) - 1
}

// Undo steps back one snapshot. ok is false when there is nothing earlier.
func (h *History) Undo() (entity.EditSequence, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index <= 0 {
		return nil, false
	}
	h.index--
	return h.snapshots[h.index].Clone(), true
}

// Redo steps forward one snapshot. ok is false at the end of the list.
func (h *History) Redo() (entity.EditSequence, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index < 0 || h.index >= len(h.snapshots)-1 {
		return nil, false
	}
	h.index++
	return h.snapshots[h.index].Clone(), true
}

func (h *History) CanUndo() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index > 0
}

func (h *History) CanRedo() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index >= 0 && h.index < len(h.snapshots)-1
}

// Reset discards everything and makes seq the only snapshot.
func (h *History) Reset(seq entity.EditSequence) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.snapshots = []entity.EditSequence{seq.Clone()}
	h.index = 0
}

// Current returns the snapshot under the cursor, or an empty sequence.
func (h *History) Current() entity.EditSequence {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.index < 0 {
		return entity.EditSequence{}
	}
	return h.snapshots[h.index].Clone()
}

func (h *History) Index() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.snapshots)
}
