package notebook

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Autosaver coalesces rapid content edits into one delayed persist per
// notebook: each edit resets a single pending timer, and the save fires only
// when the timer elapses uninterrupted.
type Autosaver struct {
	delay time.Duration
	save  func(uuid.UUID)

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

// NewAutosaver creates an autosaver calling save after delay of quiet time
func NewAutosaver(delay time.Duration, save func(uuid.UUID)) *Autosaver {
	return &Autosaver{
		delay:  delay,
		save:   save,
		timers: make(map[uuid.UUID]*time.Timer),
	}
}

// Touch records an edit, resetting the pending timer for this notebook
func (a *Autosaver) Touch(notebookID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.timers[notebookID]; ok {
		t.Stop()
	}
	a.timers[notebookID] = time.AfterFunc(a.delay, func() {
		a.mu.Lock()
		delete(a.timers, notebookID)
		a.mu.Unlock()
		a.save(notebookID)
	})
}

// Flush fires a pending save immediately, if one is scheduled
func (a *Autosaver) Flush(notebookID uuid.UUID) {
	a.mu.Lock()
	t, ok := a.timers[notebookID]
	if ok {
		t.Stop()
		delete(a.timers, notebookID)
	}
	a.mu.Unlock()
	if ok {
		a.save(notebookID)
	}
}

// Cancel drops a pending save for one notebook without firing it, for when
// the notebook itself is being deleted
func (a *Autosaver) Cancel(notebookID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.timers[notebookID]; ok {
		t.Stop()
		delete(a.timers, notebookID)
	}
}

// Stop cancels all pending saves without firing them
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, t := range a.timers {
		t.Stop()
		delete(a.timers, id)
	}
}
