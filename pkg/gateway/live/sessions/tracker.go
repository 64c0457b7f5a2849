// Package sessions tracks live voice sessions so graceful shutdown can
// warn connected clients and wait for in-flight turns to finish.
package sessions

import (
	"context"
	"sync"
)

// Handle is what the tracker can do to a running voice session.
type Handle struct {
	// Cancel aborts the session's run loop.
	Cancel func()
	// Warn tells the client the server is draining. Best effort.
	Warn func(message string) error
}

// Tracker keeps the set of running voice sessions. A nil tracker is a
// valid no-op, so wiring it is optional.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*tracked
	wg       sync.WaitGroup
}

type tracked struct {
	handle Handle
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*tracked)}
}

// Register adds a session under id and returns its unregister function.
// Registering the same id twice releases the earlier entry.
func (t *Tracker) Register(id string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &tracked{handle: h}

	t.mu.Lock()
	prev := t.sessions[id]
	t.sessions[id] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if prev != nil {
		t.release(id, prev)
	}
	return func() { t.release(id, entry) }
}

func (t *Tracker) release(id string, entry *tracked) {
	entry.once.Do(func() {
		t.mu.Lock()
		if t.sessions[id] == entry {
			delete(t.sessions, id)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// WarnAll notifies every session's client. Warn callbacks run outside the
// tracker lock so a slow socket cannot block registration.
func (t *Tracker) WarnAll(message string) (sent int) {
	if t == nil {
		return 0
	}
	var warns []func(string) error
	t.mu.Lock()
	for _, entry := range t.sessions {
		if entry.handle.Warn != nil {
			warns = append(warns, entry.handle.Warn)
		}
	}
	t.mu.Unlock()

	for _, warn := range warns {
		_ = warn(message)
		sent++
	}
	return sent
}

// CancelAll aborts every session that is still registered.
func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}
	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.sessions {
		if entry.handle.Cancel != nil {
			cancels = append(cancels, entry.handle.Cancel)
		}
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered session has unregistered, or the
// context expires. It reports whether the tracker drained in time.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
