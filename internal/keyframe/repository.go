package keyframe

import (
	"fmt"
	"sync"
)

// Repository defines the serialized contract for reading and mutating the
// canonical timeline.
type Repository interface {
	// View runs fn against the current timeline. fn must not modify tl or
	// retain any of its slices after returning.
	View(fn func(tl Timeline)) error

	// Mutate runs fn against a working copy of the timeline. If fn returns nil
	// the copy becomes the canonical timeline and is persisted before Mutate
	// returns; otherwise nothing changes and fn's error is returned.
	Mutate(fn func(tl *Timeline) error) error
}

// LockedRepository owns the timeline behind a single mutex. Every call,
// including the disk write of a mutation, is one critical section, so calls
// never interleave.
//
// Once a mutation panics or fails to persist, the repository is poisoned and
// all later calls return ErrPoisoned.
type LockedRepository struct {
	mu       sync.Mutex
	store    Store
	timeline Timeline
	poisoned error
}

// NewLockedRepository loads the timeline from store. Load errors are returned
// unchanged; the caller cannot operate without a timeline.
func NewLockedRepository(store Store) (*LockedRepository, error) {
	tl, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &LockedRepository{store: store, timeline: tl}, nil
}

// View implements Repository.View.
func (r *LockedRepository) View(fn func(tl Timeline)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.poisoned != nil {
		return r.poisoned
	}
	fn(r.timeline)
	return nil
}

// Mutate implements Repository.Mutate.
func (r *LockedRepository) Mutate(fn func(tl *Timeline) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.poisoned != nil {
		return r.poisoned
	}

	defer func() {
		if p := recover(); p != nil {
			r.poisoned = fmt.Errorf("%w: mutation panicked: %v", ErrPoisoned, p)
			panic(p)
		}
	}()

	working := r.timeline.Clone()
	if err := fn(&working); err != nil {
		return err
	}

	if err := r.store.Save(working); err != nil {
		// The backing store may no longer match either version in memory.
		r.poisoned = fmt.Errorf("%w: persist failed: %w", ErrPoisoned, err)
		return err
	}
	r.timeline = working
	return nil
}
