// Package recovery decides how conversion reacts to faults: abort the run
// or skip the damaged part and keep going. It also turns panics from deep
// inside content processing into ordinary errors.
package recovery

import (
	"fmt"
	"sync"
)

// Location identifies where a fault happened.
type Location struct {
	Page      int // zero-based, -1 when not page-scoped
	Component string
}

// Action is the strategy's verdict.
type Action int

const (
	ActionFail Action = iota
	ActionSkip
)

// Strategy decides what to do with a fault at a given location.
type Strategy interface {
	OnError(err error, loc Location) Action
}

// Strict aborts on the first fault.
type Strict struct{}

func (Strict) OnError(error, Location) Action { return ActionFail }

// Lenient skips damaged pages and records what went wrong. It is safe for
// concurrent use: one strategy may serve several conversions at once.
type Lenient struct {
	mu     sync.Mutex
	errors []error
}

func (s *Lenient) OnError(err error, loc Location) Action {
	s.mu.Lock()
	s.errors = append(s.errors, fmt.Errorf("%s (page %d): %w", loc.Component, loc.Page+1, err))
	s.mu.Unlock()
	return ActionSkip
}

// Errors returns a snapshot of everything recorded so far.
func (s *Lenient) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.errors))
	copy(out, s.errors)
	return out
}

// Guard runs fn and converts a panic into an error, so one bad page cannot
// take down a whole batch.
func Guard(component string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", component, r)
		}
	}()
	return fn()
}
