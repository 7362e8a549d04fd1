package service

import (
	"sync"

	"github.com/and161185/motectl/internal/errs"
)

// Busy is the console-wide in-flight flag. Mutating operations hold it for
// their whole duration; a second attempt fails fast with errs.ErrBusy.
type Busy struct {
	mu   sync.Mutex
	held bool
}

// TryAcquire marks the console busy. It reports false if already busy.
func (b *Busy) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.held {
		return false
	}
	b.held = true
	return true
}

// Release clears the flag. Must follow a successful TryAcquire.
func (b *Busy) Release() {
	b.mu.Lock()
	b.held = false
	b.mu.Unlock()
}

// Held reports whether an operation is in flight.
func (b *Busy) Held() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held
}

// Do runs fn while holding the flag.
func (b *Busy) Do(fn func() error) error {
	if b == nil {
		return fn()
	}
	if !b.TryAcquire() {
		return errs.ErrBusy
	}
	defer b.Release()
	return fn()
}
