package scheduler

import "sync"

// irqToken is the scoped "interrupts-off" acquisition §9 calls for: a
// non-reentrant guard that every function touching the runqueue or the GDT
// must hold. acquire/release stand in for cli/sti; every acquire is paired
// with a release on each exit path (via defer where the guarded section can
// return early), so interrupts are always re-enabled, matching the original
// cli()/sti() pairing in yield() and the sys$ teardown paths. held is only
// ever touched while mu is locked, so it needs no separate guard.
type irqToken struct {
	mu   sync.Mutex
	held bool
}

func (tok *irqToken) acquire() {
	tok.mu.Lock()
	tok.held = true
}

func (tok *irqToken) release() {
	tok.held = false
	tok.mu.Unlock()
}

// mustBeHeld panics if interrupts are not currently disabled; used at the
// top of functions §9 says must run with the token held.
func (tok *irqToken) mustBeHeld() {
	if !tok.held {
		panic("scheduler: interrupt-off token not held")
	}
}
