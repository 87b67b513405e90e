// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package outcome implements the Outcome algebraic tree from spec §3.4 and
// its resolution against supervisor state, grounded on
// original_source/crates/lib/src/action/outcome.rs: logic against the state
// of a command is expressed with these node types rather than inline in an
// action handler, so the state a worker observes is always the latest
// available at the moment it runs.
package outcome

import (
	"time"

	"github.com/watchexec/watchexec/internal/engine/signal"
)

// Outcome is one node of the algebraic tree. It is a closed set (DoNothing,
// Exit, Start, Stop, Wait, Signal, Sleep, Clear, Reset, IfRunning, Both,
// Race); the marker method keeps external packages from inventing new node
// types, the same discriminated-union idiom event.Tag uses.
type Outcome interface {
	isOutcome()
}

// DoNothing does nothing; a safe default or a conditional branch.
type DoNothing struct{}

// Exit terminates the engine. Surfaces as errs.ErrExit from the worker.
type Exit struct{}

// Start spawns the command if it is not already running.
type Start struct{}

// Stop kills the running command, waits for it to exit, and drops its
// handle.
type Stop struct{}

// Wait awaits completion of the running command; a no-op if none is
// running.
type Wait struct{}

// Signal delivers Signal to the running command without waiting for it to
// complete.
type Signal struct{ Signal signal.SubSignal }

// Sleep pauses the worker for Duration.
type Sleep struct{ Duration time.Duration }

// Clear clears the terminal screen.
type Clear struct{}

// Reset resets the terminal to a known-good state.
type Reset struct{}

// IfRunning resolves to Then when the command is running, Otherwise when it
// is not.
type IfRunning struct{ Then, Otherwise Outcome }

// Both runs One then Two in sequence; a failure in One is reported but does
// not stop Two from running.
type Both struct{ One, Two Outcome }

// Race runs One and Two concurrently; whichever finishes first (success or
// error) wins, and the other is cancelled.
type Race struct{ One, Two Outcome }

func (DoNothing) isOutcome() {}
func (Exit) isOutcome()      {}
func (Start) isOutcome()     {}
func (Stop) isOutcome()      {}
func (Wait) isOutcome()      {}
func (Signal) isOutcome()    {}
func (Sleep) isOutcome()     {}
func (Clear) isOutcome()     {}
func (Reset) isOutcome()     {}
func (IfRunning) isOutcome() {}
func (Both) isOutcome()      {}
func (Race) isOutcome()      {}

// Sequence folds a list of outcomes into nested Both nodes, left to right.
// An empty list resolves to DoNothing.
func Sequence(outcomes ...Outcome) Outcome {
	if len(outcomes) == 0 {
		return DoNothing{}
	}
	seq := outcomes[0]
	for _, o := range outcomes[1:] {
		seq = Both{One: seq, Two: o}
	}
	return seq
}

// WaitThen waits for completion, then runs andThen.
func WaitThen(andThen Outcome) Outcome {
	return Both{One: Wait{}, Two: andThen}
}

// WaitTimeout waits for completion or timeout, whichever comes first, then
// runs andThen.
func WaitTimeout(timeout time.Duration, andThen Outcome) Outcome {
	return Both{One: Race{One: Sleep{Duration: timeout}, Two: Wait{}}, Two: andThen}
}

// Resolve collapses conditional nodes (IfRunning) against the current
// process state and recurses into Both, so that outside a Race every leaf
// it returns is something a worker can apply directly without re-checking
// isRunning itself. A Race node is returned as it is, children unresolved
// (spec §3.4/§5: "an Outcome spawned from a given Action batch
// always sees a snapshot of supervisor state as of when the handler ran").
func Resolve(o Outcome, isRunning bool) Outcome {
	switch v := o.(type) {
	case IfRunning:
		if isRunning {
			return Resolve(v.Then, true)
		}
		return Resolve(v.Otherwise, false)
	case Both:
		return Both{One: Resolve(v.One, isRunning), Two: Resolve(v.Two, isRunning)}
	default:
		return o
	}
}
