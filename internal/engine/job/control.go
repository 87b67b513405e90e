// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package job

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/watchexec/watchexec/internal/engine/signal"
)

// ControlPriority orders Job control operations the same way event.Priority
// orders the main queue (spec §5: "Within one Job control queue: same
// rules"), but a Job only ever sees three of the four classes.
type ControlPriority int

const (
	ControlNormal ControlPriority = iota
	ControlHigh
	ControlUrgent
)

// Control is one operation queued against a Job (spec §4.5 "Control
// operations").
type Control interface {
	isControl()
}

type Start struct{}
type Stop struct{}

// GracefulStop disables the Normal-priority control queue for Grace, sends
// Signal, and awaits completion; forcefully terminates if Grace elapses.
type GracefulStop struct {
	Signal signal.SubSignal
	Grace  time.Duration
}

type TryRestart struct{}

type TryGracefulRestart struct {
	Signal signal.SubSignal
	Grace  time.Duration
}

type SendSignal struct{ Signal signal.SubSignal }

// Delete marks the Job for teardown: at ControlUrgent for immediate
// teardown, at ControlNormal for orderly teardown (spec §4.5).
type Delete struct{}

// NextEnding resolves its Ticket when the currently-running process ends.
type NextEnding struct{}

// RunSync inspects/mutates Job state synchronously from the control loop's
// own goroutine.
type RunSync struct{ Fn func(*Handle) }

// RunAsync runs Fn in its own goroutine with a snapshot Handle, without
// blocking the control loop.
type RunAsync struct{ Fn func(*Handle) }

type SetSpawnHook struct{ Fn SpawnHook }
type UnsetSpawnHook struct{}
type SetErrorHandler struct{ Fn ErrorHandler }
type UnsetErrorHandler struct{}

func (Start) isControl()              {}
func (Stop) isControl()               {}
func (GracefulStop) isControl()       {}
func (TryRestart) isControl()         {}
func (TryGracefulRestart) isControl() {}
func (SendSignal) isControl()         {}
func (Delete) isControl()             {}
func (NextEnding) isControl()         {}
func (RunSync) isControl()            {}
func (RunAsync) isControl()           {}
func (SetSpawnHook) isControl()       {}
func (UnsetSpawnHook) isControl()     {}
func (SetErrorHandler) isControl()    {}
func (UnsetErrorHandler) isControl()  {}

// SpawnHook is invoked with mutable access to the about-to-be-spawned
// command (spec §4.5 step 4).
type SpawnHook func(*SpawnContext)

// ErrorHandler observes errors raised while applying a Control.
type ErrorHandler func(error)

// Handle gives RunSync/RunAsync callbacks a read-only snapshot-capable view
// of Job state without exposing the control loop's internals.
type Handle struct {
	job *Job
}

func (h *Handle) State() State { return h.job.state() }
func (h *Handle) ID() string   { return h.job.ID }

// Ticket resolves once its Control has been fully processed by the Job's
// control loop (spec §4.5: "each returns a Ticket that resolves when
// processed").
type Ticket struct {
	done chan struct{}
	err  error
}

func newTicket() *Ticket { return &Ticket{done: make(chan struct{})} }

func (t *Ticket) resolve(err error) {
	t.err = err
	close(t.done)
}

// Wait blocks until the Control is processed, or ctx is done first.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type controlItem struct {
	control Control
	ticket  *Ticket
}

// controlQueue is a three-lane priority queue (Normal/High/Urgent),
// structurally identical to internal/engine/queue.Queue but scoped to
// Control items: Jobs are numerous enough (one per running command) that
// duplicating the small lane mechanism here, rather than generalizing
// queue.Queue with an interface{} payload (and losing event.Item's static
// typing on the hot main-loop path), keeps both call sites simple. Go 1.16
// has no generics to share the implementation without one of those costs.
type controlQueue struct {
	normal chan controlItem
	high   chan controlItem
	urgent chan controlItem

	normalDisabled uint32 // atomic bool; set during a GracefulStop's grace window

	closeOnce sync.Once
	closed    chan struct{}
}

func newControlQueue() *controlQueue {
	return &controlQueue{
		normal: make(chan controlItem, 64),
		high:   make(chan controlItem, 64),
		urgent: make(chan controlItem, 64),
		closed: make(chan struct{}),
	}
}

func (q *controlQueue) send(c Control, p ControlPriority) *Ticket {
	t := newTicket()
	item := controlItem{control: c, ticket: t}
	switch p {
	case ControlUrgent:
		q.urgent <- item
	case ControlHigh:
		q.high <- item
	default:
		q.normal <- item
	}
	return t
}

// disableNormal and enableNormal gate the Normal lane during a
// GracefulStop's grace window, so only High/Urgent controls (e.g. a force
// Stop or a Delete) can cancel it in flight (spec §4.5).
func (q *controlQueue) disableNormal() { atomic.StoreUint32(&q.normalDisabled, 1) }
func (q *controlQueue) enableNormal()  { atomic.StoreUint32(&q.normalDisabled, 0) }

func (q *controlQueue) normalEnabled() bool { return atomic.LoadUint32(&q.normalDisabled) == 0 }

// tryUrgent and tryHigh are the non-blocking pre-checks Job.Run performs
// before falling into its combined select, the same try-urgent/try-high
// policy queue.Queue.Receive uses for the main event queue.
func (q *controlQueue) tryUrgent() (controlItem, bool) {
	select {
	case it := <-q.urgent:
		return it, true
	default:
		return controlItem{}, false
	}
}

func (q *controlQueue) tryHigh() (controlItem, bool) {
	select {
	case it := <-q.high:
		return it, true
	default:
		return controlItem{}, false
	}
}

func (q *controlQueue) close() {
	q.closeOnce.Do(func() { close(q.closed) })
}
