// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package errs implements the Error Hook from spec §4.7: a single
// user-supplied handler that receives every RuntimeError and may elevate
// it to a CriticalError, at which point the engine shuts down.
//
// It generalizes the teacher's single-destination panic channel
// (internal/boone/dispatch.go and cmd/boone/root/root.go both funnel
// goroutine failures into one channel the main loop selects on) into the
// full Runtime/Critical taxonomy spec §7 calls for.
package errs

import (
	"github.com/pkg/errors"
)

// RuntimeError is a recoverable error: I/O, filter, handler-panic-turned-
// error, unsupported signal, fs-watcher event read, supervisor internal
// (spec §4.7). The engine reports it and continues.
type RuntimeError struct {
	// Op names the operation that failed (e.g. "fs-watch", "spawn",
	// "filter"), for log correlation.
	Op  string
	err error
}

func NewRuntimeError(op string, cause error) RuntimeError {
	return RuntimeError{Op: op, err: errors.WithStack(cause)}
}

func (e RuntimeError) Error() string { return e.Op + ": " + e.err.Error() }
func (e RuntimeError) Unwrap() error { return e.err }

// CriticalError is a terminal error: channel send failure, main-task join
// failure, fs-watcher init, or a user-elevated RuntimeError (spec §4.7). The
// engine stops once one occurs.
type CriticalError struct {
	Op  string
	err error
}

func NewCriticalError(op string, cause error) CriticalError {
	return CriticalError{Op: op, err: errors.WithStack(cause)}
}

func (e CriticalError) Error() string { return e.Op + ": " + e.err.Error() }
func (e CriticalError) Unwrap() error { return e.err }

// ErrExit is returned by the outcome worker (internal/engine/outcome) to
// signal a graceful engine-wide shutdown requested via Outcome.Exit; it is
// not itself a RuntimeError or CriticalError, since it carries no failure.
var ErrExit = errors.New("exit requested")

// Elevate converts a RuntimeError into the CriticalError that stops the
// engine, the action a Hook takes by calling its elevate callback (spec
// §4.7).
func Elevate(re RuntimeError) CriticalError {
	return NewCriticalError(re.Op, re.err)
}

// Hook is the user-supplied handler spec §4.7 describes as
// `FnMut(ErrorHook)`. It receives each RuntimeError and an elevate callback;
// calling elevate transitions the engine to shutdown.
type Hook func(err RuntimeError, elevate func(CriticalError))

// Noop is the default Hook: it observes errors but never elevates.
func Noop(RuntimeError, func(CriticalError)) {}

// Channel fans RuntimeErrors from any task into a single consumer (the main
// loop), mirroring the teacher's single-destination panic channel pattern
// but typed to the Runtime/Critical taxonomy.
type Channel struct {
	runtime  chan RuntimeError
	critical chan CriticalError
}

// NewChannel returns a Channel with the given buffer size for runtime
// errors; critical errors are always delivered through an unbuffered
// channel since at most one should ever matter.
func NewChannel(bufferSize int) *Channel {
	return &Channel{
		runtime:  make(chan RuntimeError, bufferSize),
		critical: make(chan CriticalError),
	}
}

// Report sends re to the runtime channel. If the buffer is full, the send
// itself is elevated to critical (spec §7: "channel send failures" are
// critical), since a full error channel means the consumer has stopped
// observing errors.
func (c *Channel) Report(re RuntimeError) {
	select {
	case c.runtime <- re:
	default:
		c.Critical(NewCriticalError("errs.Channel.Report", errors.New("runtime error channel full")))
	}
}

// Critical sends ce to the critical channel. It blocks until received,
// since a critical error always implies the caller is shutting down anyway.
func (c *Channel) Critical(ce CriticalError) {
	c.critical <- ce
}

func (c *Channel) Runtime() <-chan RuntimeError    { return c.runtime }
func (c *Channel) CriticalC() <-chan CriticalError { return c.critical }

// Run applies hook to every RuntimeError arriving on c until done is closed or
// a CriticalError arrives (including one produced by hook's own elevate
// call), returning that CriticalError.
func Run(done <-chan struct{}, c *Channel, hook Hook) CriticalError {
	if hook == nil {
		hook = Noop
	}
	elevated := make(chan CriticalError, 1)
	elevate := func(ce CriticalError) {
		select {
		case elevated <- ce:
		default:
		}
	}
	for {
		select {
		case re := <-c.runtime:
			hook(re, elevate)
			select {
			case ce := <-elevated:
				return ce
			default:
			}
		case ce := <-c.critical:
			return ce
		case ce := <-elevated:
			return ce
		case <-done:
			return CriticalError{}
		}
	}
}
