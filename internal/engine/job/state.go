// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package job implements the per-command Job/Supervisor actor from spec
// §3.6/§4.5: a background task owning a priority control queue and a
// Pending/Running/Finished state machine, grounded on the state-machine
// shape of tjper-teleport's internal/jobworker/job.Job (Pending/Running/
// Stopped/Exited Status, SysProcAttr{Setpgid:true} grouping) generalized to
// watchexec's richer ProcessEnd taxonomy and Sequence-driven respawns.
package job

import (
	"time"

	"github.com/watchexec/watchexec/internal/engine/event"
)

// StateKind names the positions of the Pending → Running → Finished state
// machine from spec §3.6. It is a closed set; State.Kind discriminates without a type switch
// on every read, matching the discriminant idiom event.Tag and
// outcome.Outcome already use in this codebase.
type StateKind int

const (
	StatePending StateKind = iota
	StateRunning
	StateFinished
)

func (k StateKind) String() string {
	switch k {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// State is the Job's current position in the state machine plus the data
// specific to that position.
type State struct {
	Kind StateKind

	// Running/Finished:
	Pid       int
	StartedAt time.Time

	// Finished only:
	Status     event.ProcessEnd
	Code       int
	FinishedAt time.Time
}

func PendingState() State { return State{Kind: StatePending} }

func RunningState(pid int, startedAt time.Time) State {
	return State{Kind: StateRunning, Pid: pid, StartedAt: startedAt}
}

func FinishedState(prev State, status event.ProcessEnd, code int, finishedAt time.Time) State {
	return State{
		Kind:       StateFinished,
		Pid:        prev.Pid,
		StartedAt:  prev.StartedAt,
		Status:     status,
		Code:       code,
		FinishedAt: finishedAt,
	}
}

// IsRunning reports whether the Job currently owns a live child process.
func (s State) IsRunning() bool { return s.Kind == StateRunning }
