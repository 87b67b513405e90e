// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// +build !windows

package job

import (
	"os/exec"
	"syscall"

	"github.com/watchexec/watchexec/internal/engine/event"
)

// classifyExit maps a completed *exec.Cmd's wait error to the ProcessEnd
// taxonomy from spec §3.6, signal-aware on Unix (spec §4.5 "Wait /
// completion": "Map the exit to ProcessEnd (signal-aware on Unix...)").
func classifyExit(cmd *exec.Cmd, waitErr error) (event.ProcessEnd, int) {
	if waitErr == nil {
		return event.ProcessSuccess, 0
	}

	exitErr, ok := waitErr.(*exec.ExitError)
	if !ok {
		return event.ProcessEndUnknown, 0
	}

	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return event.ProcessExitError, exitErr.ExitCode()
	}

	switch {
	case ws.Signaled():
		return event.ProcessExitSignal, int(ws.Signal())
	case ws.Stopped():
		return event.ProcessExitStop, int(ws.StopSignal())
	case ws.Continued():
		return event.ProcessContinued, 0
	default:
		return event.ProcessExitError, ws.ExitStatus()
	}
}
