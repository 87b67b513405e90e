// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// +build windows

package job

import (
	"os/exec"
	"syscall"

	"github.com/watchexec/watchexec/internal/engine/signal"
)

// applyPlatformSpawnAttrs requests a new process group on Windows (spec
// §4.5 step 5: "Windows: Job Object"); a full Job Object implementation
// needs golang.org/x/sys/windows, which is not among the teacher's or
// pack's dependencies, so grouping here is approximated with
// CREATE_NEW_PROCESS_GROUP. No console control event is ever sent to the
// group: signalProcess kills the process instead.
func applyPlatformSpawnAttrs(cmd *exec.Cmd, grouped bool) {
	if !grouped {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// signalProcess on Windows kills the process for every SubSignal, grouped
// or not; it sends no CTRL_BREAK or other console control event.
func signalProcess(cmd *exec.Cmd, grouped bool, sub signal.SubSignal) error {
	return cmd.Process.Kill()
}

func killProcess(cmd *exec.Cmd, grouped bool) error {
	return cmd.Process.Kill()
}
