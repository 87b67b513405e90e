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

	"github.com/watchexec/watchexec/internal/engine/signal"
)

// applyPlatformSpawnAttrs sets the Unix process-group flag (spec §4.5 step
// 5: "if grouped, use an OS process group... Unix: setsid/setpgid"),
// grounded on tjper-teleport's job.go use of
// syscall.SysProcAttr{Setpgid: true} for its own re-exec'd children.
//
// spec §4.5 step 3 additionally calls for a pre_exec that unblocks every
// signal except SIGHUP before the child's image is loaded, so a nohup-style
// invocation still works even if the watchexec process itself runs with a
// non-default signal mask. Go's os/exec has no pre_exec hook (unlike
// posix_spawn-based runtimes): the fork+exec is done entirely inside the
// runtime without a safe point to run arbitrary Go code in the child
// between fork and exec. There is accordingly no unmask step here; this is
// a known platform gap, not a dropped library (see DESIGN.md).
func applyPlatformSpawnAttrs(cmd *exec.Cmd, grouped bool) {
	if !grouped {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// groupSignal delivers sig to the process group led by pid rather than just
// pid itself, so a grouped child's own descendants receive it too.
func groupSignal(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}

// signalProcess delivers sub to cmd's child, to its whole process group
// when grouped, via cage's SubSignal -> syscall.Signal mapping
// (internal/engine/signal/signal_unix.go).
func signalProcess(cmd *exec.Cmd, grouped bool, sub signal.SubSignal) error {
	sig, err := sub.Syscall()
	if err != nil {
		return err
	}
	if grouped {
		return groupSignal(cmd.Process.Pid, sig)
	}
	return cmd.Process.Signal(sig)
}

// killProcess force-terminates cmd's child (its whole group when grouped)
// via SIGKILL.
func killProcess(cmd *exec.Cmd, grouped bool) error {
	if grouped {
		return groupSignal(cmd.Process.Pid, syscall.SIGKILL)
	}
	return cmd.Process.Kill()
}
