// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// +build !windows

package signal

import (
	"syscall"

	"github.com/pkg/errors"
)

// Syscall converts a SubSignal to the concrete Unix signal to deliver.
func (s SubSignal) Syscall() (syscall.Signal, error) {
	if s.Force {
		return syscall.SIGKILL, nil
	}
	if s.IsCustom {
		return syscall.Signal(s.Custom), nil
	}
	switch s.Named {
	case Hangup:
		return syscall.SIGHUP, nil
	case Interrupt:
		return syscall.SIGINT, nil
	case Quit:
		return syscall.SIGQUIT, nil
	case Terminate:
		return syscall.SIGTERM, nil
	case User1:
		return syscall.SIGUSR1, nil
	case User2:
		return syscall.SIGUSR2, nil
	}
	return 0, errors.Errorf("unsupported signal [%s]", s)
}

// UnixSet lists the signals the main-process signal source installs
// handlers for, per spec §4.2.
var UnixSet = []syscall.Signal{
	syscall.SIGHUP,
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGTERM,
	syscall.SIGUSR1,
	syscall.SIGUSR2,
}

// FromSyscall converts an observed Unix signal into a MainSignal and
// reports whether sig is one of the signals in UnixSet. The Priority class
// is not returned here; MainSignal.Urgent tells Interrupt/Terminate apart.
func FromSyscall(sig syscall.Signal) (MainSignal, bool) {
	switch sig {
	case syscall.SIGHUP:
		return Hangup, true
	case syscall.SIGINT:
		return Interrupt, true
	case syscall.SIGQUIT:
		return Quit, true
	case syscall.SIGTERM:
		return Terminate, true
	case syscall.SIGUSR1:
		return User1, true
	case syscall.SIGUSR2:
		return User2, true
	}
	return 0, false
}
