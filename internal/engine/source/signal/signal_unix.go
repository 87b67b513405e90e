// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// +build !windows

package signal

import (
	"os"
	"syscall"

	eng_signal "github.com/watchexec/watchexec/internal/engine/signal"
)

func notifySignals() []os.Signal {
	return []os.Signal{
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
	}
}

func mainSignalFor(raw os.Signal) (eng_signal.MainSignal, bool) {
	switch raw {
	case syscall.SIGHUP:
		return eng_signal.Hangup, true
	case syscall.SIGINT:
		return eng_signal.Interrupt, true
	case syscall.SIGQUIT:
		return eng_signal.Quit, true
	case syscall.SIGTERM:
		return eng_signal.Terminate, true
	case syscall.SIGUSR1:
		return eng_signal.User1, true
	case syscall.SIGUSR2:
		return eng_signal.User2, true
	default:
		return 0, false
	}
}
