// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// +build windows

package signal

import (
	"os"
	"syscall"

	eng_signal "github.com/watchexec/watchexec/internal/engine/signal"
)

// notifySignals mirrors spec §3.2's Windows note: only Interrupt (Ctrl-C)
// and Terminate (Ctrl-Break, which the Go runtime delivers as SIGTERM on
// Windows consoles) are produced.
func notifySignals() []os.Signal {
	return []os.Signal{
		os.Interrupt,
		syscall.SIGTERM,
	}
}

func mainSignalFor(raw os.Signal) (eng_signal.MainSignal, bool) {
	switch raw {
	case os.Interrupt:
		return eng_signal.Interrupt, true
	case syscall.SIGTERM:
		return eng_signal.Terminate, true
	default:
		return 0, false
	}
}
