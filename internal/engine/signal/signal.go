// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package signal defines the notifications sent to the main watchexec
// process (MainSignal) and the signals that can be delivered to a
// supervised child (SubSignal).
package signal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MainSignal is a notification sent to the main (watchexec) process.
//
// On Windows, only Interrupt and Terminate are produced: Ctrl-C (SIGINT) and
// Ctrl-Break (SIGBREAK) respectively. Ctrl-Close has no equivalent here.
type MainSignal uint8

const (
	// Hangup is received when the terminal is disconnected. Unix: SIGHUP.
	// Not produced on Windows.
	Hangup MainSignal = iota + 1

	// Interrupt is received to indicate that the process should stop.
	// Unix: SIGINT. Windows: Ctrl+C.
	Interrupt

	// Quit is received to cause the process to stop and dump core.
	// Unix: SIGQUIT. Not produced on Windows.
	Quit

	// Terminate is received to indicate that the process should stop.
	// Unix: SIGTERM. Windows: Ctrl+Break.
	Terminate

	// User1 is a user/application-defined signal. Unix: SIGUSR1. Not
	// produced on Windows.
	User1

	// User2 is a user/application-defined signal. Unix: SIGUSR2. Not
	// produced on Windows.
	User2
)

func (s MainSignal) String() string {
	switch s {
	case Hangup:
		return "hangup"
	case Interrupt:
		return "interrupt"
	case Quit:
		return "quit"
	case Terminate:
		return "terminate"
	case User1:
		return "user1"
	case User2:
		return "user2"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// Urgent reports whether the signal must bypass filtering/debounce at
// Urgent priority, per spec §3.2: only Interrupt and Terminate are urgent.
func (s MainSignal) Urgent() bool {
	return s == Interrupt || s == Terminate
}

// SubSignal is a signal sent to, or reported from, a supervised child.
//
// It is a superset of MainSignal: it also supports ForceStop (an
// uncatchable kill) and Custom numeric signals.
type SubSignal struct {
	// Named holds one of the MainSignal-equivalent constants, or zero if
	// this value represents ForceStop or Custom.
	Named MainSignal

	// Force is true for the "kill unconditionally" signal (SIGKILL /
	// TerminateProcess).
	Force bool

	// Custom holds a raw platform signal number. Ignored on Windows.
	Custom int32

	// IsCustom distinguishes a Custom(0) from the zero value.
	IsCustom bool
}

// ForceStop returns the uncatchable-kill SubSignal.
func ForceStop() SubSignal { return SubSignal{Force: true} }

// FromMain converts a MainSignal to its SubSignal equivalent.
func FromMain(s MainSignal) SubSignal { return SubSignal{Named: s} }

// CustomSignal returns a SubSignal carrying a raw signal number.
func CustomSignal(n int32) SubSignal { return SubSignal{Custom: n, IsCustom: true} }

func (s SubSignal) String() string {
	switch {
	case s.Force:
		return "force-stop"
	case s.IsCustom:
		return fmt.Sprintf("custom(%d)", s.Custom)
	default:
		return s.Named.String()
	}
}

// Parse accepts signal names (case-insensitive, with or without a "SIG"
// prefix), numeric ids, and the Windows-specific aliases CTRL-C,
// CTRL-BREAK, CLOSE, and KILL.
func Parse(raw string) (SubSignal, error) {
	trimmed := strings.TrimSpace(raw)
	upper := strings.ToUpper(trimmed)
	upper = strings.TrimPrefix(upper, "SIG")

	switch upper {
	case "HUP", "HANGUP":
		return FromMain(Hangup), nil
	case "INT", "INTERRUPT", "CTRL-C", "CTRLC":
		return FromMain(Interrupt), nil
	case "QUIT":
		return FromMain(Quit), nil
	case "TERM", "TERMINATE", "CTRL-BREAK", "CTRLBREAK":
		return FromMain(Terminate), nil
	case "USR1", "USER1":
		return FromMain(User1), nil
	case "USR2", "USER2":
		return FromMain(User2), nil
	case "KILL", "FORCE-STOP", "FORCESTOP", "CLOSE":
		return ForceStop(), nil
	}

	if n, err := strconv.ParseInt(trimmed, 10, 32); err == nil {
		return CustomSignal(int32(n)), nil
	}

	return SubSignal{}, errors.Errorf("unrecognized signal [%s]", raw)
}
