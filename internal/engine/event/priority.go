// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package event

// Priority is totally ordered: Low < Normal < High < Urgent.
//
// Low: process-completion notifications; inform state but do not trigger
// handlers by themselves.
// Normal: filesystem and keyboard events.
// High: non-terminating OS signals to the main process (HUP, USR1, USR2, QUIT).
// Urgent: Interrupt/Terminate signals. Bypasses filtering and the debounce window.
type Priority int

const (
	Low Priority = iota
	Normal
	High
	Urgent
)

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	case Urgent:
		return "urgent"
	}
	return "unknown"
}
