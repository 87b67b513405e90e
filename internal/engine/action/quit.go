// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package action

import (
	"time"

	"github.com/watchexec/watchexec/internal/engine/signal"
)

// QuitManner describes how the engine should shut down once an Action
// Handler requests it: Abort kills every Job immediately, Graceful stops
// each one with a grace period first.
type QuitManner interface {
	isQuitManner()
}

// QuitAbort kills and drops every Job without waiting on processes, then
// quits.
type QuitAbort struct{}

// QuitGraceful sends Signal to every Job, waits up to Grace for each to
// finish on its own, then force-terminates and quits.
type QuitGraceful struct {
	Signal signal.SubSignal
	Grace  time.Duration
}

func (QuitAbort) isQuitManner()    {}
func (QuitGraceful) isQuitManner() {}
