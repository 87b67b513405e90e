// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package signal implements the OS-signal Source (spec §3.4): it listens
// for the process signals spec §3.2's MainSignal enumerates and submits a
// SignalTag Event to the main queue for each, at Urgent priority for
// Interrupt/Terminate (per MainSignal.Urgent) and High otherwise.
//
// The os/signal.Notify plumbing mirrors the teacher's cmd/boone root
// command shutdown handling (cmd/boone/root.go), generalized here from a
// single "stop everything" case to the full MainSignal set, with the
// platform-specific signal numbers isolated in signal_unix.go/
// signal_windows.go the same way internal/engine/job splits
// spawn_unix.go/spawn_windows.go.
package signal

import (
	"context"
	"os"
	"os/signal"

	"go.uber.org/zap"

	cage_zap "github.com/watchexec/watchexec/internal/cage/log/zap"
	"github.com/watchexec/watchexec/internal/engine/event"
	"github.com/watchexec/watchexec/internal/engine/queue"
)

// Source relays OS signals into the main queue as Events.
type Source struct {
	Queue *queue.Queue
	Log   *zap.Logger

	ch chan os.Signal
}

// New returns a Source. Start begins relaying; Close stops it.
func New(q *queue.Queue, log *zap.Logger) *Source {
	return &Source{Queue: q, Log: log, ch: make(chan os.Signal, 8)}
}

// Start registers for the platform's supported signals and begins relaying
// them in a new goroutine, until ctx is cancelled or Close is called.
func (s *Source) Start(ctx context.Context) {
	signal.Notify(s.ch, notifySignals()...)
	go s.run(ctx)
}

// Close stops relaying and releases the OS signal registration.
func (s *Source) Close() {
	signal.Stop(s.ch)
	close(s.ch)
}

func (s *Source) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-s.ch:
			if !ok {
				return
			}
			s.handle(sig)
		}
	}
}

func (s *Source) handle(raw os.Signal) {
	main, ok := mainSignalFor(raw)
	if !ok {
		s.Log.Info("received unmapped OS signal", cage_zap.Tag("source", "signal"), zap.String("signal", raw.String()))
		return
	}

	priority := event.High
	if main.Urgent() {
		priority = event.Urgent
	}

	ev := event.New(
		event.SignalTag{Signal: main},
		event.SourceTag{Origin: event.OriginOs},
	)
	s.Queue.Send(ev, priority)
}
