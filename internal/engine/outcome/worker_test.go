// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package outcome_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	cage_testkit "github.com/watchexec/watchexec/internal/cage/testkit"

	customerrs "github.com/watchexec/watchexec/internal/engine/errs"
	"github.com/watchexec/watchexec/internal/engine/outcome"
)

type WorkerSuite struct {
	suite.Suite
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

type recordingHooks struct {
	mu      sync.Mutex
	calls   []string
	running bool
}

func (r *recordingHooks) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *recordingHooks) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.calls...)
}

func (s *WorkerSuite) TestStopNoOpWhenNotRunning() {
	gc := outcome.NewGeneration()
	errorsC := customerrs.NewChannel(4)
	h := &recordingHooks{running: false}

	hooks := outcome.Hooks{
		IsRunning: func() bool { return h.running },
		Stop:      func(context.Context) error { h.record("stop"); return nil },
	}

	done := make(chan struct{})
	go func() {
		outcome.Spawn(context.Background(), outcome.Stop{}, hooks, gc, errorsC, cage_testkit.NewZapLogger())
		close(done)
	}()

	s.waitSettled()
	s.Empty(h.snapshot())
}

func (s *WorkerSuite) TestStartAndWaitSequenceViaBoth() {
	gc := outcome.NewGeneration()
	errorsC := customerrs.NewChannel(4)
	h := &recordingHooks{}

	hooks := outcome.Hooks{
		IsRunning: func() bool { return h.running },
		Start: func(context.Context) error {
			h.record("start")
			h.mu.Lock()
			h.running = true
			h.mu.Unlock()
			return nil
		},
		Wait: func(context.Context) error { h.record("wait"); return nil },
	}

	o := outcome.Both{One: outcome.Start{}, Two: outcome.IfRunning{Then: outcome.Wait{}, Otherwise: outcome.DoNothing{}}}
	outcome.Spawn(context.Background(), o, hooks, gc, errorsC, cage_testkit.NewZapLogger())

	s.waitSettled()
	s.Equal([]string{"start", "wait"}, h.snapshot())
}

func (s *WorkerSuite) TestExitPropagatesAsRuntimeError() {
	gc := outcome.NewGeneration()
	errorsC := customerrs.NewChannel(4)
	hooks := outcome.Hooks{IsRunning: func() bool { return false }}

	outcome.Spawn(context.Background(), outcome.Exit{}, hooks, gc, errorsC, cage_testkit.NewZapLogger())

	select {
	case re := <-errorsC.Runtime():
		s.Require().True(errors.Is(re.Unwrap(), customerrs.ErrExit))
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for exit to propagate")
	}
}

// A worker superseded between its isRunning check and its next step aborts
// before committing that step's side effect (spec §5: generation-counter
// check before and after each awaitable step).
func (s *WorkerSuite) TestSupersededGenerationSkipsSideEffects() {
	gc := outcome.NewGeneration()
	errorsC := customerrs.NewChannel(4)
	h := &recordingHooks{running: true}

	entered := make(chan struct{})
	release := make(chan struct{})
	hooks := outcome.Hooks{
		IsRunning: func() bool {
			close(entered)
			<-release
			return h.running
		},
		Stop: func(context.Context) error { h.record("stop"); return nil },
	}

	outcome.Spawn(context.Background(), outcome.Stop{}, hooks, gc, errorsC, cage_testkit.NewZapLogger())
	<-entered

	// supersede with a newer generation while worker one is still parked
	outcome.Spawn(context.Background(), outcome.DoNothing{}, outcome.Hooks{IsRunning: func() bool { return true }}, gc, errorsC, cage_testkit.NewZapLogger())
	close(release)

	s.waitSettled()
	s.Empty(h.snapshot(), "superseded worker must not run Stop after losing its generation")
}

func (s *WorkerSuite) waitSettled() {
	time.Sleep(50 * time.Millisecond)
}
