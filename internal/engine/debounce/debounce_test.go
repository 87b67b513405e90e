// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package debounce_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	cage_time "github.com/watchexec/watchexec/internal/cage/time"
	"github.com/watchexec/watchexec/internal/engine/debounce"
	"github.com/watchexec/watchexec/internal/engine/event"
	"github.com/watchexec/watchexec/internal/engine/filter"
	"github.com/watchexec/watchexec/internal/engine/queue"
)

// fakeTimer is a controllable cage_time.Timer: its firing is driven entirely
// by the test via fire(), never by a real clock.
type fakeTimer struct {
	c       chan time.Time
	fireAt  time.Time
	stopped bool
}

func (f *fakeTimer) Reset(d time.Duration) bool { return true }
func (f *fakeTimer) Stop() bool                 { f.stopped = true; return true }
func (f *fakeTimer) C() <-chan time.Time        { return f.c }
func (f *fakeTimer) fire()                      { f.c <- f.fireAt }

// fakeClock extends the FixedClock idea from internal/cage/time/clock_test.go
// with a controllable Timer, so the Action Throttle Loop's wait/flush
// transitions can be driven deterministically instead of with real sleeps.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
	created chan struct{}
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start, created: make(chan struct{}, 64)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) cage_time.Timer {
	c.mu.Lock()
	t := &fakeTimer{c: make(chan time.Time, 1), fireAt: c.now.Add(d)}
	c.pending = append(c.pending, t)
	c.mu.Unlock()
	c.created <- struct{}{}
	return t
}

func (c *fakeClock) setNow(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// awaitTimer blocks until the debouncer has requested a new timer, then
// returns the most recently requested one.
func (c *fakeClock) awaitTimer(t *testing.T) *fakeTimer {
	select {
	case <-c.created:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for debouncer to request a timer")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[len(c.pending)-1]
}

var _ cage_time.Clock = (*fakeClock)(nil)

type DebouncerSuite struct {
	suite.Suite

	clock   *fakeClock
	q       *queue.Queue
	flushed chan []event.Event
	d       *debounce.Debouncer
	cancel  context.CancelFunc
}

func TestDebouncerSuite(t *testing.T) {
	suite.Run(t, new(DebouncerSuite))
}

func (s *DebouncerSuite) newDebouncer(throttle time.Duration) {
	s.clock = newFakeClock(time.Unix(0, 0).UTC())
	s.q = queue.New()
	s.flushed = make(chan []event.Event, 16)

	s.d = &debounce.Debouncer{
		Queue:    s.q,
		Filterer: filter.Noop{},
		Clock:    s.clock,
		Throttle: throttle,
		Log:      zap.NewNop(),
		Flush: func(batch []event.Event) {
			cp := append([]event.Event{}, batch...)
			s.flushed <- cp
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.d.Run(ctx)
}

func (s *DebouncerSuite) TearDownTest() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.q != nil {
		s.q.Close()
	}
}

func (s *DebouncerSuite) requireBatch(timeout time.Duration) []event.Event {
	select {
	case b := <-s.flushed:
		return b
	case <-time.After(timeout):
		s.FailNow("timed out waiting for a flushed batch")
		return nil
	}
}

// Three Normal Path events arriving within the throttle window are coalesced
// into a single batch, flushed once the window elapses since the first
// event (spec §4.3/§8).
func (s *DebouncerSuite) TestCoalescesBurstIntoSingleBatch() {
	s.newDebouncer(200 * time.Millisecond)

	s.q.Send(event.New(event.PathTag{Path: "/a"}), event.Normal)
	s.clock.awaitTimer(s.T())

	// Every received event starts a fresh wait cycle with its own timer, so
	// the timer requested after "/c" is the one the debouncer is waiting on.
	s.q.Send(event.New(event.PathTag{Path: "/b"}), event.Normal)
	s.clock.awaitTimer(s.T())
	s.q.Send(event.New(event.PathTag{Path: "/c"}), event.Normal)
	timer := s.clock.awaitTimer(s.T())

	s.clock.setNow(s.clock.Now().Add(200 * time.Millisecond))
	timer.fire()

	batch := s.requireBatch(time.Second)
	s.Len(batch, 3)
}

// An Urgent event flushes the batch immediately, bypassing the filter and
// the remaining throttle wait (spec §4.3).
func (s *DebouncerSuite) TestUrgentForcesImmediateFlush() {
	s.newDebouncer(200 * time.Millisecond)

	s.q.Send(event.New(event.PathTag{Path: "/a"}), event.Normal)
	s.clock.awaitTimer(s.T())

	s.q.Send(event.New(event.SignalTag{}), event.Urgent)

	batch := s.requireBatch(time.Second)
	s.Len(batch, 2)
}

// With Throttle == 0, every event's inclusion already satisfies "elapsed >=
// throttle", so each event is flushed as its own batch.
func (s *DebouncerSuite) TestZeroThrottleFlushesEachEventSeparately() {
	s.newDebouncer(0)

	s.q.Send(event.New(event.PathTag{Path: "/a"}), event.Normal)
	first := s.requireBatch(time.Second)
	s.Len(first, 1)

	s.q.Send(event.New(event.PathTag{Path: "/b"}), event.Normal)
	second := s.requireBatch(time.Second)
	s.Len(second, 1)
}

// An empty event (bootstrap trigger) bypasses the filter but does not force
// a flush by itself (spec §4.3): it joins whatever batch is in progress and
// waits for the throttle like any other member.
func (s *DebouncerSuite) TestEmptyEventTicksWithoutForcingFlush() {
	s.newDebouncer(200 * time.Millisecond)

	s.q.Send(event.Empty(), event.Normal)
	timer := s.clock.awaitTimer(s.T())

	select {
	case <-s.flushed:
		s.FailNow("empty event must not force an immediate flush")
	case <-time.After(50 * time.Millisecond):
	}

	s.clock.setNow(s.clock.Now().Add(200 * time.Millisecond))
	timer.fire()

	batch := s.requireBatch(time.Second)
	s.Require().Len(batch, 1)
	s.True(batch[0].IsEmpty())
}
