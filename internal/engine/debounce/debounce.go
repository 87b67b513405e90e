// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package debounce implements the Action Throttle Loop from spec §4.3: it
// collects events off the priority queue into a batch and hands the batch
// to a Flusher once the throttle window elapses since the first event in
// the batch, or immediately on an Urgent event.
//
// It is grounded on the teacher's Dispatcher.Start loop
// (internal/boone/dispatch.go), which debounces per-target-per-path
// activity before enqueueing a run; this generalizes that same
// wait-then-flush shape to the single engine-wide batch spec §4.3
// describes, using the mockable cage/time.Clock so tests do not need real
// sleeps (internal/cage/time/clock_test.go demonstrates the same pattern).
package debounce

import (
	"context"
	"time"

	"go.uber.org/zap"

	cage_zap "github.com/watchexec/watchexec/internal/cage/log/zap"
	cage_time "github.com/watchexec/watchexec/internal/cage/time"
	"github.com/watchexec/watchexec/internal/engine/event"
	"github.com/watchexec/watchexec/internal/engine/filter"
	"github.com/watchexec/watchexec/internal/engine/queue"
)

// Flusher receives a settled, immutable batch of events (spec §4.3
// invariant: "once flushed, the batch is immutable").
type Flusher func(batch []event.Event)

// Debouncer implements the loop described in spec §4.3.
type Debouncer struct {
	Queue    *queue.Queue
	Filterer filter.Filterer
	Clock    cage_time.Clock
	Throttle time.Duration
	Log      *zap.Logger
	Flush    Flusher

	set         []event.Event
	lastEventAt time.Time
}

// Run executes the loop until ctx is cancelled or the queue closes. It
// should run in its own goroutine.
func (d *Debouncer) Run(ctx context.Context) {
	for {
		var wait time.Duration
		if len(d.set) == 0 {
			wait = -1 // await indefinitely
		} else {
			wait = d.Throttle - d.Clock.Now().Sub(d.lastEventAt)
			if wait <= 0 {
				d.flush()
				continue
			}
		}

		item, gotItem, closed := d.receiveWithTimeout(ctx, wait)
		if ctx.Err() != nil {
			return
		}
		if closed {
			// queue closed: flush whatever remains, then stop.
			if len(d.set) > 0 {
				d.flush()
			}
			return
		}
		if !gotItem {
			// the throttle timeout elapsed before an item arrived: flush.
			d.flush()
			continue
		}

		d.handle(item)
	}
}

// receiveWithTimeout waits up to wait (or indefinitely, if wait < 0) for the
// next queue item. gotItem is false (with closed also false) when the
// timeout elapsed first; closed is true once the queue is exhausted.
//
// The wait is driven by d.Clock.NewTimer rather than context.WithTimeout so
// that tests can substitute the cage/time mock Clock/Timer and control the
// throttle window without real sleeps, the same substitution
// internal/cage/time/clock_test.go demonstrates for FixedClock.
func (d *Debouncer) receiveWithTimeout(ctx context.Context, wait time.Duration) (item queue.Item, gotItem bool, closed bool) {
	if wait < 0 {
		item, ok := d.Queue.Receive(ctx)
		if !ok {
			return queue.Item{}, false, ctx.Err() == nil
		}
		return item, true, false
	}

	timer := d.Clock.NewTimer(wait)
	defer timer.Stop()

	recvCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		item queue.Item
		ok   bool
	}
	resCh := make(chan result, 1)
	go func() {
		it, ok := d.Queue.Receive(recvCtx)
		resCh <- result{it, ok}
	}()

	select {
	case r := <-resCh:
		if r.ok {
			return r.item, true, false
		}
		return queue.Item{}, false, ctx.Err() == nil
	case <-timer.C():
		cancel() // unblock the pending Receive
		return queue.Item{}, false, false
	case <-ctx.Done():
		return queue.Item{}, false, false
	}
}

func (d *Debouncer) handle(item queue.Item) {
	if item.Priority == event.Urgent {
		d.include(item.Event)
		d.flush()
		return
	}

	if item.Event.IsEmpty() {
		// Empty events bypass the filter without forcing a flush (spec §4.3).
		d.include(item.Event)
		return
	}

	ok, err := d.Filterer.Check(item.Event, item.Priority)
	if err != nil {
		d.Log.Info(
			"filterer rejected event with error",
			cage_zap.Tag("debounce"),
			zap.Error(err),
		)
		return
	}
	if !ok {
		return
	}

	d.include(item.Event)

	if d.Clock.Now().Sub(d.lastEventAt) >= d.Throttle {
		d.flush()
	}
}

func (d *Debouncer) include(e event.Event) {
	if len(d.set) == 0 {
		d.lastEventAt = d.Clock.Now()
	}
	d.set = append(d.set, e)
}

func (d *Debouncer) flush() {
	if len(d.set) == 0 {
		return
	}
	batch := d.set
	d.set = nil
	d.Log.Debug("flush", cage_zap.Tag("debounce"), zap.Int("batchLen", len(batch)))
	d.Flush(batch)
}
