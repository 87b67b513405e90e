// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package queue implements the main-loop priority queue (spec §4.1): a
// multi-source, single-consumer channel with strict Urgent > High > Normal
// > Low ordering at receive time, so that a flood of Normal (filesystem)
// traffic can never starve an Urgent (Interrupt/Terminate) signal.
//
// Each priority class is backed by its own unbounded lane: a goroutine
// drains a growable slice into a small buffered channel, the same
// producer/consumer decoupling idea the teacher uses for its single-lane
// ExecRequest queue (internal/boone/dispatch.go's tp_sync.Slice +
// ExecRequestQueueTick), generalized here to one lane per priority class.
package queue

import (
	"context"
	"sync"

	"github.com/watchexec/watchexec/internal/engine/event"
)

// Item pairs an Event with the Priority it was submitted at.
type Item struct {
	Event    event.Event
	Priority event.Priority
}

// Queue is the priority-aware main event queue. Every lane is unbounded:
// Send neither blocks nor drops, however far the consumer falls behind.
type Queue struct {
	urgent chan Item
	high   chan Item
	normal chan Item
	low    chan Item

	lanes [4]*lane

	closeOnce sync.Once
	closed    chan struct{}
}

type lane struct {
	in   chan Item
	out  chan Item
	done chan struct{}
}

func newLane(out chan Item) *lane {
	l := &lane{in: make(chan Item), out: out, done: make(chan struct{})}
	go l.run()
	return l
}

// run decouples unbounded producer sends (in) from the bounded consumer
// channel (out) by buffering in a plain slice, so Send never blocks on the
// consumer's pace.
func (l *lane) run() {
	var buf []Item
	for {
		if len(buf) == 0 {
			select {
			case it, ok := <-l.in:
				if !ok {
					close(l.out)
					return
				}
				buf = append(buf, it)
			case <-l.done:
				close(l.out)
				return
			}
			continue
		}

		select {
		case it, ok := <-l.in:
			if !ok {
				l.drain(buf)
				close(l.out)
				return
			}
			buf = append(buf, it)
		case l.out <- buf[0]:
			buf = buf[1:]
		case <-l.done:
			close(l.out)
			return
		}
	}
}

func (l *lane) drain(buf []Item) {
	for _, it := range buf {
		l.out <- it
	}
}

// New returns an empty Queue. Close shuts it down.
func New() *Queue {
	q := &Queue{
		urgent: make(chan Item),
		high:   make(chan Item),
		normal: make(chan Item),
		low:    make(chan Item),
		closed: make(chan struct{}),
	}
	q.lanes = [4]*lane{
		newLane(q.urgent),
		newLane(q.high),
		newLane(q.normal),
		newLane(q.low),
	}
	return q
}

// Send enqueues an Event at the given Priority. It never blocks and applies
// no back-pressure: the sources in this tree call Send directly, with no
// bounded try-send in front of it.
func (q *Queue) Send(e event.Event, p event.Priority) {
	it := Item{Event: e, Priority: p}
	switch p {
	case event.Urgent:
		q.lanes[0].in <- it
	case event.High:
		q.lanes[1].in <- it
	case event.Normal:
		q.lanes[2].in <- it
	default:
		q.lanes[3].in <- it
	}
}

// Receive implements spec §4.1's receive policy: try Urgent non-blocking,
// then High non-blocking, then select across all four lanes. It must only
// ever be called from a single consumer goroutine (spec §2: "single
// consumer"); that invariant lets it nil out closed lanes in place instead
// of needing a lock.
//
// It returns ok=false once every lane has been closed and fully drained.
func (q *Queue) Receive(ctx context.Context) (Item, bool) {
	for {
		if q.urgent != nil {
			select {
			case it, ok := <-q.urgent:
				if !ok {
					q.urgent = nil
				} else {
					return it, true
				}
			default:
			}
		}

		if q.high != nil {
			select {
			case it, ok := <-q.high:
				if !ok {
					q.high = nil
				} else {
					return it, true
				}
			default:
			}
		}

		if q.urgent == nil && q.high == nil && q.normal == nil && q.low == nil {
			return Item{}, false
		}

		select {
		case it, ok := <-q.urgent:
			if !ok {
				q.urgent = nil
				continue
			}
			return it, true
		case it, ok := <-q.high:
			if !ok {
				q.high = nil
				continue
			}
			return it, true
		case it, ok := <-q.normal:
			if !ok {
				q.normal = nil
				continue
			}
			return it, true
		case it, ok := <-q.low:
			if !ok {
				q.low = nil
				continue
			}
			return it, true
		case <-ctx.Done():
			return Item{}, false
		}
	}
}

// Close ends the queue. Already-buffered items are still delivered to
// Receive before it reports closed, matching spec §4.1 ("closure propagates
// to the debouncer which then terminates cleanly").
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
		for _, l := range q.lanes {
			close(l.in)
		}
	})
}
