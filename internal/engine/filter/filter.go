// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package filter defines the Filterer interface (spec §4.6): consumed, not
// implemented, by the core engine. Concrete filterers (ignore-file parsers,
// globset matchers) are explicitly out of scope (spec §1 Non-goals).
package filter

import (
	"sync/atomic"

	"github.com/watchexec/watchexec/internal/engine/event"
)

// Filterer decides whether an Event should proceed to the Action Handler.
//
// Implementations must be pure and cheap: no I/O, no blocking, and no
// suspension points (spec §5: "Filterer.check must not suspend"). They must
// be safe for concurrent use, since the debouncer may call Check from
// multiple goroutines over the implementation's lifetime.
type Filterer interface {
	Check(e event.Event, p event.Priority) (bool, error)
}

// Noop accepts every event. It is the default filterer when none is
// configured.
type Noop struct{}

func (Noop) Check(event.Event, event.Priority) (bool, error) { return true, nil }

// Changeable holds an atomically-replaceable Filterer behind a container
// that is never locked across Check, matching spec §4.6's "swappable
// container... behind a read-mostly lock that is never held across check."
// atomic.Value gives this without an explicit mutex, mirroring the
// atomically-swapped collaborators pattern used for Config's handlers.
type Changeable struct {
	v atomic.Value // stores Filterer
}

// NewChangeable returns a Changeable seeded with the given Filterer, or
// Noop if nil.
func NewChangeable(initial Filterer) *Changeable {
	c := &Changeable{}
	if initial == nil {
		initial = Noop{}
	}
	c.v.Store(&initial)
	return c
}

// Set atomically replaces the active Filterer.
func (c *Changeable) Set(f Filterer) {
	if f == nil {
		f = Noop{}
	}
	c.v.Store(&f)
}

// Check delegates to the currently active Filterer.
func (c *Changeable) Check(e event.Event, p event.Priority) (bool, error) {
	f := *c.v.Load().(*Filterer)
	return f.Check(e, p)
}

var _ Filterer = (*Changeable)(nil)
