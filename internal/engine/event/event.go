// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package event defines the immutable Event record (spec §3.1) shared by
// every source, the debouncer, and the action handler.
package event

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/watchexec/watchexec/internal/engine/signal"
)

// Event is an immutable record carrying a priority out-of-band (see
// queue.Item). It is created by a source or synthetically, is shared by
// batch, and is never mutated after creation.
//
// A zero-tag Event is the "empty event": it bypasses filtering and is used
// as a bootstrap trigger (spec §3.1 invariant).
type Event struct {
	Tags     []Tag
	Metadata map[string][]string

	idOnce sync.Once
	id     string
}

// New returns an Event carrying the given tags and no metadata.
func New(tags ...Tag) Event {
	return Event{Tags: tags}
}

// Empty returns the zero-tag bootstrap Event.
func Empty() Event {
	return Event{}
}

// IsEmpty reports whether this is the zero-tag bootstrap Event.
func (e Event) IsEmpty() bool {
	return len(e.Tags) == 0
}

// WithMetadata returns a copy of the Event with the given metadata key set.
// Events are meant to be built once via New/WithMetadata and then treated
// as immutable.
func (e Event) WithMetadata(key string, values ...string) Event {
	md := make(map[string][]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = values
	e.Metadata = md
	e.idOnce = sync.Once{}
	return e
}

// Tagged returns all tags of the given kind.
func (e Event) Tagged(kind TagKind) []Tag {
	var out []Tag
	for _, t := range e.Tags {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

// Paths returns every PathTag on the Event.
func (e Event) Paths() []PathTag {
	var out []PathTag
	for _, t := range e.Tagged(TagPath) {
		out = append(out, t.(PathTag))
	}
	return out
}

// Signals returns the MainSignal carried by every SignalTag on the Event.
func (e Event) Signals() []signal.MainSignal {
	var out []signal.MainSignal
	for _, t := range e.Tagged(TagSignal) {
		out = append(out, t.(SignalTag).Signal)
	}
	return out
}

// Completions returns every ProcessCompletionTag on the Event.
func (e Event) Completions() []ProcessCompletionTag {
	var out []ProcessCompletionTag
	for _, t := range e.Tagged(TagProcessCompletion) {
		out = append(out, t.(ProcessCompletionTag))
	}
	return out
}

// ID lazily computes a stable identifier for the Event, used for
// deduplication (spec §3.1). It is a content hash of the tags and metadata,
// not a random identifier, so that two Events built from the same content
// compare equal: no dependency in the corpus offers content hashing (ksuid
// generates unique, not deterministic, identifiers), so this uses the
// standard library's hash/fnv directly.
func (e *Event) ID() string {
	e.idOnce.Do(func() {
		h := fnv.New64a()
		for _, t := range e.Tags {
			fmt.Fprintf(h, "%d:%+v|", t.Kind(), t)
		}
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "%s=%v|", k, e.Metadata[k])
		}
		e.id = fmt.Sprintf("%x", h.Sum64())
	})
	return e.id
}
