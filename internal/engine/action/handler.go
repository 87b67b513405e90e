// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package action implements the Action Handler environment from spec §4.4:
// the per-batch view an application callback is given over the engine's
// supervised Jobs, grounded on
// original_source/crates/lib/src/action/handler.rs's Handler.
package action

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/watchexec/watchexec/internal/engine/command"
	"github.com/watchexec/watchexec/internal/engine/event"
	"github.com/watchexec/watchexec/internal/engine/job"
	"github.com/watchexec/watchexec/internal/engine/queue"
	"github.com/watchexec/watchexec/internal/engine/signal"
)

// Handler is the environment passed to an Action Handler callback (spec
// §4.4). It is constructed fresh for each batch, with a snapshot of the
// engine's supervised Job set as of when the handler was invoked; new Jobs
// created via CreateJob and any Quit request only take effect once the
// handler returns (spec: "the quit is initiated once the action handler
// returns, not when this method is called").
type Handler struct {
	// Events are the events that triggered this action (debounced batch, or
	// a single synthetic event).
	Events []event.Event

	ctx    context.Context
	out    *queue.Queue
	log    *zap.Logger
	extant map[string]*job.Job
	new    map[string]*job.Job
	quit   QuitManner
}

// NewHandler builds a Handler over extant (the engine's current Job set,
// not copied further by the caller) for the given events.
func NewHandler(ctx context.Context, events []event.Event, extant map[string]*job.Job, out *queue.Queue, log *zap.Logger) *Handler {
	return &Handler{
		Events: events,
		ctx:    ctx,
		out:    out,
		log:    log,
		extant: extant,
		new:    make(map[string]*job.Job),
	}
}

// CreateJob starts cmd under supervision immediately and records its handle
// for the caller to commit into the engine's Job set once this Handler
// invocation returns.
func (h *Handler) CreateJob(cmd command.Command) *job.Job {
	j := job.New(cmd, h.out, h.log)
	go j.Run(h.ctx)
	h.new[j.ID] = j
	return j
}

// GetJob returns the Job with the given id, whether it was already
// supervised when this Handler was constructed or was created earlier in
// this same invocation.
func (h *Handler) GetJob(id string) (*job.Job, bool) {
	if j, ok := h.new[id]; ok {
		return j, true
	}
	j, ok := h.extant[id]
	return j, ok
}

// ListJobs returns every Job visible to this Handler: the engine's Job set
// as of construction, plus any created so far in this invocation.
func (h *Handler) ListJobs() map[string]*job.Job {
	out := make(map[string]*job.Job, len(h.extant)+len(h.new))
	for id, j := range h.extant {
		out[id] = j
	}
	for id, j := range h.new {
		out[id] = j
	}
	return out
}

// Quit shuts the engine down immediately: every Job is killed and dropped
// without waiting on processes, once this Handler returns.
func (h *Handler) Quit() {
	h.quit = QuitAbort{}
}

// QuitGracefully shuts the engine down once this Handler returns, sending
// sig to every Job and waiting up to grace before force-terminating.
func (h *Handler) QuitGracefully(sig signal.SubSignal, grace time.Duration) {
	h.quit = QuitGraceful{Signal: sig, Grace: grace}
}

// Quitting reports the QuitManner requested during this invocation, if any.
func (h *Handler) Quitting() (QuitManner, bool) {
	return h.quit, h.quit != nil
}

// NewJobs returns the Jobs created during this invocation, for the caller
// to merge into its persistent supervisor set after the Handler returns.
func (h *Handler) NewJobs() map[string]*job.Job {
	return h.new
}

// Signals returns every MainSignal carried by this batch's Events.
func (h *Handler) Signals() []signal.MainSignal {
	var out []signal.MainSignal
	for _, e := range h.Events {
		out = append(out, e.Signals()...)
	}
	return out
}

// Paths returns every PathTag carried by this batch's Events.
func (h *Handler) Paths() []event.PathTag {
	var out []event.PathTag
	for _, e := range h.Events {
		out = append(out, e.Paths()...)
	}
	return out
}

// Completions returns every ProcessCompletionTag carried by this batch's
// Events.
func (h *Handler) Completions() []event.ProcessCompletionTag {
	var out []event.ProcessCompletionTag
	for _, e := range h.Events {
		out = append(out, e.Completions()...)
	}
	return out
}
