// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package action

import (
	"context"
	"sync"

	"go.uber.org/zap"

	cage_zap "github.com/watchexec/watchexec/internal/cage/log/zap"
	"github.com/watchexec/watchexec/internal/engine/debounce"
	"github.com/watchexec/watchexec/internal/engine/errs"
	"github.com/watchexec/watchexec/internal/engine/event"
	"github.com/watchexec/watchexec/internal/engine/job"
	"github.com/watchexec/watchexec/internal/engine/outcome"
	"github.com/watchexec/watchexec/internal/engine/queue"
)

// Func is the application-supplied Action Handler callback (spec §4.4). It
// may drive Jobs directly through h (CreateJob/GetJob/ListJobs) and return
// nil, or return a non-nil Outcome to use the legacy single-outcome path,
// which this Worker resolves against Primary (see resolved Open Question in
// DESIGN.md: both forms are supported side by side, matching
// original_source/crates/lib/src/action/{handler.rs,outcome_worker.rs}).
type Func func(*Handler) outcome.Outcome

// Worker is the Action Handler dispatch loop: it is handed one settled
// batch at a time (as debounce.Debouncer's Flusher), builds a Handler over
// the engine's current Job set, invokes Handle, commits whatever Jobs and
// quit request the handler produced, and — for the legacy return-value
// path — resolves the returned Outcome via the outcome.Worker against
// Primary, the Job most recently committed from a Handler's new Jobs (when
// one invocation creates several, which of them becomes Primary is not
// defined), matching the original single-process engine's single
// ProcessHolder.
type Worker struct {
	Out     *queue.Queue
	Log     *zap.Logger
	Handle  Func
	Errors  *errs.Channel
	Gen     *outcome.Generation

	mu      sync.RWMutex
	jobs    map[string]*job.Job
	primary string

	Quit func(QuitManner)
}

// NewWorker returns a Worker with an empty Job set.
func NewWorker(out *queue.Queue, log *zap.Logger, handle Func, errorsC *errs.Channel, quit func(QuitManner)) *Worker {
	return &Worker{
		Out:    out,
		Log:    log,
		Handle: handle,
		Errors: errorsC,
		Gen:    outcome.NewGeneration(),
		jobs:   make(map[string]*job.Job),
		Quit:   quit,
	}
}

// Jobs returns a snapshot copy of the currently supervised Job set.
func (w *Worker) Jobs() map[string]*job.Job {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]*job.Job, len(w.jobs))
	for id, j := range w.jobs {
		out[id] = j
	}
	return out
}

// Bind returns a debounce.Flusher bound to ctx, suitable for
// debounce.Debouncer.Flush: every flushed batch is routed through w.Flush.
func (w *Worker) Bind(ctx context.Context) debounce.Flusher {
	return func(batch []event.Event) {
		w.Flush(ctx, batch)
	}
}

// Flush runs one Action Handler invocation over batch (spec §4.4),
// grounded on worker.rs's per-batch Action construction.
func (w *Worker) Flush(ctx context.Context, batch []event.Event) {
	h := NewHandler(ctx, batch, w.Jobs(), w.Out, w.Log)

	returned := w.Handle(h)

	w.mu.Lock()
	for id, j := range h.NewJobs() {
		w.jobs[id] = j
		w.primary = id
	}
	w.mu.Unlock()

	w.Log.Debug("action handler finished", cage_zap.Tag("action"), zap.Int("events", len(batch)))

	if qm, ok := h.Quitting(); ok && w.Quit != nil {
		w.Quit(qm)
		return
	}

	if returned == nil {
		return
	}

	w.applyLegacyOutcome(ctx, returned)
}

// applyLegacyOutcome resolves returned against Primary's running state and
// spawns an outcome.Worker to carry it out, the lowering described in
// handler.rs's doc comments for the legacy return-value path.
func (w *Worker) applyLegacyOutcome(ctx context.Context, o outcome.Outcome) {
	w.mu.RLock()
	primary := w.jobs[w.primary]
	if primary == nil {
		for _, j := range w.jobs {
			primary = j
			break
		}
	}
	w.mu.RUnlock()

	if primary == nil {
		w.Log.Info(
			"action handler returned an outcome but no job exists to apply it to",
			cage_zap.Tag("action"),
		)
		return
	}

	resolved := outcome.Resolve(o, primary.IsRunning())
	hooks := jobHooks(primary)
	outcome.Spawn(ctx, resolved, hooks, w.Gen, w.Errors, w.Log)
}

// jobHooks adapts j's control-queue surface to outcome.Hooks, keeping
// internal/engine/outcome decoupled from internal/engine/job (see
// DESIGN.md's note on worker.go avoiding an import cycle with job).
func jobHooks(j *job.Job) outcome.Hooks {
	return outcome.Hooks{
		IsRunning: j.IsRunning,
		Start: func(ctx context.Context) error {
			return j.Enqueue(job.Start{}, job.ControlUrgent).Wait(ctx)
		},
		Stop: func(ctx context.Context) error {
			if err := j.Enqueue(job.Stop{}, job.ControlUrgent).Wait(ctx); err != nil {
				return err
			}
			return j.Enqueue(job.NextEnding{}, job.ControlNormal).Wait(ctx)
		},
		Wait: func(ctx context.Context) error {
			return j.Enqueue(job.NextEnding{}, job.ControlNormal).Wait(ctx)
		},
		SignalFn: func(s outcome.Signal) error {
			return j.Enqueue(job.SendSignal{Signal: s.Signal}, job.ControlUrgent).Wait(context.Background())
		},
		// Clear/Reset are terminal-clearing operations (spec §3.4/§4.4): a
		// concrete terminal backend is an explicit spec Non-goal, so both
		// are no-ops here rather than anything that touches the supervised
		// Job itself.
		Clear: func() error { return nil },
		Reset: func() error { return nil },
	}
}
