// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package watchexec

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	cage_time "github.com/watchexec/watchexec/internal/cage/time"
	"github.com/watchexec/watchexec/internal/engine/action"
	"github.com/watchexec/watchexec/internal/engine/command"
	"github.com/watchexec/watchexec/internal/engine/debounce"
	"github.com/watchexec/watchexec/internal/engine/env"
	"github.com/watchexec/watchexec/internal/engine/errs"
	"github.com/watchexec/watchexec/internal/engine/event"
	"github.com/watchexec/watchexec/internal/engine/filter"
	"github.com/watchexec/watchexec/internal/engine/job"
	"github.com/watchexec/watchexec/internal/engine/outcome"
	"github.com/watchexec/watchexec/internal/engine/queue"
	"github.com/watchexec/watchexec/internal/engine/signal"
	"github.com/watchexec/watchexec/internal/engine/source/fs"
	"github.com/watchexec/watchexec/internal/engine/source/keyboard"
	src_signal "github.com/watchexec/watchexec/internal/engine/source/signal"
)

// Watchexec joins every internal/engine collaborator into the running
// process spec §5 describes: sources feed the priority queue, the debouncer
// throttles it into batches, and the Action Handler drives a single
// supervised Job through the batch's events.
//
// It replaces the teacher's ad hoc goroutine+channel fan-in in
// cmd/boone/root/root.go and internal/boone/dispatch.go with a
// golang.org/x/sync/errgroup join of the debounce loop and the error hook,
// per spec §5's concurrency model. The fs/signal/keyboard sources run their
// own goroutines outside the group and are closed when Run returns.
type Watchexec struct {
	Config Config
	Log    *zap.Logger

	// Filterer is exposed so a caller can install a real Filterer (spec
	// §4.6 leaves concrete filtering out of engine scope); it defaults to
	// filter.Noop via filter.NewChangeable.
	Filterer *filter.Changeable

	// KeyboardEnabled starts the keyboard source alongside filesystem and
	// signal sources (spec §3.5). Off by default: most non-interactive
	// invocations (CI, scripts) have no real stdin to read raw bytes from.
	KeyboardEnabled bool

	// ErrorHook is the Error Hook spec §4.7 leaves for a caller to install:
	// it observes every other RuntimeError (Outcome.Exit is handled before
	// this hook ever sees it; see errorHook). Defaults to errs.Noop.
	ErrorHook errs.Hook

	queue  *queue.Queue
	errsC  *errs.Channel
	action *action.Worker

	fsSource  *fs.Source
	sigSource *src_signal.Source
	kbSource  *keyboard.Source
}

// New returns a Watchexec ready for Run, wired to cfg.
func New(cfg Config, log *zap.Logger) *Watchexec {
	q := queue.New()
	errsC := errs.NewChannel(32)

	w := &Watchexec{
		Config:   cfg,
		Log:      log,
		Filterer: filter.NewChangeable(nil),
		queue:    q,
		errsC:    errsC,
	}

	w.fsSource = fs.New(q, log)
	w.sigSource = src_signal.New(q, log)
	w.kbSource = keyboard.New(q, log)
	w.action = action.NewWorker(q, log, w.handle, errsC, w.quit)

	return w
}

// Run starts every source and the debounce/action loop, and blocks until
// ctx is cancelled, an Action Handler requests Quit, or a CriticalError
// occurs (spec §4.7), returning the first such error.
func (w *Watchexec) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := w.fsSource.Start(w.Config.Paths); err != nil {
		return err
	}
	defer w.fsSource.Close()

	w.sigSource.Start(ctx)
	defer w.sigSource.Close()

	if w.KeyboardEnabled {
		if err := w.kbSource.Start(); err != nil {
			w.Log.Info("failed to start keyboard source", zap.Error(err))
		} else {
			defer w.kbSource.Close()
		}
	}

	debouncer := &debounce.Debouncer{
		Queue:    w.queue,
		Filterer: w.Filterer,
		Clock:    cage_time.RealClock{},
		Throttle: w.Config.Debounce,
		Log:      w.Log,
		Flush:    w.action.Bind(ctx),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		debouncer.Run(gctx)
		return nil
	})

	g.Go(func() error {
		ce := errs.Run(gctx.Done(), w.errsC, w.errorHook)
		if (ce == errs.CriticalError{}) {
			return nil
		}
		cancel()
		return ce
	})

	// Bootstrap the first run without waiting on a filesystem/signal event
	// (spec §3.1: the zero-tag Event exists for exactly this), at Urgent
	// priority so the debouncer flushes it immediately instead of folding
	// it into whatever batch happens to form next.
	w.queue.Send(event.Empty(), event.Urgent)

	return g.Wait()
}

// handle is the default Action Handler (spec §4.4): it maintains exactly
// one supervised Job running Config's Program, applying Config.OnBusyUpdate
// when a batch arrives while that Job is still running, and treats an
// Interrupt/Terminate MainSignal in the batch as a request to quit
// gracefully.
func (w *Watchexec) handle(h *action.Handler) outcome.Outcome {
	for _, sig := range h.Signals() {
		if sig == signal.Interrupt || sig == signal.Terminate {
			h.QuitGracefully(signal.FromMain(sig), w.Config.StopTimeout)
			return nil
		}
	}

	var j *job.Job
	for _, existing := range h.ListJobs() {
		j = existing
		break
	}

	if j == nil {
		j = h.CreateJob(command.Command{Sequence: w.Config.Sequence()})
		w.armSpawnHook(j, h.Events)
		j.Enqueue(job.Start{}, job.ControlNormal)
		return nil
	}

	if !j.IsRunning() {
		w.armSpawnHook(j, h.Events)
		j.Enqueue(job.Start{}, job.ControlNormal)
		return nil
	}

	switch w.Config.OnBusyUpdate {
	case OnBusySignal:
		j.Enqueue(job.SendSignal{Signal: w.Config.RestartSubSignal()}, job.ControlNormal)

	case OnBusyRestart:
		w.armSpawnHook(j, h.Events)
		j.Enqueue(job.TryGracefulRestart{Signal: w.Config.RestartSubSignal(), Grace: w.Config.StopTimeout}, job.ControlHigh)

	case OnBusyQueue:
		w.armSpawnHook(j, h.Events)
		ticket := j.Enqueue(job.NextEnding{}, job.ControlNormal)
		go func() {
			ticket.Wait(context.Background())
			j.Enqueue(job.Start{}, job.ControlNormal)
		}()

	case OnBusyDoNothing:
		// leave the running Job alone.
	}

	return nil
}

// armSpawnHook installs a SpawnHook that injects the WATCHEXEC_*_PATH
// environment variables derived from events (spec §6), unless disabled.
func (w *Watchexec) armSpawnHook(j *job.Job, events []event.Event) {
	if w.Config.NoEnvironment {
		return
	}
	summary := env.Summarize(events)
	j.Enqueue(job.SetSpawnHook{Fn: func(sc *job.SpawnContext) {
		env.Inject(sc.Cmd, summary)
	}}, job.ControlNormal)
}

// Jobs returns a snapshot of every Job currently supervised, for a caller
// that wants to display status (e.g. internal/watchexec/ui) without driving
// the Action Handler itself.
func (w *Watchexec) Jobs() map[string]*job.Job {
	return w.action.Jobs()
}

// errorHook is the Hook errs.Run actually drives: Outcome.Exit is reported
// as a RuntimeError wrapping errs.ErrExit (outcome.Worker.Spawn), and this
// elevates that one case to a CriticalError unconditionally so Run's
// g.Wait() returns once an Exit outcome is applied (spec §4.4/§8), before
// ever consulting ErrorHook — a caller's hook only ever sees genuine
// recoverable errors.
func (w *Watchexec) errorHook(re errs.RuntimeError, elevate func(errs.CriticalError)) {
	if errors.Is(re, errs.ErrExit) {
		elevate(errs.Elevate(re))
		return
	}

	hook := w.ErrorHook
	if hook == nil {
		hook = errs.Noop
	}
	hook(re, elevate)
}

// quit implements action.Worker's Quit callback: it tears down every
// supervised Job per the requested QuitManner, then cancels the run.
func (w *Watchexec) quit(qm action.QuitManner) {
	for _, j := range w.action.Jobs() {
		switch v := qm.(type) {
		case action.QuitGraceful:
			j.Enqueue(job.GracefulStop{Signal: v.Signal, Grace: v.Grace}, job.ControlUrgent)
		default:
			j.Enqueue(job.Delete{}, job.ControlUrgent)
		}
	}
	w.queue.Close()
}
