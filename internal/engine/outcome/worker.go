// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package outcome

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"

	cage_zap "github.com/watchexec/watchexec/internal/cage/log/zap"
	"github.com/watchexec/watchexec/internal/engine/errs"
)

// Hooks are the supervisor operations a Worker drives an Outcome tree
// against, as plain function fields. internal/engine/action's jobHooks
// fills them from a job.Job's control queue; Worker only depends on these
// fields, so neither outcome nor job imports the other.
type Hooks struct {
	IsRunning func() bool
	Start     func(ctx context.Context) error
	Stop      func(ctx context.Context) error // kill, wait, drop the handle
	Wait      func(ctx context.Context) error
	SignalFn  func(s Signal) error
	Clear     func() error
	Reset     func() error
}

// Generation is a shared, atomically-incremented counter: each Spawn call
// claims the next value as its own generation, and every worker checks it
// before and after each awaitable step, so that a superseded worker
// (one whose generation no longer matches the counter) aborts silently
// instead of completing side effects against stale state (spec §5
// "Cancellation: generation-counter check before and after each awaitable
// step"). Grounded on outcome_worker.rs's Arc<AtomicUsize> gencheck.
type Generation struct {
	counter uint64
}

func NewGeneration() *Generation { return &Generation{} }

func (g *Generation) next() uint64 { return atomic.AddUint64(&g.counter, 1) }
func (g *Generation) current() uint64 { return atomic.LoadUint64(&g.counter) }

// Worker applies a resolved Outcome tree against Hooks, respecting
// Generation-based cancellation.
type Worker struct {
	hooks Hooks
	log   *zap.Logger
	gen   uint64
	gc    *Generation
}

// Spawn claims the next generation and applies o in a new goroutine. If
// apply returns a non-nil error other than errs.ErrExit, it is reported on
// errors; errs.ErrExit is reported too, as the main loop's shutdown signal.
func Spawn(ctx context.Context, o Outcome, hooks Hooks, gc *Generation, errorsC *errs.Channel, log *zap.Logger) {
	gen := gc.next()
	w := &Worker{hooks: hooks, log: log, gen: gen, gc: gc}

	log.Debug("spawning outcome worker", cage_zap.Tag("outcome"), zap.Uint64("gen", gen), zap.String("outcome", spew.Sdump(o)))

	go func() {
		err := w.apply(ctx, o)
		switch {
		case err == nil:
			log.Debug("outcome worker finished", cage_zap.Tag("outcome"), zap.Uint64("gen", gen))
		case err == errs.ErrExit:
			log.Info("propagating graceful exit", cage_zap.Tag("outcome"), zap.Uint64("gen", gen))
			errorsC.Report(errs.NewRuntimeError("outcome", err))
		default:
			log.Error("outcome applier errored", cage_zap.Tag("outcome"), zap.Uint64("gen", gen), zap.Error(err))
			errorsC.Report(errs.NewRuntimeError("outcome", err))
		}
	}()
}

// stale reports whether this worker's generation has been superseded by a
// later Spawn call.
func (w *Worker) stale() bool {
	return w.gc.current() != w.gen
}

// checkedStep runs step only if this worker is not stale before or after
// running it; it mirrors the notry! macro in outcome_worker.rs, which skips
// (rather than errors on) a superseded worker's remaining side effects.
func (w *Worker) checkedStep(step func() error) (ran bool, err error) {
	if w.stale() {
		return false, nil
	}
	err = step()
	if w.stale() {
		return true, nil
	}
	return true, err
}

func (w *Worker) apply(ctx context.Context, o Outcome) error {
	isRunning := false
	if w.stale() {
		return nil
	}
	if w.hooks.IsRunning != nil {
		isRunning = w.hooks.IsRunning()
	}
	if w.stale() {
		return nil
	}

	switch v := o.(type) {
	case DoNothing:
		return nil

	case Exit:
		return errs.ErrExit

	case Stop:
		if !isRunning {
			w.log.Debug("stop requested without a running process, not doing anything", cage_zap.Tag("outcome"))
			return nil
		}
		if _, err := w.checkedStep(func() error { return w.hooks.Stop(ctx) }); err != nil {
			return err
		}
		return nil

	case Wait:
		if !isRunning {
			w.log.Debug("wait requested without a running process, not doing anything", cage_zap.Tag("outcome"))
			return nil
		}
		_, err := w.checkedStep(func() error { return w.hooks.Wait(ctx) })
		return err

	case Signal:
		if !isRunning {
			w.log.Debug("signal requested without a running process, not doing anything", cage_zap.Tag("outcome"))
			return nil
		}
		_, err := w.checkedStep(func() error { return w.hooks.SignalFn(v) })
		return err

	case Start:
		if w.hooks.Start == nil {
			return nil
		}
		_, err := w.checkedStep(func() error { return w.hooks.Start(ctx) })
		return err

	case Sleep:
		_, err := w.checkedStep(func() error {
			t := time.NewTimer(v.Duration)
			defer t.Stop()
			select {
			case <-t.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		return err

	case Clear:
		if w.hooks.Clear == nil {
			return nil
		}
		_, err := w.checkedStep(w.hooks.Clear)
		return err

	case Reset:
		if w.hooks.Reset == nil {
			return nil
		}
		_, err := w.checkedStep(w.hooks.Reset)
		return err

	case IfRunning:
		if isRunning {
			return w.apply(ctx, v.Then)
		}
		return w.apply(ctx, v.Otherwise)

	case Both:
		if err := w.apply(ctx, v.One); err != nil {
			w.log.Debug(
				"first outcome failed, proceeding to the second anyway",
				cage_zap.Tag("outcome"), zap.Error(err),
			)
		}
		return w.apply(ctx, v.Two)

	case Race:
		return w.race(ctx, v.One, v.Two)

	default:
		return nil
	}
}

// race runs one and two concurrently, cancelling whichever is still running
// once the other finishes (success or error).
func (w *Worker) race(ctx context.Context, one, two Outcome) error {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct{ err error }
	results := make(chan result, 2)

	run := func(o Outcome) {
		results <- result{err: w.apply(raceCtx, o)}
	}
	go run(one)
	go run(two)

	first := <-results
	cancel()
	<-results // drain the loser so its goroutine does not leak
	return first.err
}
