// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package job

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	cage_zap "github.com/watchexec/watchexec/internal/cage/log/zap"
	cage_time "github.com/watchexec/watchexec/internal/cage/time"
	"github.com/watchexec/watchexec/internal/engine/command"
	"github.com/watchexec/watchexec/internal/engine/event"
	"github.com/watchexec/watchexec/internal/engine/queue"
	"github.com/watchexec/watchexec/internal/engine/signal"
)

// Job is the per-command actor from spec §4.5: a triple (id, command,
// control queue) plus a background task. Jobs are identified by a ksuid
// (unique, sortable, unlike event.Event.ID's deterministic content hash)
// since two Jobs running the same command are different jobs, not
// duplicates to be deduplicated.
type Job struct {
	ID string

	command command.Command
	cursor  *command.Cursor
	grouped bool

	out *queue.Queue
	log *zap.Logger

	control *controlQueue

	mu           sync.RWMutex
	current      State
	cmd          *exec.Cmd
	lastSucceeded bool
	deleted      bool

	spawnHook    SpawnHook
	errorHandler ErrorHandler

	pendingEndings []*Ticket

	childDone chan childResult
}

type childResult struct {
	status event.ProcessEnd
	code   int
}

// New returns a Job ready to have Run started in its own goroutine. out
// receives the synthetic ProcessCompletionTag event on child exit (spec
// §4.5 "Wait / completion").
func New(cmd command.Command, out *queue.Queue, log *zap.Logger) *Job {
	return &Job{
		ID:        ksuid.New().String(),
		command:   cmd,
		cursor:    command.NewCursor(cmd.Sequence),
		grouped:   sequenceGrouped(cmd.Sequence),
		out:       out,
		log:       log,
		control:   newControlQueue(),
		current:   PendingState(),
		childDone: make(chan childResult, 1),
	}
}

// sequenceGrouped inspects the first Run leaf of seq to decide whether the
// Job's processes should be grouped; a Sequence mixing grouped and
// non-grouped Programs is not expected (spec §3.5 ties Grouped to the
// Program, but a Job applies one spawn policy for its whole lifetime).
func sequenceGrouped(seq command.Sequence) bool {
	cur := command.NewCursor(seq)
	if p, ok := cur.Next(true); ok {
		return command.Grouped(p)
	}
	return false
}

func (j *Job) state() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.current
}

// State returns the Job's current position in the Pending/Running/Finished
// machine, for callers outside the package that only need to observe it
// (e.g. a status display) rather than drive it.
func (j *Job) State() State { return j.state() }

// Command returns the Command the Job was created with.
func (j *Job) Command() command.Command { return j.command }

func (j *Job) setState(s State) {
	j.mu.Lock()
	j.current = s
	j.mu.Unlock()
}

// IsRunning satisfies outcome.Hooks.IsRunning.
func (j *Job) IsRunning() bool { return j.state().IsRunning() }

// Enqueue queues c at priority p and returns a Ticket resolving once it has
// been processed by Run's control loop (spec §4.5).
func (j *Job) Enqueue(c Control, p ControlPriority) *Ticket {
	return j.control.send(c, p)
}

// Run is the Job's background task: it concurrently awaits control-queue
// receipt and the current child's completion (spec §4.5 "Wait /
// completion"), applying at most one Control at a time.
func (j *Job) Run(ctx context.Context) {
	for {
		if it, ok := j.control.tryUrgent(); ok {
			if !j.handle(ctx, it) {
				return
			}
			continue
		}
		if it, ok := j.control.tryHigh(); ok {
			if !j.handle(ctx, it) {
				return
			}
			continue
		}

		if j.control.normalEnabled() {
			select {
			case res := <-j.childDone:
				j.onChildExit(res)
			case it := <-j.control.urgent:
				if !j.handle(ctx, it) {
					return
				}
			case it := <-j.control.high:
				if !j.handle(ctx, it) {
					return
				}
			case it := <-j.control.normal:
				if !j.handle(ctx, it) {
					return
				}
			case <-ctx.Done():
				return
			}
		} else {
			select {
			case res := <-j.childDone:
				j.onChildExit(res)
			case it := <-j.control.urgent:
				if !j.handle(ctx, it) {
					return
				}
			case it := <-j.control.high:
				if !j.handle(ctx, it) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// handle applies one control item and resolves its Ticket, returning false
// if the Job should stop its Run loop (Delete processed). NextEnding's
// ticket is a special case: with no child running it is resolved at once;
// otherwise it is appended to pendingEndings so onChildExit resolves it once
// the running child exits.
func (j *Job) handle(ctx context.Context, item controlItem) bool {
	if _, ok := item.control.(NextEnding); ok {
		if !j.IsRunning() {
			item.ticket.resolve(nil)
			return true
		}
		j.mu.Lock()
		j.pendingEndings = append(j.pendingEndings, item.ticket)
		j.mu.Unlock()
		return true
	}

	err := j.apply(ctx, item.control)
	item.ticket.resolve(err)
	if err != nil && j.errorHandler != nil {
		j.errorHandler(err)
	}
	return !j.deleted
}

func (j *Job) onChildExit(res childResult) {
	prev := j.state()
	finished := FinishedState(prev, res.status, res.code, time.Now())
	j.setState(finished)
	j.lastSucceeded = res.status == event.ProcessSuccess

	j.log.Debug(
		"job process finished",
		cage_zap.Tag("job"),
		zap.String("id", j.ID),
		zap.String("status", res.status.String()),
		zap.String("ran", cage_time.DurationShort(finished.FinishedAt.Sub(finished.StartedAt))),
	)

	j.out.Send(event.New(event.ProcessCompletionTag{End: res.status, Code: res.code, HasEnd: true}), event.Low)

	pending := j.pendingEndings
	j.pendingEndings = nil
	for _, t := range pending {
		t.resolve(nil)
	}
}

func (j *Job) apply(ctx context.Context, c Control) error {
	switch v := c.(type) {
	case Start:
		return j.start(ctx)

	case Stop:
		return j.stop()

	case GracefulStop:
		return j.gracefulStop(ctx, v.Signal, v.Grace)

	case TryRestart:
		if !j.IsRunning() {
			return nil
		}
		if err := j.stop(); err != nil {
			return err
		}
		return j.start(ctx)

	case TryGracefulRestart:
		if !j.IsRunning() {
			return nil
		}
		if err := j.gracefulStop(ctx, v.Signal, v.Grace); err != nil {
			return err
		}
		return j.start(ctx)

	case SendSignal:
		return j.signal(v.Signal)

	case Delete:
		if j.IsRunning() {
			if err := j.stop(); err != nil {
				return err
			}
		}
		j.deleted = true
		return nil

	case RunSync:
		v.Fn(&Handle{job: j})
		return nil

	case RunAsync:
		go v.Fn(&Handle{job: j})
		return nil

	case SetSpawnHook:
		j.spawnHook = v.Fn
		return nil

	case UnsetSpawnHook:
		j.spawnHook = nil
		return nil

	case SetErrorHandler:
		j.errorHandler = v.Fn
		return nil

	case UnsetErrorHandler:
		j.errorHandler = nil
		return nil

	default:
		return nil
	}
}

// start implements spec §4.5's spawn pipeline steps 1-7.
func (j *Job) start(ctx context.Context) error {
	if j.IsRunning() {
		j.log.Debug("start requested while already running, not doing anything", cage_zap.Tag("job"))
		return nil
	}

	prog, ok := j.cursor.Next(j.lastSucceeded)
	if !ok {
		j.log.Debug("sequence exhausted, nothing left to start", cage_zap.Tag("job"))
		return nil
	}

	cmd, err := buildSpawnable(prog, j.spawnHook)
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	j.cmd = cmd
	j.setState(RunningState(cmd.Process.Pid, time.Now()))

	j.log.Debug("job process started", cage_zap.Tag("job"), zap.String("id", j.ID), zap.Int("pid", cmd.Process.Pid))

	go j.wait(cmd)

	return nil
}

func (j *Job) wait(cmd *exec.Cmd) {
	err := cmd.Wait()
	status, code := classifyExit(cmd, err)
	j.childDone <- childResult{status: status, code: code}
}

func (j *Job) stop() error {
	if !j.IsRunning() {
		j.log.Debug("stop requested without a running process, not doing anything", cage_zap.Tag("job"))
		return nil
	}
	return killProcess(j.cmd, j.grouped)
}

func (j *Job) signal(sub signal.SubSignal) error {
	if !j.IsRunning() {
		j.log.Debug("signal requested without a running process, not doing anything", cage_zap.Tag("job"))
		return nil
	}
	return signalProcess(j.cmd, j.grouped, sub)
}

// gracefulStop disables the Normal control lane, sends sig, and waits up to
// grace for the child to exit on its own, force-killing if it doesn't
// (spec §4.5 "Scheduling rules").
//
// It is always called from Run's own goroutine (via apply), so it reads
// j.childDone directly instead of going through pendingEndings/NextEnding:
// that indirection exists for external callers of Enqueue(NextEnding{},...),
// which must not block the single goroutine that would otherwise be the one
// to deliver the very completion they are waiting on.
func (j *Job) gracefulStop(ctx context.Context, sig signal.SubSignal, grace time.Duration) error {
	if !j.IsRunning() {
		return nil
	}

	j.control.disableNormal()
	defer j.control.enableNormal()

	if err := j.signal(sig); err != nil {
		return err
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	// High/Urgent controls remain processable during the grace window (spec
	// §4.5: "this is how cancellation of a graceful stop is achieved"), so
	// this loop keeps selecting on them too instead of just child/timer/ctx.
	for {
		select {
		case res := <-j.childDone:
			j.onChildExit(res)
			return nil

		case <-timer.C:
			if err := j.stop(); err != nil {
				return err
			}
			j.onChildExit(<-j.childDone)
			return nil

		case it := <-j.control.urgent:
			if !j.handle(ctx, it) {
				return nil
			}
			if !j.IsRunning() {
				return nil
			}

		case it := <-j.control.high:
			if !j.handle(ctx, it) {
				return nil
			}
			if !j.IsRunning() {
				return nil
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
