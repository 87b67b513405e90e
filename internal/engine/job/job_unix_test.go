// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// +build !windows

package job_test

import (
	"context"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/kr/pty"
	"github.com/stretchr/testify/suite"
	cage_testkit "github.com/watchexec/watchexec/internal/cage/testkit"

	"github.com/watchexec/watchexec/internal/engine/command"
	"github.com/watchexec/watchexec/internal/engine/job"
	"github.com/watchexec/watchexec/internal/engine/queue"
	"github.com/watchexec/watchexec/internal/engine/signal"
)

// GroupedSignalSuite exercises Unix signal delivery two ways: a grouped
// Job's GracefulStop signalling its shell child through the process group,
// and a child attached to a pty (started directly, not through a Job)
// observing SIGHUP.
type GroupedSignalSuite struct {
	suite.Suite

	ctx    context.Context
	cancel context.CancelFunc
	out    *queue.Queue
	ptmx   *os.File
}

func TestGroupedSignalSuite(t *testing.T) {
	suite.Run(t, new(GroupedSignalSuite))
}

func (s *GroupedSignalSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.out = queue.New()
}

func (s *GroupedSignalSuite) TearDownTest() {
	if s.ptmx != nil {
		s.ptmx.Close()
	}
	s.cancel()
}

// TestGracefulStopSignalsGroupedShell starts a grouped shell command that
// traps SIGTERM and writes a marker to a file before exiting, while a
// background sleep keeps it waiting; a GracefulStop, delivered to the
// process group, must run the shell's trap and let the Job finish cleanly.
func (s *GroupedSignalSuite) TestGracefulStopSignalsGroupedShell() {
	marker, err := os.CreateTemp("", "watchexec-grouped-*")
	s.Require().NoError(err)
	markerPath := marker.Name()
	s.Require().NoError(marker.Close())
	defer os.Remove(markerPath)

	script := "trap 'echo done > " + markerPath + "; exit 0' TERM; sleep 30 & wait"

	cmd := command.Command{
		Sequence: command.Run{Program: command.Exec{
			Prog:    "sh",
			Args:    []string{"-c", script},
			Grouped: true,
		}},
	}

	j := job.New(cmd, s.out, cage_testkit.NewZapLogger())
	go j.Run(s.ctx)

	s.Require().NoError(j.Enqueue(job.Start{}, job.ControlNormal).Wait(s.ctx))
	s.True(j.IsRunning())

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	err = j.Enqueue(job.GracefulStop{
		Signal: signal.SubSignal{Named: signal.Terminate},
		Grace:  2 * time.Second,
	}, job.ControlNormal).Wait(ctx)
	s.Require().NoError(err)
	s.False(j.IsRunning())

	contents, err := os.ReadFile(markerPath)
	s.Require().NoError(err)
	s.Contains(string(contents), "done")
}

// TestPtyAttachedChildObservesHangup confirms a shell started on a pty
// (kr/pty) exits through its HUP trap when sent SIGHUP directly. It uses
// exec.Command and Process.Signal, not a Job or a process group.
func (s *GroupedSignalSuite) TestPtyAttachedChildObservesHangup() {
	cmd := exec.Command("sh", "-c", "trap 'exit 0' HUP; sleep 30")
	f, err := pty.Start(cmd)
	s.Require().NoError(err)
	s.ptmx = f

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	s.Require().NoError(cmd.Process.Signal(syscall.SIGHUP))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cmd.Process.Kill()
		s.FailNow("pty-attached child did not exit after SIGHUP")
	}
}
