// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package errs_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/watchexec/watchexec/internal/engine/errs"
)

type ChannelSuite struct {
	suite.Suite
}

func TestChannelSuite(t *testing.T) {
	suite.Run(t, new(ChannelSuite))
}

func (s *ChannelSuite) TestHookCanElevateRuntimeToCritical() {
	c := errs.NewChannel(4)
	done := make(chan struct{})

	resultCh := make(chan errs.CriticalError, 1)
	go func() {
		resultCh <- errs.Run(done, c, func(re errs.RuntimeError, elevate func(errs.CriticalError)) {
			elevate(errs.Elevate(re))
		})
	}()

	c.Report(errs.NewRuntimeError("fs-watch", errors.New("boom")))

	select {
	case got := <-resultCh:
		s.Contains(got.Error(), "fs-watch")
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for elevated critical error")
	}
}

func (s *ChannelSuite) TestNoopHookDoesNotStopTheEngine() {
	c := errs.NewChannel(4)
	done := make(chan struct{})

	resultCh := make(chan errs.CriticalError, 1)
	go func() {
		resultCh <- errs.Run(done, c, errs.Noop)
	}()

	c.Report(errs.NewRuntimeError("filter", errors.New("ignored")))

	select {
	case <-resultCh:
		s.FailNow("Run returned before done was closed despite a Noop hook")
	case <-time.After(50 * time.Millisecond):
	}

	close(done)
	select {
	case got := <-resultCh:
		s.Equal(errs.CriticalError{}, got)
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for Run to exit on done")
	}
}

func (s *ChannelSuite) TestDirectCriticalShortCircuits() {
	c := errs.NewChannel(4)
	done := make(chan struct{})

	resultCh := make(chan errs.CriticalError, 1)
	go func() {
		resultCh <- errs.Run(done, c, errs.Noop)
	}()

	c.Critical(errs.NewCriticalError("fs-watcher-init", errors.New("no inotify")))

	select {
	case got := <-resultCh:
		s.Contains(got.Error(), "fs-watcher-init")
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for critical error")
	}
}
