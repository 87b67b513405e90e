// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package command_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/watchexec/watchexec/internal/engine/command"
)

type BuildSuite struct {
	suite.Suite
}

func TestBuildSuite(t *testing.T) {
	suite.Run(t, new(BuildSuite))
}

func (s *BuildSuite) TestExecBuildsDirectCommand() {
	cmd, err := command.Build(command.Exec{Prog: "echo", Args: []string{"hi"}})
	s.Require().NoError(err)
	s.Equal("echo", cmd.Args[0])
	s.Equal([]string{"echo", "hi"}, cmd.Args)
}

func (s *BuildSuite) TestShellBuildsViaProgramOption() {
	cmd, err := command.Build(command.ShellProgram{
		Shell:   command.Shell{Prog: "/bin/sh", ProgramOption: "-c"},
		Command: "echo hi",
	})
	s.Require().NoError(err)
	s.Equal([]string{"/bin/sh", "-c", "echo hi"}, cmd.Args)
}

func (s *BuildSuite) TestGroupedFlagReadBack() {
	s.True(command.Grouped(command.Exec{Prog: "a", Grouped: true}))
	s.False(command.Grouped(command.ShellProgram{Command: "a"}))
}

func (s *BuildSuite) TestParsePipelineSplitsOnPipe() {
	stages, err := command.ParsePipeline("echo hi | grep h")
	s.Require().NoError(err)
	s.Require().Len(stages, 2)
	s.Equal([]string{"echo", "hi"}, stages[0])
	s.Equal([]string{"grep", "h"}, stages[1])
}
