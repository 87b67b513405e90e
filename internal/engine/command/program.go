// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package command represents a spawnable Program and the Sequence AST that
// chains several of them together (spec §3.5), and turns either into an
// *exec.Cmd ready to spawn (spec §4.5's "construct a spawnable command"
// step). It reuses internal/cage/shell.Parse (mattn/go-shellwords) for
// Shell-style pipeline parsing, the same library the teacher uses for
// target command strings.
package command

import (
	"os/exec"

	"github.com/pkg/errors"

	"github.com/watchexec/watchexec/internal/cage/shell"
)

// Shell is the shell-invocation record from spec §3.5: Prog is the shell
// binary, ProgramOption is the flag that introduces the command string
// (typically "-c" on Unix shells, "/C" for CMD.EXE, "-Command" for
// PowerShell), and Options are extra flags inserted before ProgramOption.
type Shell struct {
	Prog          string
	Options       []string
	ProgramOption string
}

// Program is one of Exec (direct invocation) or ShellProgram (run through a
// shell), the two Program variants from spec §3.5.
type Program interface {
	isProgram()
}

// Exec runs Prog directly with Args, no shell in between.
type Exec struct {
	Prog    string
	Args    []string
	Grouped bool
}

// ShellProgram runs Command through Shell, optionally with extra ShellArgs
// appended after the command string.
type ShellProgram struct {
	Shell     Shell
	Command   string
	ShellArgs []string
	Grouped   bool
}

func (Exec) isProgram()         {}
func (ShellProgram) isProgram() {}

// Grouped reports whether p should be spawned into its own process group
// (spec §4.5 step 5: "if grouped, use an OS process group"), so job.Job can
// decide whether to set SysProcAttr without type-switching on Program
// itself.
func Grouped(p Program) bool {
	switch v := p.(type) {
	case Exec:
		return v.Grouped
	case ShellProgram:
		return v.Grouped
	default:
		return false
	}
}

// Build turns a Program into an *exec.Cmd, ready for the caller to set
// Dir/Env/Stdio/SysProcAttr and start. Shell programs are rendered as
// `prog options... programOption command shellArgs...`, with the command
// string passed as one unparsed argument. CMD.EXE is rendered the same way:
// no raw command line is set for it, so os/exec's usual Windows argument
// quoting applies to it as to any other program.
func Build(p Program) (*exec.Cmd, error) {
	switch v := p.(type) {
	case Exec:
		return exec.Command(v.Prog, v.Args...), nil

	case ShellProgram:
		return buildShell(v)

	default:
		return nil, errors.Errorf("command: unknown Program type %T", p)
	}
}

func buildShell(v ShellProgram) (*exec.Cmd, error) {
	if isRawShell(v.Shell.Prog) {
		args := append(append([]string{}, v.Shell.Options...), v.Shell.ProgramOption, v.Command)
		args = append(args, v.ShellArgs...)
		return exec.Command(v.Shell.Prog, args...), nil
	}

	args := append([]string{}, v.Shell.Options...)
	args = append(args, v.Shell.ProgramOption, v.Command)
	args = append(args, v.ShellArgs...)
	return exec.Command(v.Shell.Prog, args...), nil
}

// isRawShell reports whether prog is CMD.EXE ("cmd" or "cmd.exe").
// buildShell builds the same argument list for it as for every other shell.
func isRawShell(prog string) bool {
	return prog == "cmd" || prog == "cmd.exe"
}

// ParsePipeline splits a shell command string into one argument slice per
// pipeline stage, delegating to internal/cage/shell.Parse (go-shellwords).
// Useful for callers that want to inspect a Shell command's stages (e.g. a
// config validator) without actually invoking a shell.
func ParsePipeline(s string) ([][]string, error) {
	return shell.Parse(s)
}
