// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package watchexec wires the internal/engine packages into the top-level
// watchexec process (spec §5/§6), grounded on the teacher's
// internal/boone/config.go (ReadConfigFile/FinalizeConfig) and
// cmd/boone/root/root.go's orchestration of a Dispatcher from a Config.
package watchexec

import (
	"strings"
	"time"

	"github.com/fatih/structs"
	"github.com/pkg/errors"
	std_viper "github.com/spf13/viper"

	cage_file "github.com/watchexec/watchexec/internal/cage/os/file"
	"github.com/watchexec/watchexec/internal/engine/command"
	"github.com/watchexec/watchexec/internal/engine/signal"
)

// OnBusyUpdate selects what happens when a filesystem batch arrives while a
// Job from a previous batch is still running (spec §4.4's Action Handler
// decides this; these are the policies cmd/watchexec's default Handler
// implements so a caller who wants the common cases doesn't write one).
const (
	// OnBusyQueue lets the current run finish, then starts exactly one more
	// (spec §4.5's NextEnding + Start, not a TryRestart).
	OnBusyQueue = "queue"

	// OnBusyRestart sends RestartSignal and, once the child exits (or
	// StopTimeout elapses, whichever first), starts a fresh run.
	OnBusyRestart = "restart"

	// OnBusySignal forwards RestartSignal to the running Job and otherwise
	// leaves it alone; no restart is scheduled.
	OnBusySignal = "signal"

	// OnBusyDoNothing ignores the batch entirely while a Job is running.
	OnBusyDoNothing = "do-nothing"
)

// Config is watchexec's top-level configuration. It is a plain value with
// no lock: Watchexec reads the Config it was given by New, and nothing
// replaces it while Run is active. It is generalized from the teacher's Target (one Root, one
// Handler sequence, one Debounce) to watchexec's single always-on
// Program/Sequence watched over Paths.
type Config struct {
	// Paths are the filesystem roots watched for activity (spec §3.3).
	// Defaults to ["."] when empty.
	Paths []string

	// Command is the argv of the Program to run when UseShell is false.
	Command []string

	// Shell selects the shell Command is run through; ignored unless
	// UseShell is true. Empty means the platform default (sh on Unix,
	// cmd.exe on Windows).
	Shell string

	// UseShell runs Command through Shell instead of invoking Command[0]
	// directly.
	UseShell bool

	// Grouped spawns the Job's process into its own OS process group (spec
	// §4.5 step 5), so a stop/signal reaches the whole tree a shell or
	// build tool may have forked.
	Grouped bool

	// Debounce is the Action Throttle Loop's wait window (spec §4.3).
	Debounce time.Duration

	// OnBusyUpdate selects the default Action Handler's behavior for a
	// batch that arrives while a Job is already running. One of the
	// OnBusy* constants.
	OnBusyUpdate string

	// RestartSignal is sent to a running Job when OnBusyUpdate is
	// OnBusyRestart or OnBusySignal, and for --restart's graceful stop.
	RestartSignal string

	// StopTimeout bounds how long a graceful stop waits before force-
	// killing (spec §4.5's GracefulStop.Grace).
	StopTimeout time.Duration

	// NoEnvironment disables WATCHEXEC_*_PATH injection into the spawned
	// Job's environment (spec §6 "Environment injection for children").
	NoEnvironment bool

	restartSignal signal.SubSignal
}

// defaultConfig holds the values applyDefaults merges into any zero-valued
// field of a caller-supplied Config, matching the values spec §6's CLI
// section documents as watchexec's defaults.
func defaultConfig() Config {
	return Config{
		Paths:         []string{"."},
		Debounce:      100 * time.Millisecond,
		OnBusyUpdate:  OnBusyDoNothing,
		RestartSignal: "SIGTERM",
		StopTimeout:   10 * time.Second,
	}
}

// applyDefaults fills every zero-valued exported field of c from def using
// fatih/structs, the ecosystem library that takes over the role the
// teacher's cage_structs.MergeModeCombine played for FinalizeConfig's
// template-data merge: that wrapper isn't available here, so this calls the
// underlying library directly.
func applyDefaults(c *Config, def Config) error {
	cv := structs.New(c)
	dv := structs.New(&def)
	for _, f := range cv.Fields() {
		if !f.IsExported() || !f.IsZero() {
			continue
		}
		df, ok := dv.FieldOk(f.Name())
		if !ok {
			continue
		}
		if err := f.Set(df.Value()); err != nil {
			return errors.Wrapf(err, "failed to apply default for field [%s]", f.Name())
		}
	}
	return nil
}

// ReadFile reads a viper-compatible config file (ini/json/yaml/toml, per
// spf13/viper) at path into a Config, without defaulting or validating it.
// An empty path returns a zero Config. Callers that still need to layer
// CLI-flag overrides on top (cmd/watchexec's RunE) call this instead of
// Load, then Finalize once every override has been applied.
func ReadFile(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, nil
	}
	v := std_viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config file [%s]", path)
	}
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrapf(err, "failed to unmarshal config from file [%s]", path)
	}
	return c, nil
}

// Load reads path via ReadFile and immediately finalizes the result
// (defaulting and validating), for callers with no further overrides to
// apply.
func Load(path string) (Config, error) {
	c, err := ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Finalize(c)
}

// Finalize merges defaults into c and validates/derives its computed
// fields, the generalized form of FinalizeConfig's Target validation pass.
func Finalize(c Config) (Config, error) {
	if err := applyDefaults(&c, defaultConfig()); err != nil {
		return Config{}, err
	}

	if len(c.Command) == 0 {
		return Config{}, errors.New("config must set [Command] to at least one argument")
	}

	switch c.OnBusyUpdate {
	case OnBusyQueue, OnBusyRestart, OnBusySignal, OnBusyDoNothing:
	default:
		return Config{}, errors.Errorf("unrecognized OnBusyUpdate [%s]", c.OnBusyUpdate)
	}

	sig, err := signal.Parse(c.RestartSignal)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse RestartSignal [%s]", c.RestartSignal)
	}
	c.restartSignal = sig

	for _, p := range c.Paths {
		exists, _, err := cage_file.Exists(p)
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to check watched path [%s]", p)
		}
		if !exists {
			return Config{}, errors.Errorf("watched path [%s] does not exist", p)
		}
	}

	return c, nil
}

// RestartSubSignal returns RestartSignal parsed into a signal.SubSignal,
// computed once by Finalize.
func (c Config) RestartSubSignal() signal.SubSignal { return c.restartSignal }

// Program builds the command.Program Finalize's Command/Shell/UseShell/
// Grouped fields describe, ready to hand to command.Sequence via
// command.Run.
func (c Config) Program() command.Program {
	if !c.UseShell {
		return command.Exec{Prog: c.Command[0], Args: c.Command[1:], Grouped: c.Grouped}
	}

	sh := platformShell(c.Shell)
	return command.ShellProgram{
		Shell:   sh,
		Command: strings.Join(c.Command, " "),
		Grouped: c.Grouped,
	}
}

// Sequence wraps Program in the simplest Sequence (spec §3.5's Run leaf):
// watchexec's CLI has no syntax for List/Condition chains, so every Job it
// creates runs exactly one Program per invocation.
func (c Config) Sequence() command.Sequence {
	return command.Run{Program: c.Program()}
}
