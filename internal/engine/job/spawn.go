// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package job

import (
	"os/exec"

	"github.com/watchexec/watchexec/internal/engine/command"
)

// SpawnContext is passed to a SpawnHook (spec §4.5 step 4: "invoke the
// user's spawn hook... with mutable access to the command") before the
// child is started, giving callers a chance to adjust Cmd (env, dir,
// stdio) before Start is called.
type SpawnContext struct {
	Program command.Program
	Cmd     *exec.Cmd
}

// buildSpawnable constructs the *exec.Cmd for prog (spec §4.5 step 2),
// applies platform-specific process-group/signal-mask setup (step 3, see
// spawn_unix.go), and runs hook if set (step 4).
func buildSpawnable(prog command.Program, hook SpawnHook) (*exec.Cmd, error) {
	cmd, err := command.Build(prog)
	if err != nil {
		return nil, err
	}

	applyPlatformSpawnAttrs(cmd, command.Grouped(prog))

	if hook != nil {
		hook(&SpawnContext{Program: prog, Cmd: cmd})
	}

	return cmd, nil
}
