// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// +build !windows

package watchexec

import "github.com/watchexec/watchexec/internal/engine/command"

// platformShell returns the Shell record for name, or the platform default
// (sh -c) when name is empty, matching spec §3.5's per-platform
// ProgramOption table.
func platformShell(name string) command.Shell {
	if name == "" {
		name = "sh"
	}
	return command.Shell{Prog: name, ProgramOption: "-c"}
}
