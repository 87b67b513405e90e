// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// +build windows

package watchexec

import "github.com/watchexec/watchexec/internal/engine/command"

// platformShell returns the Shell record for name, or the platform default
// (cmd.exe /C) when name is empty. PowerShell is selected by passing
// "powershell" explicitly, which uses -Command instead of /C.
func platformShell(name string) command.Shell {
	if name == "" {
		return command.Shell{Prog: "cmd.exe", ProgramOption: "/C"}
	}
	if name == "powershell" || name == "pwsh" {
		return command.Shell{Prog: name, ProgramOption: "-Command"}
	}
	return command.Shell{Prog: name, ProgramOption: "/C"}
}
