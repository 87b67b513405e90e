// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// +build windows

package job

import (
	"os/exec"

	"github.com/watchexec/watchexec/internal/engine/event"
)

// classifyExit maps a completed *exec.Cmd's wait error to the ProcessEnd
// taxonomy from spec §3.6. Windows has no signal concept, so every
// non-clean exit is reported as ProcessExitError/ProcessException per spec
// §4.5 ("exception-aware on Windows").
func classifyExit(cmd *exec.Cmd, waitErr error) (event.ProcessEnd, int) {
	if waitErr == nil {
		return event.ProcessSuccess, 0
	}

	exitErr, ok := waitErr.(*exec.ExitError)
	if !ok {
		return event.ProcessEndUnknown, 0
	}

	code := exitErr.ExitCode()
	if uint32(code) >= 0xC0000000 {
		return event.ProcessException, code
	}
	return event.ProcessExitError, code
}
