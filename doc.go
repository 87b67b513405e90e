// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package watchexec is the base import path for this module: cmd/watchexec
// and cmd/watchexec-print are its CLI entrypoints, internal/watchexec is the
// orchestrator they wire up, internal/engine holds the collaborators it
// joins together, and internal/cage/internal/third_party are the internal
// "standard library" shared across them.
package watchexec

// expand godoc content for the base import path
import (
	_ "github.com/watchexec/watchexec/internal/watchexec"
	_ "github.com/watchexec/watchexec/internal/watchexec/ui"
)
