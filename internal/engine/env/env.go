// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package env derives the WATCHEXEC_* environment variables a spawned
// command sees (spec §6 "Environment injection for children"), grounded on
// original_source/crates/cli/src/emits.rs's emits_to_environment and the
// category/COMMON_PATH semantics fixed by
// original_source/crates/lib/tests/env_reporting.rs.
package env

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/watchexec/watchexec/internal/engine/event"
)

// Prefix is prepended to every key this package produces.
const Prefix = "WATCHEXEC_"

// category names match the *_PATH suffix spec §6's table lists, without the
// leading WATCHEXEC_ or trailing _PATH (added by Inject/key()).
const (
	Created          = "CREATED"
	MetaChanged      = "META_CHANGED"
	Removed          = "REMOVED"
	Renamed          = "RENAMED"
	Written          = "WRITTEN"
	OtherwiseChanged = "OTHERWISE_CHANGED"
	Common           = "COMMON"
)

// Summarize derives the category -> joined-path-list map for batch (spec
// §6). A PathTag on an Event with no FileEventKindTag is bucketed as
// OtherwiseChanged; one with several FileEventKindTags (unusual, but
// event.Event allows multiple tags of a kind) contributes to every matching
// category, mirroring emits.rs's nested path/kind loop. Common is always
// present alongside any other key: the longest shared directory prefix
// across every affected path, even when only one path was affected.
func Summarize(batch []event.Event) map[string]string {
	buckets := map[string][]string{}
	var all []string

	for _, e := range batch {
		paths := e.Paths()
		if len(paths) == 0 {
			continue
		}

		kinds := kindsOf(e)

		for _, p := range paths {
			all = append(all, p.Path)
			if len(kinds) == 0 {
				buckets[OtherwiseChanged] = append(buckets[OtherwiseChanged], p.Path)
				continue
			}
			for _, k := range kinds {
				buckets[categoryFor(k)] = append(buckets[categoryFor(k)], p.Path)
			}
		}
	}

	if len(all) == 0 {
		return map[string]string{}
	}

	out := make(map[string]string, len(buckets)+1)
	for cat, paths := range buckets {
		out[cat] = joinSortedUnique(paths)
	}
	out[Common] = commonDir(all)
	return out
}

// Inject sets WATCHEXEC_<CATEGORY>_PATH for every entry in summary on cmd's
// environment, appended to the current process's environment (spec §6: the
// child otherwise inherits the parent's environment unchanged).
func Inject(cmd *exec.Cmd, summary map[string]string) {
	if len(summary) == 0 {
		return
	}

	base := cmd.Env
	if base == nil {
		base = os.Environ()
	}

	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, len(base), len(base)+len(keys))
	copy(env, base)
	for _, k := range keys {
		env = append(env, Prefix+k+"_PATH="+summary[k])
	}
	cmd.Env = env
}

func kindsOf(e event.Event) []event.FileEventKind {
	var out []event.FileEventKind
	for _, t := range e.Tagged(event.TagFileEventKind) {
		out = append(out, t.(event.FileEventKindTag).Kind_)
	}
	return out
}

func categoryFor(k event.FileEventKind) string {
	switch k {
	case event.FileEventCreate:
		return Created
	case event.FileEventMeta:
		return MetaChanged
	case event.FileEventRemove:
		return Removed
	case event.FileEventRename:
		return Renamed
	case event.FileEventWrite:
		return Written
	default:
		return OtherwiseChanged
	}
}

// joinSortedUnique sorts, dedupes, and separator-joins paths, the
// separator being OS path-list separator (":" on Unix, ";" on Windows),
// matching env_reporting.rs's ENV_SEP.
func joinSortedUnique(paths []string) string {
	sort.Strings(paths)
	out := paths[:0:0]
	var prev string
	for i, p := range paths {
		if i > 0 && p == prev {
			continue
		}
		out = append(out, p)
		prev = p
	}
	return strings.Join(out, string(os.PathListSeparator))
}

// commonDir returns the longest shared directory prefix across paths,
// compared path-component-wise (not byte-wise, so "/abc" and "/abcd" do not
// falsely share "/abc"). The prefix is computed over each path's directory,
// not the path itself, so a single affected path's Common is its parent
// directory, matching env_reporting.rs's single_created-style fixtures.
func commonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	common := splitClean(filepath.Dir(paths[0]))
	for _, p := range paths[1:] {
		common = commonComponents(common, splitClean(filepath.Dir(p)))
		if len(common) == 0 {
			break
		}
	}

	if len(common) == 1 && common[0] == "" {
		return string(filepath.Separator)
	}
	return strings.Join(common, string(filepath.Separator))
}

func splitClean(p string) []string {
	return strings.Split(filepath.Clean(p), string(filepath.Separator))
}

func commonComponents(a, b []string) []string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}
