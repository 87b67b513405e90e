// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package command

// Sequence is the AST from spec §3.5 that chains Programs together to
// express `a && b || c`-style pipelines: Run is a single leaf, List runs a
// fixed series regardless of outcome, and Condition branches on whether the
// previous Program in the sequence succeeded.
type Sequence interface {
	isSequence()
}

// Run is a single Program: the most common Sequence, a Command with exactly
// one step.
type Run struct {
	Program Program
}

// List runs each Sequence in Steps in order, independent of each other's
// success.
type List struct {
	Steps []Sequence
}

// Condition runs Given; if it succeeded, continues with Then (if set),
// otherwise with Otherwise (if set). Either branch may be nil, matching
// spec §3.5's `Condition{given, then?, otherwise?}`.
type Condition struct {
	Given     Sequence
	Then      Sequence
	Otherwise Sequence
}

func (Run) isSequence()       {}
func (List) isSequence()      {}
func (Condition) isSequence() {}

// Command is the Sequence of Programs a Job runs. Process grouping is set
// per Program (Exec.Grouped, ShellProgram.Grouped), not on the Command.
type Command struct {
	Sequence Sequence
}

// cursorFrame is either a Sequence still to be walked, or a Condition
// parked waiting for its Given branch's outcome.
type cursorFrame struct {
	seq    Sequence
	resume *Condition // non-nil: resolve Then/Otherwise once Given's result is known
}

// Cursor walks a Sequence one Program at a time, honoring Condition's
// branch-on-previous-status semantics (spec §4.5 step 1: "pull the next
// Program from the Sequence tree, honoring Condition semantics on previous
// status"). It is the job package's sole means of advancing through a
// Command; callers should not pattern-match on Sequence themselves.
type Cursor struct {
	stack []cursorFrame // innermost scope last
}

// NewCursor returns a Cursor positioned at the start of seq.
func NewCursor(seq Sequence) *Cursor {
	c := &Cursor{}
	if seq != nil {
		c.stack = []cursorFrame{{seq: seq}}
	}
	return c
}

// Next returns the next Program to spawn, or ok=false once the sequence is
// exhausted. succeeded reports whether the Program returned by the previous
// Next call exited successfully; it is consulted only when the cursor
// resumes a Condition whose Given branch just finished.
func (c *Cursor) Next(succeeded bool) (Program, bool) {
	for len(c.stack) > 0 {
		n := len(c.stack) - 1
		top := c.stack[n]
		c.stack = c.stack[:n]

		if top.resume != nil {
			branch := top.resume.Otherwise
			if succeeded {
				branch = top.resume.Then
			}
			if branch != nil {
				c.stack = append(c.stack, cursorFrame{seq: branch})
			}
			continue
		}

		switch v := top.seq.(type) {
		case Run:
			return v.Program, true

		case List:
			for i := len(v.Steps) - 1; i >= 0; i-- {
				c.stack = append(c.stack, cursorFrame{seq: v.Steps[i]})
			}

		case Condition:
			c.stack = append(c.stack, cursorFrame{resume: &v})
			if v.Given != nil {
				c.stack = append(c.stack, cursorFrame{seq: v.Given})
			}

		default:
			// unknown node: skip it rather than getting stuck.
		}
	}
	return nil, false
}
