// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command watchexec-print is the parse-and-print side tool spec.md mentions
// without specifying a home for (see SPEC_FULL.md §6): it reads newline-
// delimited JSON Events, one per line, in the kebab-case wire format
// internal/engine/event/json.go implements, and prints a one-line
// human-readable summary of each to stdout.
//
// Usage:
//
//	watchexec-print < events.ndjson
//	watchexec-print --file events.ndjson
//	watchexec-print --pretty < events.ndjson
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/watchexec/watchexec/internal/engine/event"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		file   string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:           "watchexec-print",
		Short:         "Parse and print newline-delimited Event JSON",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return errors.Wrapf(err, "failed to open file [%s]", file)
				}
				defer f.Close()
				in = f
			}

			return run(in, cmd.OutOrStdout(), pretty)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read events from this file instead of stdin")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "print indented JSON instead of a one-line summary")

	return cmd
}

// run reads one JSON-encoded Event per line from in, writing either a
// one-line summary or (pretty) the re-indented JSON to out. A line that
// fails to parse is reported to stderr with its line number; run continues
// with the remaining lines rather than aborting on the first bad one, since
// a long-lived log of events shouldn't be thrown away for one corrupt line.
func run(in io.Reader, out io.Writer, pretty bool) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var e event.Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			fmt.Fprintf(os.Stderr, "line %d: failed to parse event: %s\n", lineNum, err)
			continue
		}

		if pretty {
			b, err := json.MarshalIndent(&e, "", "  ")
			if err != nil {
				return errors.Wrapf(err, "failed to re-encode event on line %d", lineNum)
			}
			fmt.Fprintln(out, string(b))
			continue
		}

		fmt.Fprintln(out, summarize(e))
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "failed to read events")
	}

	return nil
}

// summarize renders one Event as a single line: its id, then one
// space-separated fragment per tag (plus one fragment listing the metadata
// keys, comma-joined, when there is metadata).
func summarize(e event.Event) string {
	if e.IsEmpty() {
		return fmt.Sprintf("[%s] <bootstrap>", e.ID())
	}

	var fragments []string

	for _, p := range e.Paths() {
		fragments = append(fragments, fmt.Sprintf("path=%s", p.Path))
	}
	for _, t := range e.Tagged(event.TagFileEventKind) {
		fragments = append(fragments, fmt.Sprintf("op=%s", t.(event.FileEventKindTag).Kind_))
	}
	for _, t := range e.Tagged(event.TagSource) {
		fragments = append(fragments, fmt.Sprintf("source=%s", t.(event.SourceTag).Origin))
	}
	for _, t := range e.Tagged(event.TagKeyboard) {
		fragments = append(fragments, fmt.Sprintf("key=%+v", t.(event.KeyboardTag)))
	}
	for _, t := range e.Tagged(event.TagProcess) {
		fragments = append(fragments, fmt.Sprintf("pid=%d", t.(event.ProcessTag).Pid))
	}
	for _, sig := range e.Signals() {
		fragments = append(fragments, fmt.Sprintf("signal=%s", sig))
	}
	for _, c := range e.Completions() {
		fragments = append(fragments, fmt.Sprintf("completion=%s(code=%d)", c.End, c.Code))
	}
	for _, t := range e.Tags {
		if unk, ok := t.(event.UnknownTag); ok {
			fragments = append(fragments, fmt.Sprintf("unknown=%s", unk.RawKind))
		}
	}

	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		fragments = append(fragments, fmt.Sprintf("metadata-keys=%s", strings.Join(keys, ",")))
	}

	return fmt.Sprintf("[%s] %s", e.ID(), strings.Join(fragments, " "))
}
