// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package event

import "github.com/watchexec/watchexec/internal/engine/signal"

// TagKind discriminates the Tag variants described in spec §3.1. It is
// exposed so callers can type-switch-free dispatch on a Tag without a Go
// type assertion for every branch.
type TagKind int

const (
	TagPath TagKind = iota
	TagFileEventKind
	TagSource
	TagKeyboard
	TagProcess
	TagSignal
	TagProcessCompletion
)

// Tag is the discriminated-union member described in spec §3.1. Multiple
// tags of the same variant are allowed on one Event; filters apply to each.
type Tag interface {
	Kind() TagKind
}

// FileType narrows a Path tag to a file, directory, symlink, or other;
// unknown when the source could not stat the path.
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeFile
	FileTypeDir
	FileTypeSymlink
	FileTypeOther
)

// PathTag identifies a file/directory affected by the event.
type PathTag struct {
	Path string
	Type FileType
}

func (PathTag) Kind() TagKind { return TagPath }

// FileEventKind narrows what kind of filesystem activity occurred.
type FileEventKind int

const (
	FileEventCreate FileEventKind = iota
	FileEventRemove
	FileEventRename
	FileEventWrite
	FileEventMeta // metadata-only change, e.g. chmod
	FileEventOther
)

func (k FileEventKind) String() string {
	switch k {
	case FileEventCreate:
		return "create"
	case FileEventRemove:
		return "remove"
	case FileEventRename:
		return "rename"
	case FileEventWrite:
		return "write"
	case FileEventMeta:
		return "meta"
	}
	return "other"
}

// FileEventKindTag carries the FileEventKind narrowing for a batch of
// PathTag values on the same Event.
type FileEventKindTag struct {
	Kind_ FileEventKind
}

func (FileEventKindTag) Kind() TagKind { return TagFileEventKind }

// Origin identifies which source emitted an Event.
type Origin int

const (
	OriginFilesystem Origin = iota
	OriginOs
	OriginKeyboard
	OriginInternal
)

func (o Origin) String() string {
	switch o {
	case OriginFilesystem:
		return "filesystem"
	case OriginOs:
		return "os"
	case OriginKeyboard:
		return "keyboard"
	case OriginInternal:
		return "internal"
	}
	return "unknown"
}

// SourceTag records which source emitted the Event.
type SourceTag struct {
	Origin Origin
}

func (SourceTag) Kind() TagKind { return TagSource }

// KeyboardEventKind narrows a keyboard-source Event.
type KeyboardEventKind int

const (
	KeyboardEof KeyboardEventKind = iota
	KeyboardCtrl
	KeyboardEnter
	KeyboardEscape
	KeyboardChar
)

// KeyboardTag carries a decoded keyboard event.
type KeyboardTag struct {
	Kind_ KeyboardEventKind

	// Rune holds the decoded character for KeyboardChar and the letter
	// for KeyboardCtrl (e.g. 'c' for Ctrl-C).
	Rune rune
}

func (KeyboardTag) Kind() TagKind { return TagKeyboard }

// ProcessTag attributes the event to a specific child process, when known.
type ProcessTag struct {
	Pid int
}

func (ProcessTag) Kind() TagKind { return TagProcess }

// SignalTag carries an inbound signal to the main process.
type SignalTag struct {
	Signal signal.MainSignal
}

func (SignalTag) Kind() TagKind { return TagSignal }

// ProcessEnd is the terminal status of a supervised process, per spec §3.6.
type ProcessEnd int

const (
	ProcessEndUnknown ProcessEnd = iota
	ProcessSuccess
	ProcessExitError    // non-zero exit code
	ProcessExitSignal   // killed by signal
	ProcessExitStop     // stopped (not terminated) by signal
	ProcessException    // platform exception (Windows)
	ProcessContinued
)

func (e ProcessEnd) String() string {
	switch e {
	case ProcessSuccess:
		return "success"
	case ProcessExitError:
		return "exit error"
	case ProcessExitSignal:
		return "killed by signal"
	case ProcessExitStop:
		return "stopped by signal"
	case ProcessException:
		return "exception"
	case ProcessContinued:
		return "continued"
	default:
		return "unknown"
	}
}

// ProcessCompletionTag reports that a supervised process has ended. HasEnd
// is false if the process's disposition could not be determined.
type ProcessCompletionTag struct {
	End    ProcessEnd
	Code   int // exit code or signal number, meaning depends on End
	HasEnd bool
}

func (ProcessCompletionTag) Kind() TagKind { return TagProcessCompletion }
