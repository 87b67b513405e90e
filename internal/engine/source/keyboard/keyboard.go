// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package keyboard implements the keyboard Source (spec §3.5): it reads
// stdin byte-by-byte, classifies each byte into a KeyboardTag, and submits
// it to the main queue at Normal priority. Reaching end-of-file submits one
// final KeyboardEof event and stops.
//
// Grounded on original_source/crates/lib/src/sources/keyboard.rs's
// byte_to_keyboard classification (Ctrl-C/Ctrl-D -> Eof, byte 13 -> Enter,
// bytes 1-26 -> Ctrl+letter, byte 27 -> Escape, printable ASCII -> Char),
// adapted from its libc/windows-sys raw-mode guards to
// golang.org/x/crypto/ssh/terminal's MakeRaw/Restore for entering/leaving
// raw mode, and to gdamore/tcell's Key constant table (KeyCtrlA..KeyCtrlZ,
// KeyEnter, KeyEscape) for interpreting the raw bytes once read — the same
// library internal/boone/ui.go's InputCapture reads tcell.Key values from.
package keyboard

import (
	"io"
	"os"

	"github.com/gdamore/tcell"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh/terminal"

	cage_zap "github.com/watchexec/watchexec/internal/cage/log/zap"
	"github.com/watchexec/watchexec/internal/engine/event"
	"github.com/watchexec/watchexec/internal/engine/queue"
)

// Source reads Reader byte-by-byte and submits keyboard Events.
type Source struct {
	Queue *queue.Queue
	Log   *zap.Logger

	// Reader defaults to os.Stdin. Tests substitute an io.Pipe so EOF is
	// controllable without a real terminal.
	Reader io.Reader

	state *terminal.State
	done  chan struct{}
}

// New returns a Source reading from os.Stdin.
func New(q *queue.Queue, log *zap.Logger) *Source {
	return &Source{Queue: q, Log: log, Reader: os.Stdin, done: make(chan struct{})}
}

// Start puts stdin into raw mode, if it is backed by a terminal, and begins
// reading in a new goroutine. It returns once the read loop has started;
// the loop itself runs until EOF, a read error, or Close.
func (s *Source) Start() error {
	if f, ok := s.Reader.(*os.File); ok && terminal.IsTerminal(int(f.Fd())) {
		state, err := terminal.MakeRaw(int(f.Fd()))
		if err != nil {
			s.Log.Info("failed to enter raw terminal mode", cage_zap.Tag("source", "keyboard"), zap.Error(err))
		} else {
			s.state = state
		}
	}

	if s.done == nil {
		s.done = make(chan struct{})
	}
	go s.run()
	return nil
}

// Close restores the terminal mode entered by Start, if any.
func (s *Source) Close() error {
	if s.state == nil {
		return nil
	}
	if f, ok := s.Reader.(*os.File); ok {
		return terminal.Restore(int(f.Fd()), s.state)
	}
	return nil
}

func (s *Source) run() {
	defer close(s.done)

	buf := make([]byte, 16)
	for {
		n, err := s.Reader.Read(buf)
		for _, b := range buf[:n] {
			if tag, ok := byteToKeyboard(b); ok {
				s.emit(tag)
				if tag.Kind_ == event.KeyboardEof {
					return
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				s.emit(event.KeyboardTag{Kind_: event.KeyboardEof})
			} else {
				s.Log.Info("keyboard source read error", cage_zap.Tag("source", "keyboard"), zap.Error(err))
			}
			return
		}
	}
}

func (s *Source) emit(tag event.KeyboardTag) {
	ev := event.New(tag, event.SourceTag{Origin: event.OriginKeyboard})
	s.Queue.Send(ev, event.Normal)
}

// byteToKeyboard classifies a raw stdin byte using tcell's key-constant
// table (tcell.KeyCtrlA..KeyCtrlZ, KeyEnter, KeyEscape are the same ASCII
// control codes terminals actually send) rather than hand-rolled magic
// numbers, the same table internal/boone/ui.go's InputCapture reads
// tcell.Key values from.
func byteToKeyboard(b byte) (event.KeyboardTag, bool) {
	key := tcell.Key(b)
	switch {
	case key == tcell.KeyCtrlC || key == tcell.KeyCtrlD:
		return event.KeyboardTag{Kind_: event.KeyboardEof}, true
	case key == tcell.KeyEnter:
		return event.KeyboardTag{Kind_: event.KeyboardEnter}, true
	case key == tcell.KeyEscape:
		return event.KeyboardTag{Kind_: event.KeyboardEscape}, true
	case key >= tcell.KeyCtrlA && key <= tcell.KeyCtrlZ: // Ctrl+letter
		return event.KeyboardTag{Kind_: event.KeyboardCtrl, Rune: rune(b + 'a' - 1)}, true
	case b == ' ' || (b > 32 && b < 127):
		return event.KeyboardTag{Kind_: event.KeyboardChar, Rune: rune(b)}, true
	default:
		return event.KeyboardTag{}, false
	}
}
