// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package keyboard_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	cage_testkit "github.com/watchexec/watchexec/internal/cage/testkit"

	"github.com/watchexec/watchexec/internal/engine/event"
	"github.com/watchexec/watchexec/internal/engine/queue"
	"github.com/watchexec/watchexec/internal/engine/source/keyboard"
)

type SourceSuite struct {
	suite.Suite

	q    *queue.Queue
	r    *io.PipeReader
	w    *io.PipeWriter
	src  *keyboard.Source
}

func TestSourceSuite(t *testing.T) {
	suite.Run(t, new(SourceSuite))
}

func (s *SourceSuite) SetupTest() {
	s.q = queue.New()
	s.r, s.w = io.Pipe()
	s.src = &keyboard.Source{Queue: s.q, Log: cage_testkit.NewZapLogger(), Reader: s.r}
	s.Require().NoError(s.src.Start())
}

func (s *SourceSuite) receive(timeout time.Duration) (queue.Item, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.q.Receive(ctx)
}

func (s *SourceSuite) TestEnterIsClassifiedAndNormalPriority() {
	_, err := s.w.Write([]byte{13})
	s.Require().NoError(err)

	item, ok := s.receive(5 * time.Second)
	s.Require().True(ok)
	s.Equal(event.Normal, item.Priority)
	tags := item.Event.Tagged(event.TagKeyboard)
	s.Require().Len(tags, 1)
	s.Equal(event.KeyboardEnter, tags[0].(event.KeyboardTag).Kind_)
}

func (s *SourceSuite) TestCtrlLetterCarriesLowercaseRune() {
	_, err := s.w.Write([]byte{1}) // Ctrl-A
	s.Require().NoError(err)

	item, ok := s.receive(5 * time.Second)
	s.Require().True(ok)
	tags := item.Event.Tagged(event.TagKeyboard)
	s.Require().Len(tags, 1)
	tag := tags[0].(event.KeyboardTag)
	s.Equal(event.KeyboardCtrl, tag.Kind_)
	s.Equal('a', tag.Rune)
}

func (s *SourceSuite) TestPrintableCharRoundTrips() {
	_, err := s.w.Write([]byte("q"))
	s.Require().NoError(err)

	item, ok := s.receive(5 * time.Second)
	s.Require().True(ok)
	tags := item.Event.Tagged(event.TagKeyboard)
	s.Require().Len(tags, 1)
	tag := tags[0].(event.KeyboardTag)
	s.Equal(event.KeyboardChar, tag.Kind_)
	s.Equal('q', tag.Rune)
}

func (s *SourceSuite) TestPipeCloseProducesEof() {
	s.Require().NoError(s.w.Close())

	item, ok := s.receive(5 * time.Second)
	s.Require().True(ok)
	tags := item.Event.Tagged(event.TagKeyboard)
	s.Require().Len(tags, 1)
	s.Equal(event.KeyboardEof, tags[0].(event.KeyboardTag).Kind_)
}
