// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	cage_testkit "github.com/watchexec/watchexec/internal/cage/testkit"

	"github.com/watchexec/watchexec/internal/engine/event"
	"github.com/watchexec/watchexec/internal/engine/queue"
	"github.com/watchexec/watchexec/internal/engine/source/fs"
)

type SourceSuite struct {
	suite.Suite

	root string
	q    *queue.Queue
	src  *fs.Source
}

func TestSourceSuite(t *testing.T) {
	suite.Run(t, new(SourceSuite))
}

func (s *SourceSuite) SetupTest() {
	s.root = s.T().TempDir()
	s.Require().NoError(os.Mkdir(filepath.Join(s.root, "sub"), 0o755))

	s.q = queue.New()
	s.src = fs.New(s.q, cage_testkit.NewZapLogger())
	s.Require().NoError(s.src.Start([]string{s.root}))
}

func (s *SourceSuite) TearDownTest() {
	s.Require().NoError(s.src.Close())
}

func (s *SourceSuite) receive(timeout time.Duration) (queue.Item, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.q.Receive(ctx)
}

func (s *SourceSuite) TestWriteInWatchedRootProducesNormalPriorityEvent() {
	path := filepath.Join(s.root, "file.txt")
	s.Require().NoError(os.WriteFile(path, []byte("hi"), 0o644))

	item, ok := s.receive(5 * time.Second)
	s.Require().True(ok)
	s.Equal(event.Normal, item.Priority)

	paths := item.Event.Paths()
	s.Require().Len(paths, 1)
	s.Equal(path, paths[0].Path)
}

func (s *SourceSuite) TestNewSubdirectoryIsWatchedAutomatically() {
	nested := filepath.Join(s.root, "sub", "deeper")
	s.Require().NoError(os.Mkdir(nested, 0o755))

	// Drain events until the directory creation itself is observed, the
	// same way fsnotify reports Create for the directory entry.
	sawDir := false
	for i := 0; i < 5 && !sawDir; i++ {
		item, ok := s.receive(5 * time.Second)
		s.Require().True(ok)
		for _, p := range item.Event.Paths() {
			if p.Path == nested {
				sawDir = true
			}
		}
	}
	s.Require().True(sawDir)

	path := filepath.Join(nested, "file.txt")
	s.Require().NoError(os.WriteFile(path, []byte("hi"), 0o644))

	item, ok := s.receive(5 * time.Second)
	s.Require().True(ok)
	paths := item.Event.Paths()
	s.Require().Len(paths, 1)
	s.Equal(path, paths[0].Path)
}

func (s *SourceSuite) TestChmodInWatchedRootProducesMetaKind() {
	path := filepath.Join(s.root, "file.txt")
	s.Require().NoError(os.WriteFile(path, []byte("hi"), 0o644))

	// Drain the write event first so the chmod below is unambiguous.
	_, ok := s.receive(5 * time.Second)
	s.Require().True(ok)

	s.Require().NoError(os.Chmod(path, 0o600))

	item, ok := s.receive(5 * time.Second)
	s.Require().True(ok)
	tags := item.Event.Tagged(event.TagFileEventKind)
	s.Require().Len(tags, 1)
	s.Equal(event.FileEventMeta, tags[0].(event.FileEventKindTag).Kind_)
}

func (s *SourceSuite) TestReconfigureDropsEventsFromRemovedRoot() {
	other := s.T().TempDir()

	s.Require().NoError(s.src.Reconfigure([]string{s.root, other}))
	s.Require().NoError(s.src.Reconfigure([]string{other}))

	// A write under the now-unwatched root must not reach the queue; the
	// write under the still-watched root confirms the queue itself is
	// live and this isn't a false pass from a broken Source.
	s.Require().NoError(os.WriteFile(filepath.Join(s.root, "ignored.txt"), []byte("hi"), 0o644))
	path := filepath.Join(other, "seen.txt")
	s.Require().NoError(os.WriteFile(path, []byte("hi"), 0o644))

	item, ok := s.receive(5 * time.Second)
	s.Require().True(ok)
	paths := item.Event.Paths()
	s.Require().Len(paths, 1)
	s.Equal(path, paths[0].Path)
}
