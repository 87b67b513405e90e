// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package ui implements an optional live status display of a Watchexec's
// supervised Jobs, ported from internal/boone/ui.go's tview/tcell status
// list down to this engine's simpler, poll-based Job set: where the
// teacher's UI was pushed TargetStart/TargetPass/TargetFail events over
// per-purpose channels, action.Worker.Jobs() already hands back a full
// snapshot on demand, so this UI polls it on a ticker instead of
// maintaining its own list from a channel fan-in.
package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell"
	"github.com/pkg/errors"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	cage_zap "github.com/watchexec/watchexec/internal/cage/log/zap"
	cage_time "github.com/watchexec/watchexec/internal/cage/time"
	"github.com/watchexec/watchexec/internal/engine/command"
	"github.com/watchexec/watchexec/internal/engine/job"
	tp_runes "github.com/watchexec/watchexec/internal/third_party/stackexchange/runes"
)

const (
	// ListItemWidgetPad is the all-sides padding of every ListItemWidget.
	ListItemWidgetPad = 1

	// BodyBoxTopPad selects top-padding of ListItemWidget body areas.
	BodyBoxTopPad = 1

	// StatusListMaxLen is the static row length of the status list; Jobs
	// beyond this count are dropped from display (not from supervision).
	StatusListMaxLen = 9

	// DefaultRefreshInterval is how often the status list is redrawn from
	// JobsFunc when New is given a zero interval.
	DefaultRefreshInterval = 500 * time.Millisecond
)

// ListItemWidget is one row of the status list: a fixed-height Header line
// plus a Body area that fills whatever space remains.
type ListItemWidget struct {
	Container *tview.Flex
	Header    *tview.TextView
	Body      *tview.TextView
}

// NewListItemWidget returns a widget initialized with its container, header,
// and body areas.
func NewListItemWidget() *ListItemWidget {
	w := &ListItemWidget{}
	w.Container = tview.NewFlex()
	w.Container.SetDirection(tview.FlexRow)
	w.Container.SetBorderPadding(ListItemWidgetPad, ListItemWidgetPad, ListItemWidgetPad, ListItemWidgetPad)

	w.Header = tview.NewTextView()
	w.Header.SetWrap(true)
	w.Header.SetDynamicColors(true)

	w.Body = tview.NewTextView()
	w.Body.SetWrap(true)
	w.Body.SetDynamicColors(true)
	w.Body.SetBorderPadding(BodyBoxTopPad, 0, 0, 0)

	w.Container.AddItem(w.Header, 1, 0, false)
	w.Container.AddItem(w.Body, 0, 1, false)

	return w
}

// jobSnapshot is the subset of a job.Job's state the list/detail views need,
// captured once per render so the two views stay consistent with each other
// between ticks.
type jobSnapshot struct {
	ID      string
	Command string
	State   job.State
}

// UI displays the live status of every Job JobsFunc currently reports,
// refreshing on a ticker, and supports drilling into one Job's detail via
// numbered keypress the same way internal/boone/ui.go's status/detail split
// does, minus the stdout/stderr panes: this engine's Job does not capture
// child output (see DESIGN.md), so the detail view shows only what State
// and Command already carry.
type UI struct {
	log     *zap.Logger
	jobs    func() map[string]*job.Job
	refresh time.Duration

	app *tview.Application

	listWidget     *tview.Flex
	listItemWidget [StatusListMaxLen]*ListItemWidget

	detailWidget *ListItemWidget

	exitCh chan struct{}

	current      []jobSnapshot
	activeWidget tview.Primitive
}

// New returns a UI that renders whatever jobs reports, every refresh tick
// (DefaultRefreshInterval if refresh is zero).
func New(log *zap.Logger, jobs func() map[string]*job.Job, refresh time.Duration) *UI {
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	return &UI{
		log:     log,
		jobs:    jobs,
		refresh: refresh,
		exitCh:  make(chan struct{}, 1),
	}
}

// ExitCh reports when the user has requested the UI quit (Ctrl-C or 'q').
func (u *UI) ExitCh() <-chan struct{} {
	return u.exitCh
}

// Init creates all widgets and selects the status list as the active view.
func (u *UI) Init() {
	u.listWidget = tview.NewFlex()
	u.listWidget.SetDirection(tview.FlexRow)
	for pos := 0; pos < StatusListMaxLen; pos++ {
		u.listItemWidget[pos] = NewListItemWidget()
		u.listWidget.AddItem(u.listItemWidget[pos].Container, 0, 1, false)
	}
	u.listWidget.SetFullScreen(true)

	u.detailWidget = NewListItemWidget()
	u.detailWidget.Container.SetFullScreen(true)

	u.app = tview.NewApplication().SetInputCapture(u.inputCapture)
	u.focusWidget(u.listWidget)
}

// Start begins polling JobsFunc and rendering the result, and runs tview's
// event loop; it blocks until the loop exits (via Stop, or the user quitting
// through inputCapture, which also unblocks ExitCh).
func (u *UI) Start() error {
	defer u.app.Stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(u.refresh)
		defer ticker.Stop()

		u.render()
		for {
			select {
			case <-ticker.C:
				u.render()
			case <-done:
				return
			}
		}
	}()

	if err := u.app.Run(); err != nil {
		return errors.Wrap(err, "failed to run job status display")
	}

	return nil
}

// Stop ends rendering and keyboard capture, unblocking Start.
func (u *UI) Stop() {
	u.app.Stop()
}

func (u *UI) render() {
	jobs := u.jobs()
	snaps := make([]jobSnapshot, 0, len(jobs))
	for id, j := range jobs {
		snaps = append(snaps, jobSnapshot{
			ID:      id,
			Command: describeSequence(j.Command().Sequence),
			State:   j.State(),
		})
	}
	sort.Slice(snaps, func(i, k int) bool { return snaps[i].ID < snaps[k].ID })

	u.app.QueueUpdateDraw(func() {
		u.current = snaps

		u.log.Debug("render job list", cage_zap.Tag("ui"), zap.Int("jobs", len(snaps)))

		for pos := 0; pos < StatusListMaxLen; pos++ {
			if pos >= len(snaps) {
				u.listItemWidget[pos].Header.SetText("")
				u.listItemWidget[pos].Body.SetText("")
				continue
			}

			s := snaps[pos]
			u.listItemWidget[pos].Header.SetText(fmt.Sprintf(
				"[darkgray]%d) [green]%s[white] | %s",
				pos+1, s.Command, describeState(s.State),
			))
			u.listItemWidget[pos].Body.SetText(fmt.Sprintf("[darkgray]id: %s", s.ID))
		}
	})
}

func (u *UI) renderDetail(s jobSnapshot) {
	u.detailWidget.Header.SetText(fmt.Sprintf("[darkgray][green]%s[white] | %s", s.Command, describeState(s.State)))

	var body strings.Builder
	fmt.Fprintf(&body, "- ID: %s\n", s.ID)
	fmt.Fprintf(&body, "- Command: %s\n", s.Command)
	fmt.Fprintf(&body, "- State: %s\n", s.State.Kind)
	if s.State.Pid != 0 {
		fmt.Fprintf(&body, "- Pid: %d\n", s.State.Pid)
	}
	if !s.State.StartedAt.IsZero() {
		fmt.Fprintf(&body, "- Started: %s ago\n", cage_time.DurationShort(time.Since(s.State.StartedAt)))
	}
	if s.State.Kind == job.StateFinished {
		fmt.Fprintf(&body, "- Finished: %s ago\n", cage_time.DurationShort(time.Since(s.State.FinishedAt)))
		fmt.Fprintf(&body, "- Result: %s (code %d)\n", s.State.Status, s.State.Code)
	}

	u.detailWidget.Body.SetText(body.String())
	u.detailWidget.Body.ScrollToBeginning()
}

// inputCapture handles keyboard shortcuts shared with internal/boone/ui.go:
// Ctrl-C/q quits from any screen, a digit selects a status-list row to view
// its detail, and Backspace returns from the detail view to the list.
func (u *UI) inputCapture(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyCtrlC || event.Rune() == 'q' {
		u.exitCh <- struct{}{}
		return &tcell.EventKey{}
	}

	switch u.activeWidget {
	case u.detailWidget.Container:
		if event.Key() == tcell.KeyBackspace2 {
			u.focusWidget(u.listWidget)
		}
		return event

	case u.listWidget:
		pos, err := tp_runes.ToInt(event.Rune())
		if err == nil && pos > 0 && pos-1 < len(u.current) {
			u.renderDetail(u.current[pos-1])
			u.focusWidget(u.detailWidget.Container)
		}
		return event
	}

	return event
}

func (u *UI) focusWidget(w tview.Primitive) {
	u.app.SetRoot(w, true)
	u.activeWidget = w
}

func describeState(s job.State) string {
	switch s.Kind {
	case job.StatePending:
		return "[darkgray]pending"
	case job.StateRunning:
		return fmt.Sprintf("[darkgreen]running[white] (pid %d, %s)", s.Pid, cage_time.DurationShort(time.Since(s.StartedAt)))
	case job.StateFinished:
		return fmt.Sprintf("[darkgray]%s[white] (code %d, %s ago)", s.Status, s.Code, cage_time.DurationShort(time.Since(s.FinishedAt)))
	default:
		return "unknown"
	}
}

// describeSequence renders a Sequence's leading Program for display. It
// only special-cases Run, the only Sequence shape cmd/watchexec's Config
// produces; a List/Condition chain built by some other caller still renders,
// just without naming a representative Program.
func describeSequence(seq command.Sequence) string {
	if run, ok := seq.(command.Run); ok {
		return describeProgram(run.Program)
	}
	return "<sequence>"
}

func describeProgram(p command.Program) string {
	switch v := p.(type) {
	case command.Exec:
		return strings.Join(append([]string{v.Prog}, v.Args...), " ")
	case command.ShellProgram:
		return v.Command
	default:
		return "<program>"
	}
}
