package ui

import (
	"context"
	"time"

	"ytqa/internal/flow"
	"ytqa/internal/history"
	"ytqa/internal/search"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

type recordedMsg struct {
	err error
}

type processScreen struct {
	deps     Deps
	logger   *zap.Logger
	keymap   keyMap
	video    search.Video
	indexing *flow.Indexing
	spinner  spinner.Model
}

func newProcessScreen(deps Deps, video search.Video) *processScreen {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &processScreen{
		deps:     deps,
		logger:   deps.Logger.Named("process"),
		keymap:   defaultKeys(),
		video:    video,
		indexing: flow.NewIndexing(deps.Backend, deps.Logger, deps.FlowOptions...),
		spinner:  sp,
	}
}

func (s *processScreen) init() tea.Cmd {
	begin := s.indexing.Begin(s.video.ID)
	if begin == nil {
		return nil
	}
	return tea.Batch(begin, s.spinner.Tick, s.recordCmd())
}

// recordCmd stores the session's current state for the recent videos list.
func (s *processScreen) recordCmd() tea.Cmd {
	h := s.deps.History
	if h == nil {
		return nil
	}
	sess := s.indexing.Session()
	v := history.Video{
		ID:      s.video.ID,
		Title:   s.video.Title,
		Channel: s.video.ChannelTitle,
		State:   sess.State.String(),
		Status:  sess.StatusMessage,
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return recordedMsg{err: h.RecordVideo(ctx, v)}
	}
}

func (s *processScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case flow.IndexedMsg:
		redirect := s.indexing.Update(msg)
		if redirect == nil {
			return nil
		}
		return tea.Batch(redirect, s.recordCmd())

	case recordedMsg:
		if msg.err != nil {
			s.logger.Warn("record video", zap.String("video_id", s.video.ID), zap.Error(msg.err))
		}
		return nil

	case spinner.TickMsg:
		if s.indexing.Session().State != flow.StateIndexing {
			return nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return cmd

	case tea.KeyMsg:
		if key.Matches(msg, s.keymap.Back) {
			return goTo(flow.Home(), search.Video{})
		}
	}
	return nil
}

func (s *processScreen) resize(int, int) {}

func (s *processScreen) view(width, height int) string {
	sess := s.indexing.Session()

	var status string
	switch {
	case sess.State == flow.StateIndexing:
		status = s.spinner.View() + " " + sess.StatusMessage
	case sess.State.Ready():
		status = successStyle.Render(sess.StatusMessage)
	case sess.StatusMessage != "":
		status = errorStyle.Render(sess.StatusMessage)
	}

	title := s.video.Title
	if title == "" {
		title = "Processing video"
	}
	card := cardStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render(shorten(title, width-12)),
		dimStyle.Render(s.video.ID),
		"",
		status,
	))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, card)
}

func (s *processScreen) keys() bindings {
	return bindings{s.keymap.Back}
}

func (s *processScreen) owns(sessionID string) bool {
	return s.indexing.Session().ID == sessionID
}

func (s *processScreen) close() {
	s.indexing.Close()
}
