package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ytqa/internal/clipboard"
	"ytqa/internal/config"
	"ytqa/internal/flow"
	"ytqa/internal/highlight"
	"ytqa/internal/history"
	"ytqa/internal/search"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

const previousLimit = 5

type lookupMsg struct {
	video  search.Video
	stored bool
	err    error
}

type exchangesMsg struct {
	items []history.Exchange
	err   error
}

type exchangeRecordedMsg struct {
	exchange history.Exchange
	err      error
}

type renderMsg struct {
	nonce    int
	rendered string
	err      error
}

type exportMsg struct {
	path string
	err  error
}

type copyMsg struct {
	err error
}

type askScreen struct {
	deps   Deps
	logger *zap.Logger
	keymap keyMap

	video    search.Video
	query    *flow.Query
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	previous    []history.Exchange
	renderNonce int
	status      string
}

func newAskScreen(deps Deps, video search.Video) *askScreen {
	ti := textinput.New()
	ti.Placeholder = "Ask a question about this video..."
	ti.Prompt = "? "
	ti.CharLimit = 1000

	sp := spinner.New()
	sp.Spinner = spinner.Points

	return &askScreen{
		deps:     deps,
		logger:   deps.Logger.Named("ask"),
		keymap:   defaultKeys(),
		video:    video,
		query:    flow.NewQuery(deps.Backend, deps.Logger),
		input:    ti,
		viewport: viewport.New(60, 12),
		spinner:  sp,
	}
}

func (s *askScreen) init() tea.Cmd {
	return tea.Batch(s.input.Focus(), s.lookupCmd(), s.exchangesCmd())
}

// lookupCmd fills in the title for videos opened by id, preferring what the
// history already knows over a YouTube round trip.
func (s *askScreen) lookupCmd() tea.Cmd {
	if s.video.Title != "" || (s.deps.History == nil && s.deps.Search == nil) {
		return nil
	}
	h, searcher, id, logger := s.deps.History, s.deps.Search, s.video.ID, s.logger
	return func() tea.Msg {
		if h != nil {
			v, err := h.GetVideo(id)
			switch {
			case err == nil && v.Title != "":
				return lookupMsg{video: search.Video{ID: id, Title: v.Title, ChannelTitle: v.Channel}, stored: true}
			case err != nil && !errors.Is(err, history.ErrNotFound):
				logger.Warn("read stored video", zap.String("video_id", id), zap.Error(err))
			}
		}
		if searcher == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		v, err := searcher.Lookup(ctx, id)
		return lookupMsg{video: v, err: err}
	}
}

func (s *askScreen) exchangesCmd() tea.Cmd {
	h := s.deps.History
	if h == nil {
		return nil
	}
	id := s.video.ID
	return func() tea.Msg {
		items, err := h.Exchanges(id, previousLimit)
		return exchangesMsg{items: items, err: err}
	}
}

func (s *askScreen) recordCmd(ex flow.Exchange) tea.Cmd {
	h := s.deps.History
	if h == nil {
		return func() tea.Msg {
			return exchangeRecordedMsg{exchange: history.Exchange{
				VideoID:  ex.VideoID,
				AskedTS:  time.Now().Unix(),
				Question: ex.Question,
				Answer:   ex.Answer,
				Error:    ex.ErrorMessage,
			}}
		}
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		saved, err := h.RecordExchange(ctx, history.Exchange{
			VideoID:  ex.VideoID,
			Question: ex.Question,
			Answer:   ex.Answer,
			Error:    ex.ErrorMessage,
		})
		return exchangeRecordedMsg{exchange: saved, err: err}
	}
}

func (s *askScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case flow.AnsweredMsg:
		if !s.query.Update(msg) {
			return nil
		}
		ex := s.query.Exchange()
		cmds := []tea.Cmd{s.recordCmd(ex)}
		if ex.Status() == flow.QueryAnswered {
			s.viewport.SetContent(ex.Answer)
			s.viewport.GotoTop()
			cmds = append(cmds, s.renderCmd(ex))
		}
		return tea.Batch(cmds...)

	case renderMsg:
		if msg.nonce != s.renderNonce {
			return nil
		}
		if msg.err != nil {
			s.logger.Debug("render answer", zap.Error(msg.err))
			return nil
		}
		s.viewport.SetContent(msg.rendered)
		s.viewport.GotoTop()
		return nil

	case lookupMsg:
		if msg.err != nil {
			s.logger.Debug("lookup video", zap.String("video_id", s.video.ID), zap.Error(msg.err))
			return nil
		}
		s.video.Title, s.video.ChannelTitle = msg.video.Title, msg.video.ChannelTitle
		if msg.stored {
			return nil
		}
		return s.saveMetadataCmd()

	case exchangesMsg:
		if msg.err != nil {
			s.logger.Warn("load exchanges", zap.String("video_id", s.video.ID), zap.Error(msg.err))
			return nil
		}
		s.previous = msg.items
		return nil

	case exchangeRecordedMsg:
		if msg.err != nil {
			s.logger.Warn("record exchange", zap.String("video_id", s.video.ID), zap.Error(msg.err))
		}
		s.previous = append(s.previous, msg.exchange)
		if len(s.previous) > previousLimit {
			s.previous = s.previous[len(s.previous)-previousLimit:]
		}
		return nil

	case recordedMsg:
		if msg.err != nil {
			s.logger.Warn("record video", zap.String("video_id", s.video.ID), zap.Error(msg.err))
		}
		return nil

	case exportMsg:
		if msg.err != nil {
			s.status = "Export failed: " + msg.err.Error()
		} else {
			s.status = "Exported: " + msg.path
		}
		return nil

	case copyMsg:
		switch {
		case msg.err == nil:
			s.status = "Copied answer to clipboard"
		case errors.Is(msg.err, clipboard.ErrToolNotFound):
			s.status = "Could not copy: clipboard tool not found"
		default:
			s.status = "Could not copy: " + msg.err.Error()
		}
		return nil

	case spinner.TickMsg:
		if s.query.Status() != flow.QueryPending {
			return nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, s.keymap.Submit):
			return s.ask()
		case key.Matches(msg, s.keymap.Back):
			return goTo(flow.Home(), search.Video{})
		case key.Matches(msg, s.keymap.PageUp):
			s.viewport.HalfViewUp()
			return nil
		case key.Matches(msg, s.keymap.PageDown):
			s.viewport.HalfViewDown()
			return nil
		case key.Matches(msg, s.keymap.Export):
			return s.exportCmd()
		case key.Matches(msg, s.keymap.Copy):
			return s.copyCmd()
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return cmd
}

func (s *askScreen) ask() tea.Cmd {
	cmd := s.query.Ask(s.video.ID, strings.TrimSpace(s.input.Value()))
	if cmd == nil {
		return nil
	}
	s.input.Reset()
	s.status = ""
	s.renderNonce++
	s.viewport.SetContent("")
	return tea.Batch(cmd, s.spinner.Tick)
}

func (s *askScreen) renderCmd(ex flow.Exchange) tea.Cmd {
	s.renderNonce++
	nonce := s.renderNonce
	wrap := s.viewport.Width - 2
	if wrap < 20 {
		wrap = 20
	}
	terms := highlight.Terms(ex.Question)
	answer := ex.Answer
	return func() tea.Msg {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(config.DefaultGlamourStyle),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return renderMsg{nonce: nonce, err: err}
		}
		out, err := r.Render(answer)
		if err != nil {
			return renderMsg{nonce: nonce, err: err}
		}
		res := highlight.ApplyANSI(out, terms, func(match string) string {
			return termMatchStyle.Render(match)
		})
		return renderMsg{nonce: nonce, rendered: res.Text}
	}
}

func (s *askScreen) saveMetadataCmd() tea.Cmd {
	h := s.deps.History
	if h == nil {
		return nil
	}
	v := history.Video{ID: s.video.ID, Title: s.video.Title, Channel: s.video.ChannelTitle}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return recordedMsg{err: h.RecordVideo(ctx, v)}
	}
}

func (s *askScreen) historyVideo() history.Video {
	return history.Video{ID: s.video.ID, Title: s.video.Title, Channel: s.video.ChannelTitle, State: flow.StateIndexed.String()}
}

func (s *askScreen) exportCmd() tea.Cmd {
	if s.deps.Exporter == nil {
		s.status = "Export is unavailable"
		return nil
	}
	exp, h, video := s.deps.Exporter, s.deps.History, s.historyVideo()
	fallback := append([]history.Exchange(nil), s.previous...)
	return func() tea.Msg {
		exchanges := fallback
		if h != nil {
			all, err := h.Exchanges(video.ID, 1000)
			if err != nil {
				return exportMsg{err: fmt.Errorf("load exchanges: %w", err)}
			}
			exchanges = all
		}
		path, err := exp.Export(video, exchanges)
		return exportMsg{path: path, err: err}
	}
}

func (s *askScreen) copyCmd() tea.Cmd {
	ex := s.query.Exchange()
	if ex.Status() != flow.QueryAnswered {
		s.status = "No answer to copy yet"
		return nil
	}
	text := ex.Answer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return copyMsg{err: clipboard.Copy(ctx, text)}
	}
}

func (s *askScreen) resize(width, height int) {
	s.input.Width = width - 8
	s.viewport.Width = width - 6
	vh := height - 10 - previousLimit
	if vh < 5 {
		vh = 5
	}
	s.viewport.Height = vh
}

// answerView shows exactly one of: spinner, error, answer or placeholder.
func (s *askScreen) answerView() string {
	ex := s.query.Exchange()
	switch ex.Status() {
	case flow.QueryPending:
		return s.spinner.View() + " Thinking..."
	case flow.QueryErrored:
		return errorStyle.Render(ex.ErrorMessage)
	case flow.QueryAnswered:
		return s.viewport.View()
	default:
		return dimStyle.Render("Ask anything about the video. Answers come from its transcript.")
	}
}

func (s *askScreen) view(width, height int) string {
	title := s.video.Title
	if title == "" {
		title = s.video.ID
	}
	header := titleStyle.Render(shorten(title, width-6))
	meta := s.video.ID
	if s.video.ChannelTitle != "" {
		meta = s.video.ChannelTitle + " | " + meta
	}

	question := ""
	if q := s.query.Exchange().Question; q != "" {
		question = dimStyle.Render("Q: " + shorten(singleLine(q), width-10))
	}

	rows := []string{
		header,
		dimStyle.Render(meta),
		"",
		s.input.View(),
		question,
		panelStyle(true).Width(width - 4).Render(s.answerView()),
	}
	if prev := s.previousView(width - 4); prev != "" {
		rows = append(rows, prev)
	}
	if s.status != "" {
		rows = append(rows, dimStyle.Render(shorten(s.status, width-4)))
	}
	return lipgloss.NewStyle().Padding(0, 1).Height(height).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (s *askScreen) previousView(width int) string {
	if len(s.previous) == 0 {
		return ""
	}
	lines := make([]string, 0, len(s.previous)+1)
	lines = append(lines, dimStyle.Render("Previous questions"))
	for i := len(s.previous) - 1; i >= 0; i-- {
		ex := s.previous[i]
		line := "- " + singleLine(ex.Question)
		if ex.Failed() {
			line += "  " + errorStyle.Render("(failed)")
		} else if ex.Answer != "" {
			line += "  " + dimStyle.Render(singleLine(ex.Answer))
		}
		lines = append(lines, shorten(line, width))
	}
	return strings.Join(lines, "\n")
}

func (s *askScreen) keys() bindings {
	return bindings{s.keymap.Submit, s.keymap.PageUp, s.keymap.PageDown, s.keymap.Export, s.keymap.Copy, s.keymap.Back}
}

func (s *askScreen) owns(string) bool { return false }

func (s *askScreen) close() {
	s.query.Close()
}
