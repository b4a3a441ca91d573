package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ytqa/internal/flow"
	"ytqa/internal/history"
	"ytqa/internal/search"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

const recentLimit = 20

type recentMsg struct {
	videos []history.Video
	err    error
}

type searchResultsMsg struct {
	nonce  int
	query  string
	videos []search.Video
	err    error
}

type videoItem struct {
	video search.Video
	ready bool
	note  string
}

func (i videoItem) Title() string {
	if i.video.Title != "" {
		return i.video.Title
	}
	return i.video.ID
}

func (i videoItem) Description() string {
	parts := make([]string, 0, 3)
	if i.video.ChannelTitle != "" {
		parts = append(parts, i.video.ChannelTitle)
	}
	parts = append(parts, i.video.ID)
	if i.note != "" {
		parts = append(parts, i.note)
	}
	return strings.Join(parts, " | ")
}

func (i videoItem) FilterValue() string {
	return strings.ToLower(i.video.Title + " " + i.video.ChannelTitle + " " + i.video.ID)
}

type searchScreen struct {
	deps   Deps
	logger *zap.Logger
	keymap keyMap

	input   textinput.Model
	list    list.Model
	spinner spinner.Model

	searching   bool
	searchNonce int
	lastQuery   string
	showRecent  bool

	flash  string
	status string
}

func newSearchScreen(deps Deps, flash string) *searchScreen {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 60, 16)
	l.Title = "Recent videos"
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	ti := textinput.New()
	ti.Placeholder = "Search YouTube or paste a video URL..."
	ti.Prompt = "> "
	ti.CharLimit = 512

	sp := spinner.New()
	sp.Spinner = spinner.Points

	return &searchScreen{
		deps:       deps,
		logger:     deps.Logger.Named("search"),
		keymap:     defaultKeys(),
		input:      ti,
		list:       l,
		spinner:    sp,
		showRecent: true,
		flash:      flash,
	}
}

func (s *searchScreen) init() tea.Cmd {
	return tea.Batch(s.input.Focus(), s.recentCmd())
}

func (s *searchScreen) recentCmd() tea.Cmd {
	h := s.deps.History
	if h == nil {
		return nil
	}
	return func() tea.Msg {
		videos, err := h.RecentVideos(recentLimit)
		return recentMsg{videos: videos, err: err}
	}
}

func (s *searchScreen) searchCmd(query string) tea.Cmd {
	s.searchNonce++
	s.searching = true
	s.status = ""
	nonce, searcher := s.searchNonce, s.deps.Search
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		videos, err := searcher.Search(ctx, query)
		return searchResultsMsg{nonce: nonce, query: query, videos: videos, err: err}
	}
}

func (s *searchScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case recentMsg:
		if msg.err != nil {
			s.logger.Warn("load recent videos", zap.Error(msg.err))
			return nil
		}
		if s.showRecent {
			return s.applyRecent(msg.videos)
		}
		return nil

	case searchResultsMsg:
		if msg.nonce != s.searchNonce {
			return nil
		}
		s.searching = false
		if msg.err != nil {
			if errors.Is(msg.err, search.ErrMissingAPIKey) {
				s.status = "Search needs YOUTUBE_API_KEY. Paste a video URL or id instead."
			} else {
				s.status = "Search failed: " + msg.err.Error()
			}
			return nil
		}
		s.lastQuery = msg.query
		s.showRecent = false
		return s.applyResults(msg.query, msg.videos)

	case spinner.TickMsg:
		if !s.searching {
			return nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, s.keymap.Submit):
			return s.submit()
		case key.Matches(msg, s.keymap.Up):
			s.list.CursorUp()
			return nil
		case key.Matches(msg, s.keymap.Down):
			s.list.CursorDown()
			return nil
		case key.Matches(msg, s.keymap.Back):
			if s.input.Value() != "" {
				s.input.Reset()
				return nil
			}
			if !s.showRecent {
				s.showRecent = true
				s.lastQuery = ""
				return s.recentCmd()
			}
			return nil
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return cmd
}

// submit treats the input as a video reference when it looks like one, runs
// a search when the query changed, and otherwise opens the selected result.
func (s *searchScreen) submit() tea.Cmd {
	raw := strings.TrimSpace(s.input.Value())
	if raw != "" && search.LooksLikeVideo(raw) {
		id, err := search.ResolveVideoID(raw)
		if err != nil {
			s.status = err.Error()
			return nil
		}
		return goTo(flow.Process(id), search.Video{ID: id})
	}

	if raw != "" && normalizeQuery(raw) != normalizeQuery(s.lastQuery) {
		if s.deps.Search == nil {
			s.status = "Search is unavailable. Paste a video URL or id instead."
			return nil
		}
		return tea.Batch(s.searchCmd(raw), s.spinner.Tick)
	}

	item, ok := s.list.SelectedItem().(videoItem)
	if !ok {
		return nil
	}
	route := flow.Process(item.video.ID)
	if item.ready {
		route = flow.AskRoute(item.video.ID)
	}
	return goTo(route, item.video)
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

func (s *searchScreen) applyRecent(videos []history.Video) tea.Cmd {
	items := make([]list.Item, 0, len(videos))
	for _, v := range videos {
		items = append(items, videoItem{
			video: search.Video{ID: v.ID, Title: v.Title, ChannelTitle: v.Channel},
			ready: videoReady(v),
			note:  recentNote(v),
		})
	}
	s.list.Title = "Recent videos"
	return s.list.SetItems(items)
}

func videoReady(v history.Video) bool {
	return v.State == flow.StateIndexed.String() || v.State == flow.StateAlreadyIndexed.String()
}

func recentNote(v history.Video) string {
	state := "not indexed"
	if videoReady(v) {
		state = "ready"
	}
	if v.AskCount == 0 {
		return state
	}
	return fmt.Sprintf("%s | %d asked, last %s", state, v.AskCount, history.FormatUnix(v.LastAskedTS.Int64))
}

func (s *searchScreen) applyResults(query string, videos []search.Video) tea.Cmd {
	items := make([]list.Item, 0, len(videos))
	for _, v := range videos {
		items = append(items, videoItem{video: v})
	}
	s.list.Title = fmt.Sprintf("Results for %q", query)
	if len(videos) == 0 {
		s.status = "No videos matched your search."
	}
	cmd := s.list.SetItems(items)
	s.list.Select(0)
	return cmd
}

func (s *searchScreen) resize(width, height int) {
	s.input.Width = width - 6
	s.list.SetSize(width-4, height-6)
}

func (s *searchScreen) view(width, height int) string {
	parts := make([]string, 0, 2)
	if s.flash != "" {
		parts = append(parts, errorStyle.Render(s.flash))
	}
	if s.searching {
		parts = append(parts, s.spinner.View()+" searching...")
	} else if s.status != "" {
		parts = append(parts, dimStyle.Render(s.status))
	}
	line := strings.Join(parts, "  ")

	body := s.list.View()
	if len(s.list.Items()) == 0 && !s.searching {
		if s.showRecent {
			body = dimStyle.Render("No videos yet. Search for one or paste a link.")
		} else {
			body = dimStyle.Render("No results.")
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("YouTube Q&A"),
		s.input.View(),
		shorten(line, width-4),
		"",
		body,
	)
	return panelStyle(true).Width(width - 2).Height(height - 2).Render(content)
}

func (s *searchScreen) keys() bindings {
	return bindings{s.keymap.Submit, s.keymap.Up, s.keymap.Down, s.keymap.Back}
}

func (s *searchScreen) owns(string) bool { return false }

func (s *searchScreen) close() {}
