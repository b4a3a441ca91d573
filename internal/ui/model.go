package ui

import (
	"context"

	"ytqa/internal/flow"
	"ytqa/internal/history"
	"ytqa/internal/search"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

type Backend interface {
	flow.Indexer
	flow.Asker
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Video, error)
	Lookup(ctx context.Context, videoID string) (search.Video, error)
}

type History interface {
	RecordVideo(ctx context.Context, v history.Video) error
	RecordExchange(ctx context.Context, e history.Exchange) (history.Exchange, error)
	RecentVideos(limit int) ([]history.Video, error)
	GetVideo(id string) (history.Video, error)
	Exchanges(videoID string, limit int) ([]history.Exchange, error)
}

type Exporter interface {
	Export(video history.Video, exchanges []history.Exchange) (string, error)
}

type Deps struct {
	Backend  Backend
	Search   Searcher
	History  History
	Exporter Exporter
	Logger   *zap.Logger

	// FlowOptions are handed to every indexing session.
	FlowOptions []flow.Option
}

// screen is one routed page. Screens own their sessions and must release them
// in close.
type screen interface {
	init() tea.Cmd
	update(msg tea.Msg) tea.Cmd
	view(width, height int) string
	resize(width, height int)
	keys() bindings
	// owns reports whether a navigation request came from this screen's
	// current session.
	owns(sessionID string) bool
	close()
}

// goToMsg is a user-initiated navigation.
type goToMsg struct {
	route flow.Route
	video search.Video
}

func goTo(route flow.Route, video search.Video) tea.Cmd {
	return func() tea.Msg { return goToMsg{route: route, video: video} }
}

type Model struct {
	deps   Deps
	logger *zap.Logger
	keys   keyMap
	help   help.Model

	route  flow.Route
	active screen

	width  int
	height int
}

func NewModel(deps Deps, start flow.Route) Model {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := help.New()
	h.ShowAll = false

	m := Model{
		deps:   deps,
		logger: deps.Logger.Named("ui"),
		keys:   defaultKeys(),
		help:   h,
	}
	m.route = start
	m.active = m.buildScreen(start, search.Video{ID: start.VideoID}, "")
	return m
}

func (m Model) Init() tea.Cmd {
	return m.active.init()
}

func (m Model) Route() flow.Route { return m.route }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.active.resize(m.width, m.bodyHeight())
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.active.close()
			return m, tea.Quit
		}

	case flow.NavigateMsg:
		if !m.active.owns(msg.SessionID) {
			m.logger.Debug("dropping navigation from inactive session",
				zap.String("session", msg.SessionID),
				zap.Stringer("route", msg.Route),
			)
			return m, nil
		}
		flash := ""
		if !msg.Outcome.State.Ready() {
			flash = msg.Outcome.Message
		}
		return m, m.navigate(msg.Route, search.Video{ID: msg.Route.VideoID}, flash)

	case goToMsg:
		return m, m.navigate(msg.route, msg.video, "")
	}

	return m, m.active.update(msg)
}

// navigate tears down the active screen before the next one starts, so
// nothing scheduled by the old session can land on the new one.
func (m *Model) navigate(route flow.Route, video search.Video, flash string) tea.Cmd {
	m.logger.Debug("navigate", zap.Stringer("from", m.route), zap.Stringer("to", route))
	m.active.close()
	m.route = route
	m.active = m.buildScreen(route, video, flash)
	if m.width > 0 && m.height > 0 {
		m.active.resize(m.width, m.bodyHeight())
	}
	return m.active.init()
}

func (m *Model) buildScreen(route flow.Route, video search.Video, flash string) screen {
	switch route.Kind {
	case flow.RouteProcess:
		return newProcessScreen(m.deps, video)
	case flow.RouteAsk:
		return newAskScreen(m.deps, video)
	default:
		return newSearchScreen(m.deps, flash)
	}
}

func (m Model) bodyHeight() int {
	h := m.height - 2
	if h < 8 {
		h = 8
	}
	return h
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}
	header := statusStyle.Width(m.width).Render(shorten("ytqa  "+m.route.Path(), m.width-2))
	body := m.active.view(m.width, m.bodyHeight())
	hk := append(m.active.keys(), m.keys.Quit)
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		m.help.View(hk),
	)
}
