package flow

import (
	"context"
	"time"

	"ytqa/internal/backend"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Indexer interface {
	IndexVideo(ctx context.Context, videoID string) (backend.IndexResult, error)
}

// VideoSession is the indexing lifecycle of one video on the processing screen.
type VideoSession struct {
	ID            string
	VideoID       string
	State         IndexingState
	StatusMessage string
}

// IndexedMsg carries the backend's reply to the ingestion request.
type IndexedMsg struct {
	SessionID string
	VideoID   string
	Result    backend.IndexResult
	Err       error
}

// NavigateMsg asks the router to leave the session's screen.
type NavigateMsg struct {
	SessionID string
	Route     Route
	Outcome   Outcome
}

// Indexing drives a single ingestion request for a VideoSession and schedules
// the follow-up navigation. Everything it schedules is bound to the session and
// is dropped after Close.
type Indexing struct {
	indexer Indexer
	logger  *zap.Logger
	after   func(time.Duration) <-chan time.Time

	session VideoSession
	started bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewIndexing(indexer Indexer, logger *zap.Logger, opts ...Option) *Indexing {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := buildOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())
	return &Indexing{
		indexer: indexer,
		logger:  logger.Named("indexing"),
		after:   o.after,
		session: VideoSession{ID: uuid.NewString(), State: StateIdle},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Begin issues the ingestion request. Only the first call per session does
// anything; later calls and calls after Close return nil.
func (o *Indexing) Begin(videoID string) tea.Cmd {
	if o.started || o.closed() {
		return nil
	}
	o.started = true
	o.session.VideoID = videoID
	o.session.State = StateIndexing
	o.session.StatusMessage = MsgProcessing

	o.logger.Info("indexing video", zap.String("session", o.session.ID), zap.String("video_id", videoID))

	ctx, sessionID, indexer := o.ctx, o.session.ID, o.indexer
	return func() tea.Msg {
		res, err := indexer.IndexVideo(ctx, videoID)
		return IndexedMsg{SessionID: sessionID, VideoID: videoID, Result: res, Err: err}
	}
}

// Update applies the ingestion reply and returns the delayed navigation.
func (o *Indexing) Update(msg tea.Msg) tea.Cmd {
	m, ok := msg.(IndexedMsg)
	if !ok || m.SessionID != o.session.ID || o.session.State != StateIndexing || o.closed() {
		return nil
	}

	out := Classify(o.session.VideoID, m.Err)
	o.session.State = out.State
	o.session.StatusMessage = out.Message

	fields := []zap.Field{
		zap.String("session", o.session.ID),
		zap.String("video_id", o.session.VideoID),
		zap.Stringer("state", out.State),
		zap.Stringer("next", out.Route),
		zap.Duration("delay", out.Delay),
	}
	if m.Err != nil {
		fields = append(fields, zap.Stringer("kind", backend.KindOf(m.Err)), zap.Error(m.Err))
		o.logger.Warn("indexing did not complete", fields...)
	} else {
		fields = append(fields, zap.String("backend_message", m.Result.Message))
		o.logger.Info("indexing complete", fields...)
	}

	return o.redirect(out)
}

func (o *Indexing) redirect(out Outcome) tea.Cmd {
	ctx, after, sessionID := o.ctx, o.after, o.session.ID
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-after(out.Delay):
		}
		// Close may race the timer; the session scope has the final say.
		if ctx.Err() != nil {
			return nil
		}
		return NavigateMsg{SessionID: sessionID, Route: out.Route, Outcome: out}
	}
}

func (o *Indexing) Session() VideoSession { return o.session }

// Close tears the session down: the pending request is canceled and no
// scheduled navigation will be delivered.
func (o *Indexing) Close() {
	o.cancel()
}

func (o *Indexing) closed() bool {
	return o.ctx.Err() != nil
}
