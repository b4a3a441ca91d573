package flow

import (
	"context"
	"strings"

	"ytqa/internal/backend"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Asker interface {
	Ask(ctx context.Context, videoID, question string) (backend.Answer, error)
}

type QueryStatus int

const (
	QueryIdle QueryStatus = iota
	QueryPending
	QueryAnswered
	QueryErrored
)

func (s QueryStatus) String() string {
	switch s {
	case QueryPending:
		return "pending"
	case QueryAnswered:
		return "answered"
	case QueryErrored:
		return "errored"
	default:
		return "idle"
	}
}

// Exchange is the display state of the latest question. At most one of
// Pending, Answer and ErrorMessage is set.
type Exchange struct {
	VideoID      string
	Question     string
	Answer       string
	ErrorMessage string
	Pending      bool
}

func (e Exchange) Status() QueryStatus {
	switch {
	case e.Pending:
		return QueryPending
	case e.ErrorMessage != "":
		return QueryErrored
	case e.Answer != "":
		return QueryAnswered
	default:
		return QueryIdle
	}
}

// AnsweredMsg is the reply to one ask. Seq identifies which ask it answers.
type AnsweredMsg struct {
	SessionID string
	Seq       uint64
	VideoID   string
	Question  string
	Answer    string
	Err       error
}

// Query runs question/answer round trips for the ask screen. Each ask is
// numbered and only the reply to the most recent ask is shown.
type Query struct {
	asker  Asker
	logger *zap.Logger

	id       string
	seq      uint64
	exchange Exchange

	ctx    context.Context
	cancel context.CancelFunc
}

func NewQuery(asker Asker, logger *zap.Logger) *Query {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Query{
		asker:  asker,
		logger: logger.Named("query"),
		id:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Ask clears the previous result and sends the question. Blank questions are
// ignored and leave the exchange untouched.
func (q *Query) Ask(videoID, question string) tea.Cmd {
	if strings.TrimSpace(question) == "" || q.ctx.Err() != nil {
		return nil
	}

	q.seq++
	q.exchange = Exchange{VideoID: videoID, Question: question, Pending: true}
	q.logger.Debug("asking", zap.String("video_id", videoID), zap.Uint64("seq", q.seq))

	ctx, asker, sessionID, seq := q.ctx, q.asker, q.id, q.seq
	return func() tea.Msg {
		ans, err := asker.Ask(ctx, videoID, question)
		return AnsweredMsg{
			SessionID: sessionID,
			Seq:       seq,
			VideoID:   videoID,
			Question:  question,
			Answer:    ans.Text,
			Err:       err,
		}
	}
}

// Update applies a reply and reports whether it changed the exchange. Replies
// to superseded asks are discarded.
func (q *Query) Update(msg tea.Msg) bool {
	m, ok := msg.(AnsweredMsg)
	if !ok || m.SessionID != q.id || q.ctx.Err() != nil {
		return false
	}
	if m.Seq != q.seq {
		q.logger.Debug("discarding stale answer", zap.Uint64("seq", m.Seq), zap.Uint64("latest", q.seq))
		return false
	}

	q.exchange.Pending = false
	if m.Err != nil {
		q.exchange.ErrorMessage = AnswerFailure(m.Err)
		q.logger.Warn("ask failed",
			zap.String("video_id", m.VideoID),
			zap.Stringer("kind", backend.KindOf(m.Err)),
			zap.Error(m.Err),
		)
		return true
	}
	q.exchange.Answer = m.Answer
	return true
}

func (q *Query) Exchange() Exchange { return q.exchange }

func (q *Query) Status() QueryStatus { return q.exchange.Status() }

// Close cancels any in-flight ask; its reply will be ignored.
func (q *Query) Close() {
	q.cancel()
}
