package flow

import (
	"time"

	"ytqa/internal/backend"
)

type IndexingState int

const (
	StateIdle IndexingState = iota
	StateIndexing
	StateIndexed
	StateAlreadyIndexed
	StateTranscriptUnavailable
	StateFailed
)

func (s IndexingState) String() string {
	switch s {
	case StateIndexing:
		return "indexing"
	case StateIndexed:
		return "indexed"
	case StateAlreadyIndexed:
		return "already_indexed"
	case StateTranscriptUnavailable:
		return "transcript_unavailable"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Ready reports whether questions can be asked about the video.
func (s IndexingState) Ready() bool {
	return s == StateIndexed || s == StateAlreadyIndexed
}

const (
	MsgProcessing            = "Processing video..."
	MsgIndexed               = "Video indexed! Redirecting..."
	MsgAlreadyIndexed        = "Already indexed. Redirecting..."
	MsgTranscriptUnavailable = "Transcript not available in English or is disabled for this video."
	MsgIndexFailed           = "Failed to index video. Please try again."
	MsgAnswerFailed          = "Failed to get answer."
)

const (
	RedirectDelay    = 1000 * time.Millisecond
	UnavailableDelay = 3000 * time.Millisecond
)

// Outcome is where an indexing attempt leaves the session and where the user
// goes next.
type Outcome struct {
	State   IndexingState
	Message string
	Route   Route
	Delay   time.Duration
}

// Classify maps the result of an ingestion request to an Outcome. Transport
// failures are deliberately indistinguishable from generic backend failures.
func Classify(videoID string, err error) Outcome {
	if err == nil {
		return Outcome{State: StateIndexed, Message: MsgIndexed, Route: AskRoute(videoID), Delay: RedirectDelay}
	}
	switch backend.KindOf(err) {
	case backend.KindAlreadyIndexed:
		return Outcome{State: StateAlreadyIndexed, Message: MsgAlreadyIndexed, Route: AskRoute(videoID), Delay: RedirectDelay}
	case backend.KindTranscriptUnavailable:
		return Outcome{State: StateTranscriptUnavailable, Message: MsgTranscriptUnavailable, Route: Home(), Delay: UnavailableDelay}
	default:
		return Outcome{State: StateFailed, Message: MsgIndexFailed, Route: Home(), Delay: RedirectDelay}
	}
}

// AnswerFailure is the inline text for a failed ask.
func AnswerFailure(err error) string {
	if msg := backend.ErrorMessage(err); msg != "" {
		return msg
	}
	return MsgAnswerFailed
}

type options struct {
	after func(time.Duration) <-chan time.Time
}

type Option func(*options)

// WithAfter replaces time.After for scheduled transitions.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(o *options) {
		o.after = after
	}
}

func buildOptions(opts []Option) options {
	o := options{after: time.After}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
