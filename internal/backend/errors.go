package backend

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAlreadyIndexed
	KindTranscriptUnavailable
	KindNotIndexed
	KindBadRequest
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAlreadyIndexed:
		return "already_indexed"
	case KindTranscriptUnavailable:
		return "transcript_unavailable"
	case KindNotIndexed:
		return "not_indexed"
	case KindBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// Error is a failed backend call. Message is the backend's own error text and
// may be empty when the response carried no payload.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("backend ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		b.WriteString(fmt.Sprintf(" (status %d)", e.Status))
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	} else if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of a backend failure, KindUnknown for anything else.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}

// ErrorMessage returns the backend-supplied error text, if any.
func ErrorMessage(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Message
	}
	return ""
}

var codeKinds = map[string]Kind{
	"already_indexed":        KindAlreadyIndexed,
	"transcript_unavailable": KindTranscriptUnavailable,
	"not_indexed":            KindNotIndexed,
	"bad_request":            KindBadRequest,
}

// classify prefers a structured code. Backends that only send prose are
// matched on their known wording, case-sensitively.
func classify(code, message string) Kind {
	if k, ok := codeKinds[strings.ToLower(strings.TrimSpace(code))]; ok {
		return k
	}
	switch {
	case strings.Contains(message, "already been indexed"):
		return KindAlreadyIndexed
	case strings.Contains(message, "Transcript not available in English"):
		return KindTranscriptUnavailable
	case strings.Contains(message, "Index not found"):
		return KindNotIndexed
	case strings.HasPrefix(message, "Missing "):
		return KindBadRequest
	}
	return KindUnknown
}
