package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ytqa/internal/config"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.AppConfig{BackendURL: srv.URL + "/"}, zap.NewNop())
}

func TestIndexVideoSendsVideoID(t *testing.T) {
	var gotPath, gotID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotID = body["video_id"]
		_, _ = w.Write([]byte(`{"message":"Indexing complete for video ID: abc"}`))
	})

	res, err := c.IndexVideo(context.Background(), "abc")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if gotPath != "/api/index/" || gotID != "abc" {
		t.Fatalf("unexpected request path=%q id=%q", gotPath, gotID)
	}
	if res.Message != "Indexing complete for video ID: abc" {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestIndexVideoClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   Kind
		msg    string
	}{
		{"already indexed prose", 409, `{"error":"Video has already been indexed."}`, KindAlreadyIndexed, "Video has already been indexed."},
		{"transcript prose", 400, `{"error":"Transcript not available in English for this content."}`, KindTranscriptUnavailable, "Transcript not available in English for this content."},
		{"generic", 500, `{"error":"Internal server error"}`, KindUnknown, "Internal server error"},
		{"structured code wins", 400, `{"error":"whatever","code":"transcript_unavailable"}`, KindTranscriptUnavailable, "whatever"},
		{"empty body", 502, ``, KindUnknown, ""},
		{"html body", 502, `<html>bad gateway</html>`, KindUnknown, ""},
		{"case sensitive", 400, `{"error":"ALREADY BEEN INDEXED"}`, KindUnknown, "ALREADY BEEN INDEXED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.IndexVideo(context.Background(), "vid")
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := KindOf(err); got != tc.want {
				t.Fatalf("kind: got %v want %v", got, tc.want)
			}
			if got := ErrorMessage(err); got != tc.msg {
				t.Fatalf("message: got %q want %q", got, tc.msg)
			}
		})
	}
}

func TestIndexVideoNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(config.AppConfig{BackendURL: url}, nil)
	_, err := c.IndexVideo(context.Background(), "vid")
	if KindOf(err) != KindNetwork {
		t.Fatalf("expected network kind, got %v (%v)", KindOf(err), err)
	}
	if ErrorMessage(err) != "" {
		t.Fatalf("network errors carry no backend message")
	}
}

func TestIndexVideoCollapsesConcurrentCalls(t *testing.T) {
	var hits int32
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		started <- struct{}{}
		<-release
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.IndexVideo(context.Background(), "same")
			errs <- err
		}()
	}
	// Let the second caller join the flight before the server answers.
	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected one backend request, got %d", got)
	}
}

func TestIndexVideoSurvivesFirstCallerLeaving(t *testing.T) {
	var hits int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		started <- struct{}{}
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte(`{"message":"Indexing complete for video ID: same"}`))
	})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.IndexVideo(firstCtx, "same")
		firstErr <- err
	}()
	<-started

	type reply struct {
		res IndexResult
		err error
	}
	second := make(chan reply, 1)
	go func() {
		res, err := c.IndexVideo(context.Background(), "same")
		second <- reply{res, err}
	}()
	// Let the second caller join the flight before the first one leaves.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		if KindOf(err) != KindNetwork || !errors.Is(err, context.Canceled) {
			t.Fatalf("expected canceled wait for first caller, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first caller did not stop waiting")
	}

	close(release)
	select {
	case r := <-second:
		if r.err != nil {
			t.Fatalf("second caller failed: %v", r.err)
		}
		if r.res.Message != "Indexing complete for video ID: same" {
			t.Fatalf("unexpected message %q", r.res.Message)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("second caller never got the shared reply")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected one backend request, got %d", got)
	}
}

func TestAsk(t *testing.T) {
	var body map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ask/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"question":"what?","answer":"42"}`))
	})

	ans, err := c.Ask(context.Background(), "vid", "what?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Text != "42" || ans.Question != "what?" {
		t.Fatalf("unexpected answer %#v", ans)
	}
	if body["question"] != "what?" || body["video_id"] != "vid" {
		t.Fatalf("unexpected request body %#v", body)
	}
}

func TestAskFailureMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Index not found. Please index the video first."}`))
	})

	_, err := c.Ask(context.Background(), "vid", "q")
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if be.Kind != KindNotIndexed || be.Status != http.StatusNotFound {
		t.Fatalf("unexpected error %#v", be)
	}
}

func TestAskUndecodableSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err := c.Ask(context.Background(), "vid", "q")
	if err == nil || KindOf(err) != KindUnknown {
		t.Fatalf("expected unknown-kind error, got %v", err)
	}
}

func TestAskCanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Ask(ctx, "vid", "q")
	if KindOf(err) != KindNetwork || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled network error, got %v", err)
	}
}
