package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history.sqlite"), false)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	var clock int64 = 1_700_000_000
	s.now = func() time.Time {
		clock++
		return time.Unix(clock, 0)
	}
	return s
}

func TestRecordVideoUpsertKeepsMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordVideo(ctx, Video{ID: "v1", Title: "Go Concurrency", Channel: "GopherCon", State: "indexing"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordVideo(ctx, Video{ID: "v1", State: "indexed", Status: "Video indexed! Redirecting..."}); err != nil {
		t.Fatalf("record: %v", err)
	}

	v, err := s.GetVideo("v1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.Title != "Go Concurrency" || v.Channel != "GopherCon" {
		t.Fatalf("metadata lost on update: %#v", v)
	}
	if v.State != "indexed" || v.Status != "Video indexed! Redirecting..." {
		t.Fatalf("state not updated: %#v", v)
	}
}

func TestGetVideoNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetVideo("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExchangesOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, q := range []string{"one", "two", "three"} {
		if _, err := s.RecordExchange(ctx, Exchange{VideoID: "v1", Question: q, Answer: "a-" + q}); err != nil {
			t.Fatalf("record exchange: %v", err)
		}
	}
	if _, err := s.RecordExchange(ctx, Exchange{VideoID: "v2", Question: "other", Answer: "x"}); err != nil {
		t.Fatalf("record exchange: %v", err)
	}

	got, err := s.Exchanges("v1", 2)
	if err != nil {
		t.Fatalf("exchanges: %v", err)
	}
	if len(got) != 2 || got[0].Question != "two" || got[1].Question != "three" {
		t.Fatalf("expected last two exchanges oldest first, got %#v", got)
	}
}

func TestRecentVideosOrdersByLatestActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.RecordVideo(ctx, Video{ID: "a", State: "indexed"})
	_ = s.RecordVideo(ctx, Video{ID: "b", State: "indexed"})
	if _, err := s.RecordExchange(ctx, Exchange{VideoID: "a", Question: "q", Answer: "x"}); err != nil {
		t.Fatalf("record exchange: %v", err)
	}

	videos, err := s.RecentVideos(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(videos) != 2 || videos[0].ID != "a" || videos[1].ID != "b" {
		t.Fatalf("unexpected order: %#v", videos)
	}
	if videos[0].AskCount != 1 || !videos[0].LastAskedTS.Valid {
		t.Fatalf("expected ask stats on a: %#v", videos[0])
	}
}

func TestSearchMatchesQuestionsAndAnswers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed := []Exchange{
		{VideoID: "v1", Question: "What is a goroutine?", Answer: "A lightweight thread managed by the Go runtime."},
		{VideoID: "v1", Question: "How do channels work?", Answer: "Channels connect goroutines."},
		{VideoID: "v2", Question: "Who is speaking?", Answer: "Rob Pike."},
		{VideoID: "v2", Question: "goroutine leak?", Error: "rate limited"},
	}
	for _, e := range seed {
		if _, err := s.RecordExchange(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := s.Search("goroutine", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 answered matches, got %#v", got)
	}
	for _, e := range got {
		if e.Failed() {
			t.Fatalf("failed exchanges should not be searchable: %#v", e)
		}
	}

	got, err = s.Search("rob pike", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].VideoID != "v2" {
		t.Fatalf("expected v2 match, got %#v", got)
	}
}

func TestSearchLikeFallback(t *testing.T) {
	s := newTestStore(t)
	s.ftsEnabled = false
	ctx := context.Background()
	_, _ = s.RecordExchange(ctx, Exchange{VideoID: "v1", Question: "What is a goroutine?", Answer: "A lightweight thread."})
	_, _ = s.RecordExchange(ctx, Exchange{VideoID: "v1", Question: "Unrelated", Answer: "nothing"})

	got, err := s.Search("Goroutine thread", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Question != "What is a goroutine?" {
		t.Fatalf("unexpected result %#v", got)
	}
}

func TestBuildFTSQuery(t *testing.T) {
	got := buildFTSQuery(`what "is" (a) goroutine?`)
	want := `"what"* AND "is"* AND "a"* AND "goroutine"*`
	if got != want {
		t.Fatalf("unexpected fts query\nwant: %s\ngot:  %s", want, got)
	}
}

func TestResetDropsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.sqlite")
	s, err := New(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s.RecordVideo(context.Background(), Video{ID: "v1"})
	_ = s.Close()

	s, err = New(path, true)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetVideo("v1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected reset store to be empty, got %v", err)
	}
}
