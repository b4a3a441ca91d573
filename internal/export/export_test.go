package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ytqa/internal/history"
)

func TestBuildExchangesMarkdown(t *testing.T) {
	out := BuildExchangesMarkdown([]history.Exchange{
		{Question: "What is\n a goroutine?", Answer: "A lightweight thread."},
		{Question: "Who speaks?", Error: "Failed to get answer."},
		{Question: "   "},
	})

	if !strings.Contains(out, "## Q: What is a goroutine?\n\nA lightweight thread.") {
		t.Fatalf("expected answered exchange, got:\n%s", out)
	}
	if !strings.Contains(out, "> Failed: Failed to get answer.") {
		t.Fatalf("expected failed exchange, got:\n%s", out)
	}
	if strings.Count(out, "## Q:") != 2 {
		t.Fatalf("blank questions should be skipped, got:\n%s", out)
	}
}

func TestBuildExchangesMarkdownEmpty(t *testing.T) {
	if got := BuildExchangesMarkdown(nil); got != "_No questions asked yet._\n" {
		t.Fatalf("unexpected placeholder %q", got)
	}
}

func TestBuildVideoMarkdownFallsBackToID(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	md := BuildVideoMarkdown(history.Video{ID: "dQw4w9WgXcQ"}, "body", now)
	if !strings.HasPrefix(md, "# dQw4w9WgXcQ\n") {
		t.Fatalf("expected id as title, got:\n%s", md)
	}
	if !strings.Contains(md, "Exported: 2024-05-01T12:00:00Z") {
		t.Fatalf("missing export timestamp:\n%s", md)
	}
	if !strings.Contains(md, "channel: n/a") || !strings.HasSuffix(md, "body\n") {
		t.Fatalf("unexpected document:\n%s", md)
	}
}

func TestExportWritesUnderDir(t *testing.T) {
	dir := t.TempDir()
	e, err := New(dir)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	path, err := e.Export(
		history.Video{ID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up", Channel: "Rick Astley"},
		[]history.Exchange{{Question: "Is he giving you up?", Answer: "Never."}},
	)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if want := filepath.Join(dir, "ytqa", "dQw4w9WgXcQ.md"); path != want {
		t.Fatalf("expected %s, got %s", want, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "# Never Gonna Give You Up") || !strings.Contains(string(data), "Never.") {
		t.Fatalf("unexpected export:\n%s", data)
	}
}

func TestExportRequiresVideoID(t *testing.T) {
	e, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	if _, err := e.Export(history.Video{}, nil); err == nil {
		t.Fatalf("expected error for missing id")
	}
}
