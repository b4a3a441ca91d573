package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"ytqa/internal/history"
)

func TestPrintHistory(t *testing.T) {
	store, err := history.New(filepath.Join(t.TempDir(), "history.sqlite"), false)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.RecordExchange(ctx, history.Exchange{VideoID: "dQw4w9WgXcQ", Question: "What is a goroutine?", Answer: "A lightweight thread."}); err != nil {
		t.Fatalf("record: %v", err)
	}

	var out bytes.Buffer
	if err := printHistory(&out, store, "goroutine"); err != nil {
		t.Fatalf("print: %v", err)
	}
	for _, want := range []string{"youtu.be/dQw4w9WgXcQ", "Q: What is a goroutine?", "A: A lightweight thread."} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := printHistory(&out, store, "channels"); err != nil {
		t.Fatalf("print: %v", err)
	}
	if !strings.Contains(out.String(), `No past answers match "channels".`) {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}
