package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"ytqa/internal/backend"
	"ytqa/internal/config"
	"ytqa/internal/export"
	"ytqa/internal/flow"
	"ytqa/internal/history"
	"ytqa/internal/logger"
	"ytqa/internal/search"
	"ytqa/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ytqa:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogPath, cfg.Debug)
	defer func() { _ = log.Sync() }()

	store, err := history.New(cfg.DBPath, cfg.ResetHistory)
	if err != nil {
		return err
	}
	defer store.Close()

	if q := strings.TrimSpace(cfg.HistoryQuery); q != "" {
		return printHistory(os.Stdout, store, q)
	}

	start := flow.Home()
	if cfg.Video != "" {
		id, err := search.ResolveVideoID(cfg.Video)
		if err != nil {
			return err
		}
		start = flow.Process(id)
	}

	exp, err := export.New(cfg.ExportDir)
	if err != nil {
		return err
	}

	log.Info("starting",
		zap.String("backend", cfg.BackendURL),
		zap.Bool("search_enabled", cfg.YouTubeAPIKey != ""),
		zap.Stringer("route", start),
	)

	model := ui.NewModel(ui.Deps{
		Backend:  backend.New(cfg, log),
		Search:   search.New(cfg, log),
		History:  store,
		Exporter: exp,
		Logger:   log,
	}, start)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func printHistory(w io.Writer, store *history.Store, query string) error {
	matches, err := store.Search(query, 20)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		color.New(color.FgYellow).Fprintf(w, "No past answers match %q.\n", query)
		return nil
	}
	meta := color.New(color.FgHiBlack)
	question := color.New(color.FgCyan, color.Bold)
	for _, ex := range matches {
		meta.Fprintf(w, "%s  https://youtu.be/%s\n", history.FormatUnix(ex.AskedTS), ex.VideoID)
		question.Fprintf(w, "Q: %s\n", strings.Join(strings.Fields(ex.Question), " "))
		fmt.Fprintf(w, "A: %s\n\n", strings.TrimSpace(ex.Answer))
	}
	return nil
}
