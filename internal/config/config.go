package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultGlamourStyle   = "dark"
	DefaultBackendURL     = "http://localhost:8000"
	DefaultSearchResults  = 12
	DefaultSearchCacheTTL = 10 * time.Minute
)

type AppConfig struct {
	BackendURL     string
	YouTubeAPIKey  string
	DBPath         string
	LogPath        string
	ExportDir      string
	Video          string
	HistoryQuery   string
	ResetHistory   bool
	Debug          bool
	SearchResults  int
	SearchCacheTTL time.Duration
}

// Parse loads .env (if present), then flags, then environment fallbacks.
func Parse() (AppConfig, error) {
	_ = godotenv.Load()
	return ParseArgs(flag.CommandLine, os.Args[1:], os.Getenv)
}

func ParseArgs(fs *flag.FlagSet, args []string, getenv func(string) string) (AppConfig, error) {
	var cfg AppConfig

	fs.StringVar(&cfg.BackendURL, "backend-url", "", "base URL of the RAG backend")
	fs.StringVar(&cfg.YouTubeAPIKey, "youtube-key", "", "YouTube Data API key used for search")
	fs.StringVar(&cfg.DBPath, "db-path", "", "path to SQLite history file")
	fs.StringVar(&cfg.LogPath, "log-path", "", "path to the log file")
	fs.StringVar(&cfg.ExportDir, "export-dir", "", "override export output directory")
	fs.StringVar(&cfg.Video, "video", "", "video id or URL to process on startup")
	fs.StringVar(&cfg.HistoryQuery, "history", "", "print past answers matching the query and exit")
	fs.BoolVar(&cfg.ResetHistory, "reset-history", false, "drop the local history database")
	fs.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")
	fs.IntVar(&cfg.SearchResults, "max-results", DefaultSearchResults, "number of search results to fetch")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.BackendURL = firstNonEmpty(cfg.BackendURL, getenv("YTQA_BACKEND_URL"), getenv("VITE_BACKEND_URL"), DefaultBackendURL)
	cfg.YouTubeAPIKey = firstNonEmpty(cfg.YouTubeAPIKey, getenv("YOUTUBE_API_KEY"), getenv("VITE_YOUTUBE_API_KEY"))
	cfg.LogPath = firstNonEmpty(cfg.LogPath, getenv("YTQA_LOG_PATH"))
	if !cfg.Debug {
		cfg.Debug = isTruthy(getenv("YTQA_DEBUG"))
	}
	if cfg.SearchResults <= 0 || cfg.SearchResults > 50 {
		cfg.SearchResults = DefaultSearchResults
	}
	cfg.SearchCacheTTL = DefaultSearchCacheTTL

	var err error
	cfg.BackendURL, err = NormalizeBackendURL(cfg.BackendURL)
	if err != nil {
		return cfg, err
	}

	if cfg.DBPath == "" || cfg.LogPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("resolve home directory: %w", err)
		}
		if cfg.DBPath == "" {
			cfg.DBPath = filepath.Join(home, ".local", "share", "ytqa", "history.sqlite")
		}
		if cfg.LogPath == "" {
			cfg.LogPath = filepath.Join(home, ".local", "state", "ytqa", "ytqa.log")
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return cfg, fmt.Errorf("create db dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return cfg, fmt.Errorf("create log dir: %w", err)
	}

	return cfg, nil
}

// NormalizeBackendURL requires an absolute http(s) URL and strips trailing slashes
// so endpoint paths can be appended directly.
func NormalizeBackendURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("backend url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("backend url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("backend url %q: missing host", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
