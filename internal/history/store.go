package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("not found in history")

type Store struct {
	dbPath     string
	db         *sql.DB
	ftsEnabled bool
	mu         sync.Mutex
	now        func() time.Time
}

func New(dbPath string, reset bool) (*Store, error) {
	if reset {
		_ = os.Remove(dbPath)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	s := &Store{dbPath: dbPath, db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS videos (
			id TEXT PRIMARY KEY,
			title TEXT,
			channel TEXT,
			state TEXT,
			status TEXT,
			updated_ts INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS exchanges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			video_id TEXT,
			asked_ts INTEGER,
			question TEXT,
			answer TEXT,
			error TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_video_ts ON exchanges(video_id, asked_ts, id);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return s.ensureFTSTable()
}

func (s *Store) ensureFTSTable() error {
	var sqlDef string
	err := s.db.QueryRow(`SELECT sql FROM sqlite_master WHERE name = 'exchanges_fts'`).Scan(&sqlDef)
	if err == nil {
		lower := strings.ToLower(sqlDef)
		s.ftsEnabled = strings.Contains(lower, "virtual table") && strings.Contains(lower, "fts5")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("inspect exchanges_fts table: %w", err)
	}

	_, err = s.db.Exec(`CREATE VIRTUAL TABLE exchanges_fts USING fts5(
		video_id UNINDEXED,
		question,
		answer
	);`)
	if err == nil {
		s.ftsEnabled = true
		return nil
	}
	if !strings.Contains(strings.ToLower(err.Error()), "no such module: fts5") {
		return fmt.Errorf("create exchanges_fts: %w", err)
	}

	// sqlite built without FTS5: searches fall back to LIKE on exchanges.
	s.ftsEnabled = false
	return nil
}

// RecordVideo inserts or updates the indexing state of a video. Empty title
// and channel keep whatever was stored before.
func (s *Store) RecordVideo(ctx context.Context, v Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := v.UpdatedTS
	if ts == 0 {
		ts = s.now().Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (id, title, channel, state, status, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = COALESCE(NULLIF(excluded.title, ''), videos.title),
			channel = COALESCE(NULLIF(excluded.channel, ''), videos.channel),
			state = COALESCE(NULLIF(excluded.state, ''), videos.state),
			status = COALESCE(NULLIF(excluded.status, ''), videos.status),
			updated_ts = excluded.updated_ts
	`, v.ID, v.Title, v.Channel, v.State, v.Status, ts)
	if err != nil {
		return fmt.Errorf("record video %s: %w", v.ID, err)
	}
	return nil
}

func (s *Store) RecordExchange(ctx context.Context, e Exchange) (Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.AskedTS == 0 {
		e.AskedTS = s.now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return e, fmt.Errorf("begin exchange tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO exchanges (video_id, asked_ts, question, answer, error)
		VALUES (?, ?, ?, ?, ?)
	`, e.VideoID, e.AskedTS, e.Question, e.Answer, e.Error)
	if err != nil {
		return e, fmt.Errorf("insert exchange: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return e, fmt.Errorf("exchange id: %w", err)
	}

	if s.ftsEnabled && e.Answer != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO exchanges_fts (rowid, video_id, question, answer) VALUES (?, ?, ?, ?)
		`, e.ID, e.VideoID, e.Question, e.Answer); err != nil {
			return e, fmt.Errorf("index exchange: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return e, fmt.Errorf("commit exchange: %w", err)
	}
	return e, nil
}

func (s *Store) GetVideo(id string) (Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(videoSelect+` WHERE v.id = ? GROUP BY v.id`, id)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Video{}, fmt.Errorf("get video: %w", err)
	}
	return v, nil
}

// RecentVideos lists videos by most recent activity, indexing or asking.
func (s *Store) RecentVideos(limit int) ([]Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(videoSelect+`
		GROUP BY v.id
		ORDER BY MAX(COALESCE(v.updated_ts, 0), COALESCE(MAX(e.asked_ts), 0)) DESC, v.id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	out := make([]Video, 0, limit)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video rows: %w", err)
	}
	return out, nil
}

// Exchanges returns the most recent exchanges for a video, oldest first.
func (s *Store) Exchanges(videoID string, limit int) ([]Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, video_id, asked_ts, question, answer, error FROM (
			SELECT id, video_id, COALESCE(asked_ts, 0) AS asked_ts, COALESCE(question, '') AS question,
				COALESCE(answer, '') AS answer, COALESCE(error, '') AS error
			FROM exchanges
			WHERE video_id = ?
			ORDER BY asked_ts DESC, id DESC
			LIMIT ?
		) ORDER BY asked_ts, id
	`, videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()
	return scanExchanges(rows)
}

const videoSelect = `
	SELECT v.id, COALESCE(v.title, ''), COALESCE(v.channel, ''), COALESCE(v.state, ''), COALESCE(v.status, ''),
		COALESCE(v.updated_ts, 0), COUNT(e.id), MAX(e.asked_ts)
	FROM videos v
	LEFT JOIN exchanges e ON e.video_id = v.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(r rowScanner) (Video, error) {
	var v Video
	err := r.Scan(&v.ID, &v.Title, &v.Channel, &v.State, &v.Status, &v.UpdatedTS, &v.AskCount, &v.LastAskedTS)
	return v, err
}

func scanExchanges(rows *sql.Rows) ([]Exchange, error) {
	out := make([]Exchange, 0, 32)
	for rows.Next() {
		var e Exchange
		if err := rows.Scan(&e.ID, &e.VideoID, &e.AskedTS, &e.Question, &e.Answer, &e.Error); err != nil {
			return nil, fmt.Errorf("scan exchange row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return out, nil
}

func FormatUnix(ts int64) string {
	if ts <= 0 {
		return "n/a"
	}
	return time.Unix(ts, 0).Local().Format("2006-01-02 15:04")
}
