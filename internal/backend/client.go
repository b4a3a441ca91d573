package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ytqa/internal/config"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	indexPath = "/api/index/"
	askPath   = "/api/ask/"

	maxBodyBytes = 4 << 20
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	flight  singleflight.Group
}

type IndexResult struct {
	Message string
}

type Answer struct {
	Question string
	Text     string
}

type failureBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// New builds a client for the RAG backend. The HTTP client carries no timeout:
// calls end when the backend answers, the transport fails, or ctx is canceled.
func New(cfg config.AppConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BackendURL, "/"),
		http:    &http.Client{},
		logger:  logger.Named("backend"),
	}
}

// IndexVideo asks the backend to ingest a video's transcript. Concurrent calls
// for the same id share a single request. Canceling ctx only abandons this
// caller's wait; the shared request keeps running for the others.
func (c *Client) IndexVideo(ctx context.Context, videoID string) (IndexResult, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(videoID, func() (any, error) {
		var out struct {
			Message string `json:"message"`
		}
		err := c.post(shared, indexPath, map[string]string{"video_id": videoID}, &out)
		return IndexResult{Message: out.Message}, err
	})

	select {
	case <-ctx.Done():
		return IndexResult{}, &Error{Kind: KindNetwork, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return IndexResult{}, res.Err
		}
		return res.Val.(IndexResult), nil
	}
}

func (c *Client) Ask(ctx context.Context, videoID, question string) (Answer, error) {
	var out struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	body := map[string]string{"question": question, "video_id": videoID}
	if err := c.post(ctx, askPath, body, &out); err != nil {
		return Answer{}, err
	}
	if out.Question == "" {
		out.Question = question
	}
	return Answer{Question: out.Question, Text: out.Answer}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("backend unreachable", zap.String("path", path), zap.Error(err))
		}
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Error{Kind: KindNetwork, Status: resp.StatusCode, Err: fmt.Errorf("read %s response: %w", path, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var fb failureBody
		// Non-JSON failure bodies leave Message empty on purpose.
		_ = json.Unmarshal(body, &fb)
		e := &Error{
			Kind:    classify(fb.Code, fb.Error),
			Status:  resp.StatusCode,
			Code:    fb.Code,
			Message: strings.TrimSpace(fb.Error),
		}
		c.logger.Info("backend rejected request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Stringer("kind", e.Kind),
			zap.String("error", e.Message),
		)
		return e
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindUnknown, Status: resp.StatusCode, Err: fmt.Errorf("decode %s response: %w", path, err)}
	}
	return nil
}
