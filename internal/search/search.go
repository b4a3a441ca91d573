package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ytqa/internal/config"

	"github.com/kkdai/youtube/v2"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const defaultEndpoint = "https://www.googleapis.com/youtube/v3/search"

var (
	ErrMissingAPIKey  = errors.New("youtube api key is not configured")
	ErrInvalidVideoID = errors.New("not a youtube video id or url")
)

type Video struct {
	ID           string
	Title        string
	ChannelTitle string
	ThumbnailURL string
}

type Client struct {
	apiKey     string
	endpoint   string
	maxResults int
	http       *http.Client
	yt         *youtube.Client
	cache      *cache.Cache
	logger     *zap.Logger
}

func New(cfg config.AppConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.SearchCacheTTL
	if ttl <= 0 {
		ttl = config.DefaultSearchCacheTTL
	}
	maxResults := cfg.SearchResults
	if maxResults <= 0 {
		maxResults = config.DefaultSearchResults
	}
	hc := &http.Client{Timeout: 15 * time.Second}
	return &Client{
		apiKey:     strings.TrimSpace(cfg.YouTubeAPIKey),
		endpoint:   defaultEndpoint,
		maxResults: maxResults,
		http:       hc,
		yt:         &youtube.Client{HTTPClient: hc},
		cache:      cache.New(ttl, 2*ttl),
		logger:     logger.Named("search"),
	}
}

// WithEndpoint points the client at another search API root, mostly for tests.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

type thumbnail struct {
	URL string `json:"url"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string               `json:"title"`
			ChannelTitle string               `json:"channelTitle"`
			Thumbnails   map[string]thumbnail `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search returns videos matching a free-text query. Results are cached per
// normalized query.
func (c *Client) Search(ctx context.Context, query string) ([]Video, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	key := "q:" + strings.ToLower(strings.Join(strings.Fields(query), " "))
	if cached, ok := c.cache.Get(key); ok {
		return cached.([]Video), nil
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(c.maxResults))
	params.Set("type", "video")
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("youtube search failed", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	var parsed searchResponse
	decodeErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		c.logger.Error("youtube search rejected",
			zap.String("query", query),
			zap.Int("status", resp.StatusCode),
			zap.String("error", msg),
		)
		return nil, fmt.Errorf("youtube search: status %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode search response: %w", decodeErr)
	}

	videos := make([]Video, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, Video{
			ID:           item.ID.VideoID,
			Title:        item.Snippet.Title,
			ChannelTitle: item.Snippet.ChannelTitle,
			ThumbnailURL: pickThumbnail(item.Snippet.Thumbnails),
		})
	}
	c.cache.SetDefault(key, videos)
	c.logger.Debug("youtube search", zap.String("query", query), zap.Int("results", len(videos)))
	return videos, nil
}

func pickThumbnail(thumbs map[string]thumbnail) string {
	for _, size := range []string{"medium", "high", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

// Lookup fetches title and channel for a video that did not come from a
// search, e.g. one passed on the command line.
func (c *Client) Lookup(ctx context.Context, videoID string) (Video, error) {
	if cached, ok := c.cache.Get("video:" + videoID); ok {
		return cached.(Video), nil
	}
	v, err := c.yt.GetVideoContext(ctx, videoID)
	if err != nil {
		c.logger.Warn("video lookup failed", zap.String("video_id", videoID), zap.Error(err))
		return Video{ID: videoID}, fmt.Errorf("lookup video %s: %w", videoID, err)
	}
	out := Video{ID: videoID, Title: v.Title, ChannelTitle: v.Author}
	if n := len(v.Thumbnails); n > 0 {
		out.ThumbnailURL = v.Thumbnails[n-1].URL
	}
	c.cache.SetDefault("video:"+videoID, out)
	return out, nil
}

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// LooksLikeVideo reports whether free-text input names a video directly
// rather than being a search query.
func LooksLikeVideo(input string) bool {
	input = strings.TrimSpace(input)
	return strings.Contains(input, "youtu") || videoIDRe.MatchString(input)
}

// ResolveVideoID accepts a bare id or any watch/share/embed URL.
func ResolveVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrInvalidVideoID
	}
	id, err := youtube.ExtractVideoID(input)
	if err != nil || !videoIDRe.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVideoID, input)
	}
	return id, nil
}
