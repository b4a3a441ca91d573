package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ytqa/internal/history"
)

type Exporter struct {
	dir string
	cwd string
}

func New(dir string) (*Exporter, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve cwd: %w", err)
	}
	return &Exporter{dir: strings.TrimSpace(dir), cwd: cwd}, nil
}

// Export writes the video's question and answer log as markdown and returns
// the file path.
func (e *Exporter) Export(video history.Video, exchanges []history.Exchange) (string, error) {
	if strings.TrimSpace(video.ID) == "" {
		return "", fmt.Errorf("export: missing video id")
	}
	path := e.outputPath(video.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	body := BuildExchangesMarkdown(exchanges)
	md := BuildVideoMarkdown(video, body, time.Now().UTC())
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

func BuildExchangesMarkdown(exchanges []history.Exchange) string {
	var b strings.Builder
	for _, ex := range exchanges {
		question := strings.TrimSpace(ex.Question)
		if question == "" {
			continue
		}
		b.WriteString("## Q: " + singleLine(question) + "\n\n")
		if ex.AskedTS > 0 {
			b.WriteString("_Asked " + history.FormatUnix(ex.AskedTS) + "_\n\n")
		}
		switch {
		case strings.TrimSpace(ex.Answer) != "":
			b.WriteString(strings.TrimSpace(ex.Answer) + "\n\n")
		case ex.Error != "":
			b.WriteString("> Failed: " + singleLine(ex.Error) + "\n\n")
		default:
			b.WriteString("> No answer.\n\n")
		}
	}
	if b.Len() == 0 {
		return "_No questions asked yet._\n"
	}
	return strings.TrimSpace(b.String()) + "\n"
}

func BuildVideoMarkdown(video history.Video, body string, now time.Time) string {
	var b strings.Builder
	title := strings.TrimSpace(video.Title)
	if title == "" {
		title = video.ID
	}
	b.WriteString("# " + singleLine(title) + "\n\n")
	b.WriteString("Exported: " + now.Format(time.RFC3339) + "\n\n")
	b.WriteString("```text\n")
	b.WriteString("video: https://www.youtube.com/watch?v=" + video.ID + "\n")
	b.WriteString("channel: " + safeValue(video.Channel) + "\n")
	b.WriteString("state: " + safeValue(video.State) + "\n")
	b.WriteString("```\n\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func (e *Exporter) outputPath(videoID string) string {
	dir := e.dir
	if dir == "" {
		dir = e.cwd
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.cwd, dir)
	}
	return filepath.Join(dir, "ytqa", safeFileName(videoID)+".md")
}

func safeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "video"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(s)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func safeValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "n/a"
	}
	return s
}
