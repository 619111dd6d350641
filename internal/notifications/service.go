// Package notifications delivers user-facing reprocessing outcomes.
package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const userAgent = "songshelf/0.1"

// Completion describes a reprocessing job that reached a terminal status.
type Completion struct {
	BookID         string
	Title          string
	Status         string
	SongsExtracted int
	Elapsed        time.Duration
}

// Message renders the completion as a single human-readable line.
func (c Completion) Message() string {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		title = c.BookID
	}
	elapsed := c.Elapsed.Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	return fmt.Sprintf("%s: %s, %d songs extracted in %s", title, c.Status, c.SongsExtracted, elapsed)
}

// Notifier is told about every terminal job outcome.
type Notifier interface {
	NotifyJobFinished(ctx context.Context, c Completion) error
}

// Config selects the notification backend.
type Config struct {
	NtfyTopic      string
	RequestTimeout time.Duration
}

// New builds an ntfy notifier when a topic is configured, and a log-only
// notifier otherwise.
func New(cfg Config, logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return LogNotifier{Logger: logger}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NtfyNotifier{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// LogNotifier writes completions to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) NotifyJobFinished(_ context.Context, c Completion) error {
	n.Logger.Info("reprocessing finished",
		"book_id", c.BookID,
		"title", c.Title,
		"status", c.Status,
		"songs_extracted", c.SongsExtracted,
		"elapsed", c.Elapsed.Round(time.Millisecond).String(),
	)
	return nil
}

// NtfyNotifier posts completions to an ntfy topic URL.
type NtfyNotifier struct {
	endpoint string
	client   *http.Client
}

func (n *NtfyNotifier) NotifyJobFinished(ctx context.Context, c Completion) error {
	title := "Songshelf - Reprocessing Complete"
	tags := []string{"songshelf", "reprocess", c.Status}
	priority := ""
	if c.Status != "completed" {
		title = "Songshelf - Reprocessing Failed"
		priority = "high"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(c.Message()))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", title)
	req.Header.Set("Tags", strings.Join(tags, ","))
	if priority != "" {
		req.Header.Set("Priority", priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
