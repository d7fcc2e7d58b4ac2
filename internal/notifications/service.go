package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"citelink/internal/config"
)

const userAgent = "Citelink/0.1.0"

// Service defines the notification surface exposed to the pipeline and
// batch layers. Implementations must be safe for concurrent use.
type Service interface {
	NotifySelectionNeeded(ctx context.Context, url string) error
	NotifyMetadataReview(ctx context.Context, url, title string) error
	NotifyExhausted(ctx context.Context, url, category string) error
	NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		suggestions: cfg.Notifications.Suggestions,
		batches:     cfg.Notifications.Batches,
		errors:      cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	suggestions bool
	batches     bool
	errors      bool
}

func (n *ntfyService) NotifySelectionNeeded(ctx context.Context, url string) error {
	if !n.suggestions {
		return nil
	}
	data := payload{
		title:   "Citelink - Selection Needed",
		message: fmt.Sprintf("Identifier candidates found for %s, pick one to continue", strings.TrimSpace(url)),
		tags:    []string{"citelink", "selection", "review"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMetadataReview(ctx context.Context, url, title string) error {
	if !n.suggestions {
		return nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "(untitled)"
	}
	data := payload{
		title:   "Citelink - Metadata Review",
		message: fmt.Sprintf("Extracted %q from %s, approval needed", title, strings.TrimSpace(url)),
		tags:    []string{"citelink", "metadata", "review"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyExhausted(ctx context.Context, url, category string) error {
	if !n.suggestions {
		return nil
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = "unknown"
	}
	data := payload{
		title:   "Citelink - Manual Action Needed",
		message: fmt.Sprintf("All stages failed for %s (last error: %s)", strings.TrimSpace(url), category),
		tags:    []string{"citelink", "exhausted", "review"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error {
	if !n.batches {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "Citelink - Batch Complete"
		message = fmt.Sprintf("Batch complete: %d resolved in %s", succeeded, duration)
	} else {
		title = "Citelink - Batch Complete (with failures)"
		message = fmt.Sprintf("Batch complete: %d resolved, %d failed in %s", succeeded, failed, duration)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"citelink", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Citelink - Error",
		message:  builder.String(),
		tags:     []string{"citelink", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Citelink - Test",
		message:  "Notification system test",
		tags:     []string{"citelink", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

type noopService struct{}

func (noopService) NotifySelectionNeeded(context.Context, string) error { return nil }

func (noopService) NotifyMetadataReview(context.Context, string, string) error { return nil }

func (noopService) NotifyExhausted(context.Context, string, string) error { return nil }

func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error { return nil }

func (noopService) NotifyError(context.Context, error, string) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
