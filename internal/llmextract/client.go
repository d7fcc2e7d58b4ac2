package llmextract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"citelink/internal/classify"
	"citelink/internal/config"
)

const (
	defaultHTTPTimeout   = 30 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
)

// Extraction is the structured metadata the model produces for a page,
// with its self-reported confidence.
type Extraction struct {
	ItemType         string   `json:"item_type"`
	Title            string   `json:"title"`
	Authors          []string `json:"authors"`
	Date             string   `json:"date"`
	PublicationTitle string   `json:"publication_title"`
	Publisher        string   `json:"publisher"`
	DOI              string   `json:"doi"`
	Confidence       float64  `json:"confidence"`
	Raw              string   `json:"-"`
}

// Extractor is the contract the extraction stage depends on.
type Extractor interface {
	Extract(ctx context.Context, pageURL, pageText string) (*Extraction, error)
}

// Client performs metadata extraction through an OpenAI-compatible chat
// completion API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client

	retryAttempts int
	retryDelay    time.Duration
	sleeper       func(time.Duration)
}

var _ Extractor = (*Client)(nil)

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetry overrides the retry count and delay between attempts.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// New constructs a client from configuration.
func New(cfg config.LLM, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm api key required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("llm base url required")
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		apiKey:        strings.TrimSpace(cfg.APIKey),
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:         strings.TrimSpace(cfg.Model),
		httpClient:    &http.Client{Timeout: timeout},
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Extract asks the model for bibliographic metadata. Transient HTTP failures
// are retried within the call; everything else surfaces classified.
func (c *Client) Extract(ctx context.Context, pageURL, pageText string) (*Extraction, error) {
	pageText = strings.TrimSpace(pageText)
	if pageText == "" {
		return nil, classify.Wrap(classify.ErrValidation, "extract", "extract", "no page text to extract from", nil)
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: extractionPrompt},
			{Role: "user", Content: "URL: " + pageURL + "\n\n" + pageText},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	content, err := c.completeWithRetry(ctx, payload)
	if err != nil {
		return nil, err
	}

	var extraction Extraction
	if err := decodeModelJSON(content, &extraction); err != nil {
		return nil, classify.Wrap(classify.ErrParsing, "extract", "decode", "model payload", err)
	}
	extraction.Raw = content
	extraction.ItemType = strings.ToLower(strings.TrimSpace(extraction.ItemType))
	extraction.Title = strings.TrimSpace(extraction.Title)
	if extraction.Confidence < 0 {
		extraction.Confidence = 0
	}
	if extraction.Confidence > 1 {
		extraction.Confidence = 1
	}
	return &extraction, nil
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) completeWithRetry(ctx context.Context, payload chatRequest) (string, error) {
	attempts := c.retryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := c.completeOnce(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if attempt == attempts || !retryable(err) || ctx.Err() != nil {
			break
		}
		if err := c.sleep(ctx, c.retryDelay*time.Duration(attempt)); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func retryable(err error) bool {
	var statusErr *classify.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= http.StatusInternalServerError
	}
	return errors.Is(err, classify.ErrNetwork)
}

func (c *Client) completeOnce(ctx context.Context, payload chatRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classify.Wrap(classify.ErrNetwork, "extract", "complete", "chat completion", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", classify.Wrap(classify.ErrNetwork, "extract", "complete", "read completion body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &classify.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", classify.Wrap(classify.ErrParsing, "extract", "complete", "decode completion", err)
	}
	if completion.Error != nil {
		return "", classify.Wrap(classify.ErrExternalAPI, "extract", "complete", strings.TrimSpace(completion.Error.Message), nil)
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", classify.Wrap(classify.ErrExternalAPI, "extract", "complete", "empty completion content", nil)
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// decodeModelJSON tolerates the code fences and prose some models wrap
// around their JSON payloads.
func decodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimPrefix(strings.TrimSpace(trimmed), "json")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			trimmed = trimmed[start : end+1]
		}
	}
	return json.Unmarshal([]byte(trimmed), target)
}
