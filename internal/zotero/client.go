package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"citelink/internal/classify"
	"citelink/internal/config"
)

// API defines the reference-library operations the pipeline depends on.
type API interface {
	ResolveIdentifier(ctx context.Context, identifier string) (*Item, error)
	ResolveURL(ctx context.Context, rawURL string) (*Item, error)
	CreateItem(ctx context.Context, item *Item) (*Item, error)
	GetItem(ctx context.Context, key string) (*Item, error)
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, key string, version int) error
}

// Client talks to a Zotero-compatible web API.
type Client struct {
	baseURL    string
	apiKey     string
	libraryID  string
	httpClient *http.Client
}

var _ API = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a client from configuration.
func New(cfg config.Zotero, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("zotero base url required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("zotero api key required")
	}
	if strings.TrimSpace(cfg.LibraryID) == "" {
		return nil, errors.New("zotero library id required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		libraryID:  cfg.LibraryID,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *Client) libraryPath(parts ...string) string {
	return c.baseURL + "/users/" + c.libraryID + "/" + strings.Join(parts, "/")
}

// ResolveIdentifier asks the API to translate a DOI, arXiv id, PMID, or ISBN
// into a full item. A nil item with nil error never happens; an unresolvable
// identifier surfaces as a 404 StatusError.
func (c *Client) ResolveIdentifier(ctx context.Context, identifier string) (*Item, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, errors.New("identifier must not be empty")
	}
	body, err := json.Marshal(map[string]string{"identifier": identifier})
	if err != nil {
		return nil, fmt.Errorf("encode resolve request: %w", err)
	}
	var item Item
	if err := c.do(ctx, http.MethodPost, c.libraryPath("resolve"), body, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ResolveURL attempts a direct-URL lookup against the library's translation
// endpoint.
func (c *Client) ResolveURL(ctx context.Context, rawURL string) (*Item, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("url must not be empty")
	}
	if _, err := url.Parse(rawURL); err != nil {
		return nil, classify.Wrap(classify.ErrValidation, "lookup", "resolve_url", "malformed url", err)
	}
	body, err := json.Marshal(map[string]string{"url": rawURL})
	if err != nil {
		return nil, fmt.Errorf("encode resolve request: %w", err)
	}
	var item Item
	if err := c.do(ctx, http.MethodPost, c.libraryPath("resolve"), body, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem stores a new item and returns it with its assigned key.
func (c *Client) CreateItem(ctx context.Context, item *Item) (*Item, error) {
	if item == nil {
		return nil, errors.New("item must not be nil")
	}
	body, err := json.Marshal([]*Item{item})
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	var created struct {
		Successful map[string]Item `json:"successful"`
	}
	if err := c.do(ctx, http.MethodPost, c.libraryPath("items"), body, nil, &created); err != nil {
		return nil, err
	}
	for _, it := range created.Successful {
		out := it
		return &out, nil
	}
	return nil, classify.Wrap(classify.ErrExternalAPI, "lookup", "create_item", "api accepted request but returned no item", nil)
}

// GetItem fetches a single item by key.
func (c *Client) GetItem(ctx context.Context, key string) (*Item, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("item key must not be empty")
	}
	var payload struct {
		Key     string `json:"key"`
		Version int    `json:"version"`
		Data    Item   `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, c.libraryPath("items", key), nil, nil, &payload); err != nil {
		return nil, err
	}
	item := payload.Data
	item.Key = payload.Key
	item.Version = payload.Version
	return &item, nil
}

// UpdateItem writes changed fields back. The item's version guards against
// concurrent edits; a stale version surfaces as a 412 StatusError.
func (c *Client) UpdateItem(ctx context.Context, item *Item) error {
	if item == nil || strings.TrimSpace(item.Key) == "" {
		return errors.New("item with key required")
	}
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	headers := map[string]string{"If-Unmodified-Since-Version": strconv.Itoa(item.Version)}
	return c.do(ctx, http.MethodPut, c.libraryPath("items", item.Key), body, headers, nil)
}

// DeleteItem removes an item. Callers are responsible for the ownership and
// link-count guards; this is the raw operation.
func (c *Client) DeleteItem(ctx context.Context, key string, version int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("item key must not be empty")
	}
	headers := map[string]string{"If-Unmodified-Since-Version": strconv.Itoa(version)}
	return c.do(ctx, http.MethodDelete, c.libraryPath("items", key), nil, headers, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Zotero-API-Key", c.apiKey)
	req.Header.Set("Zotero-API-Version", "3")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify.Wrap(classify.ErrNetwork, "", "zotero_request", method+" "+endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &classify.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return classify.Wrap(classify.ErrParsing, "", "zotero_response", "decode "+endpoint, err)
	}
	return nil
}
