// Package rasa is a client for the Rasa REST channel and server API.
package rasa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	webhookPath = "/webhooks/rest/webhook"
	versionPath = "/version"

	// UnknownVersion is reported when the server does not include a version.
	UnknownVersion = "unknown"
)

// Message is one user utterance sent to the REST channel.
type Message struct {
	Message string `json:"message"`
	Sender  string `json:"sender,omitempty"`
}

// Reply is one bot message returned by the REST channel.
type Reply struct {
	RecipientID string           `json:"recipient_id,omitempty"`
	Text        string           `json:"text,omitempty"`
	Image       string           `json:"image,omitempty"`
	Buttons     []map[string]any `json:"buttons,omitempty"`
	Custom      any              `json:"custom,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

// Client talks to a single Rasa server. It is safe for concurrent use and
// may be reconfigured while in use.
type Client struct {
	httpClient *http.Client

	mu      sync.RWMutex
	baseURL string
	timeout time.Duration
}

// NewClient creates a client for baseURL. timeout bounds every call that
// has no earlier context deadline; zero means no client-side bound.
func NewClient(baseURL string, timeout time.Duration) *Client {
	c := &Client{httpClient: &http.Client{}}
	c.Configure(baseURL, timeout)
	return c
}

// Configure replaces the base URL and default timeout.
func (c *Client) Configure(baseURL string, timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.baseURL = strings.TrimRight(baseURL, "/")
	c.timeout = timeout
}

// BaseURL returns the current server address.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.baseURL
}

func (c *Client) settings() (string, time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.baseURL, c.timeout
}

// SendMessage posts msg to the REST channel and returns the bot replies.
// An empty slice means the bot had nothing to say. A JSON null body yields
// a nil slice with no error.
func (c *Client) SendMessage(ctx context.Context, msg Message) ([]Reply, error) {
	const op = "send message"

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Op: op, Err: err}
	}

	var replies []Reply
	if err := c.do(ctx, op, http.MethodPost, webhookPath, body, &replies); err != nil {
		return nil, err
	}
	return replies, nil
}

// Version returns the server version, or UnknownVersion when the server
// answers without one.
func (c *Client) Version(ctx context.Context) (string, error) {
	var info struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, "version", http.MethodGet, versionPath, nil, &info); err != nil {
		return "", err
	}
	if info.Version == "" {
		return UnknownVersion, nil
	}
	return info.Version, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, out any) error {
	baseURL, timeout := c.settings()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindUnreachable, Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &Error{Kind: KindStatus, Op: op, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(op, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindDecode, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	return nil
}
