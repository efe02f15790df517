// Package syncclient is an HTTP client for the grmsync pull and push
// endpoints.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single request when no http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// ErrNoBaseURL is returned by New when the server URL is empty.
var ErrNoBaseURL = errors.New("server URL not configured")

// ProblemError is a non-success response decoded from an RFC 7807 body.
type ProblemError struct {
	Status     int
	Title      string
	Detail     string
	Retryable  bool
	Rejections []Rejection
}

func (e *ProblemError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, e.Title)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

// Client talks to one grmsync server on behalf of one user.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for baseURL authenticating with a bearer token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ping checks the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeProblem(resp)
	}
	return nil
}

// Pull fetches changes since the checkpoint. A zero checkpoint requests a
// full resync.
func (c *Client) Pull(ctx context.Context, lastPulledAt int64) (*PullResponse, error) {
	path := "/api/v1/sync/pull"
	if lastPulledAt > 0 {
		path += "?lastPulledAt=" + strconv.FormatInt(lastPulledAt, 10)
	}

	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeProblem(resp)
	}

	var out PullResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode pull response: %w", err)
	}
	return &out, nil
}

// Push uploads local changes. The server applies all of them or none.
func (c *Client) Push(ctx context.Context, req PushRequest) error {
	resp, err := c.send(ctx, http.MethodPost, "/api/v1/sync/push", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return decodeProblem(resp)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// decodeProblem builds a ProblemError from a failed response. Bodies that
// are not problem documents still yield the status.
func decodeProblem(resp *http.Response) error {
	var body struct {
		Title     string      `json:"title"`
		Detail    string      `json:"detail"`
		Retryable *bool       `json:"retryable"`
		Errors    []Rejection `json:"errors"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = json.Unmarshal(data, &body)

	pe := &ProblemError{
		Status:     resp.StatusCode,
		Title:      body.Title,
		Detail:     body.Detail,
		Retryable:  resp.StatusCode >= 500,
		Rejections: body.Errors,
	}
	if body.Retryable != nil {
		pe.Retryable = *body.Retryable
	}
	return pe
}
