// ABOUTME: REST client for the ProfileStore service
// ABOUTME: Speaks the /users contract and returns tagged lookup results

package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the ProfileStore REST service. Timeouts are owned by the
// injected http.Client (or the request context); this layer adds none.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a ProfileStore client for the given base URL. A nil
// httpClient selects a default with a conservative timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  slog.Default().With("component", "profile-client"),
	}
}

// Create registers a new profile record. A duplicate is reported by the
// service as 409 and treated as success, so registration retries are safe.
func (c *Client) Create(ctx context.Context, p Profile) error {
	resp, err := c.do(ctx, http.MethodPost, "/users", p)
	if err != nil {
		return err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		c.logger.Debug("profile already exists, create treated as success")
		return nil
	default:
		return fmt.Errorf("%w: create returned %d", ErrUnavailable, resp.StatusCode)
	}
}

// Get fetches a profile by email. A missing profile is a Found=false lookup,
// not an error.
func (c *Client) Get(ctx context.Context, email string) (Lookup, error) {
	resp, err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(email), nil)
	if err != nil {
		return Lookup{}, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		var p Profile
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return Lookup{}, fmt.Errorf("%w: decoding profile: %v", ErrUnavailable, err)
		}
		return Lookup{Found: true, Profile: p}, nil
	case http.StatusNotFound:
		return Lookup{Found: false}, nil
	default:
		return Lookup{}, fmt.Errorf("%w: get returned %d", ErrUnavailable, resp.StatusCode)
	}
}

// Update applies a partial update: every named field of p is overwritten as a
// whole, which is what makes whole-save retries idempotent.
func (c *Client) Update(ctx context.Context, email string, p Profile) error {
	resp, err := c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(email), p)
	if err != nil {
		return err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: update returned %d", ErrUnavailable, resp.StatusCode)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
