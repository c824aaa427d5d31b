package smoke

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// client wraps http.Client with the service's base URL and admin key.
type client struct {
	http     *http.Client
	baseURL  string
	adminKey string
}

func newClient(baseURL, adminKey string, timeout time.Duration) *client {
	return &client{
		http:     &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		adminKey: adminKey,
	}
}

// do sends body as JSON and decodes a 2xx response into out.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminKey != "" {
		req.Header.Set(adminKeyHeader, c.adminKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *client) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *client) seed(ctx context.Context, count int, force bool) (SeedResult, error) {
	var out SeedResult
	body := map[string]any{"count": count, "force": force}
	return out, c.do(ctx, http.MethodPost, "/v1/admin/seed", body, &out)
}

func (c *client) embed(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(username)+"/embedding", nil, nil)
}

func (c *client) matches(ctx context.Context, username string, limit int) (MatchList, error) {
	var out MatchList
	path := "/v1/users/" + url.PathEscape(username) + "/matches?limit=" + strconv.Itoa(limit)
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}
