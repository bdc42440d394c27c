package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/utils"
)

const maxBodyBytes = 1 << 20

// Client performs authenticated JSON GETs against one provider family.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client retrying transient failures with exponential backoff.
func NewClient(baseURL string, cfg ClientConfig) *Client {
	rclient := &retryablehttp.Client{
		HTTPClient:   &http.Client{Timeout: cfg.Timeout},
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
		RetryMax:     cfg.RetryMax,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rclient.StandardClient(),
	}
}

// GetJSON fetches path with the bearer token and decodes the body into out.
// 404 maps to domain.ErrNotFound; any other failure to domain.ErrProviderUnavailable.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, token string, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("GET %s: %w: %w", path, domain.ErrProviderUnavailable, err)
	}
	defer utils.Close(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", path, domain.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("GET %s: status %d: %w", path, resp.StatusCode, domain.ErrProviderUnavailable)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w: %w", path, domain.ErrProviderUnavailable, err)
	}
	return nil
}
