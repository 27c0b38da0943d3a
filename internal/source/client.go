// Package source implements the BI provider API client: per-type catalog
// listing, detail fetch, and permission/tag enrichment. All calls pass
// through a client-side token bucket so the exporter never exceeds the
// provider's sustained rate, and provider failures are classified into the
// domain error taxonomy so callers can branch on retryability.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"bi-atlas/internal/config"
	"bi-atlas/internal/domain"
)

// Client talks to the provider's administrative REST API.
type Client struct {
	http      *http.Client
	baseURL   string
	accountID string
	token     string
	limiter   *rate.Limiter
}

var _ domain.AssetSource = (*Client)(nil)

// New creates a provider client from configuration.
func New(cfg *config.SourceConfig) *Client {
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		accountID: cfg.AccountID,
		token:     cfg.APIToken,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
	}
}

// typePath maps an asset type to its API path segment.
func typePath(t domain.AssetType) string {
	switch t {
	case domain.AssetTypeDashboard:
		return "dashboards"
	case domain.AssetTypeAnalysis:
		return "analyses"
	case domain.AssetTypeDataset:
		return "datasets"
	case domain.AssetTypeDatasource:
		return "datasources"
	}
	return string(t)
}

// get performs one rate-limited GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(resp.StatusCode, path, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// classifyStatus maps a provider HTTP status to the domain error taxonomy.
// Throttling and temporary unavailability are the retryable classes.
func classifyStatus(status int, path, body string) error {
	switch status {
	case http.StatusTooManyRequests:
		return domain.ErrThrottling("provider throttled %s: %s", path, body)
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return domain.ErrServiceUnavailable("provider unavailable for %s (HTTP %d): %s", path, status, body)
	case http.StatusNotFound:
		return domain.ErrNotFound("provider resource %s not found", path)
	case http.StatusForbidden, http.StatusUnauthorized:
		return domain.ErrAccessDenied("access denied for %s: %s", path, body)
	default:
		return fmt.Errorf("provider error for %s: HTTP %d: %s", path, status, body)
	}
}

func (c *Client) accountPath(parts ...string) string {
	return "/accounts/" + c.accountID + "/" + strings.Join(parts, "/")
}

// pageQuery builds the listing query parameters.
func pageQuery(nextToken string, pageSize int) url.Values {
	q := url.Values{}
	q.Set("max-results", strconv.Itoa(pageSize))
	if nextToken != "" {
		q.Set("next-token", nextToken)
	}
	return q
}
