package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"zeen-connect/internal/config"
	"zeen-connect/internal/infra/metrics"
)

// httpClient posts form-encoded requests with bounded retries. Connection
// failures and throttling/server statuses are retried with exponential
// backoff; any other non-2xx status is terminal.
type httpClient struct {
	c          *http.Client
	maxRetries int
	base       time.Duration
}

func newHTTPClient(cfg *config.GatewaysConfig) *httpClient {
	return &httpClient{
		c:          &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		base:       time.Duration(cfg.RetryBaseMs) * time.Millisecond,
	}
}

var retryStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

func (h *httpClient) postForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			delay := h.base << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		started := time.Now()
		resp, err := h.c.Do(req)
		latency := int(time.Since(started).Milliseconds())
		if err != nil {
			metrics.ObserveGatewayCall(endpoint(rawURL), latency, false)
			lastErr = err
			continue
		}
		metrics.ObserveGatewayCall(endpoint(rawURL), latency, resp.StatusCode < 400)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if retryStatus[resp.StatusCode] {
			lastErr = fmt.Errorf("gateway returned status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
		}
		return body, nil
	}
	return nil, fmt.Errorf("gateway unreachable after %d attempts: %w", h.maxRetries+1, lastErr)
}

// endpoint reduces a request URL to its last path segment for metric labels.
func endpoint(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return parts[len(parts)-1]
}
