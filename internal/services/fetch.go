package services

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"carflex-purchase-api/pkg/logging"
)

const (
	maxFetchRetries = 3
	backoffBase     = 1 * time.Second
	backoffCeiling  = 10 * time.Second
)

// Fetcher wraps a single outbound HTTP call with bounded retry for transient
// upstream failures: 1 initial attempt plus up to 3 retries, exponential
// backoff capped at 10 seconds.
type Fetcher struct {
	httpClient *http.Client
	sleep      func(time.Duration)
}

// NewFetcher creates a fetcher with a 30 second per-request timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		sleep: time.Sleep,
	}
}

// backoffDelay returns the wait before retry n (1-based): 1s, 2s, 4s, capped
// at the ceiling.
func backoffDelay(retry int) time.Duration {
	delay := backoffBase << (retry - 1)
	if delay > backoffCeiling {
		delay = backoffCeiling
	}
	return delay
}

// Fetch performs the request, retrying transient failures. The returned
// response always has a readable body; on exhaustion the last response (or
// transport error) is returned as-is.
func (f *Fetcher) Fetch(ctx context.Context, method, url string, header http.Header, body []byte) (*http.Response, error) {
	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= maxFetchRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			logging.Warnf("Retrying %s %s (attempt %d/%d) after %s", method, url, attempt+1, maxFetchRetries+1, delay)
			f.sleep(delay)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for key, values := range header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}

		resp, err := f.httpClient.Do(req)
		if err != nil {
			// Network-level failures are always worth a retry.
			lastResp, lastErr = nil, err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			respBody = nil
		}
		resp.Body = io.NopCloser(bytes.NewReader(respBody))
		lastResp, lastErr = resp, nil

		if !isRetryableResponse(resp.StatusCode, respBody) {
			return resp, nil
		}
	}

	return lastResp, lastErr
}

// isRetryableResponse reports whether a non-2xx response looks transient.
func isRetryableResponse(statusCode int, body []byte) bool {
	if statusCode >= 500 || statusCode == http.StatusTooManyRequests {
		return true
	}
	lower := strings.ToLower(string(body))
	for _, marker := range []string{"timeout", "network", "temporarily unavailable"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
