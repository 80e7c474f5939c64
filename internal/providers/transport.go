package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/domainscout/core/internal/platform/httpx"
	"github.com/domainscout/core/internal/platform/logger"
)

// httpError carries a response's status code through errors.As so
// httpx.IsRetryableError can classify it without string matching.
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("provider http %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) HTTPStatusCode() int { return e.StatusCode }

// transport is the shared retrying HTTP client every adapter embeds. One
// instance per provider, each with its own base URL, bearer token, and
// timeout, all sourced from env (SPEC_FULL.md §9).
type transport struct {
	log        *logger.Logger
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

func newTransport(log *logger.Logger, name, baseURL, apiKey string, timeout time.Duration, maxRetries int) *transport {
	return &transport{
		log:        log.With("provider", name),
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

func (t *transport) doOnce(ctx context.Context, method, path string, headers map[string]string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// do retries transient failures with exponential backoff plus jitter,
// honoring Retry-After when the upstream sends one.
func (t *transport) do(ctx context.Context, method, path string, headers map[string]string, body any, out any) error {
	backoff := 1 * time.Second
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := t.doOnce(ctx, method, path, headers, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("%s: decode response: %w; raw=%s", t.name, uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == t.maxRetries {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 20*time.Second))
		t.log.Warn("provider request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", t.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
	return fmt.Errorf("%s: unreachable retry loop", t.name)
}
