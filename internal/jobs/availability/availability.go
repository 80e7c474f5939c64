// Package availability implements C5's registry-lookup half: checking
// whether a domain is available, registered, or unknown.
package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/domainscout/core/internal/domain"
)

const (
	workers      = 5
	slotInterval = 500 * time.Millisecond
)

// Record is the outcome of one availability check.
type Record struct {
	Domain     string
	Status     domain.AvailabilityStatus
	Registrar  string
	Expiration *time.Time
}

// Checker is the C5-lookup contract. Errors and timeouts must never produce
// status=available (spec.md §4.5).
type Checker interface {
	Check(ctx context.Context, d string) Record
}

// CheckAll runs Checker.Check over every domain with a worker pool of 5,
// paced at one dispatch per slotInterval across the whole pool (spec.md §5).
func CheckAll(ctx context.Context, checker Checker, domains []string) []Record {
	if len(domains) == 0 {
		return nil
	}

	limiter := rate.NewLimiter(rate.Every(slotInterval), 1)
	results := make([]Record, len(domains))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, d := range domains {
		i, d := i, d
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				results[i] = Record{Domain: d, Status: domain.AvailabilityUnknown}
				return nil
			}
			results[i] = checker.Check(gctx, d)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// httpChecker is the real RDAP-style implementation, a thin unauthenticated
// HTTP client that makes a single attempt per lookup (unlike the provider
// transport, which retries with backoff) — a timeout here degrades to
// unknown rather than retrying, since a slow registry lookup should not
// stall the batch.
type httpChecker struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPChecker(baseURL string, timeout time.Duration) Checker {
	return &httpChecker{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type lookupResponse struct {
	Status     string     `json:"status"`
	Registrar  string     `json:"registrar"`
	Expiration *time.Time `json:"expiration"`
}

func (c *httpChecker) Check(ctx context.Context, d string) Record {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/domains/%s", c.baseURL, d), nil)
	if err != nil {
		return Record{Domain: d, Status: domain.AvailabilityUnknown}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Record{Domain: d, Status: domain.AvailabilityUnknown}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Record{Domain: d, Status: domain.AvailabilityAvailable}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Record{Domain: d, Status: domain.AvailabilityUnknown}
	}

	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Record{Domain: d, Status: domain.AvailabilityUnknown}
	}

	status := domain.AvailabilityUnknown
	switch strings.ToLower(strings.TrimSpace(out.Status)) {
	case "available":
		status = domain.AvailabilityAvailable
	case "registered", "taken":
		status = domain.AvailabilityRegistered
	}
	return Record{Domain: d, Status: status, Registrar: out.Registrar, Expiration: out.Expiration}
}

// FakeChecker is an in-memory stand-in for tests: every domain not present
// in Available resolves to Registered, never to an error that would leak
// into Available.
type FakeChecker struct {
	Available map[string]bool
}

func (f *FakeChecker) Check(_ context.Context, d string) Record {
	if f.Available != nil && f.Available[strings.ToLower(d)] {
		return Record{Domain: d, Status: domain.AvailabilityAvailable}
	}
	return Record{Domain: d, Status: domain.AvailabilityRegistered}
}
