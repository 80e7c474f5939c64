// Package pricing implements C5's registrar-pricing half: a single bulk
// quote call for every domain that resolved to available.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Quote is one registrar price quote. Category is filled in by the caller
// from config.PricingConfig, not by this package.
type Quote struct {
	PriceCents   *int64
	RenewalCents *int64
}

// Lookup is the C5-pricing contract: missing entries are permitted and must
// never invalidate an availability result (spec.md §4.5).
type Lookup interface {
	Bulk(ctx context.Context, domains []string) map[string]Quote
}

type httpLookup struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPLookup(baseURL string, timeout time.Duration) Lookup {
	return &httpLookup{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type bulkRequest struct {
	Domains []string `json:"domains"`
}

type bulkResponseEntry struct {
	Domain       string `json:"domain"`
	PriceCents   *int64 `json:"price_cents"`
	RenewalCents *int64 `json:"renewal_cents"`
}

type bulkResponse struct {
	Quotes []bulkResponseEntry `json:"quotes"`
}

func (l *httpLookup) Bulk(ctx context.Context, domains []string) map[string]Quote {
	out := map[string]Quote{}
	if len(domains) == 0 {
		return out
	}

	body, err := json.Marshal(bulkRequest{Domains: domains})
	if err != nil {
		return out
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/v1/pricing/bulk", l.baseURL), strings.NewReader(string(body)))
	if err != nil {
		return out
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return out
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out
	}

	var parsed bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return out
	}
	for _, q := range parsed.Quotes {
		out[strings.ToLower(q.Domain)] = Quote{PriceCents: q.PriceCents, RenewalCents: q.RenewalCents}
	}
	return out
}

// FakeLookup is an in-memory stand-in for tests.
type FakeLookup struct {
	Prices map[string]int64
}

func (f *FakeLookup) Bulk(_ context.Context, domains []string) map[string]Quote {
	out := map[string]Quote{}
	for _, d := range domains {
		d = strings.ToLower(d)
		if price, ok := f.Prices[d]; ok {
			p := price
			out[d] = Quote{PriceCents: &p}
		}
	}
	return out
}
