package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFakeLookupReturnsOnlyKnownPrices(t *testing.T) {
	f := &FakeLookup{Prices: map[string]int64{"acme.com": 1200}}
	quotes := f.Bulk(context.Background(), []string{"acme.com", "unknown.io"})
	if len(quotes) != 1 {
		t.Fatalf("expected exactly 1 quote, got %d", len(quotes))
	}
	q, ok := quotes["acme.com"]
	if !ok || q.PriceCents == nil || *q.PriceCents != 1200 {
		t.Fatalf("unexpected quote for acme.com: %+v", q)
	}
	if _, ok := quotes["unknown.io"]; ok {
		t.Fatalf("missing entries must never be invented, found one for unknown.io")
	}
}

func TestHTTPLookupBulk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req bulkRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := bulkResponse{}
		for _, d := range req.Domains {
			if d == "acme.com" {
				price := int64(999)
				resp.Quotes = append(resp.Quotes, bulkResponseEntry{Domain: d, PriceCents: &price})
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	lookup := NewHTTPLookup(srv.URL, time.Second)
	quotes := lookup.Bulk(context.Background(), []string{"acme.com", "nope.io"})
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote back, got %d", len(quotes))
	}
	if quotes["acme.com"].PriceCents == nil || *quotes["acme.com"].PriceCents != 999 {
		t.Fatalf("unexpected quote: %+v", quotes["acme.com"])
	}
}

func TestHTTPLookupServerErrorReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	lookup := NewHTTPLookup(srv.URL, time.Second)
	quotes := lookup.Bulk(context.Background(), []string{"acme.com"})
	if len(quotes) != 0 {
		t.Fatalf("a pricing failure must never invalidate availability results by inventing a quote, got %v", quotes)
	}
}

func TestHTTPLookupEmptyInput(t *testing.T) {
	lookup := NewHTTPLookup("http://example.invalid", time.Second)
	quotes := lookup.Bulk(context.Background(), nil)
	if len(quotes) != 0 {
		t.Fatalf("expected no quotes for empty input, got %v", quotes)
	}
}
