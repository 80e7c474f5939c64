package generator

import (
	"context"
	"testing"

	"github.com/domainscout/core/internal/providers"
)

type fakeProvider struct {
	name          string
	supportsTools bool

	toolArgs    map[string]any
	text        string
	generateErr error
}

func (f *fakeProvider) Name() string        { return f.name }
func (f *fakeProvider) SupportsTools() bool  { return f.supportsTools }
func (f *fakeProvider) Generate(_ context.Context, _ providers.GenerateRequest) (providers.GenerateResult, error) {
	if f.generateErr != nil {
		return providers.GenerateResult{}, f.generateErr
	}
	return providers.GenerateResult{Text: f.text, InputTokens: 10, OutputTokens: 20}, nil
}
func (f *fakeProvider) GenerateWithTools(_ context.Context, _ providers.GenerateRequest, _ providers.ToolSpec) (providers.GenerateResult, error) {
	return providers.GenerateResult{ToolArgs: f.toolArgs, InputTokens: 5, OutputTokens: 7}, nil
}

func TestGenerateUsesToolPathWhenSupported(t *testing.T) {
	p := &fakeProvider{
		supportsTools: true,
		toolArgs:      map[string]any{"domains": []any{"acme.com", "ACME.COM", "bad domain", "x.c"}},
	}
	g := New(p)

	result, err := g.Generate(context.Background(), Context{BusinessName: "Acme"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Domains) != 1 || result.Domains[0] != "acme.com" {
		t.Fatalf("expected deduped/validated [acme.com], got %v", result.Domains)
	}
	if result.InputTokens != 5 || result.OutputTokens != 7 {
		t.Fatalf("expected tool-path token usage, got %d/%d", result.InputTokens, result.OutputTokens)
	}
}

func TestGenerateFallsBackToJSONReply(t *testing.T) {
	p := &fakeProvider{
		text: `Sure, here you go: {"domains": ["shiny-brand.io", "shiny-brand.io", "toolongggggggggggggggggggggggggggggggggggggggggggggggggggggggggggg.com"]} thanks`,
	}
	g := New(p)

	result, err := g.Generate(context.Background(), Context{BusinessName: "Acme"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Domains) != 1 || result.Domains[0] != "shiny-brand.io" {
		t.Fatalf("expected [shiny-brand.io] after dedupe/length validation, got %v", result.Domains)
	}
}

func TestGenerateFallsBackToRegexWhenJSONUnparseable(t *testing.T) {
	p := &fakeProvider{
		text: "I suggest trying acme.com or maybe acme.io, both look great!",
	}
	g := New(p)

	result, err := g.Generate(context.Background(), Context{BusinessName: "Acme"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Domains) != 2 {
		t.Fatalf("expected 2 regex-extracted domains, got %v", result.Domains)
	}
}

func TestGenerateSwallowsProviderError(t *testing.T) {
	p := &fakeProvider{generateErr: context.DeadlineExceeded}
	g := New(p)

	result, err := g.Generate(context.Background(), Context{BusinessName: "Acme"})
	if err != nil {
		t.Fatalf("Generate should swallow provider errors (ProviderDegraded), got err=%v", err)
	}
	if len(result.Domains) != 0 {
		t.Fatalf("expected zero candidates on provider failure, got %v", result.Domains)
	}
}

func TestIsValidDomain(t *testing.T) {
	cases := map[string]bool{
		"acme.com":     true,
		"a-b-c.io":     true,
		"-bad.com":     false,
		"bad-.com":     false,
		"toolong" + repeat("x", 60) + ".com": false,
		"ab.c":         false,
		"":             false,
		"nodotcom":     false,
		"ACME.COM":     false, // validated post-lowercasing only
	}
	for d, want := range cases {
		if got := isValidDomain(d); got != want {
			t.Errorf("isValidDomain(%q) = %v, want %v", d, got, want)
		}
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
