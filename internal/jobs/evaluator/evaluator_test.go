package evaluator

import (
	"context"
	"testing"

	"github.com/domainscout/core/internal/providers"
)

type fakeProvider struct {
	supportsTools bool
	toolArgs      map[string]any
	text          string
	generateErr   error
}

func (f *fakeProvider) Name() string       { return "fake" }
func (f *fakeProvider) SupportsTools() bool { return f.supportsTools }
func (f *fakeProvider) Generate(_ context.Context, _ providers.GenerateRequest) (providers.GenerateResult, error) {
	if f.generateErr != nil {
		return providers.GenerateResult{}, f.generateErr
	}
	return providers.GenerateResult{Text: f.text, InputTokens: 3, OutputTokens: 4}, nil
}
func (f *fakeProvider) GenerateWithTools(_ context.Context, _ providers.GenerateRequest, _ providers.ToolSpec) (providers.GenerateResult, error) {
	return providers.GenerateResult{ToolArgs: f.toolArgs, InputTokens: 1, OutputTokens: 2}, nil
}

func TestEvaluateToolPath(t *testing.T) {
	p := &fakeProvider{
		supportsTools: true,
		toolArgs: map[string]any{
			"evaluations": []any{
				map[string]any{"domain": "acme.com", "score": 0.9, "worth_checking": true, "pronounceable": true},
			},
		},
	}
	e := New(p)

	result, err := e.Evaluate(context.Background(), []string{"acme.com"}, "playful", "Acme")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Evaluations) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(result.Evaluations))
	}
	ev := result.Evaluations[0]
	if ev.Domain != "acme.com" || ev.Score != 0.9 || !ev.WorthChecking || ev.FromHeuristic {
		t.Fatalf("unexpected evaluation: %+v", ev)
	}
}

func TestEvaluateFallsBackToHeuristicWhenDomainMissingFromReply(t *testing.T) {
	p := &fakeProvider{
		supportsTools: true,
		toolArgs: map[string]any{
			"evaluations": []any{
				map[string]any{"domain": "acme.com", "score": 0.9, "worth_checking": true},
			},
		},
	}
	e := New(p)

	result, err := e.Evaluate(context.Background(), []string{"acme.com", "unmentioned.io"}, "playful", "Acme")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Evaluations) != 2 {
		t.Fatalf("expected 2 evaluations (1 from reply, 1 heuristic), got %d", len(result.Evaluations))
	}
	var heuristicCount int
	for _, ev := range result.Evaluations {
		if ev.FromHeuristic {
			heuristicCount++
			if ev.Domain != "unmentioned.io" {
				t.Fatalf("expected heuristic fallback for unmentioned.io, got %s", ev.Domain)
			}
		}
	}
	if heuristicCount != 1 {
		t.Fatalf("expected exactly 1 heuristic fallback, got %d", heuristicCount)
	}
}

func TestEvaluateAllHeuristicWhenProviderFails(t *testing.T) {
	p := &fakeProvider{generateErr: context.DeadlineExceeded}
	e := New(p)

	domains := []string{"acme.com", "beta.io", "gamma.net"}
	result, err := e.Evaluate(context.Background(), domains, "playful", "Acme")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Evaluations) != len(domains) {
		t.Fatalf("expected %d evaluations, got %d", len(domains), len(result.Evaluations))
	}
	for _, ev := range result.Evaluations {
		if !ev.FromHeuristic {
			t.Fatalf("expected every evaluation to fall back to heuristic, got %+v", ev)
		}
	}
}

func TestEvaluateEmptyInput(t *testing.T) {
	e := New(&fakeProvider{})
	result, err := e.Evaluate(context.Background(), nil, "playful", "Acme")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Evaluations) != 0 {
		t.Fatalf("expected no evaluations for empty input, got %v", result.Evaluations)
	}
}

func TestHeuristicEvaluateScoring(t *testing.T) {
	short := heuristicEvaluate("acme.com")
	if short.Score <= 0.5 {
		t.Fatalf("short, clean, high-weight TLD should score above 0.5, got %f", short.Score)
	}
	if !short.WorthChecking {
		t.Fatalf("expected acme.com to clear the worth-checking bar")
	}

	withDigitsAndHyphens := heuristicEvaluate("a1-b2-c3.xyz")
	if withDigitsAndHyphens.Score >= short.Score {
		t.Fatalf("digits/hyphens/unweighted-tld should score lower than a clean .com, got %f vs %f",
			withDigitsAndHyphens.Score, short.Score)
	}
	if !withDigitsAndHyphens.FromHeuristic {
		t.Fatalf("expected FromHeuristic to be set")
	}
}
