// Package evaluator implements C4: parallel scoring of candidate domains,
// with a content-free heuristic fallback so the pipeline is always total.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/domainscout/core/internal/providers"
)

const (
	temperature  = 0.3
	chunkSize    = 10
	concurrency  = 12
	toolName     = "submit_evaluations"
)

// Evaluation is one scored candidate (spec.md §4.4).
type Evaluation struct {
	Domain         string
	Score          float64
	Pronounceable  bool
	Memorable      bool
	BrandFit       bool
	EmailFriendly  bool
	WorthChecking  bool
	Flags          []string
	Note           string
	FromHeuristic  bool
}

type Result struct {
	Evaluations  []Evaluation
	InputTokens  int
	OutputTokens int
}

// Evaluator is the C4 contract.
type Evaluator interface {
	Evaluate(ctx context.Context, domains []string, vibe, businessName string) (Result, error)
}

type evaluator struct {
	provider providers.Provider
}

func New(provider providers.Provider) Evaluator {
	return &evaluator{provider: provider}
}

func (e *evaluator) Evaluate(ctx context.Context, domains []string, vibe, businessName string) (Result, error) {
	if len(domains) == 0 {
		return Result{}, nil
	}

	chunks := chunk(domains, chunkSize)
	results := make([][]Evaluation, len(chunks))
	tokensIn := make([]int, len(chunks))
	tokensOut := make([]int, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			evals, inTok, outTok := e.evaluateChunk(gctx, c, vibe, businessName)
			results[i] = evals
			tokensIn[i] = inTok
			tokensOut[i] = outTok
			return nil
		})
	}
	_ = g.Wait() // evaluateChunk never returns an error; it falls back internally.

	out := Result{}
	for i := range results {
		out.Evaluations = append(out.Evaluations, results[i]...)
		out.InputTokens += tokensIn[i]
		out.OutputTokens += tokensOut[i]
	}
	return out, nil
}

func (e *evaluator) evaluateChunk(ctx context.Context, domains []string, vibe, businessName string) ([]Evaluation, int, int) {
	system := "You evaluate candidate domain names for brandability. Respond only with the requested structured output."
	user := buildUserPrompt(domains, vibe, businessName)

	var raw map[string]any
	var inTok, outTok int

	if e.provider.SupportsTools() {
		res, err := e.provider.GenerateWithTools(ctx, providers.GenerateRequest{
			System:      system,
			User:        user,
			Temperature: temperature,
			MaxTokens:   4096,
		}, toolSpec())
		if err == nil {
			raw = res.ToolArgs
			inTok, outTok = res.InputTokens, res.OutputTokens
		}
	}

	if raw == nil {
		res, err := e.provider.Generate(ctx, providers.GenerateRequest{
			System:      system,
			User:        user,
			Temperature: temperature,
			MaxTokens:   4096,
		})
		if err == nil {
			inTok, outTok = res.InputTokens, res.OutputTokens
			if parsed, perr := parseJSONReply(res.Text); perr == nil {
				raw = parsed
			}
		}
	}

	parsed := parseEvaluations(raw)
	out := make([]Evaluation, 0, len(domains))
	for _, d := range domains {
		if ev, ok := parsed[d]; ok {
			out = append(out, ev)
			continue
		}
		out = append(out, heuristicEvaluate(d))
	}
	return out, inTok, outTok
}

func toolSpec() providers.ToolSpec {
	return providers.ToolSpec{
		Name:        toolName,
		Description: "Submit an evaluation record for every requested domain.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"evaluations": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"domain":         map[string]any{"type": "string"},
							"score":          map[string]any{"type": "number"},
							"pronounceable":  map[string]any{"type": "boolean"},
							"memorable":      map[string]any{"type": "boolean"},
							"brand_fit":      map[string]any{"type": "boolean"},
							"email_friendly": map[string]any{"type": "boolean"},
							"worth_checking": map[string]any{"type": "boolean"},
							"flags":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							"note":           map[string]any{"type": "string"},
						},
						"required": []string{"domain", "score", "worth_checking"},
					},
				},
			},
			"required": []string{"evaluations"},
		},
	}
}

func buildUserPrompt(domains []string, vibe, businessName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\n", businessName)
	fmt.Fprintf(&b, "Vibe: %s\n", vibe)
	b.WriteString("Evaluate these domains:\n")
	for _, d := range domains {
		fmt.Fprintf(&b, "- %s\n", d)
	}
	b.WriteString("Return {\"evaluations\": [{\"domain\":..., \"score\":..., \"pronounceable\":..., \"memorable\":..., \"brand_fit\":..., \"email_friendly\":..., \"worth_checking\":..., \"flags\":[...], \"note\":...}]}\n")
	return b.String()
}

func parseJSONReply(text string) (map[string]any, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, fmt.Errorf("evaluator: no JSON object found")
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				var obj map[string]any
				if err := json.Unmarshal([]byte(text[start:i+1]), &obj); err != nil {
					return nil, err
				}
				return obj, nil
			}
		}
	}
	return nil, fmt.Errorf("evaluator: unbalanced JSON object")
}

func parseEvaluations(raw map[string]any) map[string]Evaluation {
	out := map[string]Evaluation{}
	if raw == nil {
		return out
	}
	list, ok := raw["evaluations"].([]any)
	if !ok {
		return out
	}
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		domain, _ := m["domain"].(string)
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		out[domain] = Evaluation{
			Domain:        domain,
			Score:         floatOf(m["score"]),
			Pronounceable: boolOf(m["pronounceable"]),
			Memorable:     boolOf(m["memorable"]),
			BrandFit:      boolOf(m["brand_fit"]),
			EmailFriendly: boolOf(m["email_friendly"]),
			WorthChecking: boolOf(m["worth_checking"]),
			Flags:         stringsOf(m["flags"]),
			Note:          stringOf(m["note"]),
		}
	}
	return out
}

func floatOf(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	default:
		return 0
	}
}

func boolOf(v any) bool {
	b, _ := v.(bool)
	return b
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func stringsOf(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func chunk(domains []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(domains); i += size {
		end := i + size
		if end > len(domains) {
			end = len(domains)
		}
		out = append(out, domains[i:end])
	}
	return out
}

var consonantRunRe = regexp.MustCompile(`[^aeiou]{4,}`)

var tldWeights = map[string]float64{
	"com": 1.0, "co": 0.9, "io": 0.85, "dev": 0.8, "app": 0.8,
	"me": 0.75, "net": 0.7, "org": 0.7,
}

// heuristicEvaluate is the deterministic, content-free fallback used when a
// provider call fails or a chunk's reply omits a domain (spec.md §4.4).
func heuristicEvaluate(domain string) Evaluation {
	idx := strings.LastIndexByte(domain, '.')
	leading := domain
	tld := ""
	if idx >= 0 {
		leading = domain[:idx]
		tld = domain[idx+1:]
	}

	lengthScore := lengthScoreOf(len(leading))
	tldWeight, ok := tldWeights[strings.ToLower(tld)]
	if !ok {
		tldWeight = 0.5
	}

	pronounceable := !consonantRunRe.MatchString(leading)
	hasDigits := strings.ContainsAny(leading, "0123456789")
	hasHyphens := strings.Contains(leading, "-")

	score := (lengthScore + tldWeight) / 2.0
	if !pronounceable {
		score *= 0.7
	}
	if hasDigits {
		score *= 0.8
	}
	if hasHyphens {
		score *= 0.85
	}
	score = math.Round(score*100) / 100

	var flags []string
	if !pronounceable {
		flags = append(flags, "hard_to_pronounce")
	}
	if hasDigits {
		flags = append(flags, "contains_digits")
	}
	if hasHyphens {
		flags = append(flags, "contains_hyphens")
	}

	return Evaluation{
		Domain:        domain,
		Score:         score,
		Pronounceable: pronounceable,
		Memorable:     len(leading) <= 12,
		BrandFit:      false,
		EmailFriendly: !hasDigits && !hasHyphens,
		WorthChecking: score > 0.4,
		Flags:         flags,
		Note:          "heuristic fallback evaluation",
		FromHeuristic: true,
	}
}

func lengthScoreOf(leadingLen int) float64 {
	if leadingLen <= 8 {
		return 1.0
	}
	if leadingLen >= 18 {
		return 0.3
	}
	// Linear decay from 1.0 at 8 to 0.3 at 18.
	return 1.0 - (float64(leadingLen-8)/10.0)*0.7
}
