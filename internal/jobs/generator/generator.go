// Package generator implements C3: prompting a generative model for
// candidate domain strings and validating its reply.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/domainscout/core/internal/providers"
)

const (
	temperature = 0.8
	maxTokens   = 4096

	toolName = "submit_domains"
)

// Context carries what the generator needs to know about a job's prior
// progress, so batch ≥ 2 prompts learn from the previous batches' misses
// (spec.md §4.2 step 2, §9 "learning between batches").
type Context struct {
	BusinessName   string
	TLDPreferences []string
	Vibe           string
	DomainIdea     string
	Keywords       []string

	BatchNum   int
	MaxBatches int
	TargetN    int

	// Present only from batch 2 onward.
	HasHistory      bool
	RecentChecked   []string // bounded to last 50
	RecentAvailable []string // bounded to last 20
	TopTakenTLDs    []string // top 3

	// Present only when resuming from needs_followup.
	FollowupDirection string
	FollowupLength    string
	FollowupKeywords  string
}

// Generator is the C3 contract: produce up to N unique, syntactically valid
// domain strings, plus token usage.
type Generator interface {
	Generate(ctx context.Context, gctx Context) (Result, error)
}

type Result struct {
	Domains      []string
	InputTokens  int
	OutputTokens int
}

type generator struct {
	provider providers.Provider
}

func New(provider providers.Provider) Generator {
	return &generator{provider: provider}
}

var (
	leadingLabelRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
)

func (g *generator) Generate(ctx context.Context, gctx Context) (Result, error) {
	system := buildSystemPrompt()
	user := buildUserPrompt(gctx)

	var raw map[string]any
	var usage providers.GenerateResult

	if g.provider.SupportsTools() {
		res, err := g.provider.GenerateWithTools(ctx, providers.GenerateRequest{
			System:      system,
			User:        user,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		}, toolSpec())
		if err == nil {
			raw = res.ToolArgs
			usage = res
		}
	}

	if raw == nil {
		res, err := g.provider.Generate(ctx, providers.GenerateRequest{
			System:      system,
			User:        user,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			// ProviderDegraded: swallowed, zero candidates still consumes a batch slot.
			return Result{}, nil
		}
		usage = res
		parsed, perr := parseJSONReply(res.Text)
		if perr != nil {
			parsed = parseWithRegex(res.Text)
		}
		raw = parsed
	}

	domains := validateAndDedupe(extractDomains(raw))
	if gctx.TargetN > 0 && len(domains) > gctx.TargetN {
		domains = domains[:gctx.TargetN]
	}
	return Result{
		Domains:      domains,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	}, nil
}

func toolSpec() providers.ToolSpec {
	return providers.ToolSpec{
		Name:        toolName,
		Description: "Submit candidate domain name strings for the business.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"domains": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required": []string{"domains"},
		},
	}
}

func buildSystemPrompt() string {
	return "You generate purchasable domain name candidates for a business. " +
		"Respond only by submitting the requested structured output."
}

func buildUserPrompt(c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business name: %s\n", c.BusinessName)
	fmt.Fprintf(&b, "TLD preferences: %s\n", strings.Join(c.TLDPreferences, ", "))
	fmt.Fprintf(&b, "Vibe: %s\n", c.Vibe)
	if c.DomainIdea != "" {
		fmt.Fprintf(&b, "Seed idea: %s\n", c.DomainIdea)
	}
	if len(c.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(c.Keywords, ", "))
	}
	fmt.Fprintf(&b, "Batch %d of at most %d.\n", c.BatchNum, c.MaxBatches)
	fmt.Fprintf(&b, "Target approximately %d new candidates.\n", c.TargetN)

	if c.FollowupDirection != "" || c.FollowupLength != "" || c.FollowupKeywords != "" {
		fmt.Fprintf(&b, "User refinement — direction: %s, length: %s, extra keywords: %s\n",
			c.FollowupDirection, c.FollowupLength, c.FollowupKeywords)
	}

	if c.HasHistory {
		fmt.Fprintf(&b, "Previously checked (do not repeat): %s\n", strings.Join(c.RecentChecked, ", "))
		if len(c.RecentAvailable) > 0 {
			fmt.Fprintf(&b, "Previously available (for tone reference): %s\n", strings.Join(c.RecentAvailable, ", "))
		}
		if len(c.TopTakenTLDs) > 0 {
			fmt.Fprintf(&b, "Most frequently taken TLDs so far: %s\n", strings.Join(c.TopTakenTLDs, ", "))
		}
	}

	b.WriteString("Return a JSON object of the form {\"domains\": [\"example.com\", ...]}.\n")
	return b.String()
}

func parseJSONReply(text string) (map[string]any, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, fmt.Errorf("generator: no JSON object found")
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
	return nil, fmt.Errorf("generator: unbalanced JSON object")
}

var domainShapeRe = regexp.MustCompile(`[a-zA-Z0-9-]+\.[a-zA-Z]{2,}`)

func parseWithRegex(text string) map[string]any {
	matches := domainShapeRe.FindAllString(text, -1)
	any := make([]any, 0, len(matches))
	for _, m := range matches {
		any = append(any, m)
	}
	return map[string]any{"domains": any}
}

func extractDomains(raw map[string]any) []string {
	if raw == nil {
		return nil
	}
	list, ok := raw["domains"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// validateAndDedupe applies spec.md §4.3's validation rule and collapses
// duplicates, case-folded.
func validateAndDedupe(domains []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if !isValidDomain(d) {
			continue
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func isValidDomain(d string) bool {
	if len(d) < 4 {
		return false
	}
	idx := strings.LastIndexByte(d, '.')
	if idx < 0 {
		return false
	}
	leading := d[:idx]
	trailing := d[idx+1:]
	if len(trailing) < 2 || !isAlpha(trailing) {
		return false
	}
	if len(leading) == 0 || len(leading) > 63 {
		return false
	}
	return leadingLabelRe.MatchString(leading)
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
