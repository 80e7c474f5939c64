// Package providers is the generative-model abstraction used by the
// generator (C3) and evaluator (C4) stages: one interface, four adapters,
// selected at job-create time by name and carried in domain.Job's
// DriverProvider/SwarmProvider columns so a resumed job always talks to the
// same model it started with.
package providers

import "context"

// ToolSpec describes the single function-call tool a caller wants the model
// to invoke, as a JSON Schema object (spec.md C3/C4 "tool-call path").
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// GenerateRequest is provider-agnostic; each adapter maps it onto its own
// wire format.
type GenerateRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// GenerateResult carries either a free-text completion or, when a ToolSpec
// was supplied, the decoded arguments of the tool call the model made.
type GenerateResult struct {
	Text         string
	ToolArgs     map[string]any
	InputTokens  int
	OutputTokens int
}

// Provider is a single generative-model backend. Generate is the JSON/text
// fallback path; GenerateWithTools is the preferred path when the backend
// supports function calling (SupportsTools reports which).
type Provider interface {
	Name() string
	SupportsTools() bool
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
	GenerateWithTools(ctx context.Context, req GenerateRequest, tool ToolSpec) (GenerateResult, error)
}
