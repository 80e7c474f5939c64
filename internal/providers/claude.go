package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/domainscout/core/internal/platform/logger"
)

// claudeProvider talks to the Anthropic Messages API, the one adapter whose
// tool-call path this module exercises natively (input_schema tool_use).
type claudeProvider struct {
	t     *transport
	model string
}

func newClaudeProvider(log *logger.Logger) (*claudeProvider, error) {
	apiKey := strings.TrimSpace(os.Getenv("CLAUDE_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("providers: missing CLAUDE_API_KEY")
	}
	baseURL := strings.TrimSpace(os.Getenv("CLAUDE_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	model := strings.TrimSpace(os.Getenv("CLAUDE_MODEL"))
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	timeout := envDuration("CLAUDE_TIMEOUT_SECONDS", 60*time.Second)
	maxRetries := envInt("CLAUDE_MAX_RETRIES", 4)

	return &claudeProvider{
		t:     newTransport(log, "claude", strings.TrimRight(baseURL, "/"), apiKey, timeout, maxRetries),
		model: model,
	}, nil
}

func (p *claudeProvider) Name() string        { return "claude" }
func (p *claudeProvider) SupportsTools() bool { return true }

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Tools       []claudeTool    `json:"tools,omitempty"`
	ToolChoice  map[string]any  `json:"tool_choice,omitempty"`
}

type claudeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type claudeResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *claudeProvider) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.t.apiKey,
		"anthropic-version": "2023-06-01",
	}
}

func (p *claudeProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	body := claudeRequest{
		Model:       p.model,
		System:      req.System,
		Messages:    []claudeMessage{{Role: "user", Content: req.User}},
		MaxTokens:   maxTokensOr(req.MaxTokens, 4096),
		Temperature: req.Temperature,
	}
	var resp claudeResponse
	if err := p.t.do(ctx, "POST", "/v1/messages", p.headers(), body, &resp); err != nil {
		return GenerateResult{}, err
	}
	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	return GenerateResult{
		Text:         text.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

func (p *claudeProvider) GenerateWithTools(ctx context.Context, req GenerateRequest, tool ToolSpec) (GenerateResult, error) {
	body := claudeRequest{
		Model:       p.model,
		System:      req.System,
		Messages:    []claudeMessage{{Role: "user", Content: req.User}},
		MaxTokens:   maxTokensOr(req.MaxTokens, 4096),
		Temperature: req.Temperature,
		Tools: []claudeTool{{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		}},
		ToolChoice: map[string]any{"type": "tool", "name": tool.Name},
	}
	var resp claudeResponse
	if err := p.t.do(ctx, "POST", "/v1/messages", p.headers(), body, &resp); err != nil {
		return GenerateResult{}, err
	}
	for _, c := range resp.Content {
		if c.Type == "tool_use" && c.Name == tool.Name {
			var args map[string]any
			if err := json.Unmarshal(c.Input, &args); err != nil {
				return GenerateResult{}, fmt.Errorf("claude: decode tool args: %w", err)
			}
			return GenerateResult{
				ToolArgs:     args,
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
			}, nil
		}
	}
	return GenerateResult{}, fmt.Errorf("claude: no tool_use block in response")
}

func maxTokensOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
