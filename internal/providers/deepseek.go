package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/domainscout/core/internal/platform/logger"
)

// deepseekProvider and kimiProvider both speak the OpenAI-compatible
// chat-completions wire format, so they share chatCompletionsProvider and
// differ only in default base URL/model/env prefix.
type chatCompletionsProvider struct {
	t             *transport
	model         string
	name          string
	supportsTools bool
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type chatTool struct {
	Type     string          `json:"type"`
	Function chatFunctionDef `json:"function"`
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Tools       []chatTool    `json:"tools,omitempty"`
	ToolChoice  any           `json:"tool_choice,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *chatCompletionsProvider) Name() string        { return p.name }
func (p *chatCompletionsProvider) SupportsTools() bool { return p.supportsTools }

func (p *chatCompletionsProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.t.apiKey}
}

func (p *chatCompletionsProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	body := chatCompletionsRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature:    req.Temperature,
		MaxTokens:      maxTokensOr(req.MaxTokens, 4096),
		ResponseFormat: map[string]any{"type": "json_object"},
	}
	var resp chatCompletionsResponse
	if err := p.t.do(ctx, "POST", "/chat/completions", p.headers(), body, &resp); err != nil {
		return GenerateResult{}, err
	}
	if len(resp.Choices) == 0 {
		return GenerateResult{}, fmt.Errorf("%s: empty choices", p.name)
	}
	return GenerateResult{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (p *chatCompletionsProvider) GenerateWithTools(ctx context.Context, req GenerateRequest, tool ToolSpec) (GenerateResult, error) {
	if !p.supportsTools {
		return GenerateResult{}, fmt.Errorf("%s: does not support tool calls", p.name)
	}
	body := chatCompletionsRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   maxTokensOr(req.MaxTokens, 4096),
		Tools: []chatTool{{
			Type: "function",
			Function: chatFunctionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		}},
		ToolChoice: map[string]any{"type": "function", "function": map[string]any{"name": tool.Name}},
	}
	var resp chatCompletionsResponse
	if err := p.t.do(ctx, "POST", "/chat/completions", p.headers(), body, &resp); err != nil {
		return GenerateResult{}, err
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return GenerateResult{}, fmt.Errorf("%s: no tool call in response", p.name)
	}
	call := resp.Choices[0].Message.ToolCalls[0]
	var args map[string]any
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return GenerateResult{}, fmt.Errorf("%s: decode tool args: %w", p.name, err)
	}
	return GenerateResult{
		ToolArgs:     args,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func newDeepseekProvider(log *logger.Logger) (*chatCompletionsProvider, error) {
	apiKey := strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("providers: missing DEEPSEEK_API_KEY")
	}
	baseURL := strings.TrimSpace(os.Getenv("DEEPSEEK_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.deepseek.com"
	}
	model := strings.TrimSpace(os.Getenv("DEEPSEEK_MODEL"))
	if model == "" {
		model = "deepseek-chat"
	}
	return &chatCompletionsProvider{
		t:             newTransport(log, "deepseek", strings.TrimRight(baseURL, "/"), apiKey, envDuration("DEEPSEEK_TIMEOUT_SECONDS", defaultProviderTimeout), envInt("DEEPSEEK_MAX_RETRIES", 4)),
		model:         model,
		name:          "deepseek",
		supportsTools: true,
	}, nil
}

func newKimiProvider(log *logger.Logger) (*chatCompletionsProvider, error) {
	apiKey := strings.TrimSpace(os.Getenv("KIMI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("providers: missing KIMI_API_KEY")
	}
	baseURL := strings.TrimSpace(os.Getenv("KIMI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.moonshot.cn/v1"
	}
	model := strings.TrimSpace(os.Getenv("KIMI_MODEL"))
	if model == "" {
		model = "moonshot-v1-8k"
	}
	return &chatCompletionsProvider{
		t:             newTransport(log, "kimi", strings.TrimRight(baseURL, "/"), apiKey, envDuration("KIMI_TIMEOUT_SECONDS", defaultProviderTimeout), envInt("KIMI_MAX_RETRIES", 4)),
		model:         model,
		name:          "kimi",
		supportsTools: true,
	}, nil
}
