package providers

import (
	"fmt"
	"os"
	"strings"

	"context"

	"github.com/domainscout/core/internal/platform/logger"
)

// cloudflareProvider calls a Workers AI text-generation model through the
// account-scoped REST endpoint. Workers AI has no function-calling surface
// for the models this module targets, so SupportsTools is false and C3/C4
// always use the JSON-fallback path against it.
type cloudflareProvider struct {
	t     *transport
	model string
}

type cloudflareRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type cloudflareResponse struct {
	Result struct {
		Response string `json:"response"`
	} `json:"result"`
	Success bool `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func newCloudflareProvider(log *logger.Logger) (*cloudflareProvider, error) {
	apiKey := strings.TrimSpace(os.Getenv("CLOUDFLARE_API_TOKEN"))
	accountID := strings.TrimSpace(os.Getenv("CLOUDFLARE_ACCOUNT_ID"))
	if apiKey == "" || accountID == "" {
		return nil, fmt.Errorf("providers: missing CLOUDFLARE_API_TOKEN or CLOUDFLARE_ACCOUNT_ID")
	}
	model := strings.TrimSpace(os.Getenv("CLOUDFLARE_MODEL"))
	if model == "" {
		model = "@cf/meta/llama-3.1-8b-instruct"
	}
	baseURL := fmt.Sprintf("https://api.cloudflare.com/client/v4/accounts/%s/ai/run", accountID)
	return &cloudflareProvider{
		t:     newTransport(log, "cloudflare", baseURL, apiKey, envDuration("CLOUDFLARE_TIMEOUT_SECONDS", defaultProviderTimeout), envInt("CLOUDFLARE_MAX_RETRIES", 4)),
		model: model,
	}, nil
}

func (p *cloudflareProvider) Name() string        { return "cloudflare" }
func (p *cloudflareProvider) SupportsTools() bool { return false }

func (p *cloudflareProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.t.apiKey}
}

func (p *cloudflareProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	body := cloudflareRequest{
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   maxTokensOr(req.MaxTokens, 4096),
	}
	var resp cloudflareResponse
	if err := p.t.do(ctx, "POST", "/"+p.model, p.headers(), body, &resp); err != nil {
		return GenerateResult{}, err
	}
	if !resp.Success {
		msg := "unknown error"
		if len(resp.Errors) > 0 {
			msg = resp.Errors[0].Message
		}
		return GenerateResult{}, fmt.Errorf("cloudflare: %s", msg)
	}
	return GenerateResult{Text: resp.Result.Response}, nil
}

func (p *cloudflareProvider) GenerateWithTools(ctx context.Context, req GenerateRequest, tool ToolSpec) (GenerateResult, error) {
	return GenerateResult{}, fmt.Errorf("cloudflare: does not support tool calls")
}
