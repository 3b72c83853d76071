package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sommetlabs/sommet/internal/ai"
	"github.com/sommetlabs/sommet/internal/metrics"
)

const (
	// APIBaseURL is the base URL for the Anthropic API
	APIBaseURL = "https://api.anthropic.com/v1/messages"

	// APIVersion is the Anthropic API version
	APIVersion = "2023-06-01"

	// DefaultModel is the default Claude model to use
	DefaultModel = "claude-3-5-sonnet-20241022"

	// Pricing in cents per 1M tokens for claude-3-5-sonnet
	PricingInputCents  = 300  // $3 per 1M input tokens
	PricingOutputCents = 1500 // $15 per 1M output tokens
)

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey         string
	Model          string
	ProviderConfig ai.ProviderConfig
}

// Provider implements the ai.Provider interface using Anthropic's Claude API
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Anthropic AI provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	// Set defaults
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 60 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// GenerateIdeas produces startup ideas using Claude
func (p *Provider) GenerateIdeas(ctx context.Context, params ai.IdeaParams) (*ai.IdeaResult, error) {
	if params.Count <= 0 {
		params.Count = 3
	}

	text, usage, err := p.complete(ctx, buildIdeaPrompt(params), "generate_ideas")
	if err != nil {
		return nil, ai.WrapError("generate ideas", err)
	}

	var result ai.IdeaResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, ai.WrapError("generate ideas", fmt.Errorf("%w: %v", ai.EAIMalformed, err))
	}
	if err := result.Validate(); err != nil {
		return nil, ai.WrapError("generate ideas", err)
	}

	result.Usage = usage
	return &result, nil
}

// AnalyzeMarket produces a market validation analysis using Claude
func (p *Provider) AnalyzeMarket(ctx context.Context, params ai.AnalysisParams) (*ai.AnalysisResult, error) {
	if params.IdeaTitle == "" {
		return nil, ai.WrapError("analyze market", fmt.Errorf("idea title is required"))
	}

	text, usage, err := p.complete(ctx, buildAnalysisPrompt(params), "analyze_market")
	if err != nil {
		return nil, ai.WrapError("analyze market", err)
	}

	var result ai.AnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, ai.WrapError("analyze market", fmt.Errorf("%w: %v", ai.EAIMalformed, err))
	}
	if err := result.Validate(); err != nil {
		return nil, ai.WrapError("analyze market", err)
	}

	result.Usage = usage
	return &result, nil
}

// BuildBlueprint produces an MVP technical blueprint using Claude
func (p *Provider) BuildBlueprint(ctx context.Context, params ai.BlueprintParams) (*ai.BlueprintResult, error) {
	if params.IdeaTitle == "" {
		return nil, ai.WrapError("build blueprint", fmt.Errorf("idea title is required"))
	}

	text, usage, err := p.complete(ctx, buildBlueprintPrompt(params), "build_blueprint")
	if err != nil {
		return nil, ai.WrapError("build blueprint", err)
	}

	var result ai.BlueprintResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, ai.WrapError("build blueprint", fmt.Errorf("%w: %v", ai.EAIMalformed, err))
	}
	if err := result.Validate(); err != nil {
		return nil, ai.WrapError("build blueprint", err)
	}

	result.Usage = usage
	return &result, nil
}

// complete sends a single text prompt and returns the text of the reply.
// All three operations share this path: build request, execute with retry,
// extract the text block.
func (p *Provider) complete(ctx context.Context, prompt, operation string) (string, ai.UsageInfo, error) {
	startTime := time.Now()

	bodyBytes, err := json.Marshal(apiRequest{
		Model:     p.config.Model,
		MaxTokens: 4096,
		Messages: []apiMessage{
			{
				Role: "user",
				Content: []apiContent{
					{Type: "text", Text: prompt},
				},
			},
		},
	})
	if err != nil {
		return "", ai.UsageInfo{}, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := p.executeWithRetry(ctx, bodyBytes)
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return "", ai.UsageInfo{}, err
	}
	metrics.AIAPICalls.WithLabelValues("success").Inc()

	var textContent string
	for _, content := range resp.Content {
		if content.Type == "text" {
			textContent = content.Text
			break
		}
	}
	if textContent == "" {
		return "", ai.UsageInfo{}, fmt.Errorf("%w: no text content in response", ai.EAIMalformed)
	}

	usage := ai.UsageInfo{
		Model:        p.config.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CostCents:    p.calculateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
		Duration:     time.Since(startTime),
	}
	p.trackUsage(usage, operation)

	return textContent, usage, nil
}

// executeWithRetry executes the API call with exponential backoff retry
func (p *Provider) executeWithRetry(ctx context.Context, body []byte) (*apiResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= p.config.ProviderConfig.MaxRetries; attempt++ {
		resp, err := p.executeRequest(ctx, body)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		// Only retry on retryable errors
		if !ai.IsRetryable(err) {
			return nil, err
		}
		if attempt >= p.config.ProviderConfig.MaxRetries {
			break
		}

		// Exponential backoff: base * 2^(attempt-1)
		delay := p.config.ProviderConfig.RetryBaseDelay * time.Duration(1<<(attempt-1))
		p.logger.Info("Retrying AI request", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(ctx context.Context, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", APIBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		// Network errors are typically retryable
		return nil, ai.EAIUnavailable
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to domain errors
func (p *Provider) mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout:
		return ai.EAITimeout
	case http.StatusBadRequest:
		return fmt.Errorf("bad request: %s", errResp.Error.Message)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ai.EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// calculateCost estimates the cost in cents for the given token counts
func (p *Provider) calculateCost(inputTokens, outputTokens int) int {
	inputCost := inputTokens * PricingInputCents / 1_000_000
	outputCost := outputTokens * PricingOutputCents / 1_000_000
	return inputCost + outputCost
}

// trackUsage records token and cost totals for operator visibility
func (p *Provider) trackUsage(usage ai.UsageInfo, operation string) {
	metrics.AITokensTotal.WithLabelValues("input").Add(float64(usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues("output").Add(float64(usage.OutputTokens))
	metrics.AICostCentsTotal.Add(float64(usage.CostCents))

	p.logger.Debug("AI usage",
		"operation", operation,
		"model", usage.Model,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"cost_cents", usage.CostCents,
		"duration", usage.Duration,
	)
}

// API request/response types

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	Content []apiContent `json:"content"`
	Usage   apiUsage     `json:"usage"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
