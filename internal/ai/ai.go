package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider defines the interface for AI-backed content generation. The
// caller is responsible for passing the credit consumption protocol before
// invoking any of these; a call that fails afterward does not refund the
// consumed credit.
type Provider interface {
	// GenerateIdeas produces startup ideas for the given prompt.
	GenerateIdeas(ctx context.Context, params IdeaParams) (*IdeaResult, error)

	// AnalyzeMarket produces a market validation analysis for an idea.
	AnalyzeMarket(ctx context.Context, params AnalysisParams) (*AnalysisResult, error)

	// BuildBlueprint produces an MVP technical blueprint for an idea.
	BuildBlueprint(ctx context.Context, params BlueprintParams) (*BlueprintResult, error)
}

// IdeaParams contains parameters for idea generation.
type IdeaParams struct {
	Interests  string // what the founder cares about or knows well
	Skills     string // optional skills/background
	Constraint string // optional constraint (budget, solo founder, B2B only, ...)
	Count      int    // how many ideas to generate (default 3)
}

// AnalysisParams contains parameters for market analysis.
type AnalysisParams struct {
	IdeaTitle       string
	IdeaDescription string
}

// BlueprintParams contains parameters for MVP blueprint generation.
type BlueprintParams struct {
	IdeaTitle       string
	IdeaDescription string
	TeamSize        int // optional, 0 = unspecified
}

// Idea is a single generated startup idea.
type Idea struct {
	Title          string `json:"title"`
	Pitch          string `json:"pitch"`
	TargetAudience string `json:"target_audience"`
	Differentiator string `json:"differentiator"`
}

// IdeaResult contains a batch of generated ideas.
type IdeaResult struct {
	Ideas []Idea    `json:"ideas"`
	Usage UsageInfo `json:"-"`
}

// Competitor is one competing product identified by the analysis.
type Competitor struct {
	Name     string `json:"name"`
	Strength string `json:"strength"`
	Weakness string `json:"weakness"`
}

// AnalysisResult contains a market validation analysis.
type AnalysisResult struct {
	MarketSummary string       `json:"market_summary"`
	Competitors   []Competitor `json:"competitors"`
	Risks         []string     `json:"risks"`
	Opportunities []string     `json:"opportunities"`
	Verdict       string       `json:"verdict"` // "pursue", "pivot", or "pass"
	Usage         UsageInfo    `json:"-"`
}

// Milestone is one step of the blueprint build plan.
type Milestone struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Weeks       int    `json:"weeks"`
}

// BlueprintResult contains an MVP technical blueprint.
type BlueprintResult struct {
	Summary      string      `json:"summary"`
	Stack        []string    `json:"stack"`
	CoreFeatures []string    `json:"core_features"`
	DeferredList []string    `json:"deferred"`
	Milestones   []Milestone `json:"milestones"`
	Usage        UsageInfo   `json:"-"`
}

// UsageInfo tracks API usage for cost monitoring.
type UsageInfo struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostCents    int
	Duration     time.Duration
}

// Validate checks that a decoded idea batch satisfies the response schema.
// The provider boundary rejects malformed output rather than persisting
// partially-shaped documents.
func (r *IdeaResult) Validate() error {
	if len(r.Ideas) == 0 {
		return fmt.Errorf("%w: no ideas in response", EAIMalformed)
	}
	for i, idea := range r.Ideas {
		if strings.TrimSpace(idea.Title) == "" {
			return fmt.Errorf("%w: idea %d missing title", EAIMalformed, i)
		}
		if strings.TrimSpace(idea.Pitch) == "" {
			return fmt.Errorf("%w: idea %d missing pitch", EAIMalformed, i)
		}
	}
	return nil
}

// Validate checks that a decoded analysis satisfies the response schema.
func (r *AnalysisResult) Validate() error {
	if strings.TrimSpace(r.MarketSummary) == "" {
		return fmt.Errorf("%w: missing market summary", EAIMalformed)
	}
	switch r.Verdict {
	case "pursue", "pivot", "pass":
	default:
		return fmt.Errorf("%w: unexpected verdict %q", EAIMalformed, r.Verdict)
	}
	for i, c := range r.Competitors {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: competitor %d missing name", EAIMalformed, i)
		}
	}
	return nil
}

// Validate checks that a decoded blueprint satisfies the response schema.
func (r *BlueprintResult) Validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("%w: missing summary", EAIMalformed)
	}
	if len(r.Stack) == 0 {
		return fmt.Errorf("%w: empty stack", EAIMalformed)
	}
	if len(r.CoreFeatures) == 0 {
		return fmt.Errorf("%w: no core features", EAIMalformed)
	}
	for i, m := range r.Milestones {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("%w: milestone %d missing name", EAIMalformed, i)
		}
		if m.Weeks <= 0 {
			return fmt.Errorf("%w: milestone %d has non-positive duration", EAIMalformed, i)
		}
	}
	return nil
}

// ProviderConfig contains common configuration for AI providers.
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIMalformed indicates the provider returned output that does not
	// match the expected response schema
	EAIMalformed = errors.New("ai response does not match expected schema")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
