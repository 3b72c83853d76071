package mock

import (
	"context"
	"log/slog"
	"time"

	"github.com/sommetlabs/sommet/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	GenerateIdeasResponse  *ai.IdeaResult
	GenerateIdeasError     error
	AnalyzeMarketResponse  *ai.AnalysisResult
	AnalyzeMarketError     error
	BuildBlueprintResponse *ai.BlueprintResult
	BuildBlueprintError    error

	// Call tracking for testing
	GenerateIdeasCalls  int
	AnalyzeMarketCalls  int
	BuildBlueprintCalls int
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// GenerateIdeas returns a canned batch of sample ideas
func (p *Provider) GenerateIdeas(ctx context.Context, params ai.IdeaParams) (*ai.IdeaResult, error) {
	p.GenerateIdeasCalls++

	if p.GenerateIdeasError != nil {
		return nil, p.GenerateIdeasError
	}
	if p.GenerateIdeasResponse != nil {
		return p.GenerateIdeasResponse, nil
	}

	count := params.Count
	if count <= 0 {
		count = 3
	}

	ideas := make([]ai.Idea, 0, count)
	samples := []ai.Idea{
		{
			Title:          "TrailCrew",
			Pitch:          "A booking platform that matches volunteer trail-maintenance crews with land managers. Crews get insurance and tools handled; managers get scheduled labor.",
			TargetAudience: "State park agencies and outdoor nonprofits with maintenance backlogs",
			Differentiator: "Handles liability paperwork, the reason most volunteer programs stall",
		},
		{
			Title:          "Mise",
			Pitch:          "Inventory forecasting for independent restaurants built on their POS history. Cuts food waste by predicting prep quantities per shift.",
			TargetAudience: "Single-location restaurants doing $500k-$2M revenue",
			Differentiator: "Works from existing POS exports, no new hardware or workflow",
		},
		{
			Title:          "Ledgerline",
			Pitch:          "Automated grant-compliance reporting for small nonprofits. Turns bookkeeping categories into funder-ready reports.",
			TargetAudience: "Nonprofits under 20 staff juggling multiple grants",
			Differentiator: "Speaks the reporting formats of the ten largest foundations out of the box",
		},
	}
	for i := 0; i < count; i++ {
		ideas = append(ideas, samples[i%len(samples)])
	}

	return &ai.IdeaResult{
		Ideas: ideas,
		Usage: mockUsage(),
	}, nil
}

// AnalyzeMarket returns a canned market analysis
func (p *Provider) AnalyzeMarket(ctx context.Context, params ai.AnalysisParams) (*ai.AnalysisResult, error) {
	p.AnalyzeMarketCalls++

	if p.AnalyzeMarketError != nil {
		return nil, p.AnalyzeMarketError
	}
	if p.AnalyzeMarketResponse != nil {
		return p.AnalyzeMarketResponse, nil
	}

	return &ai.AnalysisResult{
		MarketSummary: "Mid-sized, fragmented market with no dominant player. Growth driven by regulatory pressure on incumbents.",
		Competitors: []ai.Competitor{
			{Name: "IncumbentCo", Strength: "Enterprise distribution", Weakness: "Ignores the small-business segment"},
			{Name: "SpreadsheetDIY", Strength: "Free", Weakness: "Breaks past ten users"},
		},
		Risks:         []string{"Long sales cycles in the target segment", "Platform dependency on POS vendors"},
		Opportunities: []string{"No competitor serves the sub-$2M segment", "Recent API openings at the two largest POS vendors"},
		Verdict:       "pursue",
		Usage:         mockUsage(),
	}, nil
}

// BuildBlueprint returns a canned MVP blueprint
func (p *Provider) BuildBlueprint(ctx context.Context, params ai.BlueprintParams) (*ai.BlueprintResult, error) {
	p.BuildBlueprintCalls++

	if p.BuildBlueprintError != nil {
		return nil, p.BuildBlueprintError
	}
	if p.BuildBlueprintResponse != nil {
		return p.BuildBlueprintResponse, nil
	}

	return &ai.BlueprintResult{
		Summary:      "A single-tenant web app that ingests POS exports and emails a weekly prep forecast. Validates willingness to pay before any POS integration work.",
		Stack:        []string{"Go (boring)", "Postgres (boring)", "HTMX (small)"},
		CoreFeatures: []string{"CSV import", "Weekly forecast email", "Stripe checkout"},
		DeferredList: []string{"Live POS integration", "Multi-location support", "Mobile app"},
		Milestones: []ai.Milestone{
			{Name: "Import pipeline", Description: "CSV upload parsed into normalized sales rows", Weeks: 2},
			{Name: "Forecast engine", Description: "Per-item weekly forecast with holdout validation", Weeks: 3},
			{Name: "Billing + launch", Description: "Checkout, onboarding email sequence, first ten users", Weeks: 2},
		},
		Usage: mockUsage(),
	}, nil
}

func mockUsage() ai.UsageInfo {
	return ai.UsageInfo{
		Model:        "mock",
		InputTokens:  1200,
		OutputTokens: 800,
		CostCents:    2,
		Duration:     50 * time.Millisecond,
	}
}
