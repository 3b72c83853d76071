package anthropic

import (
	"fmt"
	"strings"

	"github.com/sommetlabs/sommet/internal/ai"
)

// buildIdeaPrompt creates the prompt for startup idea generation
func buildIdeaPrompt(params ai.IdeaParams) string {
	var b strings.Builder

	b.WriteString(`You are an experienced startup advisor helping an entrepreneur find a venture worth building. Generate concrete, specific startup ideas — no generic "AI for X" filler. Each idea must name a real audience and a reason it wins against what exists today.`)

	fmt.Fprintf(&b, "\n\nGenerate exactly %d ideas.", params.Count)
	fmt.Fprintf(&b, "\n\nFounder interests: %s", params.Interests)
	if params.Skills != "" {
		fmt.Fprintf(&b, "\nFounder skills/background: %s", params.Skills)
	}
	if params.Constraint != "" {
		fmt.Fprintf(&b, "\nConstraint: %s", params.Constraint)
	}

	b.WriteString(`

**Response Format:**
Return your answer as a JSON object with this exact structure:

{
  "ideas": [
    {
      "title": "Short, memorable product name",
      "pitch": "Two-sentence elevator pitch",
      "target_audience": "Who buys this and why now",
      "differentiator": "Why this beats existing alternatives"
    }
  ]
}

**Important:** Return ONLY the JSON object, no additional text or explanation.`)

	return b.String()
}

// buildAnalysisPrompt creates the prompt for market validation analysis
func buildAnalysisPrompt(params ai.AnalysisParams) string {
	var b strings.Builder

	b.WriteString(`You are a market research analyst evaluating whether a startup idea is worth pursuing. Be honest — a "pass" verdict on a weak idea is more valuable than polite encouragement. Ground competitor claims in products that actually exist.`)

	fmt.Fprintf(&b, "\n\nIdea: %s", params.IdeaTitle)
	if params.IdeaDescription != "" {
		fmt.Fprintf(&b, "\nDescription: %s", params.IdeaDescription)
	}

	b.WriteString(`

**Response Format:**
Return your analysis as a JSON object with this exact structure:

{
  "market_summary": "Size, growth, and dynamics of the target market",
  "competitors": [
    {
      "name": "Competitor product name",
      "strength": "What they do well",
      "weakness": "Where they are vulnerable"
    }
  ],
  "risks": ["Concrete risk the founder must address"],
  "opportunities": ["Concrete wedge or opening"],
  "verdict": "pursue|pivot|pass"
}

**Important:** Return ONLY the JSON object, no additional text or explanation.`)

	return b.String()
}

// buildBlueprintPrompt creates the prompt for MVP blueprint generation
func buildBlueprintPrompt(params ai.BlueprintParams) string {
	var b strings.Builder

	b.WriteString(`You are a pragmatic CTO scoping the smallest product that can validate a startup idea with real users. Ruthlessly defer anything that is not needed for the first paying customer. Prefer boring, proven technology.`)

	fmt.Fprintf(&b, "\n\nIdea: %s", params.IdeaTitle)
	if params.IdeaDescription != "" {
		fmt.Fprintf(&b, "\nDescription: %s", params.IdeaDescription)
	}
	if params.TeamSize > 0 {
		fmt.Fprintf(&b, "\nTeam size: %d", params.TeamSize)
	}

	b.WriteString(`

**Response Format:**
Return the blueprint as a JSON object with this exact structure:

{
  "summary": "One-paragraph description of the MVP and what it validates",
  "stack": ["Technology choice with one-word justification"],
  "core_features": ["Feature that must ship in the MVP"],
  "deferred": ["Feature explicitly deferred past the MVP"],
  "milestones": [
    {
      "name": "Milestone name",
      "description": "What is done when this milestone completes",
      "weeks": 2
    }
  ]
}

**Important:** Return ONLY the JSON object, no additional text or explanation. Every milestone must have weeks >= 1.`)

	return b.String()
}
