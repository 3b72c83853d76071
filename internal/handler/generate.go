package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sommetlabs/sommet/internal/ai"
	"github.com/sommetlabs/sommet/internal/auth"
	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/service"
)

// GenerateHandler serves the AI generation endpoints. Each endpoint passes
// the credit consumption protocol inside the service before any provider
// call; a 402 response means the user is out of credits for that action.
//
// Routes handled:
// - POST /api/ideas      -> GenerateIdeas
// - POST /api/analyses   -> AnalyzeMarket
// - POST /api/blueprints -> BuildBlueprint
type GenerateHandler struct {
	generator service.GeneratorService
	logger    *slog.Logger
}

// NewGenerateHandler creates a new GenerateHandler.
func NewGenerateHandler(generator service.GeneratorService, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{
		generator: generator,
		logger:    logger,
	}
}

// documentResponse is the public shape of a saved document.
type documentResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Title     string          `json:"title"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func toDocumentResponse(d *domain.Document) documentResponse {
	return documentResponse{
		ID:        d.ID.String(),
		Kind:      string(d.Kind),
		Title:     d.Title,
		Payload:   d.Payload,
		CreatedAt: d.CreatedAt,
	}
}

// usageEnvelope wraps a generation result with what remains afterward.
type usageEnvelope struct {
	Document  documentResponse `json:"document"`
	Remaining *int             `json:"remaining"` // nil = unlimited
}

func envelope(doc *domain.Document, outcome *domain.ConsumeOutcome) usageEnvelope {
	env := usageEnvelope{Document: toDocumentResponse(doc)}
	if !outcome.Unlimited {
		n := outcome.Remaining
		env.Remaining = &n
	}
	return env
}

// GenerateIdeas handles POST /api/ideas.
func (h *GenerateHandler) GenerateIdeas(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req struct {
		Interests  string `json:"interests"`
		Skills     string `json:"skills"`
		Constraint string `json:"constraint"`
		Count      int    `json:"count"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	doc, outcome, err := h.generator.GenerateIdeas(r.Context(), user.ID, ai.IdeaParams{
		Interests:  req.Interests,
		Skills:     req.Skills,
		Constraint: req.Constraint,
		Count:      req.Count,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, envelope(doc, outcome))
}

// AnalyzeMarket handles POST /api/analyses.
func (h *GenerateHandler) AnalyzeMarket(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req struct {
		IdeaTitle       string `json:"idea_title"`
		IdeaDescription string `json:"idea_description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	doc, outcome, err := h.generator.AnalyzeMarket(r.Context(), user.ID, ai.AnalysisParams{
		IdeaTitle:       req.IdeaTitle,
		IdeaDescription: req.IdeaDescription,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, envelope(doc, outcome))
}

// BuildBlueprint handles POST /api/blueprints.
func (h *GenerateHandler) BuildBlueprint(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req struct {
		IdeaTitle       string `json:"idea_title"`
		IdeaDescription string `json:"idea_description"`
		TeamSize        int    `json:"team_size"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	doc, outcome, err := h.generator.BuildBlueprint(r.Context(), user.ID, ai.BlueprintParams{
		IdeaTitle:       req.IdeaTitle,
		IdeaDescription: req.IdeaDescription,
		TeamSize:        req.TeamSize,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, envelope(doc, outcome))
}
