package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sommetlabs/sommet/internal/ai"
	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/metrics"
)

// GeneratorService produces AI-generated content and persists it as
// documents.
//
// Every generation passes the credit consumption protocol BEFORE the
// provider call. A provider failure after the decrement does not refund
// the credit; the no-refund policy lives in EntitlementService.
type GeneratorService interface {
	// GenerateIdeas consumes one generation credit and produces a batch
	// of startup ideas, saved as a single idea document.
	GenerateIdeas(ctx context.Context, userID uuid.UUID, params ai.IdeaParams) (*domain.Document, *domain.ConsumeOutcome, error)

	// AnalyzeMarket consumes one analysis credit and produces a market
	// validation analysis for a saved idea.
	AnalyzeMarket(ctx context.Context, userID uuid.UUID, params ai.AnalysisParams) (*domain.Document, *domain.ConsumeOutcome, error)

	// BuildBlueprint checks the blueprint feature gate, consumes one
	// blueprint credit, and produces an MVP blueprint.
	BuildBlueprint(ctx context.Context, userID uuid.UUID, params ai.BlueprintParams) (*domain.Document, *domain.ConsumeOutcome, error)

	// GetDocument returns one of the user's saved documents.
	GetDocument(ctx context.Context, userID, docID uuid.UUID) (*domain.Document, error)

	// ListDocuments returns the user's saved documents of one kind,
	// newest first.
	ListDocuments(ctx context.Context, userID uuid.UUID, kind domain.ContentKind) ([]domain.Document, error)

	// DeleteDocument removes one of the user's saved documents.
	// Deleting never refunds the credit that produced the document.
	DeleteDocument(ctx context.Context, userID, docID uuid.UUID) error
}

type generatorService struct {
	provider     ai.Provider
	entitlements EntitlementService
	documents    DocumentStore
	logger       *slog.Logger
}

// NewGeneratorService creates a new GeneratorService.
func NewGeneratorService(provider ai.Provider, entitlements EntitlementService, documents DocumentStore, logger *slog.Logger) GeneratorService {
	return &generatorService{
		provider:     provider,
		entitlements: entitlements,
		documents:    documents,
		logger:       logger,
	}
}

// GenerateIdeas produces and saves a batch of startup ideas.
func (s *generatorService) GenerateIdeas(ctx context.Context, userID uuid.UUID, params ai.IdeaParams) (*domain.Document, *domain.ConsumeOutcome, error) {
	const op = "generator.ideas"

	params.Interests = strings.TrimSpace(params.Interests)
	if params.Interests == "" {
		return nil, nil, domain.Invalid(op, "Interests are required")
	}
	if params.Count <= 0 {
		params.Count = 3
	}
	if params.Count > 10 {
		return nil, nil, domain.Invalid(op, "At most 10 ideas per generation")
	}

	outcome, err := s.entitlements.Consume(ctx, userID, domain.ActionGeneration)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.provider.GenerateIdeas(ctx, params)
	if err != nil {
		// The credit stays spent.
		s.logger.Error("idea generation failed after credit consumed",
			"user_id", userID,
			"error", err,
		)
		return nil, nil, domain.Internal(err, op, "Idea generation failed")
	}

	title := result.Ideas[0].Title
	if len(result.Ideas) > 1 {
		title = result.Ideas[0].Title + " (and more)"
	}

	doc, err := s.saveDocument(ctx, userID, domain.ContentIdea, title, result)
	if err != nil {
		return nil, nil, domain.Internal(err, op, "Failed to save ideas")
	}

	metrics.DocumentsGenerated.WithLabelValues(string(domain.ContentIdea)).Inc()
	s.logger.Info("ideas generated",
		"user_id", userID,
		"document_id", doc.ID,
		"count", len(result.Ideas),
		"cost_cents", result.Usage.CostCents,
	)

	return doc, &outcome, nil
}

// AnalyzeMarket produces and saves a market analysis.
func (s *generatorService) AnalyzeMarket(ctx context.Context, userID uuid.UUID, params ai.AnalysisParams) (*domain.Document, *domain.ConsumeOutcome, error) {
	const op = "generator.analysis"

	params.IdeaTitle = strings.TrimSpace(params.IdeaTitle)
	params.IdeaDescription = strings.TrimSpace(params.IdeaDescription)
	if params.IdeaTitle == "" || params.IdeaDescription == "" {
		return nil, nil, domain.Invalid(op, "Idea title and description are required")
	}

	outcome, err := s.entitlements.Consume(ctx, userID, domain.ActionAnalysis)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.provider.AnalyzeMarket(ctx, params)
	if err != nil {
		s.logger.Error("market analysis failed after credit consumed",
			"user_id", userID,
			"error", err,
		)
		return nil, nil, domain.Internal(err, op, "Market analysis failed")
	}

	doc, err := s.saveDocument(ctx, userID, domain.ContentAnalysis, params.IdeaTitle, result)
	if err != nil {
		return nil, nil, domain.Internal(err, op, "Failed to save analysis")
	}

	metrics.DocumentsGenerated.WithLabelValues(string(domain.ContentAnalysis)).Inc()
	s.logger.Info("market analysis generated",
		"user_id", userID,
		"document_id", doc.ID,
		"verdict", result.Verdict,
		"cost_cents", result.Usage.CostCents,
	)

	return doc, &outcome, nil
}

// BuildBlueprint produces and saves an MVP blueprint.
func (s *generatorService) BuildBlueprint(ctx context.Context, userID uuid.UUID, params ai.BlueprintParams) (*domain.Document, *domain.ConsumeOutcome, error) {
	const op = "generator.blueprint"

	params.IdeaTitle = strings.TrimSpace(params.IdeaTitle)
	params.IdeaDescription = strings.TrimSpace(params.IdeaDescription)
	if params.IdeaTitle == "" || params.IdeaDescription == "" {
		return nil, nil, domain.Invalid(op, "Idea title and description are required")
	}

	// The blueprint builder is both feature-gated and metered. The gate
	// runs first so a locked user is told to upgrade, not that they are
	// out of credits.
	if err := s.entitlements.RequireFeature(ctx, userID, domain.FeatureBlueprint); err != nil {
		return nil, nil, err
	}

	outcome, err := s.entitlements.Consume(ctx, userID, domain.ActionBlueprint)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.provider.BuildBlueprint(ctx, params)
	if err != nil {
		s.logger.Error("blueprint generation failed after credit consumed",
			"user_id", userID,
			"error", err,
		)
		return nil, nil, domain.Internal(err, op, "Blueprint generation failed")
	}

	doc, err := s.saveDocument(ctx, userID, domain.ContentBlueprint, params.IdeaTitle, result)
	if err != nil {
		return nil, nil, domain.Internal(err, op, "Failed to save blueprint")
	}

	metrics.DocumentsGenerated.WithLabelValues(string(domain.ContentBlueprint)).Inc()
	s.logger.Info("blueprint generated",
		"user_id", userID,
		"document_id", doc.ID,
		"milestones", len(result.Milestones),
		"cost_cents", result.Usage.CostCents,
	)

	return doc, &outcome, nil
}

// GetDocument returns one saved document, owner-scoped.
func (s *generatorService) GetDocument(ctx context.Context, userID, docID uuid.UUID) (*domain.Document, error) {
	const op = "generator.get_document"

	doc, err := s.documents.GetByID(ctx, userID, docID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "document", docID.String())
		}
		return nil, domain.Internal(err, op, "Failed to load document")
	}
	return doc, nil
}

// ListDocuments returns saved documents of one kind, newest first.
func (s *generatorService) ListDocuments(ctx context.Context, userID uuid.UUID, kind domain.ContentKind) ([]domain.Document, error) {
	const op = "generator.list_documents"

	if !kind.Valid() {
		return nil, domain.Invalid(op, "Unknown document kind")
	}

	docs, err := s.documents.ListByKind(ctx, userID, kind)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list documents")
	}
	return docs, nil
}

// DeleteDocument removes one saved document, owner-scoped.
func (s *generatorService) DeleteDocument(ctx context.Context, userID, docID uuid.UUID) error {
	const op = "generator.delete_document"

	deleted, err := s.documents.Delete(ctx, userID, docID)
	if err != nil {
		return domain.Internal(err, op, "Failed to delete document")
	}
	if deleted == 0 {
		return domain.NotFound(op, "document", docID.String())
	}

	s.logger.Info("document deleted", "user_id", userID, "document_id", docID)
	return nil
}

// saveDocument marshals a provider result and persists it.
func (s *generatorService) saveDocument(ctx context.Context, userID uuid.UUID, kind domain.ContentKind, title string, payload any) (*domain.Document, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return s.documents.Create(ctx, userID, kind, title, json.RawMessage(raw))
}
