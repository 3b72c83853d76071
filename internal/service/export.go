package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/storage"
)

// MaxExportBytes caps the size of an uploaded PDF artifact.
const MaxExportBytes = 10 * 1024 * 1024

// ExportService meters and stores PDF export artifacts.
//
// The client renders the PDF; the server meters the export against the
// plan's cap, stores the artifact, and records it for later re-download.
// The meter is bumped BEFORE the artifact is stored. A storage failure
// after the bump does not roll the meter back, mirroring the no-refund
// policy for credits.
type ExportService interface {
	// CreateExport meters one export, stores the PDF, and records it.
	// Returns domain.EPAYMENT when the plan's export cap is reached.
	CreateExport(ctx context.Context, userID, documentID uuid.UUID, pdf io.Reader) (*domain.Export, *domain.ConsumeOutcome, error)

	// ListExports returns the user's recorded exports, newest first.
	ListExports(ctx context.Context, userID uuid.UUID) ([]domain.Export, error)
}

type exportService struct {
	exports      ExportStore
	documents    DocumentStore
	entitlements EntitlementService
	store        storage.Storage
	logger       *slog.Logger
}

// NewExportService creates a new ExportService.
func NewExportService(exports ExportStore, documents DocumentStore, entitlements EntitlementService, store storage.Storage, logger *slog.Logger) ExportService {
	return &exportService{
		exports:      exports,
		documents:    documents,
		entitlements: entitlements,
		store:        store,
		logger:       logger,
	}
}

// CreateExport meters, stores, and records one PDF export.
func (s *exportService) CreateExport(ctx context.Context, userID, documentID uuid.UUID, pdf io.Reader) (*domain.Export, *domain.ConsumeOutcome, error) {
	const op = "export.create"

	// Ownership check before any metering; exporting someone else's
	// document must not cost a credit.
	if _, err := s.documents.GetByID(ctx, userID, documentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.NotFound(op, "document", documentID.String())
		}
		return nil, nil, domain.Internal(err, op, "Failed to load document")
	}

	outcome, err := s.entitlements.ConsumeExport(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	key := storage.ExportKey(userID)
	err = s.store.Put(ctx, key, pdf, storage.PutOptions{
		ContentType: "application/pdf",
		MaxSize:     MaxExportBytes,
	})
	if err != nil {
		if storage.IsTooLarge(err) {
			return nil, nil, domain.Invalid(op, "PDF exceeds the maximum export size")
		}
		s.logger.Error("export storage failed after metering",
			"user_id", userID,
			"key", key,
			"error", err,
		)
		return nil, nil, domain.Internal(err, op, "Failed to store export")
	}

	url, err := s.store.URL(ctx, key, 0)
	if err != nil {
		return nil, nil, domain.Internal(err, op, "Failed to build export URL")
	}

	export, err := s.exports.Create(ctx, userID, documentID, key, url)
	if err != nil {
		return nil, nil, domain.Internal(err, op, "Failed to record export")
	}

	s.logger.Info("export stored",
		"user_id", userID,
		"document_id", documentID,
		"key", key,
	)

	return export, &outcome, nil
}

// ListExports returns the user's recorded exports.
func (s *exportService) ListExports(ctx context.Context, userID uuid.UUID) ([]domain.Export, error) {
	const op = "export.list"

	exports, err := s.exports.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list exports")
	}
	return exports, nil
}
