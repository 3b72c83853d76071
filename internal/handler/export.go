package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sommetlabs/sommet/internal/auth"
	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/service"
)

// ExportHandler meters and stores client-rendered PDF exports.
//
// Routes handled:
// - POST /api/documents/{id}/export -> CreateExport (raw PDF body)
// - GET  /api/exports               -> ListExports
type ExportHandler struct {
	exports service.ExportService
	logger  *slog.Logger
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(exports service.ExportService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		exports: exports,
		logger:  logger,
	}
}

// exportResponse is the public shape of a recorded export.
type exportResponse struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"created_at"`
}

func toExportResponse(e *domain.Export) exportResponse {
	return exportResponse{
		ID:         e.ID.String(),
		DocumentID: e.DocumentID.String(),
		URL:        e.URL,
		CreatedAt:  e.CreatedAt,
	}
}

// CreateExport handles POST /api/documents/{id}/export. The request body is
// the rendered PDF; the service meters the export before storing it.
func (h *ExportHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	docID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("export.create", "Invalid document ID"))
		return
	}

	export, outcome, err := h.exports.CreateExport(r.Context(), user.ID, docID, r.Body)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := map[string]any{"export": toExportResponse(export)}
	if !outcome.Unlimited {
		resp["remaining"] = outcome.Remaining
	}
	respondJSON(w, http.StatusCreated, resp)
}

// ListExports handles GET /api/exports.
func (h *ExportHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	exports, err := h.exports.ListExports(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]exportResponse, 0, len(exports))
	for i := range exports {
		out = append(out, toExportResponse(&exports[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{"exports": out})
}
