package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sommetlabs/sommet/internal/auth"
	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/service"
)

// ContentHandler serves saved documents. All lookups are owner-scoped; a
// document belonging to another user is indistinguishable from a missing
// one.
//
// Routes handled:
// - GET    /api/documents        -> ListDocuments (?kind=idea|analysis|blueprint)
// - GET    /api/documents/{id}   -> GetDocument
// - DELETE /api/documents/{id}   -> DeleteDocument
type ContentHandler struct {
	generator service.GeneratorService
	logger    *slog.Logger
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(generator service.GeneratorService, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{
		generator: generator,
		logger:    logger,
	}
}

// ListDocuments handles GET /api/documents.
func (h *ContentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	kind := domain.ContentKind(r.URL.Query().Get("kind"))

	docs, err := h.generator.ListDocuments(r.Context(), user.ID, kind)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, toDocumentResponse(&docs[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": out})
}

// GetDocument handles GET /api/documents/{id}.
func (h *ContentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	docID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("content.get", "Invalid document ID"))
		return
	}

	doc, err := h.generator.GetDocument(r.Context(), user.ID, docID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// DeleteDocument handles DELETE /api/documents/{id}.
func (h *ContentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	docID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("content.delete", "Invalid document ID"))
		return
	}

	if err := h.generator.DeleteDocument(r.Context(), user.ID, docID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
