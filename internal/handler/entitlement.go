package handler

import (
	"log/slog"
	"net/http"

	"github.com/sommetlabs/sommet/internal/auth"
	"github.com/sommetlabs/sommet/internal/service"
)

// EntitlementHandler serves the credit and feature display.
//
// Routes handled:
// - GET /api/entitlements -> GetUsage
type EntitlementHandler struct {
	entitlements service.EntitlementService
	logger       *slog.Logger
}

// NewEntitlementHandler creates a new EntitlementHandler.
func NewEntitlementHandler(entitlements service.EntitlementService, logger *slog.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		entitlements: entitlements,
		logger:       logger,
	}
}

// GetUsage handles GET /api/entitlements. The response is computed fresh
// per request so a plan change applied by a webhook is visible on the next
// read.
func (h *EntitlementHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	usage, err := h.entitlements.GetUsage(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, usage)
}
