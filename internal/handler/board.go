package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sommetlabs/sommet/internal/auth"
	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/service"
)

// BoardHandler serves the execution Kanban board. Both routes sit behind
// the kanban feature gate enforced by the service.
//
// Routes handled:
// - GET /api/board -> GetBoard
// - PUT /api/board -> SaveBoard
type BoardHandler struct {
	boards service.BoardService
	logger *slog.Logger
}

// NewBoardHandler creates a new BoardHandler.
func NewBoardHandler(boards service.BoardService, logger *slog.Logger) *BoardHandler {
	return &BoardHandler{
		boards: boards,
		logger: logger,
	}
}

// boardResponse is the public shape of a board document.
type boardResponse struct {
	Board     json.RawMessage `json:"board"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

func toBoardResponse(b *domain.Board) boardResponse {
	resp := boardResponse{Board: b.Payload}
	if !b.UpdatedAt.IsZero() {
		t := b.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

// GetBoard handles GET /api/board.
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	board, err := h.boards.GetBoard(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toBoardResponse(board))
}

// SaveBoard handles PUT /api/board. The body is the raw board document;
// the service validates JSON shape and size.
func (h *BoardHandler) SaveBoard(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, service.MaxBoardBytes+1))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("board.save", "Board payload is too large"))
		return
	}

	board, err := h.boards.SaveBoard(r.Context(), user.ID, json.RawMessage(body))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toBoardResponse(board))
}
