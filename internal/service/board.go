package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sommetlabs/sommet/internal/domain"
)

// MaxBoardBytes caps the size of a stored board document.
const MaxBoardBytes = 256 * 1024

// BoardService manages the execution Kanban board.
//
// The board is a single opaque JSON document per user. The server enforces
// only the kanban feature gate, ownership, and a size cap; card ordering
// and column semantics belong to the client.
type BoardService interface {
	// GetBoard returns the user's board, or an empty board if none has
	// been saved yet.
	GetBoard(ctx context.Context, userID uuid.UUID) (*domain.Board, error)

	// SaveBoard replaces the user's board document.
	SaveBoard(ctx context.Context, userID uuid.UUID, payload json.RawMessage) (*domain.Board, error)
}

type boardService struct {
	boards       BoardStore
	entitlements EntitlementService
	logger       *slog.Logger
}

// NewBoardService creates a new BoardService.
func NewBoardService(boards BoardStore, entitlements EntitlementService, logger *slog.Logger) BoardService {
	return &boardService{
		boards:       boards,
		entitlements: entitlements,
		logger:       logger,
	}
}

// GetBoard returns the user's board.
func (s *boardService) GetBoard(ctx context.Context, userID uuid.UUID) (*domain.Board, error) {
	const op = "board.get"

	if err := s.entitlements.RequireFeature(ctx, userID, domain.FeatureKanban); err != nil {
		return nil, err
	}

	board, err := s.boards.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.Board{
				UserID:  userID,
				Payload: json.RawMessage(`{"columns":[]}`),
			}, nil
		}
		return nil, domain.Internal(err, op, "Failed to load board")
	}

	return board, nil
}

// SaveBoard replaces the user's board document.
func (s *boardService) SaveBoard(ctx context.Context, userID uuid.UUID, payload json.RawMessage) (*domain.Board, error) {
	const op = "board.save"

	if err := s.entitlements.RequireFeature(ctx, userID, domain.FeatureKanban); err != nil {
		return nil, err
	}

	if len(payload) == 0 {
		return nil, domain.Invalid(op, "Board payload is required")
	}
	if len(payload) > MaxBoardBytes {
		return nil, domain.Invalid(op, "Board payload is too large")
	}
	if !json.Valid(payload) {
		return nil, domain.Invalid(op, "Board payload is not valid JSON")
	}

	board, err := s.boards.Upsert(ctx, userID, payload)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to save board")
	}

	s.logger.Debug("board saved", "user_id", userID, "bytes", len(payload))

	return board, nil
}
