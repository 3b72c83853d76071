// Package domain contains core business types and interfaces.
//
// This file defines the user-owned content records produced by the AI
// provider. Documents are persisted as structured JSON payloads; the
// entitlement model treats them as opaque. Each record belongs to exactly
// one user and ownership never transfers.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ContentKind identifies a saved content document type.
type ContentKind string

const (
	ContentIdea      ContentKind = "idea"
	ContentAnalysis  ContentKind = "analysis"
	ContentBlueprint ContentKind = "blueprint"
)

// Valid reports whether k is a known content kind.
func (k ContentKind) Valid() bool {
	switch k {
	case ContentIdea, ContentAnalysis, ContentBlueprint:
		return true
	default:
		return false
	}
}

// Document is a saved AI-generated document (idea, market analysis, or MVP
// blueprint). Payload holds the schema-validated provider output.
type Document struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      ContentKind
	Title     string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Board is a user's execution Kanban board, stored as one opaque JSON
// document (columns and cards). The server never reorders cards; it only
// enforces the kanban feature gate and ownership.
type Board struct {
	UserID    uuid.UUID
	Payload   json.RawMessage
	UpdatedAt time.Time
}

// Export records one metered PDF export: where the rendered artifact was
// stored and which document it came from.
type Export struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	DocumentID uuid.UUID
	Key        string // storage key of the stored artifact
	URL        string
	CreatedAt  time.Time
}
