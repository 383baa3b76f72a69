package dto

import (
	"encoding/json"
	"time"

	"github.com/yigit/campusreg/internal/app/models"
)

// DraftResponse represents a saved registration draft
type DraftResponse struct {
	Payload   json.RawMessage `json:"payload" swaggertype:"object"`
	UpdatedAt time.Time       `json:"updatedAt" example:"2025-04-23T12:01:05.123Z"`
}

// NewDraftResponse converts a draft model to its response
func NewDraftResponse(d *models.RegistrationDraft) DraftResponse {
	return DraftResponse{Payload: d.Payload, UpdatedAt: d.UpdatedAt}
}

// SaveDraftRequest carries the form state to store
type SaveDraftRequest struct {
	Payload json.RawMessage `json:"payload" binding:"required" swaggertype:"object"`
}
