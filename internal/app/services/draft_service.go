package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/app/repositories"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
	"github.com/yigit/campusreg/internal/pkg/metrics"
)

// DraftService saves and restores in-progress registration forms.
type DraftService interface {
	// SaveDraft replaces the applicant's draft with payload.
	SaveDraft(ctx context.Context, applicantID int64, payload json.RawMessage) (*models.RegistrationDraft, error)
	// LoadDraft returns apperrors.ErrDraftNotFound when nothing was saved.
	LoadDraft(ctx context.Context, applicantID int64) (*models.RegistrationDraft, error)
}

type draftServiceImpl struct {
	drafts  repositories.DraftStore
	metrics *metrics.Metrics
}

// NewDraftService creates a new draft service instance
func NewDraftService(drafts repositories.DraftStore, m *metrics.Metrics) DraftService {
	return &draftServiceImpl{drafts: drafts, metrics: m}
}

func (s *draftServiceImpl) SaveDraft(ctx context.Context, applicantID int64, payload json.RawMessage) (*models.RegistrationDraft, error) {
	if len(bytes.TrimSpace(payload)) == 0 || !json.Valid(payload) {
		return nil, apperrors.ErrInvalidDraftPayload
	}

	draft, err := s.drafts.Upsert(ctx, applicantID, payload)
	if err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	s.metrics.IncrementDraftSaves()
	return draft, nil
}

func (s *draftServiceImpl) LoadDraft(ctx context.Context, applicantID int64) (*models.RegistrationDraft, error) {
	draft, err := s.drafts.FindByApplicant(ctx, applicantID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	return draft, nil
}
