package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/app/repositories"
	"github.com/yigit/campusreg/internal/pkg/session"
)

// SessionPromoter writes a finalized applicant into the browser session.
type SessionPromoter interface {
	// Promote moves the session state to a fresh session id, marks it
	// authenticated for applicant and retires sessionID together with its
	// pending tickets. The returned id replaces sessionID in the browser.
	// Calling it twice for the same applicant is harmless.
	Promote(ctx context.Context, sessionID string, applicant *models.Applicant) (string, *models.AuthenticatedSession, error)
}

type sessionPromoterImpl struct {
	sessions   session.Store
	applicants repositories.ApplicantStore
	now        func() time.Time
	newID      func() string
	logger     zerolog.Logger
}

// NewSessionPromoter creates a new session promoter instance
func NewSessionPromoter(sessions session.Store, applicants repositories.ApplicantStore, logger zerolog.Logger) SessionPromoter {
	return &sessionPromoterImpl{
		sessions:   sessions,
		applicants: applicants,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		logger:     logger,
	}
}

func (p *sessionPromoterImpl) Promote(ctx context.Context, sessionID string, applicant *models.Applicant) (string, *models.AuthenticatedSession, error) {
	state, err := p.sessions.Load(ctx, sessionID)
	if err != nil {
		return "", nil, fmt.Errorf("load session state: %w", err)
	}

	now := p.now()
	auth := &models.AuthenticatedSession{
		ApplicantID: applicant.ID,
		Email:       applicant.Email,
		Name:        applicant.FullName,
		Role:        applicant.RegistrantType,
		LoginAt:     now,
		LoggedIn:    true,
	}
	state.Auth = auth
	// A pending sign-in state cannot be replayed after promotion.
	state.OAuthState = ""

	newID := p.newID()
	if err := p.sessions.Save(ctx, newID, state); err != nil {
		return "", nil, fmt.Errorf("save session state: %w", err)
	}
	if err := p.sessions.Delete(ctx, sessionID); err != nil {
		if derr := p.sessions.Delete(ctx, newID); derr != nil {
			p.logger.Warn().Err(derr).Msg("Failed to discard unused session")
		}
		return "", nil, fmt.Errorf("retire previous session: %w", err)
	}

	if err := p.applicants.TouchLastLogin(ctx, applicant.ID, now); err != nil {
		p.logger.Warn().Err(err).Int64("applicantID", applicant.ID).Msg("Failed to record last login")
	}

	return newID, auth, nil
}
