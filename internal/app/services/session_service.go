package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
	"github.com/yigit/campusreg/internal/pkg/session"
)

// SessionService exposes the authenticated-session state of a browser
// session to the HTTP layer.
type SessionService interface {
	// Current returns apperrors.ErrUnauthenticated when nobody is signed in.
	Current(ctx context.Context, sessionID string) (*models.AuthenticatedSession, error)
	// CSRFToken returns the session's token, issuing one on first use.
	CSRFToken(ctx context.Context, sessionID string) (string, error)
	VerifyCSRF(ctx context.Context, sessionID, token string) error
	Logout(ctx context.Context, sessionID string) error
}

type sessionServiceImpl struct {
	sessions session.Store
}

// NewSessionService creates a new session service instance
func NewSessionService(sessions session.Store) SessionService {
	return &sessionServiceImpl{sessions: sessions}
}

func (s *sessionServiceImpl) Current(ctx context.Context, sessionID string) (*models.AuthenticatedSession, error) {
	state, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session state: %w", err)
	}
	if state.Auth == nil || !state.Auth.LoggedIn {
		return nil, apperrors.ErrUnauthenticated
	}
	return state.Auth, nil
}

func (s *sessionServiceImpl) CSRFToken(ctx context.Context, sessionID string) (string, error) {
	state, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load session state: %w", err)
	}
	if state.CSRFToken != "" {
		return state.CSRFToken, nil
	}

	token, err := randomToken()
	if err != nil {
		return "", err
	}
	state.CSRFToken = token
	if err := s.sessions.Save(ctx, sessionID, state); err != nil {
		return "", fmt.Errorf("save session state: %w", err)
	}
	return token, nil
}

func (s *sessionServiceImpl) VerifyCSRF(ctx context.Context, sessionID, token string) error {
	if token == "" {
		return apperrors.ErrCSRFTokenInvalid
	}
	state, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session state: %w", err)
	}
	if state.CSRFToken == "" || subtle.ConstantTimeCompare([]byte(state.CSRFToken), []byte(token)) != 1 {
		return apperrors.ErrCSRFTokenInvalid
	}
	return nil
}

func (s *sessionServiceImpl) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session state: %w", err)
	}
	return nil
}

// randomToken returns 32 random bytes, URL-safe encoded.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
