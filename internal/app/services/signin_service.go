package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/app/repositories"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
	"github.com/yigit/campusreg/internal/pkg/metrics"
	"github.com/yigit/campusreg/internal/pkg/oauth"
	"github.com/yigit/campusreg/internal/pkg/session"
	"github.com/yigit/campusreg/internal/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// SignInResult tells the caller where to send the browser next. Exactly one
// of TempUserID and Session is set. SessionID is the browser's new session
// id when Session is set.
type SignInResult struct {
	TempUserID string
	Session    *models.AuthenticatedSession
	SessionID  string
}

// Finalized reports whether the applicant was signed straight in.
func (r *SignInResult) Finalized() bool {
	return r.Session != nil
}

// SignInService runs the identity provider code flow and turns its result
// into either a pending ticket or an authenticated session.
type SignInService interface {
	BeginSignIn(ctx context.Context, sessionID string) (string, error)
	CompleteSignIn(ctx context.Context, sessionID, state, code string) (*SignInResult, error)
}

type signInServiceImpl struct {
	provider   oauth.Provider
	applicants repositories.ApplicantStore
	sessions   session.Store
	promoter   SessionPromoter
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewSignInService creates a new sign-in service instance
func NewSignInService(
	provider oauth.Provider,
	applicants repositories.ApplicantStore,
	sessions session.Store,
	promoter SessionPromoter,
	m *metrics.Metrics,
	logger zerolog.Logger,
) SignInService {
	return &signInServiceImpl{
		provider:   provider,
		applicants: applicants,
		sessions:   sessions,
		promoter:   promoter,
		metrics:    m,
		logger:     logger,
	}
}

// BeginSignIn stores a fresh state value in the session and returns the
// provider URL to redirect to.
func (s *signInServiceImpl) BeginSignIn(ctx context.Context, sessionID string) (string, error) {
	state, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load session state: %w", err)
	}

	oauthState, err := randomToken()
	if err != nil {
		return "", err
	}
	state.OAuthState = oauthState
	if err := s.sessions.Save(ctx, sessionID, state); err != nil {
		return "", fmt.Errorf("save session state: %w", err)
	}
	return s.provider.AuthCodeURL(oauthState), nil
}

// CompleteSignIn handles the provider callback.
func (s *signInServiceImpl) CompleteSignIn(ctx context.Context, sessionID, stateParam, code string) (*SignInResult, error) {
	ctx, span := telemetry.StartSpan(ctx, claimTracer, "signin.CompleteSignIn")
	defer span.End()

	result, err := s.completeSignIn(ctx, sessionID, stateParam, code)
	label := signInLabel(result, err)
	span.SetAttributes(attribute.String(telemetry.AttrSignInResult, label))
	s.metrics.IncrementSignIns(label)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

func signInLabel(result *SignInResult, err error) string {
	switch {
	case err == nil && result.Finalized():
		return "signed_in"
	case err == nil:
		return "pending"
	case errors.Is(err, apperrors.ErrOAuthStateMismatch):
		return "state_mismatch"
	case errors.Is(err, apperrors.ErrIdentityUnverified):
		return "unverified"
	case errors.Is(err, apperrors.ErrAccountSuspended):
		return "suspended"
	default:
		return "error"
	}
}

func (s *signInServiceImpl) completeSignIn(ctx context.Context, sessionID, stateParam, code string) (*SignInResult, error) {
	state, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session state: %w", err)
	}

	expected := state.OAuthState
	if expected == "" {
		return nil, apperrors.ErrOAuthStateMismatch
	}
	// state values are single use, matched or not
	state.OAuthState = ""
	if err := s.sessions.Save(ctx, sessionID, state); err != nil {
		return nil, fmt.Errorf("save session state: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(stateParam)) != 1 {
		return nil, apperrors.ErrOAuthStateMismatch
	}

	if strings.TrimSpace(code) == "" {
		return nil, apperrors.NewBadRequestError("missing authorization code")
	}
	identity, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("identity provider exchange: %w", err)
	}
	email := strings.TrimSpace(identity.Email)
	if !identity.EmailVerified || email == "" {
		return nil, apperrors.ErrIdentityUnverified
	}
	name := lo.CoalesceOrEmpty(strings.TrimSpace(identity.Name), email)

	applicant, err := s.applicants.EnsurePending(ctx, email, name)
	if err != nil {
		return nil, fmt.Errorf("resolve applicant: %w", err)
	}
	if applicant.IsSuspended() {
		return nil, apperrors.ErrAccountSuspended
	}

	if applicant.RegistrantType.Finalized() {
		newSessionID, auth, err := s.promoter.Promote(ctx, sessionID, applicant)
		if err != nil {
			return nil, fmt.Errorf("promote session: %w", err)
		}
		return &SignInResult{Session: auth, SessionID: newSessionID}, nil
	}

	pending := &models.PendingSession{
		TempUserID:  uuid.NewString(),
		Email:       email,
		DisplayName: name,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.sessions.PutPending(ctx, sessionID, pending); err != nil {
		s.metrics.IncrementSessionStoreErrors("put_pending")
		return nil, fmt.Errorf("store pending session: %w", err)
	}

	s.logger.Debug().Int64("applicantID", applicant.ID).Msg("Pending sign-in awaiting role claim")
	return &SignInResult{TempUserID: pending.TempUserID}, nil
}
