package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/app/repositories"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
	"github.com/yigit/campusreg/internal/pkg/metrics"
	"github.com/yigit/campusreg/internal/pkg/session"
	"github.com/yigit/campusreg/internal/pkg/telemetry"
	"github.com/yigit/campusreg/internal/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const claimTracer = "campusreg/services/claim"

// ClaimOutcome is the business result of a role claim.
type ClaimOutcome string

const (
	OutcomeAccepted            ClaimOutcome = "accepted"
	OutcomeInvalidIdentifier   ClaimOutcome = "invalid_identifier"
	OutcomeMismatchWithRecord  ClaimOutcome = "mismatch_with_record"
	OutcomeDuplicateIdentifier ClaimOutcome = "duplicate_identifier"
	OutcomeSessionExpired      ClaimOutcome = "session_expired"
	OutcomeAccountSuspended    ClaimOutcome = "account_suspended"
)

// ClaimRequest is a role claim as submitted by the client. Role and
// identifier are raw; they are normalized by the service.
type ClaimRequest struct {
	TempUserID     string
	RegistrantType string
	Identifier     string
}

// ClaimResult carries the outcome and, when accepted, the finalized
// applicant and the session it was promoted into.
type ClaimResult struct {
	Outcome   ClaimOutcome
	Role      models.Role
	Applicant *models.Applicant
	Session   *models.AuthenticatedSession
	// SessionID replaces the browser session id after an accepted claim.
	SessionID string
}

// ClaimService resolves a pending sign-in into a student or staff applicant.
type ClaimService interface {
	// ClaimRole returns an error only for infrastructure failures. Rejections
	// are reported through ClaimResult.Outcome.
	ClaimRole(ctx context.Context, sessionID string, req ClaimRequest) (*ClaimResult, error)
}

type claimServiceImpl struct {
	applicants repositories.ApplicantStore
	sessions   session.Store
	promoter   SessionPromoter
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewClaimService creates a new claim service instance
func NewClaimService(
	applicants repositories.ApplicantStore,
	sessions session.Store,
	promoter SessionPromoter,
	m *metrics.Metrics,
	logger zerolog.Logger,
) ClaimService {
	return &claimServiceImpl{
		applicants: applicants,
		sessions:   sessions,
		promoter:   promoter,
		metrics:    m,
		logger:     logger,
	}
}

func (s *claimServiceImpl) ClaimRole(ctx context.Context, sessionID string, req ClaimRequest) (*ClaimResult, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, claimTracer, "claim.ClaimRole",
		attribute.String(telemetry.AttrClaimRole, strings.ToLower(strings.TrimSpace(req.RegistrantType))),
	)
	defer span.End()

	result, err := s.claim(ctx, sessionID, req)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.ObserveClaim(string(claimRoleLabel(req)), "error", time.Since(start))
		return nil, err
	}

	span.SetAttributes(attribute.String(telemetry.AttrClaimOutcome, string(result.Outcome)))
	if result.Applicant != nil {
		span.SetAttributes(attribute.Int64(telemetry.AttrApplicantID, result.Applicant.ID))
	}
	s.metrics.ObserveClaim(string(claimRoleLabel(req)), string(result.Outcome), time.Since(start))

	ev := s.logger.Info()
	if result.Outcome == OutcomeAccepted {
		ev = s.logger.Debug()
	}
	ev.Str("outcome", string(result.Outcome)).
		Str("role", string(result.Role)).
		Msg("Role claim resolved")

	return result, nil
}

// claimRoleLabel keeps metric label cardinality bounded.
func claimRoleLabel(req ClaimRequest) models.Role {
	role, _ := models.ParseClaimRole(req.RegistrantType)
	return role
}

func (s *claimServiceImpl) claim(ctx context.Context, sessionID string, req ClaimRequest) (*ClaimResult, error) {
	pending, err := s.sessions.GetPending(ctx, sessionID, strings.TrimSpace(req.TempUserID))
	if err != nil {
		if errors.Is(err, apperrors.ErrPendingNotFound) {
			return &ClaimResult{Outcome: OutcomeSessionExpired}, nil
		}
		s.metrics.IncrementSessionStoreErrors("get_pending")
		return nil, fmt.Errorf("load pending session: %w", err)
	}

	role, ok := models.ParseClaimRole(req.RegistrantType)
	identifier := strings.TrimSpace(req.Identifier)
	if !ok || !validation.ValidIdentifier(role, identifier) {
		return &ClaimResult{Outcome: OutcomeInvalidIdentifier, Role: role}, nil
	}

	// Identity always comes from the ticket, never from the request.
	applicant, err := s.applicants.EnsurePending(ctx, pending.Email, pending.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("resolve applicant: %w", err)
	}
	if applicant.IsSuspended() {
		return &ClaimResult{Outcome: OutcomeAccountSuspended, Role: role}, nil
	}
	if stored := applicant.RegNo(role); stored != "" && stored != identifier {
		return &ClaimResult{Outcome: OutcomeMismatchWithRecord, Role: role}, nil
	}

	claimed, err := s.bind(ctx, applicant.ID, role, identifier)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrAccountSuspended):
		return &ClaimResult{Outcome: OutcomeAccountSuspended, Role: role}, nil
	case errors.Is(err, apperrors.ErrIdentifierMismatch):
		return &ClaimResult{Outcome: OutcomeMismatchWithRecord, Role: role}, nil
	case errors.Is(err, apperrors.ErrDuplicateIdentifier):
		return &ClaimResult{Outcome: OutcomeDuplicateIdentifier, Role: role}, nil
	default:
		return nil, fmt.Errorf("bind registration number: %w", err)
	}

	if claimed.FullName == "" {
		claimed.FullName = pending.DisplayName
	}

	// Promotion retires sessionID and with it the pending ticket. A failed
	// promotion keeps the ticket so the client can retry; the retry
	// recomputes to Accepted without touching the row.
	newSessionID, auth, err := s.promoter.Promote(ctx, sessionID, claimed)
	if err != nil {
		return nil, fmt.Errorf("promote session: %w", err)
	}

	return &ClaimResult{
		Outcome:   OutcomeAccepted,
		Role:      role,
		Applicant: claimed,
		Session:   auth,
		SessionID: newSessionID,
	}, nil
}

// bind re-checks the binding rules under a row lock and writes the
// identifier. The unique indexes remain the final authority: a concurrent
// claim that slips past FindHolder surfaces as ErrDuplicateIdentifier from
// AssignIdentifier and rolls the transaction back.
func (s *claimServiceImpl) bind(ctx context.Context, applicantID int64, role models.Role, identifier string) (*models.Applicant, error) {
	var claimed *models.Applicant
	err := s.applicants.RunInTx(ctx, func(ctx context.Context, tx repositories.ApplicantTx) error {
		a, err := tx.LockByID(ctx, applicantID)
		if err != nil {
			return err
		}
		if a.IsSuspended() {
			return apperrors.ErrAccountSuspended
		}

		stored := a.RegNo(role)
		if stored != "" && stored != identifier {
			return apperrors.ErrIdentifierMismatch
		}

		holder, found, err := tx.FindHolder(ctx, role, identifier)
		if err != nil {
			return err
		}
		if found && holder != a.ID {
			return apperrors.ErrDuplicateIdentifier
		}

		span := trace.SpanFromContext(ctx)
		if stored == identifier && a.RegistrantType == role.RegistrantType() {
			telemetry.AddEvent(span, "claim.unchanged")
			claimed = a
			return nil
		}

		if err := tx.AssignIdentifier(ctx, a.ID, role, identifier); err != nil {
			return err
		}
		telemetry.AddEvent(span, "claim.assigned", attribute.String(telemetry.AttrClaimRole, string(role)))
		a.SetRegNo(role, identifier)
		claimed = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}
