package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/db"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
	"github.com/yigit/campusreg/internal/pkg/dberrors"
	"github.com/yigit/campusreg/internal/pkg/logger"
)

// DraftRepository handles registration draft database operations
type DraftRepository struct {
	db *db.PostgresDB
	sb squirrel.StatementBuilderType
}

// NewDraftRepository creates a new DraftRepository
func NewDraftRepository(database *db.PostgresDB) *DraftRepository {
	return &DraftRepository{
		db: database,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ DraftStore = (*DraftRepository)(nil)

// Upsert replaces the applicant's draft with payload
func (r *DraftRepository) Upsert(ctx context.Context, applicantID int64, payload json.RawMessage) (*models.RegistrationDraft, error) {
	sql, args, err := r.sb.Insert("registration_drafts").
		Columns("applicant_id", "payload", "updated_at").
		Values(applicantID, []byte(payload), squirrel.Expr("NOW()")).
		Suffix("ON CONFLICT (applicant_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at").
		Suffix("RETURNING applicant_id, payload, updated_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building upsert draft SQL")
		return nil, fmt.Errorf("failed to build upsert draft query: %w", err)
	}

	draft, err := scanDraft(r.db.Pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return nil, apperrors.ErrApplicantNotFound
		}
		logger.Error().Err(err).Int64("applicantID", applicantID).Msg("Error executing upsert draft query")
		return nil, fmt.Errorf("error saving registration draft: %w", err)
	}
	return draft, nil
}

// FindByApplicant returns the applicant's draft
func (r *DraftRepository) FindByApplicant(ctx context.Context, applicantID int64) (*models.RegistrationDraft, error) {
	sql, args, err := r.sb.Select("applicant_id", "payload", "updated_at").
		From("registration_drafts").
		Where(squirrel.Eq{"applicant_id": applicantID}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building find draft SQL")
		return nil, fmt.Errorf("failed to build find draft query: %w", err)
	}

	draft, err := scanDraft(r.db.Pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrDraftNotFound
		}
		logger.Error().Err(err).Int64("applicantID", applicantID).Msg("Error scanning draft row")
		return nil, fmt.Errorf("error retrieving registration draft: %w", err)
	}
	return draft, nil
}

func scanDraft(row pgx.Row) (*models.RegistrationDraft, error) {
	var (
		d       models.RegistrationDraft
		payload []byte
	)
	if err := row.Scan(&d.ApplicantID, &payload, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Payload = json.RawMessage(payload)
	return &d, nil
}
