package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/db"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
	"github.com/yigit/campusreg/internal/pkg/dberrors"
	"github.com/yigit/campusreg/internal/pkg/logger"
)

// Constraint names from migrations/001_applicants.sql
const (
	constraintStudentRegNo = "applicants_student_reg_no_key"
	constraintStaffsRegNo  = "applicants_staffs_reg_no_key"
)

var applicantColumns = []string{
	"id", "email", "full_name", "registrant_type", "student_reg_no", "staffs_reg_no",
	"status", "created_at", "updated_at", "last_login_at",
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// regNoColumns maps a claimable role to its registration number column, the
// column that must be cleared, and the unique constraint guarding it.
func regNoColumns(role models.Role) (column, other, constraint string, err error) {
	switch role {
	case models.RoleStudent:
		return "student_reg_no", "staffs_reg_no", constraintStudentRegNo, nil
	case models.RoleStaff:
		return "staffs_reg_no", "student_reg_no", constraintStaffsRegNo, nil
	default:
		return "", "", "", fmt.Errorf("%w: role %q is not claimable", apperrors.ErrValidationFailed, role)
	}
}

// ApplicantRepository handles applicant database operations
type ApplicantRepository struct {
	db *db.PostgresDB
	sb squirrel.StatementBuilderType
}

// NewApplicantRepository creates a new ApplicantRepository
func NewApplicantRepository(database *db.PostgresDB) *ApplicantRepository {
	return &ApplicantRepository{
		db: database,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ ApplicantStore = (*ApplicantRepository)(nil)

// FindByEmail retrieves an applicant by exact email
func (r *ApplicantRepository) FindByEmail(ctx context.Context, email string) (*models.Applicant, error) {
	return r.findOne(ctx, r.db.Pool, squirrel.Eq{"email": email}, false)
}

// FindByID retrieves an applicant by id
func (r *ApplicantRepository) FindByID(ctx context.Context, id int64) (*models.Applicant, error) {
	return r.findOne(ctx, r.db.Pool, squirrel.Eq{"id": id}, false)
}

// EnsurePending inserts a pending applicant unless one with the same email
// exists, then returns the stored row.
func (r *ApplicantRepository) EnsurePending(ctx context.Context, email, fullName string) (*models.Applicant, error) {
	sql, args, err := r.sb.Insert("applicants").
		Columns("email", "full_name", "registrant_type", "status").
		Values(email, fullName, string(models.RegistrantPending), string(models.StatusActive)).
		Suffix("ON CONFLICT (email) DO NOTHING").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building ensure pending applicant SQL")
		return nil, fmt.Errorf("failed to build ensure pending applicant query: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing ensure pending applicant query")
		return nil, fmt.Errorf("error creating pending applicant: %w", err)
	}
	if tag.RowsAffected() == 1 {
		logger.Info().Str("email", email).Msg("Pending applicant created")
	}

	return r.FindByEmail(ctx, email)
}

// TouchLastLogin stamps the applicant's last login time
func (r *ApplicantRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	sql, args, err := r.sb.Update("applicants").
		Set("last_login_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build touch last login query: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("applicantID", id).Msg("Error updating last login")
		return fmt.Errorf("error updating last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrApplicantNotFound
	}
	return nil
}

// RunInTx runs fn inside a database transaction
func (r *ApplicantRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ApplicantTx) error) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &applicantTx{tx: tx, repo: r})
	})
}

func (r *ApplicantRepository) findOne(ctx context.Context, q querier, where squirrel.Sqlizer, forUpdate bool) (*models.Applicant, error) {
	builder := r.sb.Select(applicantColumns...).
		From("applicants").
		Where(where).
		Limit(1)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building find applicant SQL")
		return nil, fmt.Errorf("failed to build find applicant query: %w", err)
	}

	applicant, err := scanApplicant(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrApplicantNotFound
		}
		logger.Error().Err(err).Msg("Error scanning applicant row")
		return nil, fmt.Errorf("error retrieving applicant: %w", err)
	}
	return applicant, nil
}

func scanApplicant(row pgx.Row) (*models.Applicant, error) {
	var (
		a              models.Applicant
		registrantType string
		status         string
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.FullName, &registrantType, &a.StudentRegNo, &a.StaffsRegNo,
		&status, &a.CreatedAt, &a.UpdatedAt, &a.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	a.RegistrantType = models.RegistrantType(registrantType)
	a.Status = models.AccountStatus(status)
	return &a, nil
}

// applicantTx implements ApplicantTx on top of a pgx transaction
type applicantTx struct {
	tx   pgx.Tx
	repo *ApplicantRepository
}

func (t *applicantTx) LockByID(ctx context.Context, id int64) (*models.Applicant, error) {
	return t.repo.findOne(ctx, t.tx, squirrel.Eq{"id": id}, true)
}

func (t *applicantTx) FindHolder(ctx context.Context, role models.Role, identifier string) (int64, bool, error) {
	column, _, _, err := regNoColumns(role)
	if err != nil {
		return 0, false, err
	}

	sql, args, err := t.repo.sb.Select("id").
		From("applicants").
		Where(squirrel.Eq{column: identifier}).
		Limit(1).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("failed to build find holder query: %w", err)
	}

	var id int64
	if err := t.tx.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		logger.Error().Err(err).Str("role", string(role)).Msg("Error looking up registration number holder")
		return 0, false, fmt.Errorf("error looking up registration number holder: %w", err)
	}
	return id, true, nil
}

func (t *applicantTx) AssignIdentifier(ctx context.Context, id int64, role models.Role, identifier string) error {
	column, other, constraint, err := regNoColumns(role)
	if err != nil {
		return err
	}

	sql, args, err := t.repo.sb.Update("applicants").
		SetMap(map[string]interface{}{
			"registrant_type": string(role.RegistrantType()),
			column:            identifier,
			other:             nil,
			"updated_at":      squirrel.Expr("NOW()"),
		}).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build assign identifier query: %w", err)
	}

	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, constraint) {
			logger.Info().Int64("applicantID", id).Str("role", string(role)).Msg("Registration number claimed concurrently by another applicant")
			return apperrors.ErrDuplicateIdentifier
		}
		logger.Error().Err(err).Int64("applicantID", id).Msg("Error executing assign identifier query")
		return fmt.Errorf("error assigning registration number: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrApplicantNotFound
	}
	return nil
}
