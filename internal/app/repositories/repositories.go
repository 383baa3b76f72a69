package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/db"
)

// ApplicantStore is the identity store used by the services.
type ApplicantStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Applicant, error)
	FindByID(ctx context.Context, id int64) (*models.Applicant, error)
	// EnsurePending returns the applicant with email, creating a pending one
	// with fullName when none exists.
	EnsurePending(ctx context.Context, email, fullName string) (*models.Applicant, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	// RunInTx runs fn in a single transaction that is rolled back when fn
	// returns an error.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx ApplicantTx) error) error
}

// ApplicantTx holds the operations the role claim needs inside its transaction.
type ApplicantTx interface {
	// LockByID loads the applicant and holds a row lock until the transaction ends.
	LockByID(ctx context.Context, id int64) (*models.Applicant, error)
	// FindHolder returns the id of the applicant holding identifier for role.
	FindHolder(ctx context.Context, role models.Role, identifier string) (id int64, found bool, err error)
	// AssignIdentifier sets the role and identifier and clears the other
	// role's registration number. A unique violation is reported as
	// apperrors.ErrDuplicateIdentifier.
	AssignIdentifier(ctx context.Context, id int64, role models.Role, identifier string) error
}

// DraftStore persists registration drafts.
type DraftStore interface {
	Upsert(ctx context.Context, applicantID int64, payload json.RawMessage) (*models.RegistrationDraft, error)
	FindByApplicant(ctx context.Context, applicantID int64) (*models.RegistrationDraft, error)
}

// Repositories holds all the repository instances
type Repositories struct {
	ApplicantRepository *ApplicantRepository
	DraftRepository     *DraftRepository
}

// NewRepositories initializes all repositories
func NewRepositories(database *db.PostgresDB) *Repositories {
	return &Repositories{
		ApplicantRepository: NewApplicantRepository(database),
		DraftRepository:     NewDraftRepository(database),
	}
}
