package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/app/repositories"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
	"github.com/yigit/campusreg/internal/pkg/metrics"
	"github.com/yigit/campusreg/internal/pkg/oauth"
	"github.com/yigit/campusreg/internal/pkg/session"
)

// fakeApplicants is an in-memory ApplicantStore. Transactions are serialized
// and buffer their writes until fn returns nil. The uniqueness of each
// registration number column is enforced on write, like the database indexes.
type fakeApplicants struct {
	txMu sync.Mutex
	mu   sync.Mutex
	rows map[int64]models.Applicant
	next int64

	// Err fails every call when set.
	Err error
	// BlindHolder makes FindHolder miss existing holders so that only the
	// write-time uniqueness check can catch a duplicate.
	BlindHolder bool

	assigns int
	touched map[int64]time.Time
}

func newFakeApplicants() *fakeApplicants {
	return &fakeApplicants{rows: map[int64]models.Applicant{}, touched: map[int64]time.Time{}}
}

var _ repositories.ApplicantStore = (*fakeApplicants)(nil)

func (f *fakeApplicants) seed(a models.Applicant) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	a.ID = f.next
	if a.RegistrantType == "" {
		a.RegistrantType = models.RegistrantPending
	}
	if a.Status == "" {
		a.Status = models.StatusActive
	}
	f.rows[a.ID] = a
	return a.ID
}

func (f *fakeApplicants) get(id int64) models.Applicant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeApplicants) byEmail(email string) (models.Applicant, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.Email == email {
			return a, true
		}
	}
	return models.Applicant{}, false
}

func (f *fakeApplicants) FindByEmail(_ context.Context, email string) (*models.Applicant, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	a, ok := f.byEmail(email)
	if !ok {
		return nil, apperrors.ErrApplicantNotFound
	}
	return &a, nil
}

func (f *fakeApplicants) FindByID(_ context.Context, id int64) (*models.Applicant, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return nil, apperrors.ErrApplicantNotFound
	}
	return &a, nil
}

func (f *fakeApplicants) EnsurePending(_ context.Context, email, fullName string) (*models.Applicant, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.Email == email {
			return &a, nil
		}
	}
	f.next++
	a := models.Applicant{
		ID:             f.next,
		Email:          email,
		FullName:       fullName,
		RegistrantType: models.RegistrantPending,
		Status:         models.StatusActive,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	f.rows[a.ID] = a
	return &a, nil
}

func (f *fakeApplicants) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = at
	return nil
}

func (f *fakeApplicants) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repositories.ApplicantTx) error) error {
	if f.Err != nil {
		return f.Err
	}
	f.txMu.Lock()
	defer f.txMu.Unlock()

	tx := &fakeTx{store: f, writes: map[int64]models.Applicant{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, a := range tx.writes {
		f.rows[id] = a
	}
	f.assigns += len(tx.writes)
	return nil
}

type fakeTx struct {
	store  *fakeApplicants
	writes map[int64]models.Applicant
}

func (t *fakeTx) view() map[int64]models.Applicant {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	rows := make(map[int64]models.Applicant, len(t.store.rows))
	for id, a := range t.store.rows {
		rows[id] = a
	}
	for id, a := range t.writes {
		rows[id] = a
	}
	return rows
}

func (t *fakeTx) LockByID(_ context.Context, id int64) (*models.Applicant, error) {
	a, ok := t.view()[id]
	if !ok {
		return nil, apperrors.ErrApplicantNotFound
	}
	return &a, nil
}

func (t *fakeTx) FindHolder(_ context.Context, role models.Role, identifier string) (int64, bool, error) {
	if t.store.BlindHolder {
		return 0, false, nil
	}
	for id, a := range t.view() {
		if a.RegNo(role) == identifier {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (t *fakeTx) AssignIdentifier(_ context.Context, id int64, role models.Role, identifier string) error {
	rows := t.view()
	for otherID, a := range rows {
		if otherID != id && a.RegNo(role) == identifier {
			return apperrors.ErrDuplicateIdentifier
		}
	}
	a, ok := rows[id]
	if !ok {
		return apperrors.ErrApplicantNotFound
	}
	a.SetRegNo(role, identifier)
	a.UpdatedAt = time.Now()
	t.writes[id] = a
	return nil
}

// failingSaveStore fails every session state write.
type failingSaveStore struct {
	session.Store
}

func (failingSaveStore) Save(context.Context, string, *models.SessionState) error {
	return errors.New("session backend down")
}

type fakeDrafts struct {
	mu     sync.Mutex
	drafts map[int64]models.RegistrationDraft
	Err    error
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{drafts: map[int64]models.RegistrationDraft{}}
}

func (f *fakeDrafts) Upsert(_ context.Context, applicantID int64, payload json.RawMessage) (*models.RegistrationDraft, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d := models.RegistrationDraft{ApplicantID: applicantID, Payload: append(json.RawMessage(nil), payload...), UpdatedAt: time.Now()}
	f.drafts[applicantID] = d
	return &d, nil
}

func (f *fakeDrafts) FindByApplicant(_ context.Context, applicantID int64) (*models.RegistrationDraft, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[applicantID]
	if !ok {
		return nil, apperrors.ErrDraftNotFound
	}
	return &d, nil
}

type fakeProvider struct {
	identity *oauth.Identity
	err      error
	codes    []string
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.test/auth?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth.Identity, error) {
	p.codes = append(p.codes, code)
	if p.err != nil {
		return nil, p.err
	}
	return p.identity, nil
}

type testEnv struct {
	applicants *fakeApplicants
	sessions   *session.MemoryStore
	metrics    *metrics.Metrics
	promoter   SessionPromoter
	claims     ClaimService
}

func newTestEnv(t interface{ Cleanup(func()) }) *testEnv {
	applicants := newFakeApplicants()
	sessions := session.NewMemoryStore(15*time.Minute, time.Hour)
	t.Cleanup(sessions.Close)
	m := metrics.New(prometheus.NewRegistry())
	promoter := NewSessionPromoter(sessions, applicants, zerolog.Nop())
	return &testEnv{
		applicants: applicants,
		sessions:   sessions,
		metrics:    m,
		promoter:   promoter,
		claims:     NewClaimService(applicants, sessions, promoter, m, zerolog.Nop()),
	}
}

func (e *testEnv) putPending(sid, tempUserID, email, name string) {
	_ = e.sessions.PutPending(context.Background(), sid, &models.PendingSession{
		TempUserID:  tempUserID,
		Email:       email,
		DisplayName: name,
		CreatedAt:   time.Now(),
	})
}

func strPtr(s string) *string { return &s }
