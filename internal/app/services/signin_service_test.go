package services

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
	"github.com/yigit/campusreg/internal/pkg/oauth"
)

func newSignIn(env *testEnv, provider *fakeProvider) SignInService {
	return NewSignInService(provider, env.applicants, env.sessions, env.promoter, env.metrics, zerolog.Nop())
}

// beginState runs BeginSignIn and returns the state value sent to the IdP.
func beginState(t *testing.T, svc SignInService, sid string) string {
	t.Helper()
	authURL, err := svc.BeginSignIn(context.Background(), sid)
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestCompleteSignInNewApplicantGetsTicket(t *testing.T) {
	env := newTestEnv(t)
	provider := &fakeProvider{identity: &oauth.Identity{Email: "a@x.edu", EmailVerified: true, Name: "Ada"}}
	svc := newSignIn(env, provider)
	ctx := context.Background()

	state := beginState(t, svc, "sid")
	res, err := svc.CompleteSignIn(ctx, "sid", state, "code-1")
	require.NoError(t, err)
	assert.False(t, res.Finalized())
	require.NotEmpty(t, res.TempUserID)
	assert.Equal(t, []string{"code-1"}, provider.codes)

	pending, err := env.sessions.GetPending(ctx, "sid", res.TempUserID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.edu", pending.Email)
	assert.Equal(t, "Ada", pending.DisplayName)

	a, ok := env.applicants.byEmail("a@x.edu")
	require.True(t, ok)
	assert.Equal(t, models.RegistrantPending, a.RegistrantType)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.SignIns.WithLabelValues("pending")))

	// the ticket drives a claim end to end
	claim, err := env.claims.ClaimRole(ctx, "sid", ClaimRequest{TempUserID: res.TempUserID, RegistrantType: "student", Identifier: "203045"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, claim.Outcome)
	assert.Equal(t, a.ID, claim.Applicant.ID)
}

func TestCompleteSignInFinalizedApplicantIsPromoted(t *testing.T) {
	env := newTestEnv(t)
	id := env.applicants.seed(models.Applicant{Email: "a@x.edu", FullName: "Ada", RegistrantType: models.RegistrantStaff, StaffsRegNo: strPtr("AB123")})
	svc := newSignIn(env, &fakeProvider{identity: &oauth.Identity{Email: "a@x.edu", EmailVerified: true, Name: "Ada L"}})

	res, err := svc.CompleteSignIn(context.Background(), "sid", beginState(t, svc, "sid"), "code")
	require.NoError(t, err)
	require.True(t, res.Finalized())
	assert.Empty(t, res.TempUserID)
	assert.Equal(t, id, res.Session.ApplicantID)
	assert.Equal(t, models.RegistrantStaff, res.Session.Role)
	assert.Equal(t, "Ada", res.Session.Name, "stored name wins over the provider's")

	require.NotEmpty(t, res.SessionID)
	state, err := env.sessions.Load(context.Background(), res.SessionID)
	require.NoError(t, err)
	require.NotNil(t, state.Auth)
	assert.Empty(t, state.OAuthState)

	old, err := env.sessions.Load(context.Background(), "sid")
	require.NoError(t, err)
	assert.Nil(t, old.Auth)
}

func TestCompleteSignInRejectsBadState(t *testing.T) {
	env := newTestEnv(t)
	provider := &fakeProvider{identity: &oauth.Identity{Email: "a@x.edu", EmailVerified: true}}
	svc := newSignIn(env, provider)
	ctx := context.Background()

	_, err := svc.CompleteSignIn(ctx, "sid", "anything", "code")
	assert.ErrorIs(t, err, apperrors.ErrOAuthStateMismatch, "no sign-in was started")

	state := beginState(t, svc, "sid")
	_, err = svc.CompleteSignIn(ctx, "sid", state+"x", "code")
	assert.ErrorIs(t, err, apperrors.ErrOAuthStateMismatch)

	_, err = svc.CompleteSignIn(ctx, "sid", state, "code")
	assert.ErrorIs(t, err, apperrors.ErrOAuthStateMismatch, "a failed attempt burns the state")
	assert.Empty(t, provider.codes)
}

func TestCompleteSignInStateIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	svc := newSignIn(env, &fakeProvider{identity: &oauth.Identity{Email: "a@x.edu", EmailVerified: true}})
	ctx := context.Background()

	state := beginState(t, svc, "sid")
	_, err := svc.CompleteSignIn(ctx, "sid", state, "code")
	require.NoError(t, err)
	_, err = svc.CompleteSignIn(ctx, "sid", state, "code")
	assert.ErrorIs(t, err, apperrors.ErrOAuthStateMismatch)
}

func TestCompleteSignInRejections(t *testing.T) {
	tests := []struct {
		name     string
		identity *oauth.Identity
		provErr  error
		seed     *models.Applicant
		wantErr  error
		label    string
	}{
		{
			name:     "unverified email",
			identity: &oauth.Identity{Email: "a@x.edu", EmailVerified: false},
			wantErr:  apperrors.ErrIdentityUnverified,
			label:    "unverified",
		},
		{
			name:     "missing email",
			identity: &oauth.Identity{EmailVerified: true},
			wantErr:  apperrors.ErrIdentityUnverified,
			label:    "unverified",
		},
		{
			name:     "suspended account",
			identity: &oauth.Identity{Email: "a@x.edu", EmailVerified: true},
			seed:     &models.Applicant{Email: "a@x.edu", Status: models.StatusSuspended},
			wantErr:  apperrors.ErrAccountSuspended,
			label:    "suspended",
		},
		{
			name:    "exchange failure",
			provErr: errors.New("invalid_grant"),
			label:   "error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.seed != nil {
				env.applicants.seed(*tt.seed)
			}
			svc := newSignIn(env, &fakeProvider{identity: tt.identity, err: tt.provErr})

			res, err := svc.CompleteSignIn(context.Background(), "sid", beginState(t, svc, "sid"), "code")
			require.Error(t, err)
			assert.Nil(t, res)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.SignIns.WithLabelValues(tt.label)))
		})
	}
}

func TestCompleteSignInNameFallsBackToEmail(t *testing.T) {
	env := newTestEnv(t)
	svc := newSignIn(env, &fakeProvider{identity: &oauth.Identity{Email: "a@x.edu", EmailVerified: true, Name: "  "}})

	res, err := svc.CompleteSignIn(context.Background(), "sid", beginState(t, svc, "sid"), "code")
	require.NoError(t, err)
	pending, err := env.sessions.GetPending(context.Background(), "sid", res.TempUserID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.edu", pending.DisplayName)
}
