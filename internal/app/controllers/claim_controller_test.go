package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/app/models/dto"
	"github.com/yigit/campusreg/internal/app/services"
	"github.com/yigit/campusreg/internal/middleware"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
)

type stubClaimService struct {
	result *services.ClaimResult
	err    error
	got    []services.ClaimRequest
	sids   []string
}

func (s *stubClaimService) ClaimRole(_ context.Context, sid string, req services.ClaimRequest) (*services.ClaimResult, error) {
	s.got = append(s.got, req)
	s.sids = append(s.sids, sid)
	return s.result, s.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newClaimRouter(svc services.ClaimService) *gin.Engine {
	r := gin.New()
	r.POST("/finalize-role", func(c *gin.Context) {
		c.Set("sessionID", "sid-1")
	}, NewClaimController(svc, "/dashboard").FinalizeRole)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeClaim(t *testing.T, w *httptest.ResponseRecorder) dto.FinalizeRoleResponse {
	t.Helper()
	var body dto.FinalizeRoleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestFinalizeRoleOutcomeMapping(t *testing.T) {
	accepted := &services.ClaimResult{
		Outcome: services.OutcomeAccepted,
		Role:    models.RoleStudent,
		Session: &models.AuthenticatedSession{ApplicantID: 42, Email: "a@x.edu", Name: "A", Role: models.RegistrantStudent, LoggedIn: true},
	}
	tests := []struct {
		name       string
		result     *services.ClaimResult
		err        error
		wantCode   int
		wantStatus string
	}{
		{"accepted", accepted, nil, http.StatusOK, dto.ClaimStatusSuccess},
		{"invalid identifier", &services.ClaimResult{Outcome: services.OutcomeInvalidIdentifier}, nil, http.StatusBadRequest, dto.ClaimStatusFailed},
		{"mismatch", &services.ClaimResult{Outcome: services.OutcomeMismatchWithRecord}, nil, http.StatusForbidden, dto.ClaimStatusDenied},
		{"duplicate", &services.ClaimResult{Outcome: services.OutcomeDuplicateIdentifier}, nil, http.StatusForbidden, dto.ClaimStatusDenied},
		{"suspended", &services.ClaimResult{Outcome: services.OutcomeAccountSuspended}, nil, http.StatusForbidden, dto.ClaimStatusDenied},
		{"session expired", &services.ClaimResult{Outcome: services.OutcomeSessionExpired}, nil, http.StatusBadRequest, dto.ClaimStatusError},
		{"infrastructure failure", nil, errors.New(`pq: relation "applicants" does not exist`), http.StatusInternalServerError, dto.ClaimStatusError},
		{"session backend down", nil, fmt.Errorf("%w: session store: circuit breaker is open", apperrors.ErrUnavailable), http.StatusInternalServerError, dto.ClaimStatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubClaimService{result: tt.result, err: tt.err}
			w := postJSON(newClaimRouter(svc), "/finalize-role", `{"tempUserId":"t1","registrantType":"student","identity":"203045"}`)

			assert.Equal(t, tt.wantCode, w.Code)
			body := decodeClaim(t, w)
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.NotEmpty(t, body.Message)
			assert.NotContains(t, w.Body.String(), "applicants", "internal detail never reaches the client")
			if tt.wantStatus != dto.ClaimStatusSuccess {
				assert.Nil(t, body.User)
				assert.Empty(t, body.Redirect)
			}
		})
	}
}

func TestFinalizeRoleSuccessBody(t *testing.T) {
	svc := &stubClaimService{result: &services.ClaimResult{
		Outcome: services.OutcomeAccepted,
		Role:    models.RoleStaff,
		Session: &models.AuthenticatedSession{ApplicantID: 7, Email: "s@x.edu", Name: "Staff Person"},
	}}
	w := postJSON(newClaimRouter(svc), "/finalize-role", `{"tempUserId":"t1","registrantType":"staff","identity":"AB123"}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeClaim(t, w)
	assert.Equal(t, "staff", body.Role)
	assert.Equal(t, "/dashboard", body.Redirect)
	require.NotNil(t, body.User)
	assert.Equal(t, dto.FinalizeRoleUser{ID: 7, Email: "s@x.edu", Name: "Staff Person"}, *body.User)
	assert.Equal(t, []string{"sid-1"}, svc.sids)
}

func TestFinalizeRoleFieldAliases(t *testing.T) {
	svc := &stubClaimService{result: &services.ClaimResult{Outcome: services.OutcomeInvalidIdentifier}}
	postJSON(newClaimRouter(svc), "/finalize-role", `{"userId":"t9","type":" STAFF ","identifier":" AB123 "}`)

	require.Len(t, svc.got, 1)
	assert.Equal(t, services.ClaimRequest{TempUserID: "t9", RegistrantType: " STAFF ", Identifier: " AB123 "}, svc.got[0])
}

func TestFinalizeRolePrimaryFieldsWinOverAliases(t *testing.T) {
	svc := &stubClaimService{result: &services.ClaimResult{Outcome: services.OutcomeInvalidIdentifier}}
	postJSON(newClaimRouter(svc), "/finalize-role", `{"tempUserId":"a","userId":"b","registrantType":"student","type":"staff","identity":"111111","identifier":"222222"}`)

	require.Len(t, svc.got, 1)
	assert.Equal(t, services.ClaimRequest{TempUserID: "a", RegistrantType: "student", Identifier: "111111"}, svc.got[0])
}

func TestFinalizeRoleAcceptsForm(t *testing.T) {
	svc := &stubClaimService{result: &services.ClaimResult{Outcome: services.OutcomeSessionExpired}}
	form := url.Values{"tempUserId": {"t1"}, "registrantType": {"student"}, "identity": {"203045"}}
	req := httptest.NewRequest(http.MethodPost, "/finalize-role", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	newClaimRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ClaimStatusError, decodeClaim(t, w).Status)
	require.Len(t, svc.got, 1)
	assert.Equal(t, "203045", svc.got[0].Identifier)
}

func TestFinalizeRoleRejectsBadRequestShape(t *testing.T) {
	for name, body := range map[string]string{
		"malformed json":     `{"tempUserId":`,
		"missing ticket":     `{"registrantType":"student","identity":"203045"}`,
		"missing role":       `{"tempUserId":"t1","identity":"203045"}`,
		"missing identifier": `{"tempUserId":"t1","registrantType":"student","identity":"   "}`,
	} {
		t.Run(name, func(t *testing.T) {
			svc := &stubClaimService{}
			w := postJSON(newClaimRouter(svc), "/finalize-role", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, dto.ClaimStatusFailed, decodeClaim(t, w).Status)
			assert.Empty(t, svc.got, "rejected before reaching the service")
		})
	}
}

func TestFinalizeRoleAcceptsNumericIdentity(t *testing.T) {
	svc := &stubClaimService{result: &services.ClaimResult{Outcome: services.OutcomeInvalidIdentifier}}
	postJSON(newClaimRouter(svc), "/finalize-role", `{"tempUserId":"t1","registrantType":"student","identity":203045}`)

	require.Len(t, svc.got, 1)
	assert.Equal(t, "203045", svc.got[0].Identifier)
}

func TestFinalizeRoleRejectsNonScalarIdentity(t *testing.T) {
	for name, body := range map[string]string{
		"bool":   `{"tempUserId":"t1","registrantType":"student","identity":true}`,
		"object": `{"tempUserId":"t1","registrantType":"student","identity":{"n":1}}`,
	} {
		t.Run(name, func(t *testing.T) {
			svc := &stubClaimService{}
			w := postJSON(newClaimRouter(svc), "/finalize-role", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, dto.ClaimStatusFailed, decodeClaim(t, w).Status)
			assert.Empty(t, svc.got)
		})
	}
}

func TestFinalizeRoleRotatesSessionCookie(t *testing.T) {
	svc := &stubClaimService{result: &services.ClaimResult{
		Outcome:   services.OutcomeAccepted,
		Role:      models.RoleStudent,
		Session:   &models.AuthenticatedSession{ApplicantID: 3},
		SessionID: "9d5e1f0a-2b3c-4d5e-8f70-112233445566",
	}}
	r := gin.New()
	r.Use(middleware.SessionCookie(middleware.SessionCookieConfig{Name: "campus_sid", TTL: time.Hour}))
	r.POST("/finalize-role", NewClaimController(svc, "/dashboard").FinalizeRole)

	req := httptest.NewRequest(http.MethodPost, "/finalize-role", strings.NewReader(`{"tempUserId":"t1","registrantType":"student","identity":"203045"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "campus_sid", Value: "0b6f1c1e-3f7e-4b55-9f43-4f2d2f0d7a11"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"0b6f1c1e-3f7e-4b55-9f43-4f2d2f0d7a11"}, svc.sids)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "9d5e1f0a-2b3c-4d5e-8f70-112233445566", cookies[0].Value)
}
