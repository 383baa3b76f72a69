package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/campusreg/internal/app/models/dto"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveError(t *testing.T, err error) (*httptest.ResponseRecorder, dto.ErrorResponse) {
	t.Helper()
	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop()))
	r.GET("/", func(c *gin.Context) { HandleAPIError(c, err) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHandleAPIErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   dto.ErrorCode
	}{
		{apperrors.ErrUnauthenticated, http.StatusUnauthorized, dto.ErrorCodeUnauthorized},
		{apperrors.ErrCSRFTokenInvalid, http.StatusForbidden, dto.ErrorCodeCSRFInvalid},
		{apperrors.ErrOAuthStateMismatch, http.StatusBadRequest, dto.ErrorCodeOAuthState},
		{apperrors.ErrIdentityUnverified, http.StatusForbidden, dto.ErrorCodeIdentityUnverified},
		{fmt.Errorf("sign in: %w", apperrors.ErrAccountSuspended), http.StatusForbidden, dto.ErrorCodeAccountSuspended},
		{apperrors.ErrDraftNotFound, http.StatusNotFound, dto.ErrorCodeResourceNotFound},
		{apperrors.ErrInvalidDraftPayload, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{apperrors.NewBadRequestError("missing code"), http.StatusBadRequest, dto.ErrorCodeBadRequest},
		{apperrors.ErrUnavailable, http.StatusServiceUnavailable, dto.ErrorCodeServiceUnavailable},
		{errors.New("pq: relation does not exist"), http.StatusInternalServerError, dto.ErrorCodeInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w, body := serveError(t, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestHandleAPIErrorHidesInternalDetail(t *testing.T) {
	w, body := serveError(t, errors.New("dial tcp 10.0.0.7:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.7")
	assert.Equal(t, "request "+w.Header().Get("X-Request-ID"), body.Error.DebugInfo)
	assert.Equal(t, dto.ErrorSeverityError, body.Error.Severity)
}

func TestHandleAPIErrorUsesCustomMessage(t *testing.T) {
	err := apperrors.NewCustomError(apperrors.ErrBadRequest, "Sign-in was cancelled").
		WithDetails(map[string]interface{}{"reason": "access_denied"})

	w, body := serveError(t, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Sign-in was cancelled", body.Error.Message)
	assert.Equal(t, map[string]interface{}{"reason": "access_denied"}, body.Error.Details)
	assert.Equal(t, dto.ErrorSeverityWarning, body.Error.Severity)
	assert.Empty(t, body.Error.DebugInfo)
}

func TestRequestLoggerRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", given)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, given, w.Body.String())
	assert.Contains(t, buf.String(), given)

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "not-a-uuid\nforged")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
	assert.Equal(t, w.Body.String(), w.Header().Get("X-Request-ID"))
}

func TestSessionCookieKeepsValidID(t *testing.T) {
	r := gin.New()
	r.Use(SessionCookie(SessionCookieConfig{Name: "sid", TTL: time.Hour}))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, SessionID(c)) })

	sid := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, sid, w.Body.String())
	assert.Empty(t, w.Result().Cookies(), "a valid cookie is not reissued")
}

func TestSessionCookieIssuesID(t *testing.T) {
	r := gin.New()
	r.Use(SessionCookie(SessionCookieConfig{Name: "sid", Secure: true, TTL: time.Hour}))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, SessionID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, w.Body.String(), cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, 3600, cookies[0].MaxAge)
}

func TestIssueSessionCookieReplacesID(t *testing.T) {
	r := gin.New()
	r.Use(SessionCookie(SessionCookieConfig{Name: "sid", TTL: time.Hour}))
	r.POST("/", func(c *gin.Context) {
		IssueSessionCookie(c, "rotated")
		c.String(http.StatusOK, SessionID(c))
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: uuid.NewString()})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "rotated", w.Body.String())
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "rotated", cookies[0].Value)
}
