package controllers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yigit/campusreg/internal/app/models/dto"
	"github.com/yigit/campusreg/internal/app/services"
	"github.com/yigit/campusreg/internal/middleware"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
)

// AuthController handles identity provider sign-in and the browser session
type AuthController struct {
	signInService  services.SignInService
	sessionService services.SessionService
	selectRolePath string
	dashboardPath  string
}

// NewAuthController creates a new AuthController. signInService may be
// nil when no identity provider is configured.
func NewAuthController(
	signInService services.SignInService,
	sessionService services.SessionService,
	selectRolePath, dashboardPath string,
) *AuthController {
	return &AuthController{
		signInService:  signInService,
		sessionService: sessionService,
		selectRolePath: selectRolePath,
		dashboardPath:  dashboardPath,
	}
}

func (c *AuthController) signInDisabled(ctx *gin.Context) bool {
	if c.signInService != nil {
		return false
	}
	ctx.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse(
		dto.NewErrorDetail(dto.ErrorCodeSignInUnavailable, "Sign-in is not configured"),
	))
	return true
}

// GoogleLogin starts the identity provider sign-in
// @Summary Start sign-in
// @Description Redirects to the identity provider
// @Tags auth
// @Success 302 "Redirect to the identity provider"
// @Failure 503 {object} dto.ErrorResponse "Sign-in is not configured"
// @Router /auth/google/login [get]
func (c *AuthController) GoogleLogin(ctx *gin.Context) {
	if c.signInDisabled(ctx) {
		return
	}
	authURL, err := c.signInService.BeginSignIn(ctx.Request.Context(), middleware.SessionID(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.Redirect(http.StatusFound, authURL)
}

// GoogleCallback finishes the identity provider sign-in
// @Summary Sign-in callback
// @Description Verifies the provider response. Applicants without a role are sent to role selection with a tempUserId, others to the dashboard.
// @Tags auth
// @Param state query string true "State issued by /auth/google/login"
// @Param code query string true "Authorization code"
// @Success 302 "Redirect to role selection or the dashboard"
// @Failure 400 {object} dto.ErrorResponse "Sign-in attempt expired"
// @Failure 403 {object} dto.ErrorResponse "Unverified email or suspended account"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/google/callback [get]
func (c *AuthController) GoogleCallback(ctx *gin.Context) {
	if c.signInDisabled(ctx) {
		return
	}
	if reason := ctx.Query("error"); reason != "" {
		middleware.HandleAPIError(ctx, apperrors.NewCustomError(apperrors.ErrBadRequest, "Sign-in was cancelled").
			WithDetails(map[string]interface{}{"reason": reason}))
		return
	}

	result, err := c.signInService.CompleteSignIn(ctx.Request.Context(), middleware.SessionID(ctx), ctx.Query("state"), ctx.Query("code"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	if result.Finalized() {
		if result.SessionID != "" {
			middleware.IssueSessionCookie(ctx, result.SessionID)
		}
		ctx.Redirect(http.StatusFound, c.dashboardPath)
		return
	}
	ctx.Redirect(http.StatusFound, c.selectRolePath+"?tempUserId="+url.QueryEscape(result.TempUserID))
}

// CSRFToken returns the CSRF token of the browser session
// @Summary Get CSRF token
// @Tags auth
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.CSRFTokenResponse}
// @Router /auth/csrf [get]
func (c *AuthController) CSRFToken(ctx *gin.Context) {
	token, err := c.sessionService.CSRFToken(ctx.Request.Context(), middleware.SessionID(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.CSRFTokenResponse{CSRFToken: token}))
}

// CurrentSession returns the signed-in applicant
// @Summary Current session
// @Tags auth
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.SessionResponse}
// @Failure 401 {object} dto.ErrorResponse "Not signed in"
// @Router /auth/session [get]
func (c *AuthController) CurrentSession(ctx *gin.Context) {
	auth := middleware.CurrentSession(ctx)
	if auth == nil {
		middleware.HandleAPIError(ctx, apperrors.ErrUnauthenticated)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewSessionResponse(auth)))
}

// Logout clears the browser session and hands out a fresh session id
// @Summary Sign out
// @Tags auth
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse}
// @Router /auth/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	if err := c.sessionService.Logout(ctx.Request.Context(), middleware.SessionID(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	middleware.IssueSessionCookie(ctx, uuid.NewString())
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SuccessResponse{Message: "Signed out"}))
}
