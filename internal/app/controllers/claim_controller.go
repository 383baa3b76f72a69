package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yigit/campusreg/internal/app/models/dto"
	"github.com/yigit/campusreg/internal/app/services"
	"github.com/yigit/campusreg/internal/middleware"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
)

// ClaimController handles the role claim that finishes a sign-in
type ClaimController struct {
	claimService  services.ClaimService
	dashboardPath string
}

// NewClaimController creates a new ClaimController. dashboardPath is the
// landing page a successful claim sends the browser to.
func NewClaimController(claimService services.ClaimService, dashboardPath string) *ClaimController {
	return &ClaimController{
		claimService:  claimService,
		dashboardPath: dashboardPath,
	}
}

// FinalizeRole binds the pending sign-in to a student or staff record
// @Summary Claim a role with a registration number
// @Description Completes a pending sign-in. Students give a 6 digit number, staff a 5 character alphanumeric number. Accepts JSON or form bodies.
// @Tags auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token from /auth/csrf"
// @Param request body dto.FinalizeRoleRequest true "Role claim"
// @Success 200 {object} dto.FinalizeRoleResponse "Role claimed"
// @Failure 400 {object} dto.FinalizeRoleResponse "Invalid registration number or expired sign-in"
// @Failure 403 {object} dto.FinalizeRoleResponse "Registration number conflicts with an existing record"
// @Failure 500 {object} dto.FinalizeRoleResponse "Internal server error"
// @Router /auth/finalize-role [post]
func (c *ClaimController) FinalizeRole(ctx *gin.Context) {
	var req dto.FinalizeRoleRequest
	if err := ctx.ShouldBind(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.FinalizeRoleResponse{
			Status:  dto.ClaimStatusFailed,
			Message: "Malformed request",
		})
		return
	}
	if req.Ticket() == "" || strings.TrimSpace(req.Role()) == "" || strings.TrimSpace(req.RegNo()) == "" {
		ctx.JSON(http.StatusBadRequest, dto.FinalizeRoleResponse{
			Status:  dto.ClaimStatusFailed,
			Message: "tempUserId, registrantType and identity are required",
		})
		return
	}

	result, err := c.claimService.ClaimRole(ctx.Request.Context(), middleware.SessionID(ctx), services.ClaimRequest{
		TempUserID:     req.Ticket(),
		RegistrantType: req.Role(),
		Identifier:     req.RegNo(),
	})
	if err != nil {
		RespondClaimError(ctx, err)
		return
	}

	if result.Outcome == services.OutcomeAccepted && result.SessionID != "" {
		middleware.IssueSessionCookie(ctx, result.SessionID)
	}
	status, body := c.claimResponse(result)
	ctx.JSON(status, body)
}

func (c *ClaimController) claimResponse(result *services.ClaimResult) (int, dto.FinalizeRoleResponse) {
	switch result.Outcome {
	case services.OutcomeAccepted:
		return http.StatusOK, dto.FinalizeRoleResponse{
			Status:   dto.ClaimStatusSuccess,
			Message:  "Registration complete",
			Role:     string(result.Role),
			Redirect: c.dashboardPath,
			User: &dto.FinalizeRoleUser{
				ID:    result.Session.ApplicantID,
				Email: result.Session.Email,
				Name:  result.Session.Name,
			},
		}
	case services.OutcomeInvalidIdentifier:
		return http.StatusBadRequest, dto.FinalizeRoleResponse{
			Status:  dto.ClaimStatusFailed,
			Message: "Invalid registration number for the selected role",
		}
	case services.OutcomeMismatchWithRecord:
		return http.StatusForbidden, dto.FinalizeRoleResponse{
			Status:  dto.ClaimStatusDenied,
			Message: "This account is already linked to a different registration number",
		}
	case services.OutcomeDuplicateIdentifier:
		return http.StatusForbidden, dto.FinalizeRoleResponse{
			Status:  dto.ClaimStatusDenied,
			Message: "This registration number is already linked to another account",
		}
	case services.OutcomeAccountSuspended:
		return http.StatusForbidden, dto.FinalizeRoleResponse{
			Status:  dto.ClaimStatusDenied,
			Message: "This account is suspended",
		}
	case services.OutcomeSessionExpired:
		return http.StatusBadRequest, dto.FinalizeRoleResponse{
			Status:  dto.ClaimStatusError,
			Message: "Your sign-in session has expired, please sign in again",
		}
	default:
		return http.StatusInternalServerError, dto.FinalizeRoleResponse{
			Status:  dto.ClaimStatusError,
			Message: "An unexpected error occurred",
		}
	}
}

// RespondClaimError writes a failure in the role claim response shape. Every
// infrastructure failure, an unavailable session backend included, is a 500;
// the error detail stays in the server log.
func RespondClaimError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrCSRFTokenInvalid):
		ctx.JSON(http.StatusForbidden, dto.FinalizeRoleResponse{
			Status:  dto.ClaimStatusError,
			Message: "Invalid or missing CSRF token",
		})
	default:
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, dto.FinalizeRoleResponse{
			Status:  dto.ClaimStatusError,
			Message: "An unexpected error occurred",
		})
	}
}

// MethodNotAllowed answers unsupported methods in the role claim response shape
func MethodNotAllowed(ctx *gin.Context) {
	ctx.JSON(http.StatusMethodNotAllowed, dto.FinalizeRoleResponse{
		Status:  dto.ClaimStatusError,
		Message: "Method not allowed",
	})
}
