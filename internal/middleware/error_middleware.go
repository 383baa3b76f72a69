package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/campusreg/internal/app/models/dto"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
)

// HandleAPIError maps an error to the standard error response. Anything
// unrecognized becomes a generic 500; the error itself is attached to the
// context for the request logger and never written to the client.
func HandleAPIError(c *gin.Context, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if id := RequestID(c); id != "" {
			detail.WithDebugInfo("request %s", id)
		}
	} else {
		detail.WithSeverity(dto.ErrorSeverityWarning)
	}

	var custom *apperrors.CustomError
	if errors.As(err, &custom) && status < http.StatusInternalServerError {
		if custom.Message != "" {
			detail.Message = custom.Message
		}
		if custom.Details != nil {
			detail.WithDetails(custom.Details)
		}
	}

	c.JSON(status, dto.NewErrorResponse(detail))
}

func classify(err error) (int, *dto.ErrorDetail) {
	switch {
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Sign in required")
	case errors.Is(err, apperrors.ErrCSRFTokenInvalid):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeCSRFInvalid, "Invalid or missing CSRF token")
	case errors.Is(err, apperrors.ErrOAuthStateMismatch):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeOAuthState, "Sign-in attempt expired, please start again")
	case errors.Is(err, apperrors.ErrIdentityUnverified):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeIdentityUnverified, "Email address is not verified")
	case errors.Is(err, apperrors.ErrAccountSuspended):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeAccountSuspended, "Account is suspended")
	case apperrors.Is(err, apperrors.ErrDraftNotFound, apperrors.ErrApplicantNotFound, apperrors.ErrResourceNotFound):
		return http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "Resource not found")
	case errors.Is(err, apperrors.ErrPermissionDenied):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeForbidden, "Permission denied")
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeConflict, "Conflict")
	case errors.Is(err, apperrors.ErrInvalidDraftPayload):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Draft payload must be valid JSON").WithField("payload")
	case apperrors.Is(err, apperrors.ErrValidationFailed, apperrors.ErrBadRequest):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeBadRequest, "Bad request")
	case errors.Is(err, apperrors.ErrUnavailable):
		return http.StatusServiceUnavailable, dto.NewErrorDetail(dto.ErrorCodeServiceUnavailable, "Service temporarily unavailable")
	default:
		return http.StatusInternalServerError, dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error")
	}
}
