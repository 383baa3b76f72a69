package apperrors

import "errors"

// Common errors
var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrConflict         = errors.New("conflict")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")
	ErrUnavailable      = errors.New("service unavailable")
)

// Applicant errors
var (
	ErrApplicantNotFound   = errors.New("applicant not found")
	ErrAccountSuspended    = errors.New("account is suspended")
	ErrIdentifierMismatch  = errors.New("registration number differs from the one on record")
	ErrDuplicateIdentifier = errors.New("registration number already linked to another applicant")
)

// Session errors
var (
	ErrPendingNotFound    = errors.New("pending session not found")
	ErrUnauthenticated    = errors.New("not signed in")
	ErrCSRFTokenInvalid   = errors.New("invalid csrf token")
	ErrOAuthStateMismatch = errors.New("oauth state mismatch")
	ErrIdentityUnverified = errors.New("identity provider did not verify the email address")
)

// Draft errors
var (
	ErrDraftNotFound       = errors.New("registration draft not found")
	ErrInvalidDraftPayload = errors.New("registration draft must be valid JSON")
)

// NewBadRequestError creates a new custom error for bad request with a message
func NewBadRequestError(message string) error {
	return &CustomError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// Is returns whether err matches target or any of errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}
	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Details map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}
