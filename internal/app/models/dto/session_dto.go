package dto

import (
	"time"

	"github.com/yigit/campusreg/internal/app/models"
)

// CSRFTokenResponse carries the token to echo in X-CSRF-Token
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// SessionResponse describes the signed-in applicant
type SessionResponse struct {
	ID       int64     `json:"id" example:"42"`
	Email    string    `json:"email" example:"ada@campus.edu"`
	Name     string    `json:"name" example:"Ada Lovelace"`
	Role     string    `json:"role" example:"student"`
	LoginAt  time.Time `json:"loginAt"`
	LoggedIn bool      `json:"loggedIn" example:"true"`
}

// NewSessionResponse converts an authenticated session to its response
func NewSessionResponse(s *models.AuthenticatedSession) SessionResponse {
	return SessionResponse{
		ID:       s.ApplicantID,
		Email:    s.Email,
		Name:     s.Name,
		Role:     string(s.Role),
		LoginAt:  s.LoginAt,
		LoggedIn: s.LoggedIn,
	}
}
