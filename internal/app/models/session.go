package models

import "time"

// PendingSession is the ticket deposited after a successful IdP sign-in and
// before the applicant has claimed a role. Email and display name come from
// the identity provider and are the only trusted identity attributes.
type PendingSession struct {
	TempUserID  string    `json:"tempUserId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AuthenticatedSession is written by the session promoter once an applicant
// is finalized.
type AuthenticatedSession struct {
	ApplicantID int64          `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Role        RegistrantType `json:"role"`
	LoginAt     time.Time      `json:"loginAt"`
	LoggedIn    bool           `json:"loggedIn"`
}

// SessionState is everything stored against one browser session.
type SessionState struct {
	CSRFToken  string                `json:"csrfToken,omitempty"`
	OAuthState string                `json:"oauthState,omitempty"`
	Auth       *AuthenticatedSession `json:"auth,omitempty"`
}
