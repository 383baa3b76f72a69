package models

import (
	"encoding/json"
	"time"
)

// RegistrationDraft is the partially completed registration form of one
// applicant. Payload is opaque to the server.
type RegistrationDraft struct {
	ApplicantID int64           `json:"applicantId"`
	Payload     json.RawMessage `json:"payload"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
