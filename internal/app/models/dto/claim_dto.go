package dto

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/samber/lo"
)

// Claim response statuses
const (
	ClaimStatusSuccess = "success"
	ClaimStatusFailed  = "failed"
	ClaimStatusDenied  = "denied"
	ClaimStatusError   = "error"
)

// FinalizeRoleRequest is the role claim body. Older forms post userId, type
// and identifier, so each field accepts an alias. It binds from JSON or
// from a form body.
type FinalizeRoleRequest struct {
	TempUserID     string             `json:"tempUserId" form:"tempUserId" example:"0b6f1c1e-3f7e-4b55-9f43-4f2d2f0d7a11"`
	UserID         string             `json:"userId" form:"userId"`
	RegistrantType string             `json:"registrantType" form:"registrantType" example:"student" enums:"student,staff"`
	Type           string             `json:"type" form:"type"`
	Identity       RegistrationNumber `json:"identity" form:"identity" swaggertype:"string" example:"203045"`
	Identifier     RegistrationNumber `json:"identifier" form:"identifier" swaggertype:"string"`
}

// RegistrationNumber binds from a JSON string or a bare JSON number, since
// student numbers are all digits and some clients send them unquoted. A
// number keeps its literal text, so 203045.0 stays invalid.
type RegistrationNumber string

var errRegistrationNumberType = errors.New("registration number must be a string or a number")

// UnmarshalJSON implements json.Unmarshaler
func (n *RegistrationNumber) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = RegistrationNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return errRegistrationNumberType
	}
	*n = RegistrationNumber(num.String())
	return nil
}

// Ticket returns the pending sign-in handle
func (r *FinalizeRoleRequest) Ticket() string {
	return strings.TrimSpace(lo.CoalesceOrEmpty(r.TempUserID, r.UserID))
}

// Role returns the raw claimed role
func (r *FinalizeRoleRequest) Role() string {
	return lo.CoalesceOrEmpty(r.RegistrantType, r.Type)
}

// RegNo returns the raw registration number
func (r *FinalizeRoleRequest) RegNo() string {
	return string(lo.CoalesceOrEmpty(r.Identity, r.Identifier))
}

// FinalizeRoleUser is the signed-in applicant as returned to the client
type FinalizeRoleUser struct {
	ID    int64  `json:"id" example:"42"`
	Email string `json:"email" example:"ada@campus.edu"`
	Name  string `json:"name" example:"Ada Lovelace"`
}

// FinalizeRoleResponse is returned for every claim, successful or not
type FinalizeRoleResponse struct {
	Status   string            `json:"status" example:"success" enums:"success,failed,denied,error"`
	Message  string            `json:"message" example:"Registration complete"`
	Role     string            `json:"role,omitempty" example:"student"`
	Redirect string            `json:"redirect,omitempty" example:"/dashboard"`
	User     *FinalizeRoleUser `json:"user,omitempty"`
}
