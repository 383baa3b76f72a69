package models

import "strings"

// Role is a role an applicant can claim with a registration number.
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
)

// ParseClaimRole normalizes a client supplied role. Only student and staff
// are claimable.
func ParseClaimRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleStaff:
		return RoleStaff, true
	default:
		return "", false
	}
}

// RegistrantType returns the applicant classification a successful claim
// of this role produces.
func (r Role) RegistrantType() RegistrantType {
	switch r {
	case RoleStudent:
		return RegistrantStudent
	case RoleStaff:
		return RegistrantStaff
	default:
		return RegistrantPending
	}
}

// RegistrantType classifies an applicant.
type RegistrantType string

const (
	RegistrantPending RegistrantType = "pending"
	RegistrantStudent RegistrantType = "student"
	RegistrantStaff   RegistrantType = "staff"
	RegistrantGuest   RegistrantType = "guest"
)

// Finalized reports whether the applicant has left the pending state.
func (t RegistrantType) Finalized() bool {
	switch t {
	case RegistrantStudent, RegistrantStaff, RegistrantGuest:
		return true
	default:
		return false
	}
}

// AccountStatus is the moderation state of an applicant.
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusSuspended AccountStatus = "suspended"
)
