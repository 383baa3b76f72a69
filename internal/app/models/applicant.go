package models

import "time"

// Applicant is a person who registers vehicles, identified by email.
type Applicant struct {
	ID             int64          `json:"id"`
	Email          string         `json:"email"`
	FullName       string         `json:"fullName"`
	RegistrantType RegistrantType `json:"registrantType"`
	StudentRegNo   *string        `json:"studentRegNo,omitempty"`
	StaffsRegNo    *string        `json:"staffsRegNo,omitempty"`
	Status         AccountStatus  `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	LastLoginAt    *time.Time     `json:"lastLoginAt,omitempty"`
}

// RegNo returns the registration number recorded for role, or "" if none.
func (a *Applicant) RegNo(role Role) string {
	var v *string
	switch role {
	case RoleStudent:
		v = a.StudentRegNo
	case RoleStaff:
		v = a.StaffsRegNo
	}
	if v == nil {
		return ""
	}
	return *v
}

// SetRegNo records identifier for role and clears the other role's column.
func (a *Applicant) SetRegNo(role Role, identifier string) {
	id := identifier
	switch role {
	case RoleStudent:
		a.StudentRegNo, a.StaffsRegNo = &id, nil
	case RoleStaff:
		a.StaffsRegNo, a.StudentRegNo = &id, nil
	default:
		return
	}
	a.RegistrantType = role.RegistrantType()
}

// IsSuspended reports whether an administrator has suspended the account.
func (a *Applicant) IsSuspended() bool {
	return a.Status == StatusSuspended
}
