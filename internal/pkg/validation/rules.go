package validation

import (
	"regexp"

	"github.com/yigit/campusreg/internal/app/models"
)

// Registration number patterns
var (
	// Student registration number - exactly 6 ASCII digits
	StudentRegNoPattern = `^[0-9]{6}$`

	// Staff registration number - exactly 5 ASCII letters or digits
	StaffRegNoPattern = `^[A-Za-z0-9]{5}$`
)

// CompiledPatterns caches compiled regex patterns
var CompiledPatterns = struct {
	StudentRegNo *regexp.Regexp
	StaffRegNo   *regexp.Regexp
}{
	StudentRegNo: regexp.MustCompile(StudentRegNoPattern),
	StaffRegNo:   regexp.MustCompile(StaffRegNoPattern),
}

// ValidIdentifier reports whether identifier is a well formed registration
// number for role. It is defined for every input and never panics.
func ValidIdentifier(role models.Role, identifier string) bool {
	switch role {
	case models.RoleStudent:
		return CompiledPatterns.StudentRegNo.MatchString(identifier)
	case models.RoleStaff:
		return CompiledPatterns.StaffRegNo.MatchString(identifier)
	default:
		return false
	}
}
