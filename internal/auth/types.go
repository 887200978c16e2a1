package auth

import (
	"errors"
	"fmt"
	"regexp"
)

// subjectPattern defines the valid format for token subjects:
// alphanumeric, dots, hyphens, underscores, @, 1-128 characters.
var subjectPattern = regexp.MustCompile(`^[a-zA-Z0-9._@-]{1,128}$`)

// IsValidSubject checks if a token subject meets format requirements.
func IsValidSubject(subject string) bool {
	return subjectPattern.MatchString(subject)
}

// Role represents an authorisation tier in the console.
type Role string

const (
	// RoleViewer can look at availability but change nothing.
	RoleViewer Role = "viewer"

	// RoleInstaller is a field technician placing devices on site.
	RoleInstaller Role = "installer"

	// RoleAdmin runs the console: metrics, token issuance.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of valid roles, lowest tier first.
var ValidRoles = []Role{RoleViewer, RoleInstaller, RoleAdmin}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !IsValidRole(r) {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Identity is the principal a token is issued to.
type Identity struct {
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrForbidden      = errors.New("insufficient permissions")
	ErrUnknownRole    = errors.New("unknown role")
	ErrInvalidSubject = errors.New("invalid subject")
)
