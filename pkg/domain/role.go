package domain

import dErrors "regassist/pkg/domain-errors"

// Role is the caller role recorded in the authorization context.
// Invariant: the value must be one of the supported roles.
//
// Roles are carried for attribution only; the compliance core records them on
// audit entries and never branches on them.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
	RoleAuditor Role = "auditor"
	RoleSystem  Role = "system"
)

var validRoles = map[Role]bool{
	RoleAdmin:   true,
	RoleAnalyst: true,
	RoleAuditor: true,
	RoleSystem:  true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string {
	return string(r)
}
