package identity

import "strings"

// Role enum
type Role string

const (
	RolePatient   Role = "PATIENT"
	RoleAdmin     Role = "ADMIN"
	RoleClinician Role = "CLINICIAN"
)

// ParseRole folds case; unknown roles are kept as-is and treated as unprivileged.
func ParseRole(s string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(s)))
}

// Caller is the authenticated principal handed to the core by the auth layer.
// It is trusted without further verification.
type Caller struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (c *Caller) IsAdmin() bool   { return c != nil && c.Role == RoleAdmin }
func (c *Caller) IsPatient() bool { return c != nil && c.Role == RolePatient }
