// internal/registration/fulfillment/role.go
package fulfillment

import (
	"fmt"
	"strings"
)

// Role is the caller's role, resolved once when a session opens.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleAdmin     Role = "admin"
)

// ParseRole maps the role codes used by the surrounding screens onto Role.
func ParseRole(code string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "applicant", "client", "customer", "user":
		return RoleApplicant, nil
	case "admin", "operator", "staff", "superadmin":
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", code)
	}
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}
