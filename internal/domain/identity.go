package domain

// Role is the coarse capability carried in a caller's token.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleUser     Role = "user"
)

// Caller is the authenticated identity behind a request. Account
// management lives elsewhere; the pipeline only sees this.
type Caller struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// IsAdmin reports whether the caller holds the administrative role.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleUser:
		return true
	}
	return false
}
