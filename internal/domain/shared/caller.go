package shared

import "context"

// Role is the marketplace role of an authenticated caller.
type Role string

const (
	RoleStudent Role = "student"
	RoleMentor  Role = "mentor"
	RoleAdmin   Role = "admin"
)

// IsValid reports whether the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleMentor, RoleAdmin:
		return true
	default:
		return false
	}
}

// Caller identifies who is performing an operation. It is passed explicitly
// into every command so the core never resolves the current user itself.
type Caller struct {
	UserID string
	Role   Role
}

// IsZero reports whether no identity is present.
func (c Caller) IsZero() bool {
	return c.UserID == ""
}

// Transactor runs fn inside one storage transaction. Repositories pick the
// transaction up from the context passed to fn.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
