package domain

// User holds the profile fields the gateway tracks for a session. The remote
// backend owns the account; this is the slice the session carries.
type User struct {
	ID        int64
	Email     string
	Role      Role
	FirstName string
	LastName  string
	PhoneNo   string
	StateID   int64
	State     *USState
}

// Role is the application role carried on the session.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole returns the Role for s, defaulting to RoleUser for anything
// unrecognized so a missing role claim never grants admin.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// USState is the US state a user plays in.
type USState struct {
	ID   int64
	Name string
	Code string
}
