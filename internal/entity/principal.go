package entity

type Role string

const (
	RoleStudent Role = "student"
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
)

// Principal is the authenticated caller, extracted from the bearer token.
type Principal struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
