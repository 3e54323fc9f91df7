package domain

type Role string

const (
	RoleFarmer Role = "farmer"
	RoleBuyer  Role = "buyer"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleBuyer, RoleAdmin:
		return true
	}
	return false
}

// Actor identifies who is performing an operation. Every lifecycle
// call receives one; the engine rejects callers whose role has no
// authority over the requested transition.
type Actor struct {
	ID   string
	Role Role
}
