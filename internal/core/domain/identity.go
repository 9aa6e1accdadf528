package domain

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleStaff    Role = "STAFF"
	RoleAdmin    Role = "ADMIN"
)

// Identity is the authenticated caller, if any.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

func (id *Identity) Privileged() bool {
	return id != nil && (id.Role == RoleAdmin || id.Role == RoleStaff)
}
