package domain

// Role is the console role carried in the session cookie.
type Role string

const (
	RoleSystemAdmin   Role = "SystemAdmin"
	RoleCustomerAdmin Role = "CustomerAdmin"
	RoleUser          Role = "User"
)

// Valid reports whether the role is one of the known console roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystemAdmin, RoleCustomerAdmin, RoleUser:
		return true
	}
	return false
}

// Session holds the identity claims derived from the signed session cookie.
// It is created at login, re-issued on explicit updates (e.g. clearing
// IsDefaultPassword after a password change) and destroyed on logout or
// failed refresh.
type Session struct {
	UserID            string `json:"user_id"`
	CustomerID        string `json:"customer_id"`
	Role              Role   `json:"role"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	IsDefaultPassword bool   `json:"is_default_password"`
	IsDefaultCustomer bool   `json:"is_default_customer"`
}
