package domain

// Role names carried in the JWT and stored on the user record.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
