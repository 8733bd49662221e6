package domain

// Roles carried in externally issued identity tokens. The service never
// manages identities; it only distinguishes staff clocking themselves in and
// out from operators reading the audit trail.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
