package auth

// User represents an administrator account.
// The password is only ever stored as a bcrypt hash.
type User struct {
	ID           int
	Username     string
	PasswordHash string
}
