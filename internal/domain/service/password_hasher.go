// Package service declares the domain services the use cases depend on.
package service

// PasswordHasher hashes account passwords. Passwords are at most 72 bytes by
// the time they get here; validation rejects longer ones.
type PasswordHasher interface {
	Hash(password string) (string, error)

	// Check reports whether password matches hash. It must take the same time
	// for a wrong password as for a malformed hash, so unknown emails can be
	// checked against a throwaway hash.
	Check(password, hash string) bool
}
