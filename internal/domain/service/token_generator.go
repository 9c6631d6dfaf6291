package service

// TokenGenerator creates opaque random tokens and their storage hashes.
type TokenGenerator interface {
	// Generate returns a new URL-safe random token.
	Generate() (string, error)

	// Hash returns the hex SHA-256 of token, the only form persisted.
	Hash(token string) string
}
