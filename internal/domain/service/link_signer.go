package service

// LinkSigner derives the verification-link digest of an email address.
// Digests are deterministic per deployment secret and are never persisted.
type LinkSigner interface {
	// Digest returns the digest for the normalized email.
	Digest(email string) string

	// Matches reports whether supplied equals the digest of email, comparing in constant time.
	Matches(email, supplied string) bool
}
