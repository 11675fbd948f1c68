package ports

// PasswordHasher produces and verifies salted adaptive password hashes.
// Hash must use a fresh random salt on every call; Verify must not leak
// where a mismatch occurred through timing.
type PasswordHasher interface {
	// Hash derives a salted hash from a plaintext password.
	Hash(plaintext string) ([]byte, error)

	// Verify reports whether plaintext matches hash. It returns only a
	// boolean so callers cannot distinguish failure causes.
	Verify(plaintext string, hash []byte) bool
}
