// Package password provides the one-way credential transform guarding
// protected shares. Digests are bcrypt, so every record carries its own
// random salt inside the stored digest; plaintext is never persisted,
// returned, or logged from this path.
package password

import "golang.org/x/crypto/bcrypt"

// Digest hashes a plaintext password for storage.
func Digest(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plaintext matches the stored digest.
func Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
