package user

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/google/uuid"
)

// GenerateSalt produces a fresh random salt as a 32-char hexadecimal string.
// Salts are never reused; each account gets its own.
func GenerateSalt() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// HashPassword computes the stored digest for a (password, salt) pair:
// lowercase hex SHA-256 of the concatenation. Deterministic, so the salt
// must be stored alongside the digest.
func HashPassword(pwd, salt string) string {
	sum := sha256.Sum256([]byte(pwd + salt))
	return hex.EncodeToString(sum[:])
}

// SetPassword salts and hashes pwd onto the user.
func (u *User) SetPassword(pwd string) {
	u.Salt = GenerateSalt()
	u.PasswordHash = HashPassword(pwd, u.Salt)
}

// CheckPassword recomputes the digest and compares it to the stored one in
// constant time. A mismatch is a plain false, never an error.
func (u *User) CheckPassword(pwd string) bool {
	digest := HashPassword(pwd, u.Salt)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(u.PasswordHash)) == 1
}
