// Package password hashes and checks member dashboard credentials. Members
// register by phone; the login name and password are optional and only used
// for the self-service dashboard.
package password

import (
	"golang.org/x/crypto/bcrypt"
)

// Member credentials are long-lived, so the cost sits above the bcrypt
// default.
const cost = 12

// Hash derives a bcrypt hash for storage on the member row.
func Hash(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	return string(bytes), err
}

// Verify reports whether plain matches the stored member hash.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
