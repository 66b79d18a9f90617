package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a principal's password with bcrypt at the given
// cost. All three principal kinds (users, institutions, admins) store
// their credentials through this; the cost comes from configuration so
// environments can trade hashing time against login latency.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// The comparison is constant-time inside bcrypt.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
