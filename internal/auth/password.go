package auth

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost is used when the configured cost is out of bcrypt's
// accepted range.
const DefaultBcryptCost = 12

// HashPassword returns a bcrypt hash of plain using the given cost. The
// plaintext is never logged or stored.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt hash and a plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
