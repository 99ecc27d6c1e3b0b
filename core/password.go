package core

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor applied when a password is first stored.
const DefaultBcryptCost = 10

// HashPassword returns a salted bcrypt hash of plain.
func HashPassword(plain string, cost int) (string, error) {
	if plain == "" {
		return "", errors.New("empty password")
	}
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
// A malformed hash never matches.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
