package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// EnsureUser creates username when it does not exist yet. When password is
// empty a random one is generated and returned so the caller can print it.
// It is idempotent: an existing user is left untouched and created is false.
func EnsureUser(ctx context.Context, repo UserRepository, username, password, email string, cost int) (created bool, usedPassword string, err error) {
	if username == "" {
		return false, "", errors.New("username is required")
	}

	_, err = repo.FindByUsername(ctx, username)
	if err == nil {
		return false, "", nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return false, "", err
	}

	if password == "" {
		if password, err = generatePassword(24); err != nil {
			return false, "", err
		}
	}
	hash, err := HashPassword(password, cost)
	if err != nil {
		return false, "", err
	}

	if _, err := repo.Create(ctx, NewUser{Username: username, PasswordHash: hash, Email: email}); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return false, "", nil
		}
		return false, "", err
	}
	return true, password, nil
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
