package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CredentialVerifier checks a username/password pair against the user store.
type CredentialVerifier struct {
	users   UserLookup
	timeout time.Duration
}

func NewCredentialVerifier(users UserLookup, timeout time.Duration) *CredentialVerifier {
	return &CredentialVerifier{users: users, timeout: timeout}
}

// Verify returns the identity for username when password matches its stored
// hash. It fails with ErrNoSuchUser or ErrBadPassword; any other error is a
// store fault.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (User, error) {
	rec, err := lookupWithTimeout(ctx, v.timeout, func(ctx context.Context) (*UserRecord, error) {
		return v.users.FindByUsername(ctx, username)
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return User{}, ErrNoSuchUser
		}
		return User{}, err
	}

	if !CheckPassword(rec.PasswordHash, password) {
		return User{}, ErrBadPassword
	}
	return rec.Identity(), nil
}

// lookupWithTimeout bounds a single store call and maps an expired deadline
// to ErrStoreTimeout. A canceled parent context is returned unchanged.
func lookupWithTimeout(ctx context.Context, timeout time.Duration, find func(context.Context) (*UserRecord, error)) (*UserRecord, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	rec, err := find(ctx)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrStoreTimeout, err)
		}
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}
