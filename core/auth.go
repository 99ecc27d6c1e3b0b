package core

import (
	"errors"
	"time"
)

// User is the identity handed to handlers and embedded in access tokens.
// It never carries the password hash.
type User struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Birthday       *time.Time `json:"birthday,omitempty"`
	FavoriteMovies []string   `json:"favorite_movies"`
}

// Authentication failures. The login and guard handlers collapse them into a
// single response each; the distinction only reaches logs and metrics.
var (
	ErrNoSuchUser   = errors.New("no such user")
	ErrBadPassword  = errors.New("bad password")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
	ErrUserNotFound = errors.New("token subject not found")
)

// ErrStoreTimeout is an infrastructure fault, not an authentication failure.
var ErrStoreTimeout = errors.New("user store timeout")

// IsAuthFailure reports whether err means "not authenticated" as opposed to
// an infrastructure fault.
func IsAuthFailure(err error) bool {
	return FailureReason(err) != ""
}

// FailureReason returns a stable label for an authentication failure, or ""
// when err is not one.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrNoSuchUser):
		return "no_such_user"
	case errors.Is(err, ErrBadPassword):
		return "bad_password"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	default:
		return ""
	}
}
