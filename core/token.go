package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of an access token.
const DefaultTokenTTL = 7 * 24 * time.Hour

// AccessClaims is the payload of an access token. Subject holds the username;
// UserID is the stable identifier resolved on every request.
type AccessClaims struct {
	UserID         string     `json:"uid"`
	Username       string     `json:"username"`
	Email          string     `json:"email,omitempty"`
	Birthday       *time.Time `json:"birthday,omitempty"`
	FavoriteMovies []string   `json:"favorite_movies,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 access tokens.
// It keeps no record of issued tokens.
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	users   UserLookup
	timeout time.Duration
	now     func() time.Time
}

func NewTokenService(secret []byte, ttl time.Duration, users UserLookup, storeTimeout time.Duration) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty token secret")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret:  secret,
		ttl:     ttl,
		users:   users,
		timeout: storeTimeout,
		now:     time.Now,
	}, nil
}

// Issue signs a token for u that expires after the configured TTL.
func (s *TokenService) Issue(u User) (string, error) {
	if u.ID == "" || u.Username == "" {
		return "", errors.New("identity without id or username")
	}
	now := s.now()
	claims := AccessClaims{
		UserID:         u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Birthday:       u.Birthday,
		FavoriteMovies: u.FavoriteMovies,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse verifies signature, algorithm and expiry and returns the claims.
// It fails with ErrTokenExpired or ErrTokenInvalid.
func (s *TokenService) Parse(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Validate parses tokenString and resolves its subject against the user
// store with a fresh lookup, so deleted accounts lose access immediately.
func (s *TokenService) Validate(ctx context.Context, tokenString string) (User, error) {
	claims, err := s.Parse(tokenString)
	if err != nil {
		return User{}, err
	}

	rec, err := lookupWithTimeout(ctx, s.timeout, func(ctx context.Context) (*UserRecord, error) {
		return s.users.FindByID(ctx, claims.UserID)
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return rec.Identity(), nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrTokenInvalid
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrTokenInvalid
	}
	return token, nil
}
