package core

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func newTestTokens(t *testing.T, users UserLookup) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret, DefaultTokenTTL, users, 50*time.Millisecond)
	require.NoError(t, err)
	return svc
}

func TestNewTokenService_RejectsEmptySecret(t *testing.T) {
	_, err := NewTokenService(nil, time.Hour, newMemUsers(), time.Second)
	assert.Error(t, err)
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	users := newMemUsers()
	alice := users.addUser(t, "alice", "wonderland")
	svc := newTestTokens(t, users)

	token, err := svc.Issue(alice.Identity())
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, alice.ID, claims.UserID)
	assert.Equal(t, DefaultTokenTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))

	got, err := svc.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, alice.Identity(), got)
}

func TestTokenService_PayloadHasNoPasswordHash(t *testing.T) {
	users := newMemUsers()
	alice := users.addUser(t, "alice", "wonderland")
	svc := newTestTokens(t, users)

	token, err := svc.Issue(alice.Identity())
	require.NoError(t, err)

	payload, err := base64.RawURLEncoding.DecodeString(strings.Split(token, ".")[1])
	require.NoError(t, err)
	assert.NotContains(t, string(payload), alice.PasswordHash)
	assert.NotContains(t, strings.ToLower(string(payload)), "password")
}

func TestTokenService_Issue_RequiresIdentity(t *testing.T) {
	svc := newTestTokens(t, newMemUsers())
	_, err := svc.Issue(User{Username: "alice"})
	assert.Error(t, err)
}

func TestTokenService_Expiry(t *testing.T) {
	users := newMemUsers()
	alice := users.addUser(t, "alice", "wonderland")
	svc := newTestTokens(t, users)

	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }
	token, err := svc.Issue(alice.Identity())
	require.NoError(t, err)

	svc.now = func() time.Time { return issuedAt.Add(DefaultTokenTTL - time.Second) }
	_, err = svc.Validate(context.Background(), token)
	require.NoError(t, err)

	svc.now = func() time.Time { return issuedAt.Add(DefaultTokenTTL + time.Second) }
	_, err = svc.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	svc.now = func() time.Time { return issuedAt.Add(8 * 24 * time.Hour) }
	_, err = svc.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_RejectsTamperedSignature(t *testing.T) {
	users := newMemUsers()
	alice := users.addUser(t, "alice", "wonderland")
	svc := newTestTokens(t, users)

	token, err := svc.Issue(alice.Identity())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	sig[0] ^= 0x01
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)

	_, err = svc.Validate(context.Background(), strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_RejectsTamperedPayload(t *testing.T) {
	users := newMemUsers()
	alice := users.addUser(t, "alice", "wonderland")
	mallory := users.addUser(t, "mallory", "evil")
	svc := newTestTokens(t, users)

	token, err := svc.Issue(mallory.Identity())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	forged := strings.Replace(string(payload), mallory.ID, alice.ID, 1)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = svc.Validate(context.Background(), strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_RejectsForeignTokens(t *testing.T) {
	users := newMemUsers()
	alice := users.addUser(t, "alice", "wonderland")
	svc := newTestTokens(t, users)

	claims := AccessClaims{
		UserID:   alice.ID,
		Username: alice.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   alice.Username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExp := claims
	noExp.ExpiresAt = nil
	withoutExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, noExp).SignedString(testSecret)
	require.NoError(t, err)

	noUID := claims
	noUID.UserID = ""
	withoutUID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, noUID).SignedString(testSecret)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"other key":   otherKey,
		"hs512":       hs512,
		"alg none":    none,
		"no exp":      withoutExp,
		"no uid":      withoutUID,
		"garbage":     "not.a.token",
		"empty":       "",
		"two segment": "abc.def",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Validate(context.Background(), token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestTokenService_Validate_DeletedUser(t *testing.T) {
	users := newMemUsers()
	alice := users.addUser(t, "alice", "wonderland")
	svc := newTestTokens(t, users)

	token, err := svc.Issue(alice.Identity())
	require.NoError(t, err)
	require.NoError(t, users.Delete(context.Background(), alice.ID))

	_, err = svc.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTokenService_Validate_ReflectsCurrentRecord(t *testing.T) {
	users := newMemUsers()
	alice := users.addUser(t, "alice", "wonderland")
	svc := newTestTokens(t, users)

	token, err := svc.Issue(alice.Identity())
	require.NoError(t, err)

	email := "alice@new.example"
	_, err = users.Update(context.Background(), alice.ID, UserUpdate{Email: &email})
	require.NoError(t, err)

	got, err := svc.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, email, got.Email)
}

func TestTokenService_Validate_StoreFaults(t *testing.T) {
	issuer := newTestTokens(t, newMemUsers())
	token, err := issuer.Issue(User{ID: "6a1c7d0e-8d51-4c43-9a5b-3a9d2f1e7b10", Username: "alice"})
	require.NoError(t, err)

	slow, err := NewTokenService(testSecret, time.Hour, slowUsers{}, 20*time.Millisecond)
	require.NoError(t, err)
	_, err = slow.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrStoreTimeout)

	broken, err := NewTokenService(testSecret, time.Hour, brokenUsers{err: errStoreDown}, time.Second)
	require.NoError(t, err)
	_, err = broken.Validate(context.Background(), token)
	assert.ErrorIs(t, err, errStoreDown)
	assert.False(t, IsAuthFailure(err))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", false},
		{"bearer abc.def.ghi", "abc.def.ghi", false},
		{"BEARER   abc.def.ghi  ", "abc.def.ghi", false},
		{"", "", true},
		{"Bearer", "", true},
		{"Bearer ", "", true},
		{"Basic dXNlcjpwYXNz", "", true},
		{"abc.def.ghi", "", true},
		{"Bearer a b", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := BearerToken(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTokenInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
