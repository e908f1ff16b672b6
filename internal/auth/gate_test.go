package auth

import (
	"Chatline/internal/model"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type stubUsers struct {
	users map[string]*model.User
	err   error
	calls int
}

func (s *stubUsers) GetUser(_ context.Context, id string) (*model.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func newUser(name string) *model.User {
	return &model.User{ID: primitive.NewObjectID(), Username: name}
}

func TestGateAcceptsValidTokenForExistingUser(t *testing.T) {
	alice := newUser("alice")
	users := &stubUsers{users: map[string]*model.User{alice.UserID(): alice}}
	verifier := NewTokenVerifier("secret")
	gate := NewGate(verifier, users, zap.NewNop())

	token, err := verifier.Generate(alice.UserID(), time.Hour)
	require.NoError(t, err)

	got, err := gate.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, alice, got)
}

func TestGateRejectsMissingAndInvalidTokens(t *testing.T) {
	users := &stubUsers{}
	gate := NewGate(NewTokenVerifier("secret"), users, zap.NewNop())

	_, err := gate.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrAuth)

	other, err := NewTokenVerifier("other-secret").Generate("someone", time.Hour)
	require.NoError(t, err)
	_, err = gate.Authenticate(context.Background(), other)
	assert.ErrorIs(t, err, ErrAuth)

	assert.Zero(t, users.calls, "identity lookup must not run for a bad credential")
}

func TestGateRejectsDeletedUser(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	gate := NewGate(verifier, &stubUsers{users: map[string]*model.User{}}, zap.NewNop())

	token, err := verifier.Generate(primitive.NewObjectID().Hex(), time.Hour)
	require.NoError(t, err)

	_, err = gate.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	claims := Claims{
		ID: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenVerifier("secret").Verify(token)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestVerifyFallsBackToSubject(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "bob"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	userID, err := NewTokenVerifier("secret").Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "bob", userID)
}

func TestVerifyWithoutSecret(t *testing.T) {
	_, err := NewTokenVerifier("").Verify("anything")
	assert.ErrorIs(t, err, ErrAuthDisabled)
}

func TestCredentialFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=abc", nil)
	assert.Equal(t, "abc", CredentialFromRequest(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", CredentialFromRequest(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Basic xyz")
	assert.Empty(t, CredentialFromRequest(r))
}
