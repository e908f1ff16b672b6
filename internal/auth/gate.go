package auth

import (
	"Chatline/internal/model"
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// IdentityLookup resolves a user id to its stored profile.
type IdentityLookup interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// Gate validates the credential presented when a socket is opened and resolves it to a live identity.
type Gate struct {
	verifier *TokenVerifier
	users    IdentityLookup
	logger   *zap.Logger
}

func NewGate(verifier *TokenVerifier, users IdentityLookup, logger *zap.Logger) *Gate {
	return &Gate{
		verifier: verifier,
		users:    users,
		logger:   logger.With(zap.String("component", "auth_gate")),
	}
}

// Authenticate fails with ErrAuth when the token is invalid or its user no longer exists.
func (g *Gate) Authenticate(ctx context.Context, credential string) (*model.User, error) {
	userID, err := g.verifier.Verify(credential)
	if err != nil {
		g.logger.Debug("credential rejected", zap.Error(err))
		return nil, ErrAuth
	}

	user, err := g.users.GetUser(ctx, userID)
	if err != nil || user == nil {
		// deleted or revoked account racing a still valid token
		g.logger.Info("credential valid but identity missing",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: user not found", ErrAuth)
	}

	return user, nil
}

// CredentialFromRequest reads the token from the "token" query parameter or a Bearer Authorization header.
func CredentialFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return BearerToken(r.Header.Get("Authorization"))
}

func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
