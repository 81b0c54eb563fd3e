package firestore

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// tokenTimeout bounds one ID token lookup, including a refresh round trip.
const tokenTimeout = 30 * time.Second

// SessionTokens supplies the signed-in user's ID token.
// application.AuthService satisfies it.
type SessionTokens interface {
	IDToken(ctx context.Context) (token string, expiresAt time.Time, err error)
}

// sessionTokenSource presents the user's ID token as the bearer token of
// every Firestore call, so security rules are evaluated for that account.
// Without a live session every call fails.
type sessionTokenSource struct {
	tokens SessionTokens
}

// Compile-time interface satisfaction check.
var _ oauth2.TokenSource = sessionTokenSource{}

// Token implements oauth2.TokenSource.
func (s sessionTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tokenTimeout)
	defer cancel()

	token, expiresAt, err := s.tokens.IDToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("session token: %w", err)
	}
	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      expiresAt,
	}, nil
}
