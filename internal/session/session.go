// Package session provides the identity of the user operating the modal.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/petr-muller/issuedesk/internal/issuedesk/model"
)

// ErrNoUser is returned when no identity is available
var ErrNoUser = errors.New("no user identity configured")

// Provider exposes the current user
type Provider interface {
	CurrentUser(ctx context.Context) (model.User, error)
}

// Static always returns the same user
type Static struct {
	User model.User
}

// NewStatic creates a provider for a fixed user id
func NewStatic(id string) Static {
	return Static{User: model.User{ID: strings.TrimSpace(id)}}
}

func (s Static) CurrentUser(context.Context) (model.User, error) {
	if s.User.ID == "" {
		return model.User{}, ErrNoUser
	}
	return s.User, nil
}

// IDToken reads the user from an ID token (JWT) file issued by an external
// identity provider. The token is not verified: it only names the user, the
// store enforces access.
type IDToken struct {
	Path string
}

func (p IDToken) CurrentUser(context.Context) (model.User, error) {
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to read ID token: %w", err)
	}
	return UserFromToken(strings.TrimSpace(string(raw)))
}

// UserFromToken extracts the e-mail claim of a JWT
func UserFromToken(token string) (model.User, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return model.User{}, fmt.Errorf("failed to parse ID token: %w", err)
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return model.User{}, fmt.Errorf("%w: ID token has no email claim", ErrNoUser)
	}
	return model.User{ID: email}, nil
}
