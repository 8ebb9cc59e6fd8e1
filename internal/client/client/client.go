package client

import (
	"context"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
)

// Client is the direct backend API used by the session layer.
type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Login(ctx context.Context, email, password string) (*AuthResponse, error)
	Register(ctx context.Context, email, password, displayName string) (*AuthResponse, error)
	GetProfile(ctx context.Context) (*models.UserInfo, error)
	UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.UserInfo, error)
	ForgotPassword(ctx context.Context, email string) error
	VerifyTwoFactor(ctx context.Context, code string) error
	// Logout ends the session on the backend. accessToken is attached only
	// when non-empty; it must be a token this backend issued.
	Logout(ctx context.Context, accessToken string) error
}

// TokenSource supplies the access token attached to authenticated calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) AccessToken(ctx context.Context) (string, error) { return f(ctx) }

// AuthResponse is the outcome of a successful login or registration.
type AuthResponse struct {
	Info              models.UserInfo
	Tokens            models.TokenSet
	RequiresTwoFactor bool
}
