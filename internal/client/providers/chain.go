// Package providers puts the direct backend and the federated platform
// behind one contract. Every call returns a normalized AuthResult or an
// error; callers never look at provider-specific error shapes.
//
// Fallback is expressed as an ordered list of strategies folded by Fold,
// which stops at the first success. Nothing in this package retries.
package providers

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/bizkeeper/internal/client/client"
	"github.com/dmitrijs2005/bizkeeper/internal/client/federated"
	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
)

// MaxAttempts bounds Fold: primary then secondary.
const MaxAttempts = 2

var ErrNoProvider = errors.New("no provider configured")

// AuthResult is a successful authentication by any provider.
type AuthResult struct {
	Info              models.UserInfo
	Tokens            *models.TokenSet
	Provider          models.Provider
	RequiresTwoFactor bool
}

// Federated is the part of the federated platform client used here.
type Federated interface {
	Login(ctx context.Context, email, password string) (*federated.Result, error)
	Register(ctx context.Context, email, password, name string) (*federated.Result, error)
	LoginSocial(ctx context.Context, p models.Provider, prompt federated.Prompter) (*federated.Result, error)
	RegisterSocial(ctx context.Context, p models.Provider, prompt federated.Prompter) (*federated.Result, error)
	ForgotPassword(ctx context.Context, email string) error
	Logout(ctx context.Context, accessToken string) error
}

type Chain struct {
	direct    client.Client
	federated Federated
	prompt    federated.Prompter
}

// NewChain builds a chain. Either provider may be nil; calls to a missing
// provider fail with ErrNoProvider.
func NewChain(direct client.Client, fed Federated, prompt federated.Prompter) *Chain {
	return &Chain{direct: direct, federated: fed, prompt: prompt}
}

func (c *Chain) LoginDirect(ctx context.Context, email, password string) (*AuthResult, error) {
	if c.direct == nil {
		return nil, ErrNoProvider
	}
	resp, err := c.direct.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return fromDirect(resp), nil
}

func (c *Chain) LoginFederated(ctx context.Context, email, password string) (*AuthResult, error) {
	if c.federated == nil {
		return nil, ErrNoProvider
	}
	res, err := c.federated.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return fromFederated(res, models.ProviderFederated), nil
}

func (c *Chain) RegisterDirect(ctx context.Context, email, password, name string) (*AuthResult, error) {
	if c.direct == nil {
		return nil, ErrNoProvider
	}
	resp, err := c.direct.Register(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	return fromDirect(resp), nil
}

func (c *Chain) RegisterFederated(ctx context.Context, email, password, name string) (*AuthResult, error) {
	if c.federated == nil {
		return nil, ErrNoProvider
	}
	res, err := c.federated.Register(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	return fromFederated(res, models.ProviderFederated), nil
}

func (c *Chain) ResetDirect(ctx context.Context, email string) error {
	if c.direct == nil {
		return ErrNoProvider
	}
	return c.direct.ForgotPassword(ctx, email)
}

func (c *Chain) ResetFederated(ctx context.Context, email string) error {
	if c.federated == nil {
		return ErrNoProvider
	}
	return c.federated.ForgotPassword(ctx, email)
}

// LoginSocial authenticates through the federated platform's connection for p.
func (c *Chain) LoginSocial(ctx context.Context, p models.Provider) (*AuthResult, error) {
	if c.federated == nil {
		return nil, ErrNoProvider
	}
	res, err := c.federated.LoginSocial(ctx, p, c.prompt)
	if err != nil {
		return nil, err
	}
	return fromFederated(res, p), nil
}

func (c *Chain) RegisterSocial(ctx context.Context, p models.Provider) (*AuthResult, error) {
	if c.federated == nil {
		return nil, ErrNoProvider
	}
	res, err := c.federated.RegisterSocial(ctx, p, c.prompt)
	if err != nil {
		return nil, err
	}
	return fromFederated(res, p), nil
}

// LogoutDirect and LogoutFederated are best effort; callers decide what to
// do with the error. ts is the stored session, or nil. Each endpoint is
// called either way but only receives the access token it issued.
func (c *Chain) LogoutDirect(ctx context.Context, ts *models.TokenSet) error {
	if c.direct == nil {
		return nil
	}
	return c.direct.Logout(ctx, issuedToken(ts, models.ProviderDirect))
}

func (c *Chain) LogoutFederated(ctx context.Context, ts *models.TokenSet) error {
	if c.federated == nil {
		return nil
	}
	return c.federated.Logout(ctx, issuedToken(ts, models.FederatedProviders()...))
}

// issuedToken returns the access token of ts when one of issuers issued it.
func issuedToken(ts *models.TokenSet, issuers ...models.Provider) string {
	if ts == nil {
		return ""
	}
	if slices.Contains(issuers, ts.Provider) {
		return ts.AccessToken
	}
	return ""
}

func fromDirect(resp *client.AuthResponse) *AuthResult {
	ts := resp.Tokens
	return &AuthResult{
		Info:              resp.Info,
		Tokens:            &ts,
		Provider:          models.ProviderDirect,
		RequiresTwoFactor: resp.RequiresTwoFactor,
	}
}

func fromFederated(res *federated.Result, p models.Provider) *AuthResult {
	ts := res.Tokens
	ts.Provider = p
	return &AuthResult{Info: res.Info, Tokens: &ts, Provider: p}
}

// ProviderError names the provider an attempt failed on.
type ProviderError struct {
	Provider models.Provider
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
