package providers

import (
	"context"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/logging"
)

// Strategy is one provider attempt in a fallback list.
type Strategy[T any] struct {
	Provider models.Provider
	Attempt  func(ctx context.Context) (T, error)
}

// Fold runs strategies in order and returns the first success together with
// the provider that produced it. When every attempt fails the error is the
// last one, wrapped in a *ProviderError. At most MaxAttempts strategies run.
func Fold[T any](ctx context.Context, log logging.Logger, strategies ...Strategy[T]) (T, models.Provider, error) {
	var (
		zero    T
		lastErr error = ErrNoProvider
	)
	if log == nil {
		log = logging.Nop()
	}
	if len(strategies) > MaxAttempts {
		strategies = strategies[:MaxAttempts]
	}

	for i, s := range strategies {
		v, err := s.Attempt(ctx)
		if err == nil {
			return v, s.Provider, nil
		}
		lastErr = &ProviderError{Provider: s.Provider, Err: err}
		if i < len(strategies)-1 {
			log.Warn(ctx, "provider attempt failed, falling back", "provider", s.Provider, "error", err)
		}
	}
	return zero, "", lastErr
}

// Login lists the password login strategies, direct first.
func (c *Chain) Login(email, password string) []Strategy[*AuthResult] {
	return []Strategy[*AuthResult]{
		{Provider: models.ProviderDirect, Attempt: func(ctx context.Context) (*AuthResult, error) {
			return c.LoginDirect(ctx, email, password)
		}},
		{Provider: models.ProviderFederated, Attempt: func(ctx context.Context) (*AuthResult, error) {
			return c.LoginFederated(ctx, email, password)
		}},
	}
}

func (c *Chain) Register(email, password, name string) []Strategy[*AuthResult] {
	return []Strategy[*AuthResult]{
		{Provider: models.ProviderDirect, Attempt: func(ctx context.Context) (*AuthResult, error) {
			return c.RegisterDirect(ctx, email, password, name)
		}},
		{Provider: models.ProviderFederated, Attempt: func(ctx context.Context) (*AuthResult, error) {
			return c.RegisterFederated(ctx, email, password, name)
		}},
	}
}

func (c *Chain) Reset(email string) []Strategy[struct{}] {
	return []Strategy[struct{}]{
		{Provider: models.ProviderDirect, Attempt: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.ResetDirect(ctx, email)
		}},
		{Provider: models.ProviderFederated, Attempt: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.ResetFederated(ctx, email)
		}},
	}
}

// Social has a single strategy: social logins never fall back.
func (c *Chain) Social(p models.Provider, register bool) []Strategy[*AuthResult] {
	return []Strategy[*AuthResult]{
		{Provider: p, Attempt: func(ctx context.Context) (*AuthResult, error) {
			if register {
				return c.RegisterSocial(ctx, p)
			}
			return c.LoginSocial(ctx, p)
		}},
	}
}
