package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/client/services"
	"github.com/dmitrijs2005/bizkeeper/internal/common"
)

// The prompt helpers are indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getSecret     = GetSecret
	getOptional   = GetOptional
)

func (a *App) readCredentials() (string, []byte, error) {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return "", nil, err
	}
	password, err := getSecret(a.reader, "Enter password", a.out)
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

// Login prompts for credentials and signs in. When the provider asks for a
// second factor the code is requested right away; a wrong code discards the
// tentative session.
func (a *App) Login(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.session.Login(ctx, email, string(password))
	if err != nil {
		if errors.Is(err, services.ErrInvalidOfflineCredentials) {
			fmt.Fprintln(a.out, "You are offline; only the last account used online can sign in.")
		}
		return a.report(err)
	}
	if a.state.Snapshot().TwoFactorPending {
		return a.secondFactor(ctx)
	}
	a.welcome(u)
	return nil
}

func (a *App) secondFactor(ctx context.Context) error {
	code, err := getSimpleText(a.reader, "Enter verification code", a.out)
	if err != nil {
		a.session.Logout(ctx)
		return err
	}
	if err := a.session.VerifyTwoFactorCode(ctx, code); err != nil {
		a.session.Logout(ctx)
		return a.report(err)
	}
	a.welcome(a.state.Snapshot().Current)
	return nil
}

// Register prompts for an email, a display name and a password and creates
// the account.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter display name (optional)", a.out)
	if err != nil {
		return err
	}
	password, err := getSecret(a.reader, "Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.session.Register(ctx, email, string(password), name)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Account created.")
	a.welcome(u)
	return nil
}

// Demo opens the demo session.
func (a *App) Demo(ctx context.Context) error {
	a.welcome(a.session.DemoLogin(ctx))
	return nil
}

// Social signs in or registers through Google or Facebook.
func (a *App) Social(ctx context.Context, p models.Provider, register bool) error {
	var call func(context.Context) (*models.User, error)
	switch {
	case p == models.ProviderGoogle && register:
		call = a.session.RegisterWithGoogle
	case p == models.ProviderGoogle:
		call = a.session.LoginWithGoogle
	case p == models.ProviderFacebook && register:
		call = a.session.RegisterWithFacebook
	case p == models.ProviderFacebook:
		call = a.session.LoginWithFacebook
	default:
		return a.report(fmt.Errorf("unsupported provider %q", p))
	}

	u, err := call(ctx)
	if err != nil {
		return a.report(err)
	}
	a.welcome(u)
	return nil
}

// Reset asks for an email and requests a password reset link.
func (a *App) Reset(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	if err := a.session.ResetPassword(ctx, email); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "If the account exists, a reset link is on its way.")
	return nil
}

// Verify checks a verification code for the current session.
func (a *App) Verify(ctx context.Context) error {
	code, err := getSimpleText(a.reader, "Enter verification code", a.out)
	if err != nil {
		return err
	}
	if err := a.session.VerifyTwoFactorCode(ctx, code); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Code accepted.")
	return nil
}

// Logout ends the session. It never fails.
func (a *App) Logout(ctx context.Context) error {
	a.session.Logout(ctx)
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}
