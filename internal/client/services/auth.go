package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/client/providers"
	"github.com/dmitrijs2005/bizkeeper/internal/common"
	"github.com/google/uuid"
)

// Operation names, used in messages and as metric labels.
const (
	OpLogin            = "login"
	OpRegister         = "register"
	OpLogout           = "logout"
	OpResetPassword    = "password reset"
	OpUpdateProfile    = "profile update"
	OpRefreshProfile   = "profile refresh"
	OpDemoLogin        = "demo login"
	OpVerifyTwoFactor  = "two-factor verification"
	OpLoginGoogle      = "Google login"
	OpLoginFacebook    = "Facebook login"
	OpRegisterGoogle   = "Google registration"
	OpRegisterFacebook = "Facebook registration"
	OpRestore          = "session restore"
)

type loginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type registrationInput struct {
	Email       string `validate:"required,email"`
	Password    string `validate:"required,min=6"`
	DisplayName string `validate:"max=100"`
}

func (m *SessionManager) checkInput(op string, v any) error {
	if err := m.validate.Struct(v); err != nil {
		return newError(ErrInvalidInput, op, err)
	}
	return nil
}

// Login signs the user in. The reserved demo pair always yields the demo
// session. Offline, the pair is checked against the cached credential;
// online, the direct backend is tried first and the federated platform
// second.
func (m *SessionManager) Login(ctx context.Context, email, password string) (_ *models.User, err error) {
	r := m.start(OpLogin)
	defer func() { r.finish(ctx, err) }()

	if m.isDemoPair(email, password) {
		r.provider = models.ProviderDemo
		return m.enterDemo(ctx), nil
	}

	if err := m.checkInput(OpLogin, loginInput{Email: email, Password: password}); err != nil {
		return nil, err
	}

	if r.offline {
		return m.offlineLogin(ctx, r, email, password)
	}

	res, provider, err := providers.Fold(ctx, m.log, m.providers.Login(email, password)...)
	if err != nil {
		return nil, newError(ErrLoginFailed, OpLogin, err)
	}

	r.provider = provider
	return m.establish(ctx, res, email, password), nil
}

func (m *SessionManager) offlineLogin(ctx context.Context, r *run, email, password string) (*models.User, error) {
	ok, err := m.creds.Match(ctx, email, password)
	if err != nil || !ok {
		return nil, newError(ErrInvalidOfflineCredentials, OpLogin, err)
	}

	u := &models.User{
		ID:            offlineID(),
		Email:         email,
		DisplayName:   models.NewUserFromInfo(models.UserInfo{Email: email}, models.ProviderOffline).DisplayName,
		EmailVerified: false,
		Language:      models.DefaultLanguage,
		Provider:      models.ProviderOffline,
	}

	m.demo.set(false)
	m.state.dispatch(setUser(u), setTwoFactorPending(false))
	r.provider = models.ProviderOffline
	m.log.Info(ctx, "offline login succeeded", "email", email)
	return u.Clone(), nil
}

// offlineID is a time-ordered placeholder id for sessions nobody issued.
func offlineID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "offline-" + uuid.NewString()
	}
	return "offline-" + id.String()
}

// Register creates an account, direct backend first. It needs connectivity
// and never falls back to an offline or demo session.
func (m *SessionManager) Register(ctx context.Context, email, password, displayName string) (_ *models.User, err error) {
	r := m.start(OpRegister)
	defer func() { r.finish(ctx, err) }()

	if r.offline {
		return nil, newError(ErrOfflineUnsupported, OpRegister, nil)
	}
	in := registrationInput{Email: email, Password: password, DisplayName: displayName}
	if err := m.checkInput(OpRegister, in); err != nil {
		return nil, err
	}

	res, provider, err := providers.Fold(ctx, m.log, m.providers.Register(email, password, displayName)...)
	if err != nil {
		return nil, newError(ErrRegistrationFailed, OpRegister, err)
	}

	r.provider = provider
	return m.establish(ctx, res, email, password), nil
}

// establish stores what a provider issued and publishes the user. Storage
// failures are logged; the session itself is already valid.
func (m *SessionManager) establish(ctx context.Context, res *providers.AuthResult, email, password string) *models.User {
	if res.Tokens != nil {
		ts := *res.Tokens
		ts.TwoFactorPending = res.RequiresTwoFactor
		if err := m.tokens.Save(ctx, &ts); err != nil {
			m.log.Warn(ctx, "failed to store tokens", "provider", res.Provider, "error", err)
		}
	}
	if password != "" {
		if err := m.creds.Save(ctx, email, password); err != nil {
			m.log.Warn(ctx, "failed to cache credential", "email", email, "error", err)
		}
	}

	u := models.NewUserFromInfo(res.Info, res.Provider)
	m.demo.set(false)
	m.state.dispatch(setUser(u), setTwoFactorPending(res.RequiresTwoFactor))

	m.log.Info(ctx, "login succeeded", "email", u.Email, "provider", res.Provider, "two_factor", res.RequiresTwoFactor)
	return u.Clone()
}

// Logout ends the session. Remote logouts are best effort; local state is
// always cleared, online or offline. It cannot fail.
func (m *SessionManager) Logout(ctx context.Context) {
	r := m.start(OpLogout)
	defer func() { r.finish(ctx, nil) }()

	cur := m.state.current()
	if cur != nil && cur.IsDemo {
		m.teardown(ctx, true)
		m.log.Info(ctx, "demo session closed")
		return
	}

	if !r.offline {
		// an unusable set means no token is sent to either endpoint
		ts, _ := m.tokens.Current(ctx)
		if err := m.providers.LogoutDirect(ctx, ts); err != nil {
			m.log.Warn(ctx, "direct logout failed", "error", err)
		}
		if err := m.providers.LogoutFederated(ctx, ts); err != nil {
			m.log.Warn(ctx, "federated logout failed", "error", err)
		}
	}

	m.teardown(ctx, true)
	m.log.Info(ctx, "logged out")
}

// teardown clears the local session state. The cached credential goes too
// unless the session merely expired.
func (m *SessionManager) teardown(ctx context.Context, clearCredential bool) {
	if err := m.tokens.ClearTokens(ctx); err != nil {
		m.log.Warn(ctx, "failed to clear tokens", "error", err)
	}
	if clearCredential {
		if err := m.creds.Clear(ctx); err != nil {
			m.log.Warn(ctx, "failed to clear cached credential", "error", err)
		}
	}
	m.demo.set(false)
	m.state.dispatch(clearSession())
}

// ResetPassword asks the direct backend, then the federated platform, to
// send a reset link.
func (m *SessionManager) ResetPassword(ctx context.Context, email string) (err error) {
	r := m.start(OpResetPassword)
	defer func() { r.finish(ctx, err) }()

	if r.offline {
		return newError(ErrOfflineUnsupported, OpResetPassword, nil)
	}
	if err := m.validate.Var(email, "required,email"); err != nil {
		return newError(ErrInvalidInput, OpResetPassword, err)
	}

	_, provider, err := providers.Fold(ctx, m.log, m.providers.Reset(email)...)
	if err != nil {
		return newError(ErrResetFailed, OpResetPassword, err)
	}
	r.provider = provider
	return nil
}

// DemoLogin opens the demo session. It needs no network and never fails.
func (m *SessionManager) DemoLogin(ctx context.Context) *models.User {
	r := m.start(OpDemoLogin)
	defer func() { r.finish(ctx, nil) }()

	r.provider = models.ProviderDemo
	return m.enterDemo(ctx)
}

func (m *SessionManager) isDemoPair(email, password string) bool {
	return m.settings.DemoEmail != "" &&
		email == m.settings.DemoEmail &&
		password == m.settings.DemoPassword
}

func (m *SessionManager) enterDemo(ctx context.Context) *models.User {
	u := &models.User{
		ID:            "demo",
		Email:         m.settings.DemoEmail,
		DisplayName:   "Demo User",
		EmailVerified: true,
		Company:       "BizKeeper Demo",
		Role:          "owner",
		Language:      models.DefaultLanguage,
		IsDemo:        true,
		Provider:      models.ProviderDemo,
	}
	m.demo.set(true)
	m.state.dispatch(setUser(u), setTwoFactorPending(false))
	m.log.Info(ctx, "demo session started")
	return u.Clone()
}

func (m *SessionManager) LoginWithGoogle(ctx context.Context) (*models.User, error) {
	return m.social(ctx, OpLoginGoogle, models.ProviderGoogle, false)
}

func (m *SessionManager) LoginWithFacebook(ctx context.Context) (*models.User, error) {
	return m.social(ctx, OpLoginFacebook, models.ProviderFacebook, false)
}

func (m *SessionManager) RegisterWithGoogle(ctx context.Context) (*models.User, error) {
	return m.social(ctx, OpRegisterGoogle, models.ProviderGoogle, true)
}

func (m *SessionManager) RegisterWithFacebook(ctx context.Context) (*models.User, error) {
	return m.social(ctx, OpRegisterFacebook, models.ProviderFacebook, true)
}

// social runs the single provider call of a social login. No credential is
// cached: there is no password to check offline.
func (m *SessionManager) social(ctx context.Context, op string, p models.Provider, register bool) (_ *models.User, err error) {
	r := m.start(op)
	defer func() { r.finish(ctx, err) }()

	if r.offline {
		return nil, newError(ErrOfflineUnsupported, op, nil)
	}

	res, _, err := providers.Fold(ctx, m.log, m.providers.Social(p, register)...)
	if err != nil {
		kind := ErrLoginFailed
		if register {
			kind = ErrRegistrationFailed
		}
		return nil, newError(kind, op, err)
	}

	res.Provider = p
	r.provider = p
	return m.establish(ctx, res, "", ""), nil
}

// Restore rebuilds the session from stored tokens on cold start. Without a
// valid token set the user stays signed out and Restore returns nil. A set
// whose second factor was never verified is discarded.
func (m *SessionManager) Restore(ctx context.Context) (_ *models.User, err error) {
	r := m.start(OpRestore)
	defer func() { r.finish(ctx, err) }()

	ts, err := m.tokens.Current(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			m.log.Info(ctx, "stored session not restored", "error", err)
		}
		return nil, nil
	}
	switch ts.Provider {
	case models.ProviderDemo, models.ProviderOffline, "":
		return nil, nil
	}
	if ts.TwoFactorPending {
		if err := m.tokens.ClearTokens(ctx); err != nil {
			m.log.Warn(ctx, "failed to clear unverified tokens", "error", err)
		}
		m.log.Info(ctx, "stored session awaits two-factor verification, not restored", "provider", ts.Provider)
		return nil, nil
	}

	u := models.NewUserFromInfo(ts.Claims, ts.Provider)
	m.demo.set(false)
	m.state.dispatch(setUser(u), setTwoFactorPending(false))
	r.provider = ts.Provider
	m.log.Info(ctx, "session restored", "email", u.Email, "provider", ts.Provider)
	return u.Clone(), nil
}

// sessionExpired checks the tokens of an issued session. On expiry the
// session is torn down and an ErrSessionExpired error returned.
func (m *SessionManager) sessionExpired(ctx context.Context, op string, cur *models.User) error {
	err := m.tokensExpired(ctx, cur)
	if err == nil {
		return nil
	}
	m.teardown(ctx, false)
	m.log.Info(ctx, "session expired", "email", cur.Email)
	return newError(ErrSessionExpired, op, fmt.Errorf("%s session: %w", cur.Provider, err))
}

// tokensExpired returns common.ErrTokenExpired when cur is an issued session
// whose tokens have run out, and nil otherwise.
func (m *SessionManager) tokensExpired(ctx context.Context, cur *models.User) error {
	if cur == nil || cur.IsDemo || cur.Provider == models.ProviderOffline {
		return nil
	}
	_, err := m.tokens.Current(ctx)
	if errors.Is(err, common.ErrTokenExpired) {
		return err
	}
	return nil
}
