package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/client/services"
)

type fakeState struct{ snap services.Snapshot }

func (f *fakeState) Snapshot() services.Snapshot { return f.snap }

// fakeSession records calls and publishes users through the shared fakeState.
type fakeSession struct {
	state *fakeState
	calls []string

	loginEmail, loginPassword string
	regEmail, regPassword     string
	regName                   string
	resetEmail                string
	code                      string
	patch                     models.ProfilePatch

	user        *models.User
	twoFactor   bool
	loginErr    error
	registerErr error
	resetErr    error
	verifyErr   error
	updateErr   error
	refreshErr  error
	socialErr   error
}

func (f *fakeSession) signIn(u *models.User) *models.User {
	f.state.snap.Current = u
	return u
}

func (f *fakeSession) Login(_ context.Context, email, password string) (*models.User, error) {
	f.calls = append(f.calls, "Login")
	f.loginEmail, f.loginPassword = email, password
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.state.snap.TwoFactorPending = f.twoFactor
	return f.signIn(f.user), nil
}

func (f *fakeSession) Register(_ context.Context, email, password, name string) (*models.User, error) {
	f.calls = append(f.calls, "Register")
	f.regEmail, f.regPassword, f.regName = email, password, name
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.signIn(f.user), nil
}

func (f *fakeSession) Logout(context.Context) {
	f.calls = append(f.calls, "Logout")
	f.state.snap.Current = nil
	f.state.snap.TwoFactorPending = false
}

func (f *fakeSession) ResetPassword(_ context.Context, email string) error {
	f.calls = append(f.calls, "ResetPassword")
	f.resetEmail = email
	return f.resetErr
}

func (f *fakeSession) DemoLogin(context.Context) *models.User {
	f.calls = append(f.calls, "DemoLogin")
	return f.signIn(&models.User{ID: "demo", Email: "demo@bizkeeper.app", DisplayName: "Demo User", IsDemo: true, Provider: models.ProviderDemo})
}

func (f *fakeSession) social(name string, p models.Provider) (*models.User, error) {
	f.calls = append(f.calls, name)
	if f.socialErr != nil {
		return nil, f.socialErr
	}
	return f.signIn(&models.User{ID: "s1", Email: "s@example.org", Provider: p}), nil
}

func (f *fakeSession) LoginWithGoogle(context.Context) (*models.User, error) {
	return f.social("LoginWithGoogle", models.ProviderGoogle)
}

func (f *fakeSession) LoginWithFacebook(context.Context) (*models.User, error) {
	return f.social("LoginWithFacebook", models.ProviderFacebook)
}

func (f *fakeSession) RegisterWithGoogle(context.Context) (*models.User, error) {
	return f.social("RegisterWithGoogle", models.ProviderGoogle)
}

func (f *fakeSession) RegisterWithFacebook(context.Context) (*models.User, error) {
	return f.social("RegisterWithFacebook", models.ProviderFacebook)
}

func (f *fakeSession) UpdateProfile(_ context.Context, patch models.ProfilePatch) (*models.User, error) {
	f.calls = append(f.calls, "UpdateProfile")
	f.patch = patch
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.signIn(f.state.snap.Current.Apply(patch)), nil
}

func (f *fakeSession) RefreshProfile(context.Context) (*models.User, error) {
	f.calls = append(f.calls, "RefreshProfile")
	return f.state.snap.Current, f.refreshErr
}

func (f *fakeSession) VerifyTwoFactorCode(_ context.Context, code string) error {
	f.calls = append(f.calls, "VerifyTwoFactorCode")
	f.code = code
	if f.verifyErr != nil {
		return f.verifyErr
	}
	f.state.snap.TwoFactorPending = false
	return nil
}

// newTestApp builds an App reading the given lines, with the secret prompt
// reading plain lines too.
func newTestApp(t *testing.T, lines ...string) (*App, *fakeSession, *bytes.Buffer) {
	t.Helper()

	orig := isTerminal
	isTerminal = func(int) bool { return false }
	t.Cleanup(func() { isTerminal = orig })

	st := &fakeState{}
	s := &fakeSession{state: st, user: &models.User{ID: "u1", Email: "ann@example.org", DisplayName: "Ann", Provider: models.ProviderDirect}}
	out := &bytes.Buffer{}

	a := NewApp(s, st, strings.NewReader(strings.Join(lines, "\n")+"\n"), out, nil)
	return a, s, out
}

func readerFrom(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

