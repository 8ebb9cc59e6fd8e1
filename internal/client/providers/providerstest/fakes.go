// Package providerstest provides recording fakes of the direct backend and
// the federated platform for tests of code built on a providers.Chain.
package providerstest

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/bizkeeper/internal/client/client"
	"github.com/dmitrijs2005/bizkeeper/internal/client/federated"
	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
)

// Direct is a fake client.Client. Zero values answer every call with
// success and a canned user.
type Direct struct {
	mu    sync.Mutex
	Calls []string

	// inputs captured
	LastEmail    string
	LastPassword string
	LastName     string
	LastCode     string
	LastPatch    models.ProfilePatch
	LogoutToken  string

	// outputs preset
	LoginResp    *client.AuthResponse
	LoginErr     error
	RegisterResp *client.AuthResponse
	RegisterErr  error
	Profile      *models.UserInfo
	ProfileErr   error
	UpdateResp   *models.UserInfo
	UpdateErr    error
	ForgotErr    error
	VerifyErr    error
	LogoutErr    error
	PingErr      error

	// OnLogin runs at the start of Login, before the preset outputs.
	OnLogin func()
}

func (d *Direct) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, call)
}

// Called reports how many times call was made.
func (d *Direct) Called(call string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (d *Direct) Close() error { return nil }

func (d *Direct) Ping(context.Context) error {
	d.record("Ping")
	return d.PingErr
}

func (d *Direct) Login(_ context.Context, email, password string) (*client.AuthResponse, error) {
	d.record("Login")
	if d.OnLogin != nil {
		d.OnLogin()
	}
	d.LastEmail, d.LastPassword = email, password
	if d.LoginErr != nil {
		return nil, d.LoginErr
	}
	if d.LoginResp != nil {
		return d.LoginResp, nil
	}
	return DirectResponse("direct-"+email, email), nil
}

func (d *Direct) Register(_ context.Context, email, password, name string) (*client.AuthResponse, error) {
	d.record("Register")
	d.LastEmail, d.LastPassword, d.LastName = email, password, name
	if d.RegisterErr != nil {
		return nil, d.RegisterErr
	}
	if d.RegisterResp != nil {
		return d.RegisterResp, nil
	}
	resp := DirectResponse("direct-"+email, email)
	resp.Info.Name = name
	resp.Tokens.Claims.Name = name
	return resp, nil
}

func (d *Direct) GetProfile(context.Context) (*models.UserInfo, error) {
	d.record("GetProfile")
	return d.Profile, d.ProfileErr
}

func (d *Direct) UpdateProfile(_ context.Context, patch models.ProfilePatch) (*models.UserInfo, error) {
	d.record("UpdateProfile")
	d.LastPatch = patch
	return d.UpdateResp, d.UpdateErr
}

func (d *Direct) ForgotPassword(_ context.Context, email string) error {
	d.record("ForgotPassword")
	d.LastEmail = email
	return d.ForgotErr
}

func (d *Direct) VerifyTwoFactor(_ context.Context, code string) error {
	d.record("VerifyTwoFactor")
	d.LastCode = code
	return d.VerifyErr
}

func (d *Direct) Logout(_ context.Context, accessToken string) error {
	d.record("Logout")
	d.LogoutToken = accessToken
	return d.LogoutErr
}

// Federated is a fake of the federated platform client.
type Federated struct {
	mu    sync.Mutex
	Calls []string

	LastEmail    string
	LastPassword string
	LastName     string
	LastSocial   models.Provider
	LogoutToken  string

	LoginErr    error
	RegisterErr error
	SocialErr   error
	ForgotErr   error
	LogoutErr   error
}

func (f *Federated) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
}

func (f *Federated) Called(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *Federated) Login(_ context.Context, email, password string) (*federated.Result, error) {
	f.record("Login")
	f.LastEmail, f.LastPassword = email, password
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	return FederatedResult("fed|"+email, email, models.ProviderFederated), nil
}

func (f *Federated) Register(_ context.Context, email, password, name string) (*federated.Result, error) {
	f.record("Register")
	f.LastEmail, f.LastPassword, f.LastName = email, password, name
	if f.RegisterErr != nil {
		return nil, f.RegisterErr
	}
	return FederatedResult("fed|"+email, email, models.ProviderFederated), nil
}

func (f *Federated) LoginSocial(_ context.Context, p models.Provider, _ federated.Prompter) (*federated.Result, error) {
	f.record("LoginSocial")
	f.LastSocial = p
	if f.SocialErr != nil {
		return nil, f.SocialErr
	}
	return FederatedResult(string(p)+"|social", "social@example.org", p), nil
}

func (f *Federated) RegisterSocial(_ context.Context, p models.Provider, _ federated.Prompter) (*federated.Result, error) {
	f.record("RegisterSocial")
	f.LastSocial = p
	if f.SocialErr != nil {
		return nil, f.SocialErr
	}
	return FederatedResult(string(p)+"|social", "social@example.org", p), nil
}

func (f *Federated) ForgotPassword(_ context.Context, email string) error {
	f.record("ForgotPassword")
	f.LastEmail = email
	return f.ForgotErr
}

func (f *Federated) Logout(_ context.Context, accessToken string) error {
	f.record("Logout")
	f.LogoutToken = accessToken
	return f.LogoutErr
}

// DirectResponse builds a login response with an opaque access token.
func DirectResponse(sub, email string) *client.AuthResponse {
	info := models.UserInfo{Subject: sub, Email: email, EmailVerified: true}
	return &client.AuthResponse{
		Info: info,
		Tokens: models.TokenSet{
			AccessToken: "access-" + sub,
			Provider:    models.ProviderDirect,
			Claims:      info,
		},
	}
}

func FederatedResult(sub, email string, p models.Provider) *federated.Result {
	info := models.UserInfo{Subject: sub, Email: email}
	return &federated.Result{
		Info: info,
		Tokens: models.TokenSet{
			AccessToken: "fed-access-" + sub,
			Provider:    p,
			Claims:      info,
		},
	}
}
