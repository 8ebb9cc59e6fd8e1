// Package federated is the client of the external identity platform used as
// fallback provider and for social logins.
//
// Password logins use the OAuth2 resource owner password grant. Social logins
// run the device authorization flow with the social connection passed as an
// extra parameter, so the CLI can show a code and let the user finish in a
// browser. Signup, password reset, revocation and introspection go through
// the platform's REST endpoints.
package federated

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/bizkeeper/internal/client/client"
	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/client/tokens"
	"github.com/dmitrijs2005/bizkeeper/internal/logging"
	"golang.org/x/oauth2"
)

// Endpoint paths relative to the issuer URL.
const (
	pathToken      = "/oauth/token"
	pathDeviceCode = "/oauth/device/code"
	pathRevoke     = "/oauth/revoke"
	pathIntrospect = "/oauth/introspect"
	pathUserInfo   = "/userinfo"
	pathSignup     = "/dbconnections/signup"
	pathResetPass  = "/dbconnections/change_password"
)

// Connection names understood by the platform for each social provider.
var connections = map[models.Provider]string{
	models.ProviderGoogle:   "google-oauth2",
	models.ProviderFacebook: "facebook",
}

// ErrUnsupportedConnection is returned for social providers without a connection.
var ErrUnsupportedConnection = errors.New("unsupported social connection")

type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// DeviceCode is what the user needs to finish a social login elsewhere.
type DeviceCode struct {
	VerificationURI string
	UserCode        string
	Expiry          time.Time
}

// Prompter shows a device code to the user. It must not block.
type Prompter func(ctx context.Context, code DeviceCode)

// Result is a successful authentication against the platform.
type Result struct {
	Info   models.UserInfo
	Tokens models.TokenSet
}

type Client struct {
	issuer string
	oauth  *oauth2.Config
	http   *http.Client
	log    logging.Logger
}

func New(cfg Config, log logging.Logger) *Client {
	issuer := strings.TrimRight(cfg.IssuerURL, "/")
	if log == nil {
		log = logging.Nop()
	}
	return &Client{
		issuer: issuer,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				TokenURL:      issuer + pathToken,
				DeviceAuthURL: issuer + pathDeviceCode,
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		},
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

func (c *Client) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

// Login authenticates with the password grant.
func (c *Client) Login(ctx context.Context, email, password string) (*Result, error) {
	ctx = c.ctx(ctx)
	tok, err := c.oauth.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return nil, mapError(err)
	}
	return c.result(ctx, tok, models.ProviderFederated)
}

// Register creates a database-connection user and logs it in.
func (c *Client) Register(ctx context.Context, email, password, name string) (*Result, error) {
	body := map[string]string{
		"client_id": c.oauth.ClientID,
		"email":     email,
		"password":  password,
		"name":      name,
	}
	if err := c.postJSON(ctx, pathSignup, body, nil); err != nil {
		return nil, err
	}
	return c.Login(ctx, email, password)
}

// LoginSocial runs the device flow against the provider's connection.
func (c *Client) LoginSocial(ctx context.Context, p models.Provider, prompt Prompter) (*Result, error) {
	return c.social(ctx, p, prompt)
}

// RegisterSocial is LoginSocial with the signup screen requested.
func (c *Client) RegisterSocial(ctx context.Context, p models.Provider, prompt Prompter) (*Result, error) {
	return c.social(ctx, p, prompt, oauth2.SetAuthURLParam("screen_hint", "signup"))
}

func (c *Client) social(ctx context.Context, p models.Provider, prompt Prompter, extra ...oauth2.AuthCodeOption) (*Result, error) {
	conn, ok := connections[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConnection, p)
	}
	ctx = c.ctx(ctx)

	opts := append([]oauth2.AuthCodeOption{oauth2.SetAuthURLParam("connection", conn)}, extra...)
	da, err := c.oauth.DeviceAuth(ctx, opts...)
	if err != nil {
		return nil, mapError(err)
	}

	if prompt != nil {
		uri := da.VerificationURIComplete
		if uri == "" {
			uri = da.VerificationURI
		}
		prompt(ctx, DeviceCode{VerificationURI: uri, UserCode: da.UserCode, Expiry: da.Expiry})
	}

	tok, err := c.oauth.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, mapError(err)
	}
	return c.result(ctx, tok, p)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"client_id": c.oauth.ClientID, "email": email}
	return c.postJSON(ctx, pathResetPass, body, nil)
}

// Logout revokes accessToken, which must have been issued by the platform.
// Nothing is sent for an empty token.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return c.postForm(ctx, pathRevoke, map[string]string{"token": accessToken}, nil)
}

// Introspect asks the platform whether accessToken is still active.
func (c *Client) Introspect(ctx context.Context, accessToken string) (bool, error) {
	var resp struct {
		Active bool `json:"active"`
	}
	err := c.postForm(ctx, pathIntrospect, map[string]string{
		"token":           accessToken,
		"token_type_hint": "access_token",
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Active, nil
}

// Ping checks that the issuer answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.issuer+pathUserInfo, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", client.ErrUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", client.ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) result(ctx context.Context, tok *oauth2.Token, p models.Provider) (*Result, error) {
	ts := models.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
		Provider:     p,
	}
	if id, ok := tok.Extra("id_token").(string); ok {
		ts.IDToken = id
	}

	info, err := c.userInfo(ctx, tok)
	if err != nil {
		if ts.IDToken == "" {
			return nil, err
		}
		c.log.Warn(ctx, "userinfo failed, using id token claims", "provider", p, "error", err)
		claims, derr := tokens.DecodeUserInfo(ts.IDToken)
		if derr != nil {
			return nil, fmt.Errorf("%w: %v", client.ErrServer, derr)
		}
		info = &claims
	}

	ts.Claims = *info
	return &Result{Info: *info, Tokens: ts}, nil
}

func (c *Client) userInfo(ctx context.Context, tok *oauth2.Token) (*models.UserInfo, error) {
	var info models.UserInfo
	if err := c.getJSON(ctx, c.oauth.Client(ctx, tok), pathUserInfo, &info); err != nil {
		return nil, err
	}
	if info.Subject == "" {
		return nil, fmt.Errorf("%w: userinfo without subject", client.ErrServer)
	}
	return &info, nil
}
