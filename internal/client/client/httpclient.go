package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
)

const maxErrorBody = 4 << 10

// HTTPClient talks to the direct backend over its REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	now     func() time.Time
}

func NewHTTPClient(baseURL string, timeout time.Duration, tokens TokenSource) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		now:     time.Now,
	}
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp, false); err != nil {
		return err
	}
	if resp.Status != "" && !strings.EqualFold(resp.Status, "ok") {
		return ErrUnavailable
	}
	return nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp authResponse
	req := credentialsRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/login", req, &resp, false); err != nil {
		return nil, err
	}
	return resp.toAuth(c.now())
}

func (c *HTTPClient) Register(ctx context.Context, email, password, displayName string) (*AuthResponse, error) {
	var resp authResponse
	req := credentialsRequest{Email: email, Password: password, DisplayName: displayName}
	if err := c.do(ctx, http.MethodPost, "/register", req, &resp, false); err != nil {
		return nil, err
	}
	return resp.toAuth(c.now())
}

func (c *HTTPClient) GetProfile(ctx context.Context) (*models.UserInfo, error) {
	var u wireUser
	if err := c.do(ctx, http.MethodGet, "/profile", nil, &u, true); err != nil {
		return nil, err
	}
	info := u.info()
	return &info, nil
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.UserInfo, error) {
	var u wireUser
	if err := c.do(ctx, http.MethodPatch, "/profile", patch, &u, true); err != nil {
		return nil, err
	}
	info := u.info()
	return &info, nil
}

func (c *HTTPClient) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/forgot-password", emailRequest{Email: email}, nil, false)
}

func (c *HTTPClient) VerifyTwoFactor(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPost, "/verify-2fa", codeRequest{Code: code}, nil, true)
}

func (c *HTTPClient) Logout(ctx context.Context, accessToken string) error {
	return c.send(ctx, http.MethodPost, "/logout", nil, nil, accessToken)
}

// do sends the request, with the TokenSource's token when auth is set.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any, auth bool) error {
	var token string
	if auth && c.tokens != nil {
		if tok, err := c.tokens.AccessToken(ctx); err == nil {
			token = tok
		}
	}
	return c.send(ctx, method, path, in, out, token)
}

func (c *HTTPClient) send(ctx context.Context, method, path string, in, out any, token string) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decode response: %v", ErrServer, err)
	}
	return nil
}

// statusError maps a non-2xx response to one of the package sentinels.
func statusError(resp *http.Response) error {
	var e errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(raw, &e) != nil || e.text() == "" {
		e.Message = strings.TrimSpace(string(raw))
	}
	msg := e.text()
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %d %s", ErrServer, resp.StatusCode, msg)
	default:
		return fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode, msg)
	}
}
