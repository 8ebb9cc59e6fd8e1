package federated

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/bizkeeper/internal/client/client"
	"golang.org/x/oauth2"
)

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.issuer+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(c.http, req, out)
}

func (c *Client) postForm(ctx context.Context, path string, fields map[string]string, out any) error {
	v := url.Values{}
	v.Set("client_id", c.oauth.ClientID)
	if c.oauth.ClientSecret != "" {
		v.Set("client_secret", c.oauth.ClientSecret)
	}
	for k, val := range fields {
		v.Set(k, val)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.issuer+path, strings.NewReader(v.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(c.http, req, out)
}

func (c *Client) getJSON(ctx context.Context, hc *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.issuer+path, nil)
	if err != nil {
		return err
	}
	return c.send(hc, req, out)
}

func (c *Client) send(hc *http.Client, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return mapError(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", client.ErrServer, req.URL.Path, err)
	}
	return nil
}

type platformError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"message"`
}

func statusError(code int, body []byte) error {
	var pe platformError
	_ = json.Unmarshal(body, &pe)
	msg := pe.Description
	if msg == "" {
		msg = pe.Message
	}
	if msg == "" {
		msg = pe.Error
	}
	if msg == "" {
		msg = http.StatusText(code)
	}

	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", client.ErrUnauthorized, msg)
	case code == http.StatusBadGateway, code == http.StatusServiceUnavailable, code == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", client.ErrUnavailable, msg)
	case code >= 500:
		return fmt.Errorf("%w: %d %s", client.ErrServer, code, msg)
	default:
		return fmt.Errorf("%w: %d %s", client.ErrRejected, code, msg)
	}
}

// mapError converts oauth2 and transport failures to the client sentinels.
func mapError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case "invalid_grant", "access_denied", "unauthorized_client", "invalid_client":
			return fmt.Errorf("%w: %v", client.ErrUnauthorized, err)
		case "expired_token":
			return fmt.Errorf("%w: %v", client.ErrRejected, err)
		}
		if re.Response != nil {
			return statusError(re.Response.StatusCode, re.Body)
		}
		return fmt.Errorf("%w: %v", client.ErrServer, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", client.ErrUnavailable, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%w: %v", client.ErrUnavailable, err)
	}
	if errors.Is(err, client.ErrUnavailable) || errors.Is(err, client.ErrServer) ||
		errors.Is(err, client.ErrRejected) || errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	return fmt.Errorf("%w: %v", client.ErrServer, err)
}
