package client

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/client/tokens"
)

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e errorResponse) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

type wireUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName,omitempty"`
	PhotoURL      string `json:"photoUrl,omitempty"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
	EmailVerified bool   `json:"emailVerified,omitempty"`
	Company       string `json:"company,omitempty"`
	Role          string `json:"role,omitempty"`
	Position      string `json:"position,omitempty"`
	Language      string `json:"language,omitempty"`
}

func (u wireUser) info() models.UserInfo {
	info := models.UserInfo{
		Subject:       u.ID,
		Email:         u.Email,
		Name:          u.DisplayName,
		Picture:       u.PhotoURL,
		PhoneNumber:   u.PhoneNumber,
		EmailVerified: u.EmailVerified,
		Locale:        u.Language,
		Company:       u.Company,
		Position:      u.Position,
	}
	if u.Role != "" {
		info.Roles = []string{u.Role}
	}
	return info
}

type authResponse struct {
	AccessToken       string   `json:"accessToken"`
	RefreshToken      string   `json:"refreshToken,omitempty"`
	ExpiresIn         int64    `json:"expiresIn,omitempty"`
	RequiresTwoFactor bool     `json:"requiresTwoFactor,omitempty"`
	User              wireUser `json:"user"`
}

// toAuth normalizes a login/register payload. The user object wins; when the
// backend omits it the access token claims are used instead.
func (r *authResponse) toAuth(now time.Time) (*AuthResponse, error) {
	if r.AccessToken == "" {
		return nil, fmt.Errorf("%w: response without access token", ErrServer)
	}

	info := r.User.info()
	if info.Subject == "" && tokens.IsJWT(r.AccessToken) {
		claims, err := tokens.DecodeUserInfo(r.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrServer, err)
		}
		info = claims
	}
	if info.Subject == "" {
		return nil, fmt.Errorf("%w: response without user id", ErrServer)
	}

	ts := models.TokenSet{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Provider:     models.ProviderDirect,
		Claims:       info,
	}
	if r.ExpiresIn > 0 {
		ts.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second).UTC()
	}

	return &AuthResponse{Info: info, Tokens: ts, RequiresTwoFactor: r.RequiresTwoFactor}, nil
}
