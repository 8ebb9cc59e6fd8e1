package tokens

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
)

// userClaims is the JWT payload layout shared by the direct backend and the
// federated identity provider.
type userClaims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email,omitempty"`
	Name          string   `json:"name,omitempty"`
	Picture       string   `json:"picture,omitempty"`
	PhoneNumber   string   `json:"phone_number,omitempty"`
	EmailVerified bool     `json:"email_verified,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	Locale        string   `json:"locale,omitempty"`
	Company       string   `json:"company,omitempty"`
	Position      string   `json:"position,omitempty"`
}

func (c *userClaims) info() models.UserInfo {
	return models.UserInfo{
		Subject:       c.Subject,
		Email:         c.Email,
		Name:          c.Name,
		Picture:       c.Picture,
		PhoneNumber:   c.PhoneNumber,
		EmailVerified: c.EmailVerified,
		Roles:         c.Roles,
		Locale:        c.Locale,
		Company:       c.Company,
		Position:      c.Position,
	}
}

// IsJWT reports whether raw has the three-segment compact JWT shape.
func IsJWT(raw string) bool {
	return strings.Count(raw, ".") == 2
}

// DecodeUserInfo reads identity claims out of a JWT without verifying its
// signature. It is meant for ID tokens received over an authenticated channel.
func DecodeUserInfo(raw string) (models.UserInfo, error) {
	var claims userClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return models.UserInfo{}, fmt.Errorf("decode claims: %w", err)
	}
	if claims.Subject == "" {
		return models.UserInfo{}, fmt.Errorf("decode claims: missing subject")
	}
	return claims.info(), nil
}
