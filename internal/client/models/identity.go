package models

import (
	"fmt"
	"time"
)

// UserInfo is the normalized set of identity claims returned by any
// provider. Field names follow OIDC standard claims where one exists.
type UserInfo struct {
	Subject       string   `json:"sub"`
	Email         string   `json:"email"`
	Name          string   `json:"name,omitempty"`
	Picture       string   `json:"picture,omitempty"`
	PhoneNumber   string   `json:"phone_number,omitempty"`
	EmailVerified bool     `json:"email_verified,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	Locale        string   `json:"locale,omitempty"`
	Company       string   `json:"company,omitempty"`
	Position      string   `json:"position,omitempty"`
}

// TokenSet is what a provider issues on successful authentication.
// It is either stored whole or not at all. A set saved while the second
// factor is outstanding carries TwoFactorPending until the code is accepted.
type TokenSet struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	IDToken          string    `json:"id_token,omitempty"`
	ExpiresAt        time.Time `json:"expires_at,omitzero"`
	Provider         Provider  `json:"provider"`
	Claims           UserInfo  `json:"claims"`
	TwoFactorPending bool      `json:"two_factor_pending,omitempty"`
}

// Complete reports whether the mandatory parts of the set are present.
func (t *TokenSet) Complete() bool {
	return t != nil && t.AccessToken != "" && t.Claims.Subject != ""
}

// StoredCredential is the last email/password pair accepted online.
type StoredCredential struct {
	Email    string
	Password string
}

// String keeps the password out of logs and fmt output.
func (c StoredCredential) String() string {
	return fmt.Sprintf("{%s ********}", c.Email)
}

// GoString mirrors String for %#v.
func (c StoredCredential) GoString() string {
	return fmt.Sprintf("models.StoredCredential{Email:%q, Password:\"********\"}", c.Email)
}

// ProfilePatch carries a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	DisplayName *string `json:"displayName,omitempty" validate:"omitempty,min=1,max=100"`
	PhotoURL    *string `json:"photoUrl,omitempty" validate:"omitempty,url"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitempty,max=32"`
	Company     *string `json:"company,omitempty" validate:"omitempty,max=100"`
	Role        *string `json:"role,omitempty" validate:"omitempty,max=50"`
	Position    *string `json:"position,omitempty" validate:"omitempty,max=100"`
	Language    *string `json:"language,omitempty" validate:"omitempty,bcp47_language_tag"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p == ProfilePatch{}
}
