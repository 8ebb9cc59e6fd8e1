// Package models defines the session data shared by the client packages:
// the published User, the identity claims issued by providers, and the
// records kept in the secret store.
package models

import "strings"

// Provider names the origin of a session.
type Provider string

const (
	ProviderDirect    Provider = "direct"
	ProviderFederated Provider = "federated"
	ProviderGoogle    Provider = "google"
	ProviderFacebook  Provider = "facebook"
	ProviderDemo      Provider = "demo"
	ProviderOffline   Provider = "offline"
)

// FederatedProviders lists the providers whose tokens the federated
// platform issues.
func FederatedProviders() []Provider {
	return []Provider{ProviderFederated, ProviderGoogle, ProviderFacebook}
}

// DefaultLanguage is used whenever a provider does not report a locale.
const DefaultLanguage = "fr"

// User is the in-memory identity published to observers. It is never
// persisted directly; it is rebuilt from tokens or cached credentials.
type User struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	DisplayName   string   `json:"displayName"`
	PhotoURL      string   `json:"photoUrl,omitempty"`
	PhoneNumber   string   `json:"phoneNumber,omitempty"`
	EmailVerified bool     `json:"emailVerified"`
	Company       string   `json:"company,omitempty"`
	Role          string   `json:"role,omitempty"`
	Position      string   `json:"position,omitempty"`
	Language      string   `json:"language"`
	IsDemo        bool     `json:"isDemo"`
	Provider      Provider `json:"provider,omitempty"`
}

// NewUserFromInfo normalizes provider claims into a User.
func NewUserFromInfo(info UserInfo, provider Provider) *User {
	u := &User{
		ID:            info.Subject,
		Email:         info.Email,
		DisplayName:   info.Name,
		PhotoURL:      info.Picture,
		PhoneNumber:   info.PhoneNumber,
		EmailVerified: info.EmailVerified,
		Company:       info.Company,
		Position:      info.Position,
		Language:      info.Locale,
		Provider:      provider,
	}
	if len(info.Roles) > 0 {
		u.Role = info.Roles[0]
	}
	if u.DisplayName == "" {
		u.DisplayName = displayNameFromEmail(info.Email)
	}
	if u.Language == "" {
		u.Language = DefaultLanguage
	}
	return u
}

// Clone returns a copy that can be mutated without affecting u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Apply returns a copy of u with every non-nil patch field written over it.
func (u *User) Apply(p ProfilePatch) *User {
	c := u.Clone()
	if c == nil {
		return nil
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.DisplayName, p.DisplayName)
	set(&c.PhotoURL, p.PhotoURL)
	set(&c.PhoneNumber, p.PhoneNumber)
	set(&c.Company, p.Company)
	set(&c.Role, p.Role)
	set(&c.Position, p.Position)
	set(&c.Language, p.Language)
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	return c
}

// Merge returns a copy of u with the non-empty fields of info written over
// it. The identity fields (ID, provider, demo flag) are kept.
func (u *User) Merge(info UserInfo) *User {
	c := u.Clone()
	if c == nil {
		return nil
	}
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&c.Email, info.Email)
	set(&c.DisplayName, info.Name)
	set(&c.PhotoURL, info.Picture)
	set(&c.PhoneNumber, info.PhoneNumber)
	set(&c.Company, info.Company)
	set(&c.Position, info.Position)
	set(&c.Language, info.Locale)
	if len(info.Roles) > 0 {
		c.Role = info.Roles[0]
	}
	if info.EmailVerified {
		c.EmailVerified = true
	}
	return c
}

func displayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
