// Package credentials keeps the single email/password pair that enables
// offline re-authentication.
//
// The pair is written as one record under one secret-store key, so there is
// never more than one stored credential and a save is atomic. Next to the
// password the record carries an argon2 verifier; offline checks go through
// Match, which compares verifiers in constant time.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/client/repositories/secrets"
	"github.com/dmitrijs2005/bizkeeper/internal/common"
	"github.com/dmitrijs2005/bizkeeper/internal/cryptox"
)

const saltSize = 16

type record struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Salt     []byte    `json:"salt"`
	Verifier []byte    `json:"verifier"`
	SavedAt  time.Time `json:"saved_at"`
}

type Cache struct {
	store secrets.Store
	now   func() time.Time
}

func NewCache(store secrets.Store) *Cache {
	return &Cache{store: store, now: time.Now}
}

// Save overwrites the stored credential.
func (c *Cache) Save(ctx context.Context, email, password string) error {
	salt := common.GenerateRandByteArray(saltSize)
	rec := record{
		Email:    email,
		Password: password,
		Salt:     salt,
		Verifier: cryptox.MakeVerifier(cryptox.DeriveKey([]byte(password), salt)),
		SavedAt:  c.now().UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("credential encode error: %w", err)
	}
	if err := c.store.Set(ctx, common.SecretKeyCredential, data); err != nil {
		return fmt.Errorf("credential save error: %w", err)
	}
	return nil
}

// Load returns the stored credential, or nil when there is none.
func (c *Cache) Load(ctx context.Context) (*models.StoredCredential, error) {
	rec, err := c.load(ctx)
	if err != nil || rec == nil {
		return nil, err
	}
	return &models.StoredCredential{Email: rec.Email, Password: rec.Password}, nil
}

// Match reports whether (email, password) equals the stored credential
// exactly; the email is compared as typed. It returns false without error
// when nothing is stored.
func (c *Cache) Match(ctx context.Context, email, password string) (bool, error) {
	rec, err := c.load(ctx)
	if err != nil || rec == nil {
		return false, err
	}
	if rec.Email != email {
		return false, nil
	}
	return cryptox.VerifySecret([]byte(password), rec.Salt, rec.Verifier), nil
}

// Clear removes the stored credential.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, common.SecretKeyCredential); err != nil {
		return fmt.Errorf("credential clear error: %w", err)
	}
	return nil
}

func (c *Cache) load(ctx context.Context) (*record, error) {
	data, err := c.store.Get(ctx, common.SecretKeyCredential)
	if err != nil {
		return nil, fmt.Errorf("credential load error: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("credential decode error: %w", err)
	}
	return &rec, nil
}
