// Package tokens persists the token set issued on login and answers
// whether it still describes a live session.
//
// Validity is decided locally from the access token's exp claim and the
// recorded expiry, with a configurable leeway. When the device is online and
// an introspector is registered for the token's provider, the provider is
// asked as well; a failed introspection call never invalidates tokens on its
// own, so a flaky network cannot log the user out.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/client/repositories/secrets"
	"github.com/dmitrijs2005/bizkeeper/internal/common"
	"github.com/dmitrijs2005/bizkeeper/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

// Introspector asks the issuer whether an access token is still active.
type Introspector interface {
	Introspect(ctx context.Context, accessToken string) (bool, error)
}

type Store struct {
	secrets       secrets.Store
	verifyKey     []byte
	leeway        time.Duration
	introspectors map[models.Provider]Introspector
	offline       atomic.Bool
	now           func() time.Time
	log           logging.Logger
}

type Option func(*Store)

// WithVerifyKey enables HS256 signature checks for tokens issued by the
// direct backend. Tokens from other providers are only decoded.
func WithVerifyKey(key []byte) Option {
	return func(s *Store) { s.verifyKey = key }
}

func WithLeeway(d time.Duration) Option {
	return func(s *Store) { s.leeway = d }
}

func WithIntrospector(p models.Provider, i Introspector) Option {
	return func(s *Store) { s.introspectors[p] = i }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(store secrets.Store, opts ...Option) *Store {
	s := &Store{
		secrets:       store,
		introspectors: map[models.Provider]Introspector{},
		now:           time.Now,
		log:           logging.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetOfflineMode turns remote introspection off (true) or back on (false).
func (s *Store) SetOfflineMode(offline bool) {
	s.offline.Store(offline)
}

func (s *Store) Offline() bool {
	return s.offline.Load()
}

// Save validates ts and replaces the stored set with it. An incomplete or
// already expired set is rejected and the previous one is left untouched.
func (s *Store) Save(ctx context.Context, ts *models.TokenSet) error {
	if !ts.Complete() {
		return fmt.Errorf("save tokens: %w", common.ErrInvalidToken)
	}

	exp, err := s.localCheck(ts)
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}

	c := *ts
	if c.ExpiresAt.IsZero() && !exp.IsZero() {
		c.ExpiresAt = exp
	}

	data, err := json.Marshal(&c)
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	if err := s.secrets.Set(ctx, common.SecretKeyTokens, data); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

// Current returns the stored set if it is valid. The error tells apart
// common.ErrorNotFound, common.ErrTokenExpired and common.ErrInvalidToken.
func (s *Store) Current(ctx context.Context) (*models.TokenSet, error) {
	ts, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.localCheck(ts); err != nil {
		return nil, err
	}

	if s.offline.Load() {
		return ts, nil
	}
	if i, ok := s.introspectors[ts.Provider]; ok {
		active, err := i.Introspect(ctx, ts.AccessToken)
		switch {
		case err != nil:
			s.log.Warn(ctx, "token introspection failed, keeping local verdict", "provider", ts.Provider, "error", err)
		case !active:
			return nil, common.ErrTokenExpired
		}
	}
	return ts, nil
}

// HasValidTokens reports whether a live token set is stored. It never fails;
// storage errors count as "no tokens".
func (s *Store) HasValidTokens(ctx context.Context) bool {
	_, err := s.Current(ctx)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Debug(ctx, "stored tokens not usable", "error", err)
	}
	return err == nil
}

// GetUserInfo returns the claims of a valid token set, or nil.
func (s *Store) GetUserInfo(ctx context.Context) *models.UserInfo {
	ts, err := s.Current(ctx)
	if err != nil {
		return nil
	}
	info := ts.Claims
	return &info
}

// AccessToken returns the access token of a valid set.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	ts, err := s.Current(ctx)
	if err != nil {
		return "", err
	}
	return ts.AccessToken, nil
}

// AccessTokenFor is AccessToken restricted to sets issued by one of
// issuers. A set from any other provider reads as common.ErrorNotFound.
func (s *Store) AccessTokenFor(ctx context.Context, issuers ...models.Provider) (string, error) {
	ts, err := s.Current(ctx)
	if err != nil {
		return "", err
	}
	if !slices.Contains(issuers, ts.Provider) {
		return "", common.ErrorNotFound
	}
	return ts.AccessToken, nil
}

func (s *Store) ClearTokens(ctx context.Context) error {
	if err := s.secrets.Delete(ctx, common.SecretKeyTokens); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) (*models.TokenSet, error) {
	data, err := s.secrets.Get(ctx, common.SecretKeyTokens)
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}
	if data == nil {
		return nil, common.ErrorNotFound
	}

	var ts models.TokenSet
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !ts.Complete() {
		return nil, common.ErrInvalidToken
	}
	return &ts, nil
}

// localCheck validates ts against the clock and, for direct tokens with a
// verify key, the signature. It returns the exp claim when there is one.
func (s *Store) localCheck(ts *models.TokenSet) (time.Time, error) {
	now := s.now()
	if !ts.ExpiresAt.IsZero() && now.After(ts.ExpiresAt.Add(s.leeway)) {
		return time.Time{}, common.ErrTokenExpired
	}

	if !IsJWT(ts.AccessToken) {
		return time.Time{}, nil
	}

	var claims userClaims
	if len(s.verifyKey) > 0 && ts.Provider == models.ProviderDirect {
		_, err := jwt.ParseWithClaims(ts.AccessToken, &claims, func(t *jwt.Token) (any, error) {
			return s.verifyKey, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(s.leeway),
			jwt.WithTimeFunc(s.now),
		)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return time.Time{}, common.ErrTokenExpired
			}
			return time.Time{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(ts.AccessToken, &claims); err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
		}
		if claims.ExpiresAt != nil && now.After(claims.ExpiresAt.Add(s.leeway)) {
			return time.Time{}, common.ErrTokenExpired
		}
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
