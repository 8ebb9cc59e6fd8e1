// Package services holds the client's session layer.
//
// SessionManager is the only writer of the session state. It decides between
// the online path (providers, direct backend) and the offline path (cached
// credential), short-circuits the reserved demo account, gates two-factor
// verification and publishes the resulting User through a StateStore.
//
// Mutating operations are serialized: a second call waits until the first
// one returns. Connectivity is read once at the start of every operation; a
// connection lost mid-flight shows up as an ordinary provider failure.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/bizkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/client/providers"
	"github.com/dmitrijs2005/bizkeeper/internal/logging"
	"github.com/go-playground/validator/v10"
)

// CredentialCache keeps the last email/password accepted online.
type CredentialCache interface {
	Save(ctx context.Context, email, password string) error
	Match(ctx context.Context, email, password string) (bool, error)
	Clear(ctx context.Context) error
}

// TokenStore keeps the token set of the current session.
type TokenStore interface {
	Save(ctx context.Context, ts *models.TokenSet) error
	Current(ctx context.Context) (*models.TokenSet, error)
	SetOfflineMode(offline bool)
	ClearTokens(ctx context.Context) error
}

// Providers lists the provider strategies for each operation.
type Providers interface {
	Login(email, password string) []providers.Strategy[*providers.AuthResult]
	Register(email, password, name string) []providers.Strategy[*providers.AuthResult]
	Reset(email string) []providers.Strategy[struct{}]
	Social(p models.Provider, register bool) []providers.Strategy[*providers.AuthResult]
	LogoutDirect(ctx context.Context, ts *models.TokenSet) error
	LogoutFederated(ctx context.Context, ts *models.TokenSet) error
}

// ProfileAPI is the part of the direct backend used for authenticated calls.
type ProfileAPI interface {
	GetProfile(ctx context.Context) (*models.UserInfo, error)
	UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.UserInfo, error)
	VerifyTwoFactor(ctx context.Context, code string) error
}

// Recorder receives one observation per finished operation.
type Recorder interface {
	ObserveOperation(op, outcome, provider string, d time.Duration)
	SetOnline(online bool)
}

// Settings are the reserved values of the demo account and the fixed code
// accepted for two-factor verification while offline or in demo mode.
type Settings struct {
	DemoEmail               string
	DemoPassword            string
	OfflineVerificationCode string
}

type SessionManager struct {
	settings  Settings
	providers Providers
	profile   ProfileAPI
	creds     CredentialCache
	tokens    TokenStore
	conn      connectivity.Checker

	state    *StateStore
	demo     *DemoMode
	log      logging.Logger
	recorder Recorder
	validate *validator.Validate
	now      func() time.Time

	// opMu admits one mutating operation at a time.
	opMu sync.Mutex
}

type Option func(*SessionManager)

func WithLogger(l logging.Logger) Option {
	return func(m *SessionManager) { m.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(m *SessionManager) { m.recorder = r }
}

// WithDemoMode shares an existing demo flag with business services.
func WithDemoMode(d *DemoMode) Option {
	return func(m *SessionManager) { m.demo = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *SessionManager) { m.now = now }
}

func NewSessionManager(
	settings Settings,
	chain Providers,
	profile ProfileAPI,
	creds CredentialCache,
	tokens TokenStore,
	conn connectivity.Checker,
	opts ...Option,
) *SessionManager {
	m := &SessionManager{
		settings:  settings,
		providers: chain,
		profile:   profile,
		creds:     creds,
		tokens:    tokens,
		conn:      conn,
		state:     NewStateStore(),
		log:       logging.Nop(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	if m.demo == nil {
		m.demo = NewDemoMode()
	}
	m.state.dispatch(setOffline(!conn.IsOnline()))
	return m
}

func (m *SessionManager) State() *StateStore { return m.state }

func (m *SessionManager) Demo() *DemoMode { return m.demo }

// Current returns a copy of the signed-in user, or nil.
func (m *SessionManager) Current() *models.User { return m.state.current() }

// Watch mirrors connectivity changes into the state and the token store
// until ctx is done or the source closes the subscription.
func (m *SessionManager) Watch(ctx context.Context, src connectivity.Source) {
	ch, cancel := src.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-ch:
			if !ok {
				return
			}
			m.applyConnectivity(online)
			m.log.Debug(ctx, "connectivity changed", "online", online)
		}
	}
}

func (m *SessionManager) applyConnectivity(online bool) {
	m.tokens.SetOfflineMode(!online)
	if m.recorder != nil {
		m.recorder.SetOnline(online)
	}
	m.state.dispatch(setOffline(!online))
}

// run is the guard around one operation. start marks the state as loading
// and waits for the operation's turn; finish always undoes it.
type run struct {
	m        *SessionManager
	op       string
	started  time.Time
	offline  bool
	provider models.Provider
}

func (m *SessionManager) start(op string) *run {
	m.state.dispatch(beginOperation())
	m.opMu.Lock()

	online := m.conn.IsOnline()
	m.applyConnectivity(online)

	return &run{m: m, op: op, started: m.now(), offline: !online}
}

func (r *run) finish(ctx context.Context, err error) {
	r.m.opMu.Unlock()
	r.m.state.dispatch(endOperation())

	outcome, provider := "success", string(r.provider)
	if err != nil {
		outcome, provider = "failure", ""
	}
	if r.m.recorder != nil {
		r.m.recorder.ObserveOperation(r.op, outcome, provider, r.m.now().Sub(r.started))
	}
	if err != nil {
		r.m.log.Warn(ctx, "session operation failed", "op", r.op, "error", err)
	}
}
