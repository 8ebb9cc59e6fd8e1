package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/bizkeeper/internal/client/client"
	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/client/providers/providerstest"
	"github.com/dmitrijs2005/bizkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/bizkeeper/internal/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_DemoPairAlwaysSucceeds(t *testing.T) {
	for _, online := range []bool{true, false} {
		t.Run(fmt.Sprintf("online=%v", online), func(t *testing.T) {
			h := newHarness(t, online)
			h.direct.LoginErr = client.ErrUnavailable
			h.fed.LoginErr = client.ErrUnavailable

			u, err := h.m.Login(context.Background(), testSettings.DemoEmail, testSettings.DemoPassword)
			require.NoError(t, err)

			assert.True(t, u.IsDemo)
			assert.Equal(t, models.ProviderDemo, u.Provider)
			assert.True(t, h.m.Demo().Active())
			assert.Zero(t, h.providerCalls(), "demo login never touches providers")

			snap := h.m.State().Snapshot()
			require.NotNil(t, snap.Current)
			assert.True(t, snap.Current.IsDemo)
			assert.False(t, snap.Loading)
		})
	}
}

func TestLogin_DemoRequiresExactPair(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.m.Login(context.Background(), testSettings.DemoEmail, "demo1234")
	assert.ErrorIs(t, err, ErrInvalidOfflineCredentials)
	assert.False(t, h.m.Demo().Active())
}

func TestLogin_OnlineThenOffline(t *testing.T) {
	ctx := context.Background()

	for _, fallback := range []bool{false, true} {
		t.Run(fmt.Sprintf("federated=%v", fallback), func(t *testing.T) {
			h := newHarness(t, true)
			if fallback {
				h.direct.LoginErr = client.ErrServer
			}

			u, err := h.m.Login(ctx, "ann@example.org", "s3cret")
			require.NoError(t, err)
			assert.NotEqual(t, models.ProviderOffline, u.Provider)

			h.conn.Set(false)

			u, err = h.m.Login(ctx, "ann@example.org", "s3cret")
			require.NoError(t, err)
			assert.Equal(t, models.ProviderOffline, u.Provider)
			assert.False(t, u.EmailVerified)
			assert.Contains(t, u.ID, "offline-")
			assert.Equal(t, "ann", u.DisplayName)
			assert.Equal(t, models.DefaultLanguage, u.Language)

			_, err = h.m.Login(ctx, "ann@example.org", "wrong")
			assert.ErrorIs(t, err, ErrInvalidOfflineCredentials)
			assert.EqualError(t, err, "invalid credentials for offline login")
		})
	}
}

func TestLogin_OfflineWithoutCredential(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.m.Login(context.Background(), "a@b.com", "x")
	require.ErrorIs(t, err, ErrInvalidOfflineCredentials)

	snap := h.m.State().Snapshot()
	assert.Nil(t, snap.Current)
	assert.False(t, snap.Loading)
	assert.True(t, snap.Offline)
	assert.Zero(t, h.providerCalls())
}

func TestLogin_DirectFailsFederatedSucceeds(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.m.DemoLogin(ctx)
	require.True(t, h.m.Demo().Active())

	h.direct.LoginErr = fmt.Errorf("%w: 500 boom", client.ErrServer)

	u, err := h.m.Login(ctx, "bob@example.org", "pw-123")
	require.NoError(t, err)

	assert.Equal(t, models.ProviderFederated, u.Provider)
	assert.Equal(t, models.ProviderFederated, h.m.Current().Provider)
	assert.True(t, h.cachedMatches(t, "bob@example.org", "pw-123"))
	assert.False(t, h.m.Demo().Active())
	assert.False(t, h.m.Current().IsDemo)
	assert.Equal(t, 1, h.direct.Called("Login"))
	assert.Equal(t, 1, h.fed.Called("Login"))

	ts, err := h.tokens.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderFederated, ts.Provider)
}

func TestLogin_BothProvidersFail(t *testing.T) {
	tests := []struct {
		name    string
		lastErr error
		message string
	}{
		{name: "rejected", lastErr: client.ErrUnauthorized, message: "login failed: server rejected the request"},
		{name: "unreachable", lastErr: client.ErrUnavailable, message: "login failed: identity service unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, true)
			h.direct.LoginErr = client.ErrServer
			h.fed.LoginErr = tt.lastErr

			_, err := h.m.Login(context.Background(), "a@b.com", "pw")
			require.ErrorIs(t, err, ErrLoginFailed)
			assert.ErrorIs(t, err, tt.lastErr, "last cause is attached")
			assert.NotErrorIs(t, err, client.ErrServer)
			assert.EqualError(t, err, tt.message)
			assert.Nil(t, h.m.Current())
			assert.False(t, h.cachedMatches(t, "a@b.com", "pw"))
		})
	}
}

func TestLogin_InvalidInput(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.m.Login(context.Background(), "not-an-email", "pw")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = h.m.Login(context.Background(), "a@b.com", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, h.providerCalls())
}

func TestLogin_TwoFactorPending(t *testing.T) {
	h := newHarness(t, true)
	h.direct.LoginResp = providerstest.DirectResponse("u-2fa", "a@b.com")
	h.direct.LoginResp.RequiresTwoFactor = true

	_, err := h.m.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.True(t, h.m.State().Snapshot().TwoFactorPending)
}

func TestRequiresConnectivity(t *testing.T) {
	ops := map[string]func(h *harness) error{
		"register": func(h *harness) error {
			_, err := h.m.Register(context.Background(), "a@b.com", "secret1", "A")
			return err
		},
		"reset": func(h *harness) error {
			return h.m.ResetPassword(context.Background(), "a@b.com")
		},
		"google login": func(h *harness) error {
			_, err := h.m.LoginWithGoogle(context.Background())
			return err
		},
		"facebook login": func(h *harness) error {
			_, err := h.m.LoginWithFacebook(context.Background())
			return err
		},
		"google register": func(h *harness) error {
			_, err := h.m.RegisterWithGoogle(context.Background())
			return err
		},
		"facebook register": func(h *harness) error {
			_, err := h.m.RegisterWithFacebook(context.Background())
			return err
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, false)

			err := op(h)
			require.ErrorIs(t, err, ErrOfflineUnsupported)
			assert.Contains(t, err.Error(), "no network connection:")
			assert.Contains(t, err.Error(), "requires connectivity")
			assert.Zero(t, h.providerCalls())
			assert.False(t, h.m.State().Snapshot().Loading)
		})
	}
}

func TestRegister(t *testing.T) {
	h := newHarness(t, true)
	h.direct.RegisterErr = client.ErrRejected

	u, err := h.m.Register(context.Background(), "new@b.com", "secret1", "Newbie")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderFederated, u.Provider)
	assert.Equal(t, "Newbie", h.fed.LastName)
	assert.True(t, h.cachedMatches(t, "new@b.com", "secret1"))

	h.fed.RegisterErr = client.ErrRejected
	_, err = h.m.Register(context.Background(), "other@b.com", "secret1", "")
	require.ErrorIs(t, err, ErrRegistrationFailed)
	assert.EqualError(t, err, "registration failed: server rejected the request")

	_, err = h.m.Register(context.Background(), "x@b.com", "123", "")
	assert.ErrorIs(t, err, ErrInvalidInput, "password too short")
}

func TestResetPassword(t *testing.T) {
	h := newHarness(t, true)
	h.direct.ForgotErr = client.ErrUnavailable

	require.NoError(t, h.m.ResetPassword(context.Background(), "a@b.com"))
	assert.Equal(t, 1, h.fed.Called("ForgotPassword"))

	h.fed.ForgotErr = client.ErrUnavailable
	err := h.m.ResetPassword(context.Background(), "a@b.com")
	require.ErrorIs(t, err, ErrResetFailed)
	assert.EqualError(t, err, "password reset failed: identity service unreachable")

	assert.ErrorIs(t, h.m.ResetPassword(context.Background(), "nope"), ErrInvalidInput)
}

func TestSocialLogin(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.m.DemoLogin(ctx)

	u, err := h.m.LoginWithGoogle(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGoogle, u.Provider)
	assert.Equal(t, models.ProviderGoogle, h.fed.LastSocial)
	assert.False(t, h.m.Demo().Active())
	assert.Zero(t, h.direct.Called("Login"), "social logins do not use the direct backend")

	cred, err := h.creds.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred, "no credential for social sessions")

	u, err = h.m.RegisterWithFacebook(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderFacebook, u.Provider)
	assert.Equal(t, 1, h.fed.Called("RegisterSocial"))

	h.fed.SocialErr = client.ErrUnavailable
	before := h.fed.Called("LoginSocial")
	_, err = h.m.LoginWithFacebook(ctx)
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.Equal(t, before+1, h.fed.Called("LoginSocial"), "one attempt, no fallback")
	assert.Equal(t, models.ProviderFacebook, h.m.Current().Provider, "failed login keeps the session")

	_, err = h.m.RegisterWithGoogle(ctx)
	assert.ErrorIs(t, err, ErrRegistrationFailed)
}

func TestLogout_RemoteFailuresSwallowed(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	_, err := h.m.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	h.direct.LogoutErr = client.ErrUnavailable
	h.fed.LogoutErr = errors.New("sdk exploded")

	h.m.Logout(ctx)

	snap := h.m.State().Snapshot()
	assert.Nil(t, snap.Current)
	assert.False(t, snap.Loading)
	assert.Equal(t, 1, h.direct.Called("Logout"))
	assert.Equal(t, 1, h.fed.Called("Logout"))
	assert.False(t, h.cachedMatches(t, "a@b.com", "pw"), "local credential cleared")
	_, err = h.tokens.Current(ctx)
	assert.Error(t, err, "tokens cleared")

	// second logout with no session
	h.m.Logout(ctx)
	assert.Nil(t, h.m.Current())
}

func TestLogout_OfflineAndDemoAreLocal(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, true)
	h.m.DemoLogin(ctx)
	h.m.Logout(ctx)
	assert.Nil(t, h.m.Current())
	assert.False(t, h.m.Demo().Active())
	assert.Zero(t, h.providerCalls(), "demo logout is local only")

	h = newHarness(t, true)
	_, err := h.m.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	h.conn.Set(false)
	h.m.Logout(ctx)
	assert.Nil(t, h.m.Current())
	assert.Zero(t, h.direct.Called("Logout"))
	assert.False(t, h.cachedMatches(t, "a@b.com", "pw"))
}

func TestRestore(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	u, err := h.m.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, u, "nothing stored")

	resp := providerstest.DirectResponse("u-1", "a@b.com")
	resp.Tokens.ExpiresAt = h.now.Add(time.Hour)
	h.direct.LoginResp = resp
	_, err = h.m.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	// new process: same stores, fresh manager
	other := NewSessionManager(testSettings, nil, h.direct, h.creds, h.tokens, h.conn)
	u, err = other.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, models.ProviderDirect, u.Provider)

	h.now = h.now.Add(2 * time.Hour)
	third := NewSessionManager(testSettings, nil, h.direct, h.creds, h.tokens, h.conn)
	u, err = third.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, u, "expired tokens are not restored")
}

func TestRestore_SkipsUnverifiedTwoFactor(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	resp := providerstest.DirectResponse("u-2fa", "a@b.com")
	resp.RequiresTwoFactor = true
	resp.Tokens.ExpiresAt = h.now.Add(time.Hour)
	h.direct.LoginResp = resp
	_, err := h.m.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	require.True(t, h.m.State().Snapshot().TwoFactorPending)

	// the process exits at the code prompt
	restarted := NewSessionManager(testSettings, nil, h.direct, h.creds, h.tokens, h.conn)
	u, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Nil(t, restarted.Current())
	_, err = h.tokens.Current(ctx)
	assert.ErrorIs(t, err, common.ErrorNotFound, "unverified tokens dropped")

	// once verified, the same kind of session survives a restart
	_, err = h.m.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	require.NoError(t, h.m.VerifyTwoFactorCode(ctx, "987654"))

	restarted = NewSessionManager(testSettings, nil, h.direct, h.creds, h.tokens, h.conn)
	u, err = restarted.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u-2fa", u.ID)
	assert.False(t, restarted.State().Snapshot().TwoFactorPending)
}

func TestLogout_TokenGoesToIssuerOnly(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, true)
	_, err := h.m.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	h.m.Logout(ctx)
	assert.Equal(t, "access-direct-a@b.com", h.direct.LogoutToken)
	assert.Empty(t, h.fed.LogoutToken)
	assert.Equal(t, 1, h.fed.Called("Logout"), "both endpoints are still called")

	h = newHarness(t, true)
	h.direct.LoginErr = client.ErrUnauthorized
	_, err = h.m.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	h.m.Logout(ctx)
	assert.Empty(t, h.direct.LogoutToken)
	assert.Equal(t, "fed-access-fed|a@b.com", h.fed.LogoutToken)
	assert.Equal(t, 1, h.direct.Called("Logout"))

	h = newHarness(t, true)
	_, err = h.m.LoginWithGoogle(ctx)
	require.NoError(t, err)
	h.m.Logout(ctx)
	assert.Empty(t, h.direct.LogoutToken)
	assert.Equal(t, "fed-access-google|social", h.fed.LogoutToken)
}

func TestLoading_TrueWhileInFlightAndQueued(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	h.direct.OnLogin = func() {
		entered <- struct{}{}
		<-release
	}

	var (
		mu      sync.Mutex
		loading []bool
	)
	h.m.State().Subscribe(func(s Snapshot) {
		mu.Lock()
		loading = append(loading, s.Loading)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = h.m.Login(ctx, "a@b.com", "pw")
	}()
	<-entered
	assert.True(t, h.m.State().Snapshot().Loading)

	// a second operation queues behind the first
	done := make(chan struct{})
	go func() {
		h.m.DemoLogin(ctx)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second operation ran concurrently")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	wg.Wait()
	<-done

	snap := h.m.State().Snapshot()
	assert.False(t, snap.Loading)
	assert.True(t, snap.Current.IsDemo, "queued operation ran last")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, loading)
	assert.False(t, loading[len(loading)-1])
}

func TestLoading_ResetAfterPanic(t *testing.T) {
	h := newHarness(t, true)
	h.direct.OnLogin = func() { panic("transport bug") }

	assert.Panics(t, func() {
		_, _ = h.m.Login(context.Background(), "a@b.com", "pw")
	})
	assert.False(t, h.m.State().Snapshot().Loading)

	h.direct.OnLogin = nil
	_, err := h.m.Login(context.Background(), "a@b.com", "pw")
	assert.NoError(t, err, "operation lock released")
}

func TestMetricsRecorded(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	_, err := h.m.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	h.conn.Set(false)
	_, err = h.m.Login(ctx, "a@b.com", "bad")
	require.Error(t, err)

	ops := h.recorder.Operations
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(OpLogin, metrics.OutcomeSuccess, "direct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(OpLogin, metrics.OutcomeFailure, "")))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.recorder.Online))
}

func TestWatchMirrorsConnectivity(t *testing.T) {
	h := newHarness(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.m.Watch(ctx, h.conn)

	// toggle until the watcher has subscribed
	require.Eventually(t, func() bool {
		h.conn.Set(true)
		h.conn.Set(false)
		return h.m.State().Snapshot().Offline
	}, time.Second, 10*time.Millisecond)
	assert.True(t, h.tokens.Offline())

	h.conn.Set(true)
	require.Eventually(t, func() bool { return !h.m.State().Snapshot().Offline }, time.Second, 10*time.Millisecond)
	assert.False(t, h.tokens.Offline())
}
