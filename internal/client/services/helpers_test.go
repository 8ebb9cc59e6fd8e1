package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/bizkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/bizkeeper/internal/client/credentials"
	"github.com/dmitrijs2005/bizkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/bizkeeper/internal/client/providers"
	"github.com/dmitrijs2005/bizkeeper/internal/client/providers/providerstest"
	"github.com/dmitrijs2005/bizkeeper/internal/client/repositories/secrets"
	"github.com/dmitrijs2005/bizkeeper/internal/client/tokens"
)

var testSettings = Settings{
	DemoEmail:               "demo@bizkeeper.app",
	DemoPassword:            "demo123",
	OfflineVerificationCode: "123456",
}

// harness wires a SessionManager to in-memory stores and recording fakes.
type harness struct {
	m        *SessionManager
	direct   *providerstest.Direct
	fed      *providerstest.Federated
	creds    *credentials.Cache
	tokens   *tokens.Store
	conn     *connectivity.Manual
	recorder *metrics.Recorder
	now      time.Time
}

func newHarness(t *testing.T, online bool) *harness {
	t.Helper()

	h := &harness{
		direct:   &providerstest.Direct{},
		fed:      &providerstest.Federated{},
		conn:     connectivity.NewManual(online),
		recorder: metrics.NewRecorder(),
		now:      time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }

	h.creds = credentials.NewCache(secrets.NewMemoryStore())
	h.tokens = tokens.NewStore(secrets.NewMemoryStore(), tokens.WithClock(clock))

	chain := providers.NewChain(h.direct, h.fed, nil)
	h.m = NewSessionManager(testSettings, chain, h.direct, h.creds, h.tokens, h.conn,
		WithRecorder(h.recorder),
		WithClock(clock),
	)
	return h
}

// providerCalls counts every call made to either fake provider.
func (h *harness) providerCalls() int {
	return len(h.direct.Calls) + len(h.fed.Calls)
}

func (h *harness) cachedMatches(t *testing.T, email, password string) bool {
	t.Helper()
	ok, err := h.creds.Match(context.Background(), email, password)
	if err != nil {
		t.Fatalf("credential match: %v", err)
	}
	return ok
}
