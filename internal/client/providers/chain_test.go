package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/bizkeeper/internal/client/client"
	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/client/providers/providerstest"
	"github.com/dmitrijs2005/bizkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFold_StopsAtFirstSuccess(t *testing.T) {
	var ran []string
	s := func(name string, err error) Strategy[string] {
		return Strategy[string]{Provider: models.Provider(name), Attempt: func(context.Context) (string, error) {
			ran = append(ran, name)
			return name, err
		}}
	}

	v, p, err := Fold(context.Background(), logging.Nop(), s("a", nil), s("b", nil))
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Equal(t, models.Provider("a"), p)
	assert.Equal(t, []string{"a"}, ran)

	ran = nil
	v, p, err = Fold(context.Background(), nil, s("a", errors.New("x")), s("b", nil))
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.Equal(t, models.Provider("b"), p)
	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestFold_ReturnsLastError(t *testing.T) {
	first := errors.New("first")
	last := errors.New("last")
	var ran int
	s := func(name string, err error) Strategy[int] {
		return Strategy[int]{Provider: models.Provider(name), Attempt: func(context.Context) (int, error) {
			ran++
			return 0, err
		}}
	}

	_, _, err := Fold(context.Background(), nil, s("a", first), s("b", last), s("c", nil))
	require.ErrorIs(t, err, last)
	assert.NotErrorIs(t, err, first)
	assert.Equal(t, MaxAttempts, ran, "third strategy never runs")

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, models.Provider("b"), pe.Provider)
	assert.Contains(t, err.Error(), "b provider")
}

func TestFold_Empty(t *testing.T) {
	_, _, err := Fold[int](context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestChain_LoginFallback(t *testing.T) {
	direct := &providerstest.Direct{LoginErr: client.ErrServer}
	fed := &providerstest.Federated{}
	c := NewChain(direct, fed, nil)

	res, p, err := Fold(context.Background(), nil, c.Login("a@b.com", "pw")...)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderFederated, p)
	assert.Equal(t, models.ProviderFederated, res.Provider)
	assert.Equal(t, models.ProviderFederated, res.Tokens.Provider)
	assert.Equal(t, "fed|a@b.com", res.Info.Subject)
	assert.Equal(t, 1, direct.Called("Login"))
	assert.Equal(t, "pw", fed.LastPassword)
}

func TestChain_LoginDirectWins(t *testing.T) {
	direct := &providerstest.Direct{}
	direct.LoginResp = providerstest.DirectResponse("u1", "a@b.com")
	direct.LoginResp.RequiresTwoFactor = true
	fed := &providerstest.Federated{}
	c := NewChain(direct, fed, nil)

	res, err := c.LoginDirect(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.True(t, res.RequiresTwoFactor)
	assert.Equal(t, models.ProviderDirect, res.Provider)
	assert.Equal(t, 0, fed.Called("Login"))
}

func TestChain_RegisterAndReset(t *testing.T) {
	direct := &providerstest.Direct{RegisterErr: client.ErrRejected, ForgotErr: client.ErrUnavailable}
	fed := &providerstest.Federated{ForgotErr: client.ErrUnauthorized}
	c := NewChain(direct, fed, nil)
	ctx := context.Background()

	res, p, err := Fold(ctx, nil, c.Register("n@b.com", "pw", "New")...)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderFederated, p)
	assert.Equal(t, "New", fed.LastName)
	assert.NotNil(t, res.Tokens)

	_, _, err = Fold(ctx, nil, c.Reset("n@b.com")...)
	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Equal(t, 1, direct.Called("ForgotPassword"))
	assert.Equal(t, 1, fed.Called("ForgotPassword"))
}

func TestChain_SocialHasNoFallback(t *testing.T) {
	direct := &providerstest.Direct{}
	fed := &providerstest.Federated{SocialErr: client.ErrUnavailable}
	c := NewChain(direct, fed, nil)

	strategies := c.Social(models.ProviderGoogle, false)
	require.Len(t, strategies, 1)

	_, _, err := Fold(context.Background(), nil, strategies...)
	assert.ErrorIs(t, err, client.ErrUnavailable)
	assert.Equal(t, 1, fed.Called("LoginSocial"))
	assert.Empty(t, direct.Calls)

	fed.SocialErr = nil
	res, _, err := Fold(context.Background(), nil, c.Social(models.ProviderFacebook, true)...)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderFacebook, res.Provider)
	assert.Equal(t, 1, fed.Called("RegisterSocial"))
}

func TestChain_MissingProviders(t *testing.T) {
	c := NewChain(nil, nil, nil)
	ctx := context.Background()

	_, err := c.LoginDirect(ctx, "a", "b")
	assert.ErrorIs(t, err, ErrNoProvider)
	_, err = c.LoginFederated(ctx, "a", "b")
	assert.ErrorIs(t, err, ErrNoProvider)
	_, err = c.LoginSocial(ctx, models.ProviderGoogle)
	assert.ErrorIs(t, err, ErrNoProvider)
	assert.ErrorIs(t, c.ResetDirect(ctx, "a"), ErrNoProvider)
	assert.NoError(t, c.LogoutDirect(ctx, nil))
	assert.NoError(t, c.LogoutFederated(ctx, nil))
}

func TestChain_Logout(t *testing.T) {
	direct := &providerstest.Direct{LogoutErr: client.ErrUnavailable}
	fed := &providerstest.Federated{}
	c := NewChain(direct, fed, nil)

	assert.ErrorIs(t, c.LogoutDirect(context.Background(), nil), client.ErrUnavailable)
	assert.NoError(t, c.LogoutFederated(context.Background(), nil))
	assert.Equal(t, 1, fed.Called("Logout"))
}

func TestChain_LogoutTokenGoesToIssuerOnly(t *testing.T) {
	tests := []struct {
		issuer     models.Provider
		wantDirect string
		wantFed    string
	}{
		{issuer: models.ProviderDirect, wantDirect: "tok"},
		{issuer: models.ProviderFederated, wantFed: "tok"},
		{issuer: models.ProviderGoogle, wantFed: "tok"},
		{issuer: models.ProviderFacebook, wantFed: "tok"},
		{issuer: models.ProviderOffline},
	}
	for _, tt := range tests {
		t.Run(string(tt.issuer), func(t *testing.T) {
			direct := &providerstest.Direct{}
			fed := &providerstest.Federated{}
			c := NewChain(direct, fed, nil)
			ts := &models.TokenSet{AccessToken: "tok", Provider: tt.issuer}

			require.NoError(t, c.LogoutDirect(context.Background(), ts))
			require.NoError(t, c.LogoutFederated(context.Background(), ts))

			assert.Equal(t, 1, direct.Called("Logout"))
			assert.Equal(t, 1, fed.Called("Logout"))
			assert.Equal(t, tt.wantDirect, direct.LogoutToken)
			assert.Equal(t, tt.wantFed, fed.LogoutToken)
		})
	}
}
