package services

import (
	"errors"
	"testing"

	"github.com/dmitrijs2005/bizkeeper/internal/client/client"
	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStore_Dispatch(t *testing.T) {
	s := NewStateStore()

	var got []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) { got = append(got, snap) })

	s.dispatch(beginOperation(), beginOperation())
	s.dispatch(setUser(&models.User{ID: "u1"}), setTwoFactorPending(true))
	s.dispatch(endOperation())

	snap := s.Snapshot()
	assert.True(t, snap.Loading, "one operation still running")
	require.NotNil(t, snap.Current)
	assert.Equal(t, "u1", snap.Current.ID)

	s.dispatch(endOperation(), endOperation(), clearSession())
	snap = s.Snapshot()
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Current)
	assert.False(t, snap.TwoFactorPending)

	require.Len(t, got, 4)
	assert.True(t, got[1].TwoFactorPending)

	unsubscribe()
	s.dispatch(setOffline(true))
	assert.Len(t, got, 4)
	assert.True(t, s.Snapshot().Offline)
}

func TestStateStore_SnapshotIsCopy(t *testing.T) {
	s := NewStateStore()
	s.dispatch(setUser(&models.User{ID: "u1", DisplayName: "A"}))

	snap := s.Snapshot()
	snap.Current.DisplayName = "changed"

	assert.Equal(t, "A", s.Snapshot().Current.DisplayName)
}

func TestDemoMode(t *testing.T) {
	d := NewDemoMode()

	var seen []bool
	d.Subscribe(func(active bool) { seen = append(seen, active) })

	d.set(true)
	d.set(true)
	d.set(false)

	assert.False(t, d.Active())
	assert.Equal(t, []bool{true, false}, seen)
}

func TestError(t *testing.T) {
	cause := errors.Join(errors.New("direct: 500"), client.ErrUnavailable)
	err := newError(ErrLoginFailed, OpLogin, cause)

	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.ErrorIs(t, err, client.ErrUnavailable)
	assert.NotErrorIs(t, err, ErrRegistrationFailed)
	assert.EqualError(t, err, "login failed: identity service unreachable")

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, OpLogin, e.Op)

	assert.EqualError(t, newError(ErrOfflineUnsupported, OpResetPassword, nil),
		"no network connection: password reset requires connectivity")
	assert.EqualError(t, newError(ErrRegistrationFailed, OpRegister, errors.New("email taken")),
		"registration failed: email taken")
}
