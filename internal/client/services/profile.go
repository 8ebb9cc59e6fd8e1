package services

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
)

// UpdateProfile applies patch to the current user. Online sessions send it
// to the direct backend and merge the answer; if that call fails, or the
// device is offline, or the session is a demo, the patch is merged locally.
// Network problems never surface as errors here.
func (m *SessionManager) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (_ *models.User, err error) {
	r := m.start(OpUpdateProfile)
	defer func() { r.finish(ctx, err) }()

	if err := m.checkInput(OpUpdateProfile, patch); err != nil {
		return nil, err
	}

	cur := m.state.current()
	if cur == nil {
		return nil, newError(ErrProfileUpdateFailed, OpUpdateProfile, ErrNotAuthenticated)
	}
	r.provider = cur.Provider

	next := cur.Apply(patch)
	if !r.offline && m.remoteSession(cur) {
		if err := m.sessionExpired(ctx, OpUpdateProfile, cur); err != nil {
			return nil, err
		}
		info, err := m.profile.UpdateProfile(ctx, patch)
		if err != nil {
			m.log.Warn(ctx, "remote profile update failed, keeping local changes", "error", err)
		} else if info != nil {
			next = next.Merge(*info)
		}
	}

	m.state.dispatch(setUser(next))
	return next.Clone(), nil
}

// RefreshProfile reloads the profile of an online session from the direct
// backend. On failure the current user is returned together with the error.
func (m *SessionManager) RefreshProfile(ctx context.Context) (_ *models.User, err error) {
	r := m.start(OpRefreshProfile)
	defer func() { r.finish(ctx, err) }()

	cur := m.state.current()
	if cur == nil {
		return nil, newError(ErrNotAuthenticated, OpRefreshProfile, nil)
	}
	r.provider = cur.Provider
	if !m.remoteSession(cur) {
		return cur, nil
	}
	if r.offline {
		return cur, newError(ErrOfflineUnsupported, OpRefreshProfile, nil)
	}
	if err := m.sessionExpired(ctx, OpRefreshProfile, cur); err != nil {
		return nil, err
	}

	info, err := m.profile.GetProfile(ctx)
	if err != nil {
		return cur, newError(ErrProfileUpdateFailed, OpRefreshProfile, err)
	}
	if info == nil {
		return cur, nil
	}

	next := cur.Merge(*info)
	m.state.dispatch(setUser(next))
	return next.Clone(), nil
}

// VerifyTwoFactorCode checks the second factor. Online, non-demo sessions
// ask the direct backend; otherwise only the fixed offline code passes. The
// current user is left alone either way: on failure, expired tokens
// included, the caller discards the tentative session. Success clears the
// pending mark on the stored tokens.
func (m *SessionManager) VerifyTwoFactorCode(ctx context.Context, code string) (err error) {
	r := m.start(OpVerifyTwoFactor)
	defer func() { r.finish(ctx, err) }()

	cur := m.state.current()
	demo := m.demo.Active() || (cur != nil && cur.IsDemo)
	if cur != nil {
		r.provider = cur.Provider
	}

	if r.offline || demo {
		if !m.fixedCodeMatches(code) {
			return newError(ErrInvalidVerificationCode, OpVerifyTwoFactor, nil)
		}
		m.state.dispatch(setTwoFactorPending(false))
		return nil
	}

	if err := m.tokensExpired(ctx, cur); err != nil {
		return newError(ErrInvalidVerificationCode, OpVerifyTwoFactor, fmt.Errorf("%w: %w", ErrSessionExpired, err))
	}
	if err := m.profile.VerifyTwoFactor(ctx, code); err != nil {
		return newError(ErrInvalidVerificationCode, OpVerifyTwoFactor, err)
	}

	m.confirmStoredTokens(ctx)
	m.state.dispatch(setTwoFactorPending(false))
	return nil
}

func (m *SessionManager) confirmStoredTokens(ctx context.Context) {
	ts, err := m.tokens.Current(ctx)
	if err != nil || !ts.TwoFactorPending {
		return
	}
	ts.TwoFactorPending = false
	if err := m.tokens.Save(ctx, ts); err != nil {
		m.log.Warn(ctx, "failed to mark tokens verified", "provider", ts.Provider, "error", err)
	}
}

func (m *SessionManager) fixedCodeMatches(code string) bool {
	want := m.settings.OfflineVerificationCode
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(want)) == 1
}

// remoteSession reports whether cur was issued by a provider and so has
// tokens the backend accepts.
func (m *SessionManager) remoteSession(cur *models.User) bool {
	return !cur.IsDemo && cur.Provider != models.ProviderOffline
}
