package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/client/services"
)

// Profile prints the current user.
func (a *App) Profile(context.Context) error {
	u := a.state.Snapshot().Current
	if u == nil {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	a.printUser(u)
	return nil
}

func (a *App) printUser(u *models.User) {
	rows := []struct{ k, v string }{
		{"ID", u.ID},
		{"Email", u.Email},
		{"Name", u.DisplayName},
		{"Phone", u.PhoneNumber},
		{"Company", u.Company},
		{"Role", u.Role},
		{"Position", u.Position},
		{"Language", u.Language},
		{"Provider", string(u.Provider)},
	}
	for _, r := range rows {
		if r.v != "" {
			fmt.Fprintf(a.out, "%-9s %s\n", r.k+":", r.v)
		}
	}
	fmt.Fprintf(a.out, "%-9s %t\n", "Verified:", u.EmailVerified)
}

// EditProfile asks for each editable field; Enter keeps the current value.
func (a *App) EditProfile(ctx context.Context) error {
	u := a.state.Snapshot().Current
	if u == nil {
		return a.report(services.ErrNotAuthenticated)
	}

	var patch models.ProfilePatch
	fields := []struct {
		prompt  string
		current string
		dst     **string
	}{
		{"Display name", u.DisplayName, &patch.DisplayName},
		{"Phone", u.PhoneNumber, &patch.PhoneNumber},
		{"Company", u.Company, &patch.Company},
		{"Position", u.Position, &patch.Position},
		{"Language", u.Language, &patch.Language},
	}
	for _, f := range fields {
		v, err := getOptional(a.reader, f.prompt, f.current, a.out)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	if patch.Empty() {
		fmt.Fprintln(a.out, "Nothing to change.")
		return nil
	}

	next, err := a.session.UpdateProfile(ctx, patch)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Profile updated.")
	a.printUser(next)
	return nil
}

// Refresh reloads the profile from the backend.
func (a *App) Refresh(ctx context.Context) error {
	u, err := a.session.RefreshProfile(ctx)
	if err != nil {
		if errors.Is(err, services.ErrOfflineUnsupported) && u != nil {
			fmt.Fprintln(a.out, "Offline; showing the cached profile.")
			a.printUser(u)
			return nil
		}
		return a.report(err)
	}
	a.printUser(u)
	return nil
}
