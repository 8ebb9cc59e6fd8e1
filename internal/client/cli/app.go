package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/bizkeeper/internal/client/federated"
	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/client/services"
	"github.com/dmitrijs2005/bizkeeper/internal/logging"
)

// Session is the part of services.SessionManager driven by the CLI.
type Session interface {
	Login(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, email, password, displayName string) (*models.User, error)
	Logout(ctx context.Context)
	ResetPassword(ctx context.Context, email string) error
	DemoLogin(ctx context.Context) *models.User
	LoginWithGoogle(ctx context.Context) (*models.User, error)
	LoginWithFacebook(ctx context.Context) (*models.User, error)
	RegisterWithGoogle(ctx context.Context) (*models.User, error)
	RegisterWithFacebook(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.User, error)
	RefreshProfile(ctx context.Context) (*models.User, error)
	VerifyTwoFactorCode(ctx context.Context, code string) error
}

// StateReader exposes the published session state.
type StateReader interface {
	Snapshot() services.Snapshot
}

type App struct {
	session Session
	state   StateReader
	reader  *bufio.Reader
	out     io.Writer
	log     logging.Logger
}

func NewApp(session Session, state StateReader, in io.Reader, out io.Writer, log logging.Logger) *App {
	if log == nil {
		log = logging.Nop()
	}
	return &App{
		session: session,
		state:   state,
		reader:  bufio.NewReader(in),
		out:     out,
		log:     log,
	}
}

// Run starts the REPL and blocks until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to BizKeeper CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}

func (a *App) isLoggedIn() bool {
	return a.state.Snapshot().Current != nil
}

// getStatus renders the prompt status, e.g. "(ann@example.org online)".
func (a *App) getStatus() string {
	snap := a.state.Snapshot()

	var parts []string
	if u := snap.Current; u != nil {
		parts = append(parts, u.Email)
		if u.IsDemo {
			parts = append(parts, "demo")
		}
	}
	if snap.Offline {
		parts = append(parts, "offline")
	} else {
		parts = append(parts, "online")
	}
	if snap.TwoFactorPending {
		parts = append(parts, "2fa-pending")
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (a *App) report(err error) error {
	fmt.Fprintf(a.out, "Error: %v\n", err)
	return err
}

func (a *App) welcome(u *models.User) {
	if u == nil {
		return
	}
	fmt.Fprintf(a.out, "Signed in as %s (%s) via %s\n", u.DisplayName, u.Email, u.Provider)
}

// DevicePrompt tells the user where to approve a social login.
func DevicePrompt(w io.Writer) federated.Prompter {
	return func(_ context.Context, dc federated.DeviceCode) {
		fmt.Fprintf(w, "Open %s and enter the code %s (valid until %s)\n",
			dc.VerificationURI, dc.UserCode, dc.Expiry.Local().Format("15:04"))
	}
}
