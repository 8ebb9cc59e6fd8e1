package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Register(ctx context.Context) error
	Demo(ctx context.Context) error
	Social(ctx context.Context, p models.Provider, register bool) error
	Reset(ctx context.Context) error
	Verify(ctx context.Context) error
	Profile(ctx context.Context) error
	EditProfile(ctx context.Context) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
}

const (
	helpSignedOut = "Available commands: login, register, demo, google, facebook, google-signup, facebook-signup, reset, verify, exit"
	helpSignedIn  = "Available commands: profile, edit, refresh, verify, logout, exit"
)

// runREPL starts a simple read–eval–print loop for the BizKeeper CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on a. Unknown commands are reported back to the
// user. The loop exits on EOF or when the user types "exit" or "quit".
//
// Command errors are ignored here; handlers report their own.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(w, "biz %s> ", statusFn())

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch cmd := parts[0]; cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, helpSignedIn)
			} else {
				fmt.Fprintln(w, helpSignedOut)
			}

		case "login":
			_ = a.Login(ctx)
		case "register":
			_ = a.Register(ctx)
		case "demo":
			_ = a.Demo(ctx)
		case "google":
			_ = a.Social(ctx, models.ProviderGoogle, false)
		case "facebook":
			_ = a.Social(ctx, models.ProviderFacebook, false)
		case "google-signup":
			_ = a.Social(ctx, models.ProviderGoogle, true)
		case "facebook-signup":
			_ = a.Social(ctx, models.ProviderFacebook, true)
		case "reset":
			_ = a.Reset(ctx)
		case "verify":
			_ = a.Verify(ctx)
		case "profile", "me":
			_ = a.Profile(ctx)
		case "edit":
			_ = a.EditProfile(ctx)
		case "refresh":
			_ = a.Refresh(ctx)
		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}
