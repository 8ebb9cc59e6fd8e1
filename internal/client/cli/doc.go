// Package cli provides the interactive BizKeeper command-line client.
//
// App drives a services.SessionManager from a small REPL: password, demo and
// social logins, registration, password reset, two-factor verification,
// profile display and edits, and logout. The prompt shows who is signed in
// and whether the identity backends are reachable.
//
// Passwords and codes are read without echo when stdin is a terminal.
package cli
