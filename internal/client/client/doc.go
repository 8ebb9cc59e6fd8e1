// Package client contains the transport to the BizKeeper direct backend and
// the local database bootstrap used by the CLI.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface): Login,
//     Register, profile read and update, password reset, two-factor
//     verification, Logout and Ping.
//  2. A REST implementation (see HTTPClient) speaking JSON to the backend.
//  3. A gRPC implementation (see GRPCClient) that sends the same documents as
//     google.protobuf.Struct messages and injects the access token through a
//     unary interceptor.
//  4. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Transport failures are mapped to sentinel errors that callers match with
// errors.Is: ErrUnavailable (network, timeouts, 502-504), ErrUnauthorized
// (401/403, Unauthenticated), ErrRejected (other 4xx, invalid argument) and
// ErrServer (5xx, malformed responses). No tokens are refreshed here; an
// expired session surfaces as ErrUnauthorized.
//
// # Concurrency & Contexts
//
// Both implementations are safe for concurrent use. All operations accept
// context.Context and honor cancellation and timeouts.
package client
