// Package secrets implements the secure key-value capability the session
// layer persists credentials and tokens through.
//
// # Contract
//
// Store.Get returns (nil, nil) for a missing key. Set overwrites. Delete of a
// missing key is not an error. Every operation is atomic per key.
//
// # Backends
//
//   - SQLiteStore: the default on-device store (table "secrets", created by
//     the embedded goose migrations). Values are sealed with AES-GCM when the
//     store is opened with a device secret.
//   - RedisStore: for deployments that keep client state in a shared Redis.
//   - MemoryStore: process-local, used by tests and the "memory" backend.
package secrets
