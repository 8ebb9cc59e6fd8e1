// Package common contains shared constants and sentinel errors used across
// BizKeeper client components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Keys under which client state is kept in the secret store.
const (
	SecretKeyCredential = "auth.credential"
	SecretKeyTokens     = "auth.tokens"
	SecretKeyStoreSalt  = "store.salt"
)
