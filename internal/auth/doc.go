// Package auth issues and verifies the optional access tokens that guard
// the gate command endpoints.
//
// Tokens are HS256-signed JWTs carrying a subject (who pressed the button)
// and the "comando" scope. Verification is signature and expiry only; there
// is no user store and no refresh flow. When no signing secret is configured
// the bridge does not check tokens at all.
package auth
