// Package idtoken verifies RS256 id tokens minted by the tenant during nested
// authorization flows, with strict issuer, audience, nonce, and age checks.
package idtoken
