// Package saml validates bearer assertions against a pinned issuer
// certificate and extracts the subject identity for token exchange.
package saml
