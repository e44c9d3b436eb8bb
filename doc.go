// Package hooks provides typed lifecycle hook handlers ("actions") for a host
// identity platform: rate limiting for machine-to-machine token grants, nested
// account linking, email-domain and country gates, scope policy, session
// counting, custom token exchange, and outbound notification forwarding.
//
// The package is designed around the host's invocation contract: each handler
// receives an immutable, per-trigger event snapshot and a capability object,
// and expresses every side effect (deny, redirect, claim, metadata, cache)
// exclusively through that capability object. Registered handlers run in
// order; the first error or recorded denial stops the chain. Handlers are
// safe to invoke concurrently after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// hooks is the public surface. It exposes [Runtime], [Builder], [Config], the
// per-trigger event types, and the capability interfaces. All internal
// coordination — grant-history bookkeeping, machine-token acquisition,
// management-API calls, audit dispatch — lives under internal/ and is never
// exported. Token verification and SAML assertion processing are reusable and
// live in the idtoken and saml sub-packages.
//
// # What this package must NOT do
//
//   - Reimplement the host's execution sandbox, secret injection, or SDK.
//   - Load configuration or certificates from local files at runtime.
//   - Retry failed upstream calls; retry policy belongs to the host or SDK.
//
// # Failure policy
//
// Security checks fail closed: signature, issuer, audience, nonce, subject and
// rate-limit violations always deny. Bookkeeping fails open: cache writes,
// history persistence, audit emission, and enrichment calls are logged and
// never block the transaction.
package hooks
