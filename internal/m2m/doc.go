// Package m2m performs machine-to-machine token grants against the tenant
// authorization server.
//
// The [Grantor] wraps the client-credentials flow from golang.org/x/oauth2.
// Callers own caching; the grantor performs one network grant per call.
//
// # What this package must NOT do
//
//   - Cache tokens (the runtime caches through the host-provided cache).
//   - Retry failed grants.
package m2m
