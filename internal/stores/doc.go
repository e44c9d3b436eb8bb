// Package stores provides Redis-backed persistence primitives for the hooks runtime.
//
// # Stores
//
//   - [GrantHistoryStore] — per-client grant timestamp history for the sliding
//     window rate limiter. Key prefix grh:.
//   - [SessionRegistry] — per-user session markers with TTL expiry for
//     concurrent session counting. Key prefix sess:.
//
// # What this package must NOT do
//
//   - Implement admission policy (that lives in the root package actions).
//   - Be imported outside the hooks module.
package stores
