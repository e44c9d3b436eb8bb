// Package mgmt is a minimal REST client for the tenant management API.
//
// The [Client] covers only the endpoints the runtime actions need: user
// reads and writes, identity linking, email search, and device credential
// revocation. Tokens come from a caller-supplied provider so the runtime can
// cache them.
//
// # What this package must NOT do
//
//   - Obtain or cache tokens itself.
//   - Retry failed requests.
package mgmt
