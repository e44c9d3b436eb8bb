// Package internal groups helpers that are intentionally private to hooks.
//
// # Sub-packages
//
//   - m2m — client-credentials token grantor for the management API
//   - mgmt — thin management API (api/v2) client used by the actions
//   - stores — Redis-backed grant history and session registry
//
// # What this package must NOT do
//
//   - Export types that appear in the public hooks API.
//   - Be imported by any package outside the hooks module.
package internal
