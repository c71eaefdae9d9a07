// Package permission defines the closed Role and Permission sets, the static
// role-default table, runtime grants, and the pure resolver used by Engine.Authorize.
//
// # Resolution order
//
//  1. An active Deny grant for the user or one of its groups.
//  2. Ownership of the target resource, for owner-scoped permissions.
//  3. An active Allow grant.
//  4. The role-default set.
//  5. Otherwise denied.
//
// An administrative override skips steps 2 to 4 and never step 1.
//
// # What this package must NOT do
//
//   - Import goGate, jwt, or session.
//   - Trust a role carried in a token. Callers pass the role read from the credential store.
package permission
